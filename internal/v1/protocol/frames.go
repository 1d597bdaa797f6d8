// Package protocol implements the fixed-layout binary frames exchanged with
// chat clients. Every frame starts with a 3-byte header {type, subtype,
// opcode}; payload strings are fixed-length byte arrays, NUL-terminated on
// the wire. Decoders force a terminator at the end of every string field
// before interpretation so a hostile client cannot smuggle an unterminated
// buffer into the server.
package protocol

import (
	"errors"
	"fmt"
)

// Frame types.
const (
	TypeRooms   uint8 = 0
	TypeAccount uint8 = 1
	TypeChat    uint8 = 2
	TypeSession uint8 = 3
	TypeFail    uint8 = 255
)

// Frame subtypes.
const (
	SubtypeJoin        uint8 = 0
	SubtypeList        uint8 = 1
	SubtypeCreate      uint8 = 2
	SubtypeRegister    uint8 = 3
	SubtypeLogin       uint8 = 4
	SubtypeAdmin       uint8 = 5
	SubtypeChat        uint8 = 6
	SubtypeFail        uint8 = 7
	SubtypeDelete      uint8 = 8
	SubtypeAdminRemove uint8 = 9
	SubtypeLeave       uint8 = 10
	SubtypeLogout      uint8 = 11
	SubtypeQuit        uint8 = 12
)

// Opcodes.
const (
	OpRequest     uint8 = 0
	OpResponse    uint8 = 1
	OpReject      uint8 = 2
	OpAcknowledge uint8 = 3
	OpUpdate      uint8 = 4
)

// Field and buffer sizes. Name fields carry a trailing terminator byte on
// the wire, so a 30-character maximum occupies 31 bytes.
const (
	HeaderLen = 3

	MinUsernameLen = 1
	MaxUsernameLen = 30
	MinPasswordLen = 5
	MaxPasswordLen = 30
	MinRoomNameLen = 5
	MaxRoomNameLen = 30
	MaxChatLen     = 150

	nameFieldLen = MaxUsernameLen + 1
	// chatFieldLen covers sender + '>' + body + terminator: 182 bytes.
	chatFieldLen = MaxUsernameLen + 1 + MaxChatLen + 1

	// BufferSize is the per-session receive buffer. All request frames fit
	// in a single read of this size.
	BufferSize = 1024
)

// chatBodyOffset is where the message body starts inside a chat update
// payload: the sender field plus the '>' separator.
const chatBodyOffset = MaxUsernameLen + 1

var ErrShortFrame = errors.New("protocol: frame shorter than header")

// Header is the leading 3 bytes of every frame.
type Header struct {
	Type    uint8
	Subtype uint8
	Opcode  uint8
}

// ParseHeader peeks the frame header from a receive buffer.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, ErrShortFrame
	}
	return Header{Type: buf[0], Subtype: buf[1], Opcode: buf[2]}, nil
}

func (h Header) String() string {
	return fmt.Sprintf("type=%d subtype=%d opcode=%d", h.Type, h.Subtype, h.Opcode)
}

// cstring interprets b as a NUL-terminated byte array and returns the string
// up to (not including) the first NUL.
func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// field extracts a fixed-length string field from buf, forcing a terminator
// at the last byte of the field. Missing bytes read as NUL, mirroring the
// zeroed receive buffer the session reads into.
func field(buf []byte, offset, size int) string {
	f := make([]byte, size)
	if offset < len(buf) {
		copy(f, buf[offset:])
	}
	f[size-1] = 0
	return cstring(f)
}

// DecodeCredentials unpacks a REGISTER or LOGIN request:
// header + username[31] + password[31].
func DecodeCredentials(buf []byte) (username, password string) {
	username = field(buf, HeaderLen, nameFieldLen)
	password = field(buf, HeaderLen+nameFieldLen, nameFieldLen)
	return username, password
}

// DecodeName unpacks a single-name request (ADMIN, ADMIN_REMOVE, account
// DELETE, room CREATE/DELETE/JOIN): header + name[31].
func DecodeName(buf []byte) string {
	return field(buf, HeaderLen, nameFieldLen)
}

// DecodeChat unpacks a chat request. The client places the message at the
// start of the 182-byte chat field; the terminator is forced at MaxChatLen
// so the body can never exceed 150 bytes.
func DecodeChat(buf []byte) string {
	return field(buf, HeaderLen, MaxChatLen+1)
}

// EncodeAck builds an ACKNOWLEDGE frame echoing the request type/subtype.
func EncodeAck(frameType, subtype uint8) []byte {
	return []byte{frameType, subtype, OpAcknowledge}
}

// EncodeReject builds a REJECT frame echoing the request type/subtype.
func EncodeReject(frameType, subtype uint8, code RejectCode) []byte {
	return []byte{frameType, subtype, OpReject, byte(code)}
}

// EncodeChatUpdate builds the frame fanned out to room peers. The payload
// uses fixed offsets: sender NUL-padded in [0,30), '>' at 30, body NUL-padded
// from 31, terminator at the final byte.
func EncodeChatUpdate(sender, chat string) []byte {
	frame := make([]byte, HeaderLen+chatFieldLen)
	frame[0] = TypeChat
	frame[1] = SubtypeChat
	frame[2] = OpAcknowledge
	payload := frame[HeaderLen:]
	copy(payload[:MaxUsernameLen], sender)
	payload[MaxUsernameLen] = '>'
	copy(payload[chatBodyOffset:chatBodyOffset+MaxChatLen], chat)
	return frame
}

// DecodeChatUpdate splits a chat update payload back into sender and body.
// Used by tests and diagnostic tooling; the server itself only encodes.
func DecodeChatUpdate(buf []byte) (sender, chat string) {
	sender = field(buf, HeaderLen, MaxUsernameLen+1)
	chat = field(buf, HeaderLen+chatBodyOffset, MaxChatLen+1)
	return sender, chat
}

// EncodeCredentialsRequest builds a client-side REGISTER or LOGIN request.
func EncodeCredentialsRequest(frameType, subtype uint8, username, password string) []byte {
	frame := make([]byte, HeaderLen+2*nameFieldLen)
	frame[0] = frameType
	frame[1] = subtype
	frame[2] = OpRequest
	copy(frame[HeaderLen:HeaderLen+MaxUsernameLen], username)
	copy(frame[HeaderLen+nameFieldLen:HeaderLen+nameFieldLen+MaxPasswordLen], password)
	return frame
}

// EncodeNameRequest builds a client-side single-name request.
func EncodeNameRequest(frameType, subtype uint8, name string) []byte {
	frame := make([]byte, HeaderLen+nameFieldLen)
	frame[0] = frameType
	frame[1] = subtype
	frame[2] = OpRequest
	copy(frame[HeaderLen:HeaderLen+MaxUsernameLen], name)
	return frame
}

// EncodeChatRequest builds a client-side chat request.
func EncodeChatRequest(chat string) []byte {
	frame := make([]byte, HeaderLen+chatFieldLen)
	frame[0] = TypeChat
	frame[1] = SubtypeChat
	frame[2] = OpRequest
	copy(frame[HeaderLen:HeaderLen+MaxChatLen], chat)
	return frame
}

// EncodeQuitRequest builds a client-side SESSION/QUIT request.
func EncodeQuitRequest() []byte {
	return []byte{TypeSession, SubtypeQuit, OpRequest}
}
