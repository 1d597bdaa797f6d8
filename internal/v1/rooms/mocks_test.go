package rooms

import (
	"os"

	"github.com/RoseWrightdev/chatroomd/internal/v1/protocol"
	"github.com/RoseWrightdev/chatroomd/internal/v1/types"
)

// fakePeer records sends and returns scripted statuses.
type fakePeer struct {
	acks    []protocol.Header
	rejects []protocol.RejectCode
	files   []string // contents delivered via SendFileAck
	chats   []string // "sender>chat"

	chatStatus types.Status // returned from SendChatUpdate; zero value is StatusOK
}

func (p *fakePeer) SendAck(frameType, subtype uint8) types.Status {
	p.acks = append(p.acks, protocol.Header{Type: frameType, Subtype: subtype, Opcode: protocol.OpAcknowledge})
	return types.StatusOK
}

func (p *fakePeer) SendReject(frameType, subtype uint8, code protocol.RejectCode) types.Status {
	p.rejects = append(p.rejects, code)
	return types.StatusOK
}

func (p *fakePeer) SendFileAck(frameType, subtype uint8, path string) types.Status {
	body, err := os.ReadFile(path)
	if err != nil {
		return types.StatusFailure
	}
	p.files = append(p.files, string(body))
	return types.StatusOK
}

func (p *fakePeer) SendChatUpdate(sender, chat string) types.Status {
	p.chats = append(p.chats, sender+">"+chat)
	return p.chatStatus
}

func (p *fakePeer) lastReject() protocol.RejectCode {
	return p.rejects[len(p.rejects)-1]
}
