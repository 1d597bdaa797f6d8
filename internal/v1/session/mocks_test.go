package session

import (
	"os"
	"sync"

	"github.com/RoseWrightdev/chatroomd/internal/v1/protocol"
	"github.com/RoseWrightdev/chatroomd/internal/v1/types"
)

// fakeConn scripts a sequence of inbound frames and records everything sent
// back. When the script runs out, ReadFrame reports a peer disconnect.
type fakeConn struct {
	mu sync.Mutex

	frames [][]byte

	acks    []protocol.Header
	rejects []rejectRecord
	files   []string
	chats   []string
	closed  bool

	sendStatus types.Status // returned from every send; zero value is StatusOK
}

type rejectRecord struct {
	header protocol.Header
	code   protocol.RejectCode
}

func (c *fakeConn) ID() string { return "test-conn" }

func (c *fakeConn) ReadFrame(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return 0, nil
	}
	next := c.frames[0]
	c.frames = c.frames[1:]
	return copy(buf, next), nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) SendAck(frameType, subtype uint8) types.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acks = append(c.acks, protocol.Header{Type: frameType, Subtype: subtype, Opcode: protocol.OpAcknowledge})
	return c.sendStatus
}

func (c *fakeConn) SendReject(frameType, subtype uint8, code protocol.RejectCode) types.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejects = append(c.rejects, rejectRecord{
		header: protocol.Header{Type: frameType, Subtype: subtype, Opcode: protocol.OpReject},
		code:   code,
	})
	return c.sendStatus
}

func (c *fakeConn) SendFileAck(frameType, subtype uint8, path string) types.Status {
	body, err := os.ReadFile(path)
	if err != nil {
		return types.StatusFailure
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acks = append(c.acks, protocol.Header{Type: frameType, Subtype: subtype, Opcode: protocol.OpAcknowledge})
	c.files = append(c.files, string(body))
	return c.sendStatus
}

func (c *fakeConn) SendChatUpdate(sender, chat string) types.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chats = append(c.chats, sender+">"+chat)
	return c.sendStatus
}

func (c *fakeConn) lastReject() rejectRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejects[len(c.rejects)-1]
}

func (c *fakeConn) ackCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acks)
}
