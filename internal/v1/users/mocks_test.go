package users

import (
	"github.com/RoseWrightdev/chatroomd/internal/v1/protocol"
	"github.com/RoseWrightdev/chatroomd/internal/v1/types"
)

// fakePeer records what was sent to it and returns scripted statuses.
type fakePeer struct {
	acks    []protocol.Header
	rejects []protocol.RejectCode
	chats   []string

	sendStatus types.Status // returned from every send; zero value is StatusOK
}

func (p *fakePeer) SendAck(frameType, subtype uint8) types.Status {
	p.acks = append(p.acks, protocol.Header{Type: frameType, Subtype: subtype, Opcode: protocol.OpAcknowledge})
	return p.sendStatus
}

func (p *fakePeer) SendReject(frameType, subtype uint8, code protocol.RejectCode) types.Status {
	p.rejects = append(p.rejects, code)
	return p.sendStatus
}

func (p *fakePeer) SendFileAck(frameType, subtype uint8, path string) types.Status {
	p.acks = append(p.acks, protocol.Header{Type: frameType, Subtype: subtype, Opcode: protocol.OpAcknowledge})
	return p.sendStatus
}

func (p *fakePeer) SendChatUpdate(sender, chat string) types.Status {
	p.chats = append(p.chats, sender+">"+chat)
	return p.sendStatus
}

func (p *fakePeer) lastReject() protocol.RejectCode {
	return p.rejects[len(p.rejects)-1]
}
