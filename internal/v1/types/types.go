// Package types holds the shared vocabulary between the session, directory,
// and transport packages so they can interact without depending on each
// other's implementations.
package types

import "github.com/RoseWrightdev/chatroomd/internal/v1/protocol"

// Status classifies the outcome of a handler or a transport send.
//
// Protocol-level errors are never a Status failure; they are StatusOK with a
// REJECT frame already sent to the client.
type Status int

const (
	// StatusOK: keep serving this session.
	StatusOK Status = iota
	// StatusFailure: programmer fault or serious I/O. The session is torn
	// down and the process-wide interrupt is raised.
	StatusFailure
	// StatusConnFailure: the client transport broke. The session is torn
	// down with no wider impact.
	StatusConnFailure
	// StatusShutdown: the client quit cleanly; terminate this session.
	StatusShutdown
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailure:
		return "failure"
	case StatusConnFailure:
		return "connection_failure"
	case StatusShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// severity orders statuses for merging fan-out results:
// CONNECTION_FAILURE > FAILURE > OK.
func severity(s Status) int {
	switch s {
	case StatusConnFailure:
		return 3
	case StatusFailure:
		return 2
	case StatusShutdown:
		return 1
	default:
		return 0
	}
}

// Worst returns the more severe of two statuses. Broadcast loops use it to
// report the worst per-peer send result without aborting the fan-out.
func Worst(a, b Status) Status {
	if severity(b) > severity(a) {
		return b
	}
	return a
}

// Responder is the transport handle a session hands to the domain
// directories, and the back-reference stashed on a logged-in user so peer
// sessions can fan chat updates out to it. Implementations must be safe for
// concurrent use: broadcasts arrive from other sessions' workers.
type Responder interface {
	// SendAck acknowledges a request, echoing its type and subtype.
	SendAck(frameType, subtype uint8) Status
	// SendReject refuses a request with a protocol error code.
	SendReject(frameType, subtype uint8, code protocol.RejectCode) Status
	// SendFileAck sends an ACK header immediately followed by the contents
	// of the named file, as one coalesced write.
	SendFileAck(frameType, subtype uint8, path string) Status
	// SendChatUpdate delivers a peer's chat message.
	SendChatUpdate(sender, chat string) Status
}
