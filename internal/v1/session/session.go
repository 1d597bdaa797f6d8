// Package session implements the per-connection state machine: a three-state
// dispatcher (connected, logged in, chatting) that reads request frames,
// enforces admissibility, and routes to the user and room directories.
package session

import (
	"context"

	"github.com/RoseWrightdev/chatroomd/internal/v1/logging"
	"github.com/RoseWrightdev/chatroomd/internal/v1/metrics"
	"github.com/RoseWrightdev/chatroomd/internal/v1/protocol"
	"github.com/RoseWrightdev/chatroomd/internal/v1/rooms"
	"github.com/RoseWrightdev/chatroomd/internal/v1/transport"
	"github.com/RoseWrightdev/chatroomd/internal/v1/types"
	"github.com/RoseWrightdev/chatroomd/internal/v1/users"
	"go.uber.org/zap"
)

// State is the session's position in the protocol lifecycle.
type State int

const (
	// StateConnected: transport is up, nobody authenticated.
	StateConnected State = iota
	// StateLoggedIn: authenticated, not in a room.
	StateLoggedIn
	// StateChatting: authenticated and member of exactly one room.
	StateChatting
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateLoggedIn:
		return "logged_in"
	case StateChatting:
		return "chatting"
	default:
		return "unknown"
	}
}

// Transport is what a session needs from its connection: the responder
// surface shared with the directories plus framed reads and teardown.
type Transport interface {
	types.Responder
	ID() string
	ReadFrame(buf []byte) (int, error)
	Close()
}

// Session drives one client connection for its whole lifetime on a single
// worker.
type Session struct {
	conn  Transport
	users *users.Directory
	rooms *rooms.Directory

	state State
	user  *users.User

	// interrupt raises the process-wide shutdown flag. Called when a handler
	// reports a hard failure.
	interrupt func()
}

// New builds a session in the connected state.
func New(conn Transport, userDir *users.Directory, roomDir *rooms.Directory, interrupt func()) *Session {
	return &Session{
		conn:      conn,
		users:     userDir,
		rooms:     roomDir,
		interrupt: interrupt,
	}
}

// Run reads and dispatches frames until the client quits, the transport
// breaks, or ctx is cancelled. The cleanup invariant holds on every exit
// path: a chatting user leaves its room, a logged-in user is logged out,
// both silently, and the transport is closed.
func (s *Session) Run(ctx context.Context) {
	ctx = logging.WithConn(ctx, s.conn.ID())
	metrics.IncConnection()
	logging.Info(ctx, "Session started")

	defer func() {
		s.cleanup(ctx)
		s.conn.Close()
		metrics.DecConnection()
		logging.Info(ctx, "Session ended")
	}()

	buf := make([]byte, protocol.BufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := s.conn.ReadFrame(buf)
		if transport.IsTimeout(err) {
			// Idle; loop around to poll for shutdown.
			continue
		}
		if err != nil {
			logging.Warn(ctx, "Read failed", zap.Error(err))
			return
		}
		if n == 0 {
			logging.Info(ctx, "Peer disconnected")
			return
		}

		switch status := s.dispatch(ctx, buf[:n]); status {
		case types.StatusOK:
		case types.StatusShutdown:
			return
		case types.StatusConnFailure:
			logging.Warn(ctx, "Client transport broken")
			return
		default:
			logging.Error(ctx, "Handler failure, raising interrupt", zap.String("state", s.state.String()))
			s.interrupt()
			return
		}
	}
}

// dispatch validates the frame against the current state and invokes the
// handler. Inadmissible frames are answered with a FAIL/FAIL reject.
func (s *Session) dispatch(ctx context.Context, frame []byte) types.Status {
	header, err := protocol.ParseHeader(frame)
	if err != nil {
		return s.invalid(ctx, protocol.Header{})
	}
	if header.Opcode != protocol.OpRequest {
		return s.invalid(ctx, header)
	}

	switch s.state {
	case StateConnected:
		return s.dispatchConnected(ctx, header, frame)
	case StateLoggedIn:
		return s.dispatchLoggedIn(ctx, header, frame)
	case StateChatting:
		return s.dispatchChatting(ctx, header, frame)
	default:
		return types.StatusFailure
	}
}

func (s *Session) dispatchConnected(ctx context.Context, h protocol.Header, frame []byte) types.Status {
	switch {
	case h.Type == protocol.TypeAccount && h.Subtype == protocol.SubtypeRegister:
		username, password := protocol.DecodeCredentials(frame)
		return s.users.Register(s.conn, username, password)

	case h.Type == protocol.TypeAccount && h.Subtype == protocol.SubtypeLogin:
		username, password := protocol.DecodeCredentials(frame)
		user, status := s.users.Login(s.conn, username, password)
		if user != nil {
			s.user = user
			s.state = StateLoggedIn
			logging.Info(logging.WithUsername(ctx, user.Name), "Login")
		}
		return status

	case h.Type == protocol.TypeSession && h.Subtype == protocol.SubtypeQuit:
		return s.quit(ctx)

	default:
		return s.invalid(ctx, h)
	}
}

func (s *Session) dispatchLoggedIn(ctx context.Context, h protocol.Header, frame []byte) types.Status {
	ctx = logging.WithUsername(ctx, s.user.Name)

	switch {
	case h.Type == protocol.TypeAccount && h.Subtype == protocol.SubtypeAdmin:
		return s.users.SetAdmin(s.conn, s.user, protocol.DecodeName(frame), true)

	case h.Type == protocol.TypeAccount && h.Subtype == protocol.SubtypeAdminRemove:
		return s.users.SetAdmin(s.conn, s.user, protocol.DecodeName(frame), false)

	case h.Type == protocol.TypeAccount && h.Subtype == protocol.SubtypeDelete:
		return s.users.Remove(s.conn, s.user, protocol.DecodeName(frame))

	case h.Type == protocol.TypeAccount && h.Subtype == protocol.SubtypeLogout:
		status := s.users.Logout(s.conn, s.user, true)
		logging.Info(ctx, "Logout")
		s.user = nil
		s.state = StateConnected
		return status

	case h.Type == protocol.TypeRooms && h.Subtype == protocol.SubtypeList:
		return s.rooms.List(s.conn)

	case h.Type == protocol.TypeRooms && h.Subtype == protocol.SubtypeCreate:
		return s.rooms.Create(s.conn, s.user, protocol.DecodeName(frame))

	case h.Type == protocol.TypeRooms && h.Subtype == protocol.SubtypeDelete:
		return s.rooms.Delete(s.conn, s.user, protocol.DecodeName(frame))

	case h.Type == protocol.TypeRooms && h.Subtype == protocol.SubtypeJoin:
		name := protocol.DecodeName(frame)
		status := s.rooms.Join(s.conn, s.user, name)
		if s.user.CurrentRoom != "" {
			s.state = StateChatting
			logging.Info(logging.WithRoom(ctx, name), "Joined room")
		}
		return status

	case h.Type == protocol.TypeSession && h.Subtype == protocol.SubtypeQuit:
		return s.quit(ctx)

	default:
		return s.invalid(ctx, h)
	}
}

func (s *Session) dispatchChatting(ctx context.Context, h protocol.Header, frame []byte) types.Status {
	ctx = logging.WithRoom(logging.WithUsername(ctx, s.user.Name), s.user.CurrentRoom)

	switch {
	case h.Type == protocol.TypeChat && h.Subtype == protocol.SubtypeChat:
		return s.rooms.Chat(s.user, protocol.DecodeChat(frame))

	case h.Type == protocol.TypeChat && h.Subtype == protocol.SubtypeLeave:
		status := s.rooms.Leave(s.conn, s.user, true)
		s.state = StateLoggedIn
		logging.Info(ctx, "Left room")
		return status

	case h.Type == protocol.TypeSession && h.Subtype == protocol.SubtypeQuit:
		return s.quit(ctx)

	default:
		return s.invalid(ctx, h)
	}
}

// quit performs the client-requested termination: silent leave and logout,
// then an ack on the way out.
func (s *Session) quit(ctx context.Context) types.Status {
	if s.state == StateChatting {
		s.rooms.Leave(s.conn, s.user, false)
	}
	if s.user != nil {
		s.users.Logout(s.conn, s.user, false)
		s.user = nil
	}
	s.state = StateConnected

	logging.Info(ctx, "Client quit")
	s.conn.SendAck(protocol.TypeSession, protocol.SubtypeQuit)
	return types.StatusShutdown
}

// invalid rejects a frame that is not admissible in the current state.
func (s *Session) invalid(ctx context.Context, h protocol.Header) types.Status {
	logging.Warn(ctx, "Inadmissible frame",
		zap.String("state", s.state.String()), zap.String("header", h.String()))
	return s.conn.SendReject(protocol.TypeFail, protocol.SubtypeFail, protocol.RejectInvalidPacket)
}

// cleanup enforces the exit invariant regardless of how the session ended.
func (s *Session) cleanup(ctx context.Context) {
	if s.user == nil {
		return
	}
	if s.user.CurrentRoom != "" {
		s.rooms.Leave(s.conn, s.user, false)
	}
	s.users.Logout(s.conn, s.user, false)
	s.user = nil
	s.state = StateConnected
}
