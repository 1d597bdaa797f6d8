// Package listener implements the TLS accept loop: bind, accept with a short
// deadline so shutdown is observed promptly, handshake, and hand the
// connection to a pooled session.
package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/RoseWrightdev/chatroomd/internal/v1/config"
	"github.com/RoseWrightdev/chatroomd/internal/v1/logging"
	"github.com/RoseWrightdev/chatroomd/internal/v1/pool"
	"github.com/RoseWrightdev/chatroomd/internal/v1/rooms"
	"github.com/RoseWrightdev/chatroomd/internal/v1/session"
	"github.com/RoseWrightdev/chatroomd/internal/v1/transport"
	"github.com/RoseWrightdev/chatroomd/internal/v1/users"
	"go.uber.org/zap"
)

// acceptTimeout bounds each Accept call so the loop can poll ctx.
const acceptTimeout = 3 * time.Second

// handshakeTimeout bounds the TLS handshake of one accepted socket so a
// stalled client cannot block the accept loop.
const handshakeTimeout = 5 * time.Second

// Server owns the listening socket and feeds accepted connections to the
// worker pool.
type Server struct {
	cfg       *config.Config
	users     *users.Directory
	rooms     *rooms.Directory
	pool      *pool.Pool
	tlsConfig *tls.Config

	ready atomic.Bool
	addr  atomic.Value // string, set once bound
}

// New builds a server. tlsConfig must carry the serving certificate.
func New(cfg *config.Config, userDir *users.Directory, roomDir *rooms.Directory, p *pool.Pool, tlsConfig *tls.Config) *Server {
	return &Server{
		cfg:       cfg,
		users:     userDir,
		rooms:     roomDir,
		pool:      p,
		tlsConfig: tlsConfig,
	}
}

// Ready reports whether the listening socket is bound. Readiness probes use
// it.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

// Addr returns the bound listen address, or "" before Run binds. Useful when
// the configured port is 0.
func (s *Server) Addr() string {
	if v := s.addr.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// Run accepts connections until ctx is cancelled. interrupt is invoked on
// unrecoverable listener errors and on hard session failures so the rest of
// the process shuts down.
func (s *Server) Run(ctx context.Context, interrupt context.CancelFunc) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		interrupt()
		return err
	}
	tcpLn := ln.(*net.TCPListener)
	defer func() { _ = tcpLn.Close() }()

	s.addr.Store(tcpLn.Addr().String())
	s.ready.Store(true)
	defer s.ready.Store(false)
	logging.Info(ctx, "Listening", zap.String("addr", tcpLn.Addr().String()))

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := tcpLn.SetDeadline(time.Now().Add(acceptTimeout)); err != nil {
			interrupt()
			return err
		}
		conn, err := tcpLn.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			logging.Error(ctx, "Accept failed", zap.Error(err))
			interrupt()
			return err
		}

		s.serve(ctx, conn, interrupt)
	}
}

// serve completes the TLS handshake and submits the session. A failed
// handshake only costs the one socket; the loop keeps accepting.
func (s *Server) serve(ctx context.Context, conn net.Conn, interrupt context.CancelFunc) {
	tlsConn := tls.Server(conn, s.tlsConfig)

	_ = tlsConn.SetDeadline(time.Now().Add(handshakeTimeout))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		logging.Warn(ctx, "TLS handshake failed",
			zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
		_ = tlsConn.Close()
		return
	}
	_ = tlsConn.SetDeadline(time.Time{})

	client := transport.NewClient(tlsConn)
	sess := session.New(client, s.users, s.rooms, func() { interrupt() })

	if err := s.pool.Submit(func() { sess.Run(ctx) }); err != nil {
		logging.Warn(ctx, "Refusing connection during shutdown",
			zap.String("remote", conn.RemoteAddr().String()))
		client.Close()
	}
}
