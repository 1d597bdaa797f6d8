// Package transport wraps an accepted connection with the framing, deadline,
// and write-serialization rules of the chat protocol. Every send reports a
// types.Status so callers can distinguish a refused request from a dead peer.
package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/RoseWrightdev/chatroomd/internal/v1/metrics"
	"github.com/RoseWrightdev/chatroomd/internal/v1/protocol"
	"github.com/RoseWrightdev/chatroomd/internal/v1/types"
	"github.com/google/uuid"
)

// ReadTimeout bounds each blocking read so session loops can poll for
// shutdown between frames.
const ReadTimeout = 3 * time.Second

// Conn is the subset of net.Conn the client needs. *tls.Conn satisfies it.
type Conn interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

// Client is one accepted peer. Writes are serialized through a mutex because
// room broadcasts send to a peer from other sessions' goroutines while the
// peer's own session may be answering a request.
type Client struct {
	id   string
	conn Conn

	writeMu sync.Mutex
}

// NewClient wraps an accepted connection and assigns it a correlation ID.
func NewClient(conn Conn) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
	}
}

// ID returns the connection correlation ID used in logs.
func (c *Client) ID() string {
	return c.id
}

// RemoteAddr reports the peer address.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ReadFrame blocks for at most ReadTimeout and fills buf with whatever the
// peer sent. A timeout is reported via IsTimeout; n == 0 with a nil error
// means the peer closed the connection.
func (c *Client) ReadFrame(buf []byte) (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		return 0, err
	}
	n, err := c.conn.Read(buf)
	if errors.Is(err, net.ErrClosed) {
		return 0, err
	}
	if err != nil && n == 0 && errors.Is(err, io.EOF) {
		// Treat a clean close like the zero-byte read it is on the wire.
		return 0, nil
	}
	return n, err
}

// IsTimeout reports whether err is a read deadline expiry rather than a
// connection failure.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() {
	_ = c.conn.Close()
}

// SendAck writes an ACKNOWLEDGE frame echoing the request type and subtype.
func (c *Client) SendAck(frameType, subtype uint8) types.Status {
	return c.write(protocol.EncodeAck(frameType, subtype))
}

// SendReject writes a REJECT frame carrying the refusal code.
func (c *Client) SendReject(frameType, subtype uint8, code protocol.RejectCode) types.Status {
	metrics.RejectedRequests.WithLabelValues(code.String()).Inc()
	return c.write(protocol.EncodeReject(frameType, subtype, code))
}

// SendFileAck writes an ACKNOWLEDGE header followed by the contents of path
// in a single write, so the peer never sees the header and body split by
// another sender's frame. A file read error is a FAILURE, not a connection
// failure.
func (c *Client) SendFileAck(frameType, subtype uint8, path string) types.Status {
	body, err := os.ReadFile(path)
	if err != nil {
		return types.StatusFailure
	}
	frame := append(protocol.EncodeAck(frameType, subtype), body...)
	return c.write(frame)
}

// SendChatUpdate pushes a chat line to the peer.
func (c *Client) SendChatUpdate(sender, chat string) types.Status {
	return c.write(protocol.EncodeChatUpdate(sender, chat))
}

func (c *Client) write(frame []byte) types.Status {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(ReadTimeout)); err != nil {
		return types.StatusConnFailure
	}
	if _, err := c.conn.Write(frame); err != nil {
		return types.StatusConnFailure
	}
	return types.StatusOK
}
