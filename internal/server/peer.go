package server

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/eternalApril/moonbeam/internal/resp"
	"go.uber.org/zap"
)

// Peer represents a connected client.
// It owns the per-connection session state: the buffer of unconsumed input
// bytes for incremental decoding and the buffered reply writer. A Peer is
// used by exactly one goroutine.
type Peer struct {
	conn    net.Conn
	writer  *resp.Encoder
	limits  resp.Limits
	in      []byte // unconsumed input bytes
	scratch []byte // read buffer
}

// NewPeer initializes a new client peer from a network connection
func NewPeer(conn net.Conn, limits resp.Limits) *Peer {
	return &Peer{
		conn:    conn,
		writer:  resp.NewEncoder(conn),
		limits:  limits,
		scratch: make([]byte, 4096),
	}
}

// Next returns the next complete request frame. It decodes from the
// buffered input first and reads from the connection only when the buffer
// does not hold a complete value, so a pipelined burst is served without
// touching the socket between commands.
func (p *Peer) Next() (resp.Value, error) {
	for {
		if len(p.in) > 0 {
			v, n, err := resp.Decode(p.in, p.limits)
			if err == nil {
				p.in = p.in[n:]
				return v, nil
			}
			if !errors.Is(err, resp.ErrIncomplete) {
				return resp.Value{}, err
			}
		}

		n, err := p.conn.Read(p.scratch)
		if n > 0 {
			p.in = append(p.in, p.scratch[:n]...)
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(p.in) > 0 {
				return resp.Value{}, io.ErrUnexpectedEOF
			}
			return resp.Value{}, err
		}
	}
}

// Pending reports whether undecoded input is still buffered. While it is,
// replies stay buffered too so one flush covers the whole pipeline burst.
func (p *Peer) Pending() bool {
	return len(p.in) > 0
}

// Send encodes a RESP value into the reply buffer
func (p *Peer) Send(v resp.Value) error {
	return p.writer.Write(v)
}

// Flush sends all buffered replies to the client
func (p *Peer) Flush() error {
	return p.writer.Flush()
}

// Close terminates the underlying network connection
func (p *Peer) Close() error {
	return p.conn.Close()
}

// Handle runs the read-execute-reply loop for a single client connection.
// Replies are written strictly in request order. The loop ends on peer
// disconnect, an I/O failure, or malformed framing; framing errors get a
// best-effort error reply before the connection closes.
func Handle(conn net.Conn, engine *Engine, log *zap.Logger) {
	if log.Core().Enabled(zap.DebugLevel) {
		log.Debug("client connected", zap.String("addr", conn.RemoteAddr().String()))
	}

	peer := NewPeer(conn, engine.Limits())
	defer func() {
		peer.Close() //nolint:errcheck
		if log.Core().Enabled(zap.DebugLevel) {
			log.Debug("client disconnected", zap.String("addr", conn.RemoteAddr().String()))
		}
	}()

	for {
		req, err := peer.Next()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				// clean disconnect
			case errors.Is(err, resp.ErrProtocol), errors.Is(err, resp.ErrLimitExceeded):
				log.Warn("malformed frame", zap.Error(err))
				peer.Send(resp.MakeError("ERR " + strings.TrimPrefix(err.Error(), "resp: "))) //nolint:errcheck
				peer.Flush()                                                                  //nolint:errcheck
			default:
				log.Warn("read command failed", zap.Error(err))
			}
			return
		}

		result := engine.Dispatch(req)

		if err = peer.Send(result); err != nil {
			log.Error("error writing response", zap.Error(err))
			return
		}

		if !peer.Pending() {
			if err := peer.Flush(); err != nil {
				return
			}
		}
	}
}
