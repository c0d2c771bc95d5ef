package layer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/openprocon/layerd/internal/protocol"
)

// ErrUpstreamClosed is returned for requests issued after the game
// connection went away.
var ErrUpstreamClosed = errors.New("game connection closed")

// GameConn is the single shared connection to the real game server.
// Forwarded packets are renumbered onto the connection's own sequence
// space and responses are handed back carrying the caller's original
// sequence, so many sessions can multiplex over one upstream socket.
type GameConn struct {
	conn net.Conn
	log  *slog.Logger

	wmu sync.Mutex
	w   *bufio.Writer

	mu      sync.Mutex
	seq     uint32
	pending map[uint32]chan protocol.Packet

	events chan protocol.Packet
	done   chan struct{}
}

// DialGame connects to the game server at addr and, when password is
// non-empty, performs the hashed login exchange.
func DialGame(ctx context.Context, addr, password string, log *slog.Logger) (*GameConn, error) {
	if log == nil {
		log = slog.Default()
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial game server %s: %w", addr, err)
	}

	c := &GameConn{
		conn:    conn,
		log:     log.With("game", addr),
		w:       bufio.NewWriter(conn),
		pending: make(map[uint32]chan protocol.Packet),
		events:  make(chan protocol.Packet, 64),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	if password != "" {
		if err := c.login(ctx, password); err != nil {
			conn.Close()
			return nil, fmt.Errorf("game server login: %w", err)
		}
	}
	return c, nil
}

func (c *GameConn) login(ctx context.Context, password string) error {
	resp, err := c.Request(ctx, protocol.NewRequest(0, "login.hashed"))
	if err != nil {
		return err
	}
	if len(resp.Words) < 2 || resp.Words[0] != StatusOK {
		return fmt.Errorf("challenge refused: %v", resp.Words)
	}
	raw, err := saltBytes(resp.Words[1])
	if err != nil {
		return err
	}

	resp, err = c.Request(ctx, protocol.NewRequest(0, "login.hashed", hashPassword(raw, password)))
	if err != nil {
		return err
	}
	if len(resp.Words) < 1 || resp.Words[0] != StatusOK {
		return fmt.Errorf("login refused: %v", resp.Words)
	}
	return nil
}

// Request forwards p and waits for the matching response. The returned
// packet carries p's original sequence number.
func (c *GameConn) Request(ctx context.Context, p protocol.Packet) (protocol.Packet, error) {
	ch := make(chan protocol.Packet, 1)

	c.mu.Lock()
	seq := c.seq
	c.seq = (c.seq + 1) % (1 << 30)
	c.pending[seq] = ch
	c.mu.Unlock()

	if err := c.write(protocol.NewRequest(seq, p.Words...)); err != nil {
		c.dropPending(seq)
		return protocol.Packet{}, err
	}

	select {
	case <-ctx.Done():
		c.dropPending(seq)
		return protocol.Packet{}, ctx.Err()
	case <-c.done:
		return protocol.Packet{}, ErrUpstreamClosed
	case resp := <-ch:
		resp.Sequence = p.Sequence
		return resp, nil
	}
}

// Send forwards p without waiting. The eventual response is discarded.
func (c *GameConn) Send(p protocol.Packet) error {
	c.mu.Lock()
	seq := c.seq
	c.seq = (c.seq + 1) % (1 << 30)
	c.mu.Unlock()

	return c.write(protocol.NewRequest(seq, p.Words...))
}

// Close tears the connection down; in-flight requests fail with
// ErrUpstreamClosed.
func (c *GameConn) Close() error {
	return c.conn.Close()
}

// Events delivers server-originated event packets, already
// acknowledged. Slow consumers lose events rather than stall the read
// loop.
func (c *GameConn) Events() <-chan protocol.Packet {
	return c.events
}

// Done is closed when the connection is gone.
func (c *GameConn) Done() <-chan struct{} {
	return c.done
}

func (c *GameConn) write(p protocol.Packet) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := protocol.WritePacket(c.w, p); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *GameConn) dropPending(seq uint32) {
	c.mu.Lock()
	delete(c.pending, seq)
	c.mu.Unlock()
}

func (c *GameConn) readLoop() {
	defer close(c.done)

	r := bufio.NewReader(c.conn)
	for {
		p, err := protocol.ReadPacket(r)
		if err != nil {
			c.log.Warn("game connection lost", "error", err)
			return
		}

		if p.Response {
			c.mu.Lock()
			ch, ok := c.pending[p.Sequence]
			delete(c.pending, p.Sequence)
			c.mu.Unlock()
			if ok {
				ch <- p
			}
			continue
		}

		// Server-originated events must be acknowledged or the game
		// server stalls its event stream.
		if err := c.write(p.Respond(StatusOK)); err != nil {
			c.log.Warn("event acknowledgement failed", "error", err)
			return
		}
		select {
		case c.events <- p:
		default:
			c.log.Debug("event dropped, consumer behind", "event", p.Command())
		}
	}
}
