package layer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/openprocon/layerd/internal/protocol"
)

// Server accepts controller connections and runs one session per
// connection, packets handled strictly in arrival order.
type Server struct {
	addr string
	deps Deps
	log  *slog.Logger
}

// NewServer creates a server for addr. deps.Registry must be set.
func NewServer(addr string, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{addr: addr, deps: deps, log: log}
}

// Run listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.log.Info("layer server listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln until ctx is cancelled. The
// listener is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	sess := NewSession(newConnTransport(conn), s.deps)
	s.deps.Registry.Add(sess)
	defer sess.Teardown()

	s.log.Info("controller connected", "client", conn.RemoteAddr().String())

	r := bufio.NewReader(conn)
	for {
		p, err := protocol.ReadPacket(r)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil && sess.State() != Disconnected {
				s.log.Warn("read failed", "client", conn.RemoteAddr().String(), "error", err)
			}
			return
		}
		// Controllers acknowledge event notifications with empty OK
		// responses; nothing correlates them, so they are dropped.
		if !p.IsRequest() {
			continue
		}
		sess.Handle(ctx, p)
		if sess.State() == Disconnected {
			return
		}
	}
}

// connTransport adapts a net.Conn to the Transport interface with
// serialized writes: the relay pushes notifications concurrently with
// the session's own responses.
type connTransport struct {
	conn net.Conn

	mu sync.Mutex
	w  *bufio.Writer
}

func newConnTransport(conn net.Conn) *connTransport {
	return &connTransport{conn: conn, w: bufio.NewWriter(conn)}
}

func (t *connTransport) WritePacket(p protocol.Packet) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := protocol.WritePacket(t.w, p); err != nil {
		return err
	}
	return t.w.Flush()
}

func (t *connTransport) Close() error {
	return t.conn.Close()
}

func (t *connTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
