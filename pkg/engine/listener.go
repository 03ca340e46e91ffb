package engine

import (
	"bufio"
	"net"
	"sync"
)

// peekConn wraps a connection so the dispatcher can inspect leading bytes
// without consuming them from the stream.
type peekConn struct {
	net.Conn
	r *bufio.Reader
}

func newPeekConn(conn net.Conn) *peekConn {
	return &peekConn{Conn: conn, r: bufio.NewReader(conn)}
}

func (c *peekConn) Peek(n int) ([]byte, error) {
	return c.r.Peek(n)
}

func (c *peekConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

// chanListener adapts dispatched connections into a net.Listener so they can
// be served by a stock http.Server.
type chanListener struct {
	addr  net.Addr
	conns chan net.Conn

	once sync.Once
	done chan struct{}
}

func newChanListener(addr net.Addr) *chanListener {
	return &chanListener{
		addr:  addr,
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}
}

// Push hands a dispatched connection to the listener. The connection is
// closed when the listener has already shut down.
func (l *chanListener) Push(conn net.Conn) {
	select {
	case l.conns <- conn:
	case <-l.done:
		_ = conn.Close()
	}
}

func (l *chanListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *chanListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *chanListener) Addr() net.Addr {
	return l.addr
}
