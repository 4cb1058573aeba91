package remote

import (
	"context"
	"net"
	"sync"
)

// ConnListener is a net.Listener fed by Offer. Websocket and WebRTC peers
// are handed to a Listener through it.
type ConnListener struct {
	label  string
	conns  chan net.Conn
	closed chan struct{}
	once   sync.Once
}

func NewConnListener(label string) *ConnListener {
	return &ConnListener{
		label:  label,
		conns:  make(chan net.Conn),
		closed: make(chan struct{}),
	}
}

// Offer blocks until conn is accepted. If ctx ends or the listener closes
// first, conn is closed and the reason returned.
func (l *ConnListener) Offer(ctx context.Context, conn net.Conn) error {
	select {
	case l.conns <- conn:
		return nil
	case <-l.closed:
		conn.Close()
		return net.ErrClosed
	case <-ctx.Done():
		conn.Close()
		return ctx.Err()
	}
}

func (l *ConnListener) Accept() (net.Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *ConnListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *ConnListener) Addr() net.Addr {
	return peerAddr{network: "peer", label: l.label}
}

// peerAddr is a synthetic address for connections that have no socket.
type peerAddr struct {
	network string
	label   string
}

func (a peerAddr) Network() string { return a.network }
func (a peerAddr) String() string  { return a.label }
