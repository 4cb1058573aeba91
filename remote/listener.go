// Package remote accepts control connections from remote peers and feeds
// the commands they send to a Dispatcher.
package remote

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"mirrorctl/scrcpy/remotemsg"
)

// Listener serves one remote connection at a time. Further peers wait in
// the accept backlog until the active one goes away.
type Listener struct {
	d      Dispatcher
	logger *slog.Logger

	mu     sync.Mutex
	ln     net.Listener
	conn   net.Conn
	closed bool
	done   chan struct{}
}

func NewListener(d Dispatcher, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{d: d, logger: logger, done: make(chan struct{})}
}

// Serve accepts connections on ln until Close is called or ln fails. It
// returns nil after Close.
func (l *Listener) Serve(ln net.Listener) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		ln.Close()
		return nil
	}
	l.ln = ln
	l.mu.Unlock()

	l.logger.Info("remote listener ready", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if l.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				// accept timeouts are retried with backoff, like net/http
				if backoff == 0 {
					backoff = 5 * time.Millisecond
				} else {
					backoff *= 2
				}
				if backoff > time.Second {
					backoff = time.Second
				}
				l.logger.Warn("remote accept failed, retrying", "error", err, "backoff", backoff)
				t := time.NewTimer(backoff)
				select {
				case <-t.C:
				case <-l.done:
					t.Stop()
					return nil
				}
				continue
			}
			return err
		}
		backoff = 0

		if !l.setConn(conn) {
			conn.Close()
			return nil
		}
		l.serveConn(conn)
		l.setConn(nil)
	}
}

func (l *Listener) setConn(conn net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed && conn != nil {
		return false
	}
	l.conn = conn
	return true
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Listener) serveConn(conn net.Conn) {
	defer conn.Close()

	logger := l.logger.With("session", uuid.NewString(), "peer", conn.RemoteAddr().String())
	logger.Info("remote connected")

	r := remotemsg.NewReader(conn)
	handled := 0
	for {
		rec, err := r.Next()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				logger.Info("remote disconnected", "messages", handled)
			case errors.Is(err, io.ErrUnexpectedEOF):
				logger.Warn("remote disconnected mid-message", "messages", handled, "discarded", r.Buffered())
			case errors.Is(err, remotemsg.ErrMalformed), errors.Is(err, remotemsg.ErrMessageTooLarge):
				logger.Warn("dropping remote connection", "messages", handled, "error", err)
			default:
				logger.Warn("remote read failed", "messages", handled, "error", err)
			}
			return
		}
		handled++
		if err := Dispatch(l.d, rec.Command); err != nil {
			logger.Warn("remote command not applied", "type", rec.Command.Type().String(), "error", err)
		}
	}
}

// Close stops Serve and drops the active connection.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.done)
	var err error
	if l.ln != nil {
		err = l.ln.Close()
	}
	if l.conn != nil {
		l.conn.Close()
	}
	return err
}
