package telnetserver

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gliderlabs/ssh"
	"github.com/google/uuid"
)

// ServerVersion is reported by session contexts.
const ServerVersion = "gviewer-telnet"

var errNoRequests = errors.New("telnet: channel requests not supported")

// sessionContext satisfies ssh.Context for a telnet connection.
type sessionContext struct {
	context.Context
	sync.Mutex

	id     string
	remote net.Addr
	local  net.Addr
	values sync.Map
}

func (c *sessionContext) Value(key interface{}) interface{} {
	if v, ok := c.values.Load(key); ok {
		return v
	}
	return c.Context.Value(key)
}

func (c *sessionContext) SetValue(key, value interface{}) { c.values.Store(key, value) }
func (c *sessionContext) User() string                    { return "" }
func (c *sessionContext) SessionID() string               { return c.id }
func (c *sessionContext) ClientVersion() string           { return "telnet" }
func (c *sessionContext) ServerVersion() string           { return ServerVersion }
func (c *sessionContext) RemoteAddr() net.Addr            { return c.remote }
func (c *sessionContext) LocalAddr() net.Addr             { return c.local }
func (c *sessionContext) Permissions() *ssh.Permissions   { return &ssh.Permissions{} }

// Session presents a negotiated telnet connection as an ssh.Session with
// a PTY, so SSH session handlers serve telnet clients unchanged. There is
// no user, command or environment beyond TERM.
type Session struct {
	conn   *Conn
	ctx    *sessionContext
	cancel context.CancelFunc
}

// NewSession wraps a negotiated connection.
func NewSession(c *Conn) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		conn: c,
		ctx: &sessionContext{
			Context: ctx,
			id:      uuid.New().String(),
			remote:  c.RemoteAddr(),
			local:   c.LocalAddr(),
		},
		cancel: cancel,
	}
}

// Read reads client input. Any read error means the client is gone, so
// it also cancels the session context; handlers watching the context
// stop even when their input loop ignores io.EOF.
func (s *Session) Read(p []byte) (int, error) {
	n, err := s.conn.Read(p)
	if err != nil {
		s.cancel()
	}
	return n, err
}

func (s *Session) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s *Session) Stderr() io.ReadWriter       { return s }
func (s *Session) CloseWrite() error           { return nil }

func (s *Session) SendRequest(string, bool, []byte) (bool, error) {
	return false, errNoRequests
}

// Close ends the session and its context.
func (s *Session) Close() error {
	s.cancel()
	return s.conn.Close()
}

// Exit closes the connection; telnet has no exit status.
func (s *Session) Exit(int) error { return s.Close() }

func (s *Session) User() string                 { return "" }
func (s *Session) RemoteAddr() net.Addr         { return s.conn.RemoteAddr() }
func (s *Session) LocalAddr() net.Addr          { return s.conn.LocalAddr() }
func (s *Session) Environ() []string            { return []string{"TERM=" + s.conn.TermType()} }
func (s *Session) Command() []string            { return nil }
func (s *Session) RawCommand() string           { return "" }
func (s *Session) Subsystem() string            { return "" }
func (s *Session) PublicKey() ssh.PublicKey     { return nil }
func (s *Session) Context() ssh.Context         { return s.ctx }
func (s *Session) Permissions() ssh.Permissions { return ssh.Permissions{} }
func (s *Session) Signals(chan<- ssh.Signal)    {}
func (s *Session) Break(chan<- bool)            {}

// Pty reports the negotiated terminal. Later NAWS updates arrive on the
// window channel.
func (s *Session) Pty() (ssh.Pty, <-chan ssh.Window, bool) {
	return ssh.Pty{Term: s.conn.TermType(), Window: s.conn.Window()}, s.conn.Windows(), true
}
