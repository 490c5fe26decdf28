// Package telnetserver serves viewer sessions to telnet clients, the way
// BBS terminal programs such as SyncTERM connect. Connections are
// presented as ssh.Session values so the SSH session handler is reused.
package telnetserver

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gliderlabs/ssh"
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("telnet: server closed")

// DefaultNegotiationTimeout bounds option negotiation per connection.
const DefaultNegotiationTimeout = 500 * time.Millisecond

// Config holds listener settings.
type Config struct {
	Host               string
	Port               int
	SessionHandler     ssh.Handler
	NegotiationTimeout time.Duration
}

// Server accepts telnet connections.
type Server struct {
	cfg      Config
	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

// NewServer validates cfg.
func NewServer(cfg Config) (*Server, error) {
	if cfg.SessionHandler == nil {
		return nil, fmt.Errorf("session handler is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.NegotiationTimeout <= 0 {
		cfg.NegotiationTimeout = DefaultNegotiationTimeout
	}
	return &Server{cfg: cfg}, nil
}

// ListenAndServe listens on the configured address and serves until Close.
func (s *Server) ListenAndServe() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	log.Printf("INFO: Telnet viewer listening on %s", addr)
	return s.Serve(l)
}

// Serve accepts connections on l until Close.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				log.Printf("WARN: Telnet accept: %v", err)
				continue
			}
			return err
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(nc net.Conn) {
	remote := nc.RemoteAddr().String()
	c := NewConn(nc)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Telnet panic serving %s: %v", remote, r)
		}
		c.Close()
	}()

	if err := c.Negotiate(s.cfg.NegotiationTimeout); err != nil {
		log.Printf("WARN: Telnet negotiation with %s failed: %v", remote, err)
		return
	}
	win := c.Window()
	log.Printf("INFO: Telnet connection from %s (TERM=%q, %dx%d)", remote, c.TermType(), win.Width, win.Height)
	s.cfg.SessionHandler(NewSession(c))
}

// Close stops accepting connections. Sessions already running continue
// until their clients leave.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
