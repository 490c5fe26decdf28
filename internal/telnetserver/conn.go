package telnetserver

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gliderlabs/ssh"

	"github.com/stlalpha/gviewer/internal/logging"
)

// Telnet commands and options (RFC 854, 1073, 1091).
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	SE   byte = 240

	OptEcho     byte = 1
	OptSGA      byte = 3
	OptTermType byte = 24
	OptNAWS     byte = 31
	OptLinemode byte = 34

	termTypeIs   byte = 0
	termTypeSend byte = 1
)

// Defaults until the client reports otherwise.
const (
	DefaultTerm   = "ansi"
	DefaultWidth  = 80
	DefaultHeight = 25
)

const maxSubnegotiation = 256

type parseState int

const (
	stateData parseState = iota
	stateIAC
	stateOption
	stateSB
	stateSBData
	stateSBIAC
)

// Conn speaks the telnet protocol over a net.Conn. Read strips commands
// and answers option requests, Write escapes 0xFF data bytes.
type Conn struct {
	conn    net.Conn
	r       *bufio.Reader
	writeMu sync.Mutex

	mu     sync.Mutex
	win    ssh.Window
	term   string
	winCh  chan ssh.Window
	closed bool

	// Parser state, owned by the reading goroutine.
	state     parseState
	verb      byte
	sbOpt     byte
	sb        []byte
	afterCR   bool
	pending   []byte
	awaitNAWS bool
	awaitTerm bool
}

// NewConn wraps conn.
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn:  conn,
		r:     bufio.NewReaderSize(conn, 512),
		win:   ssh.Window{Width: DefaultWidth, Height: DefaultHeight},
		winCh: make(chan ssh.Window, 1),
	}
}

// Negotiate offers character mode and asks for the window size and
// terminal type, then waits up to timeout for the answers. Keystrokes
// that arrive meanwhile are kept for Read.
func (c *Conn) Negotiate(timeout time.Duration) error {
	offers := []byte{
		IAC, WILL, OptEcho,
		IAC, WILL, OptSGA,
		IAC, DO, OptSGA,
		IAC, DONT, OptLinemode,
		IAC, DO, OptNAWS,
		IAC, DO, OptTermType,
	}
	if err := c.writeRaw(offers); err != nil {
		return fmt.Errorf("send telnet options: %w", err)
	}

	c.awaitNAWS, c.awaitTerm = true, true
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	defer c.conn.SetReadDeadline(time.Time{})

	for c.awaitNAWS || c.awaitTerm {
		b, err := c.r.ReadByte()
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				logging.Debug("Telnet %s: negotiation timed out (naws pending=%v, ttype pending=%v)",
					c.RemoteAddr(), c.awaitNAWS, c.awaitTerm)
				break
			}
			return err
		}
		if d, ok := c.feed(b); ok {
			c.pending = append(c.pending, d)
		}
	}
	c.awaitNAWS, c.awaitTerm = false, false
	return nil
}

// feed advances the parser by one byte and returns it when it is data.
func (c *Conn) feed(b byte) (byte, bool) {
	switch c.state {
	case stateData:
		if b == IAC {
			c.state = stateIAC
			return 0, false
		}
		// NVT sends CR NUL or CR LF for the return key.
		if c.afterCR && (b == 0 || b == '\n') {
			c.afterCR = false
			return 0, false
		}
		c.afterCR = b == '\r'
		return b, true

	case stateIAC:
		switch b {
		case IAC:
			c.state = stateData
			c.afterCR = false
			return IAC, true
		case WILL, WONT, DO, DONT:
			c.verb = b
			c.state = stateOption
		case SB:
			c.state = stateSB
		default:
			c.state = stateData
		}

	case stateOption:
		c.option(c.verb, b)
		c.state = stateData

	case stateSB:
		c.sbOpt = b
		c.sb = c.sb[:0]
		c.state = stateSBData

	case stateSBData:
		if b == IAC {
			c.state = stateSBIAC
		} else if len(c.sb) < maxSubnegotiation {
			c.sb = append(c.sb, b)
		}

	case stateSBIAC:
		switch b {
		case SE:
			c.subnegotiation()
			c.state = stateData
		case IAC:
			if len(c.sb) < maxSubnegotiation {
				c.sb = append(c.sb, IAC)
			}
			c.state = stateSBData
		default:
			c.state = stateData
		}
	}
	return 0, false
}

// option handles WILL/WONT/DO/DONT from the client. Answers to our own
// offers are acknowledgements; anything else is refused.
func (c *Conn) option(verb, opt byte) {
	switch verb {
	case WILL:
		switch opt {
		case OptNAWS, OptSGA:
		case OptTermType:
			c.writeRaw([]byte{IAC, SB, OptTermType, termTypeSend, IAC, SE})
		default:
			c.writeRaw([]byte{IAC, DONT, opt})
		}
	case WONT:
		switch opt {
		case OptNAWS:
			c.awaitNAWS = false
		case OptTermType:
			c.awaitTerm = false
		}
	case DO:
		if opt != OptEcho && opt != OptSGA {
			c.writeRaw([]byte{IAC, WONT, opt})
		}
	}
}

func (c *Conn) subnegotiation() {
	switch c.sbOpt {
	case OptNAWS:
		if len(c.sb) < 4 {
			return
		}
		c.awaitNAWS = false
		w := int(c.sb[0])<<8 | int(c.sb[1])
		h := int(c.sb[2])<<8 | int(c.sb[3])
		if w <= 0 || h <= 0 {
			logging.Debug("Telnet %s: ignoring window size %dx%d", c.RemoteAddr(), w, h)
			return
		}
		c.setWindow(ssh.Window{Width: w, Height: h})

	case OptTermType:
		if len(c.sb) < 1 || c.sb[0] != termTypeIs {
			return
		}
		c.awaitTerm = false
		t := strings.ToLower(strings.TrimSpace(string(c.sb[1:])))
		if t == "" {
			return
		}
		c.mu.Lock()
		c.term = t
		c.mu.Unlock()
		logging.Debug("Telnet %s: terminal type %q", c.RemoteAddr(), t)
	}
}

// setWindow records a size and queues it for Windows, replacing any
// size not yet consumed.
func (c *Conn) setWindow(w ssh.Window) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.win = w
	if c.closed {
		return
	}
	select {
	case <-c.winCh:
	default:
	}
	c.winCh <- w
}

// Read returns data bytes with telnet commands removed.
func (c *Conn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}

	n := 0
	for n == 0 {
		b, err := c.r.ReadByte()
		if err != nil {
			return 0, err
		}
		for {
			if d, ok := c.feed(b); ok {
				p[n] = d
				n++
			}
			if n == len(p) || c.r.Buffered() == 0 {
				break
			}
			b, _ = c.r.ReadByte()
		}
	}
	return n, nil
}

// Write sends p, doubling every 0xFF byte. It reports len(p) on success.
func (c *Conn) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	out := p
	if bytes.IndexByte(p, IAC) >= 0 {
		out = make([]byte, 0, len(p)+8)
		for _, b := range p {
			if b == IAC {
				out = append(out, IAC)
			}
			out = append(out, b)
		}
	}
	if err := c.writeRaw(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Conn) writeRaw(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(b)
	return err
}

// Window returns the last reported window size.
func (c *Conn) Window() ssh.Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.win
}

// Windows delivers window size changes. It is closed by Close.
func (c *Conn) Windows() <-chan ssh.Window {
	return c.winCh
}

// TermType returns the negotiated terminal type, or DefaultTerm.
func (c *Conn) TermType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.term == "" {
		return DefaultTerm
	}
	return c.term
}

func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
func (c *Conn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.winCh)
	c.mu.Unlock()
	return c.conn.Close()
}
