package terminalio

import (
	"bytes"
	"io"
	"unicode/utf8"

	"github.com/stlalpha/gviewer/internal/cp437"
)

// ansiState tracks the parser state for ANSI escape sequences.
type ansiState int

const (
	ansiStateGround ansiState = iota // Normal text
	ansiStateEscape                  // Saw ESC
	ansiStateCSI                     // Saw ESC [
)

// Unmappable runes are written as this CP437 byte.
const cp437Fallback = '?'

// SelectiveCP437Writer encodes UTF-8 text to CP437 while passing ANSI
// escape sequences through unmodified. Sequences and runes split across
// Write calls are carried over to the next call.
type SelectiveCP437Writer struct {
	w       io.Writer
	state   ansiState
	ansiBuf bytes.Buffer
	partial []byte // incomplete UTF-8 sequence from the previous Write
	out     []byte
}

// NewSelectiveCP437Writer creates a new selective CP437 writer around w.
func NewSelectiveCP437Writer(w io.Writer) *SelectiveCP437Writer {
	return &SelectiveCP437Writer{w: w}
}

// Write implements io.Writer. It reports len(p) on success even though
// the number of bytes written to the underlying writer differs.
func (sw *SelectiveCP437Writer) Write(p []byte) (int, error) {
	sw.out = sw.out[:0]
	data := p
	if len(sw.partial) > 0 {
		data = append(sw.partial, p...)
		sw.partial = nil
	}

	for i := 0; i < len(data); {
		b := data[i]
		switch sw.state {
		case ansiStateGround:
			if b == 0x1b {
				sw.ansiBuf.WriteByte(b)
				sw.state = ansiStateEscape
				i++
				continue
			}
			if b < utf8.RuneSelf {
				sw.out = append(sw.out, b)
				i++
				continue
			}
			if !utf8.FullRune(data[i:]) {
				sw.partial = append([]byte(nil), data[i:]...)
				i = len(data)
				continue
			}
			r, size := utf8.DecodeRune(data[i:])
			sw.out = append(sw.out, encodeCP437(r))
			i += size

		case ansiStateEscape:
			sw.ansiBuf.WriteByte(b)
			if b == '[' {
				sw.state = ansiStateCSI
			} else {
				sw.flushAnsi()
			}
			i++

		case ansiStateCSI:
			sw.ansiBuf.WriteByte(b)
			if b >= '@' && b <= '~' {
				sw.flushAnsi()
			}
			i++
		}
	}

	if len(sw.out) > 0 {
		if _, err := sw.w.Write(sw.out); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (sw *SelectiveCP437Writer) flushAnsi() {
	sw.out = append(sw.out, sw.ansiBuf.Bytes()...)
	sw.ansiBuf.Reset()
	sw.state = ansiStateGround
}

func encodeCP437(r rune) byte {
	if b, ok := cp437.FromUnicode(r); ok {
		return b
	}
	return cp437Fallback
}
