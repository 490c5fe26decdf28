// Package render lays out document bytes as display lines. Each byte run
// is decoded by an input mode and every resulting code point is encoded
// to UTF-8 for the terminal.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/stlalpha/gviewer/internal/cp437"
	"github.com/stlalpha/gviewer/internal/inputmode"
)

// DisplayMode selects the layout.
type DisplayMode int

const (
	DisplayText   DisplayMode = iota // lines split at line breaks
	DisplayBinary                    // fixed-width rows, no line breaks
	DisplayHex                       // offset, hex bytes, characters
)

func (d DisplayMode) String() string {
	switch d {
	case DisplayText:
		return "text"
	case DisplayBinary:
		return "binary"
	case DisplayHex:
		return "hex"
	default:
		return "unknown"
	}
}

// ParseDisplayMode accepts "text", "binary" or "hex".
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return DisplayText, nil
	case "binary", "bin":
		return DisplayBinary, nil
	case "hex":
		return DisplayHex, nil
	}
	return DisplayText, fmt.Errorf("unknown display mode %q", s)
}

// Defaults used when Options fields are zero.
const (
	DefaultTabSize     = 8
	DefaultBinaryWidth = 80
	DefaultHexWidth    = 16
)

// DefaultMode decodes input when Options.Mode is nil. It matches the
// configured default, since most files viewed are BBS art.
var DefaultMode inputmode.Mode = inputmode.CP437

// Options control layout.
type Options struct {
	Mode        inputmode.Mode
	Display     DisplayMode
	TabSize     int
	Wrap        bool
	Width       int // wrap width in columns; no wrapping when <= 0
	BinaryWidth int // characters per row in binary mode
	HexWidth    int // bytes per row in hex mode
	// LegacyUTF8 emits the historical 4-byte lead byte for code points
	// beyond the BMP instead of valid UTF-8.
	LegacyUTF8 bool
}

func (o Options) normalized() Options {
	if o.Mode == nil {
		o.Mode = DefaultMode
	}
	if o.TabSize <= 0 {
		o.TabSize = DefaultTabSize
	}
	if o.BinaryWidth <= 0 {
		o.BinaryWidth = DefaultBinaryWidth
	}
	if o.HexWidth <= 0 {
		o.HexWidth = DefaultHexWidth
	}
	return o
}

// Line is one display line and the document offset it starts at.
type Line struct {
	Offset int64
	Text   string
}

// Render lays out all of src.
func Render(src []byte, opts Options) []Line {
	opts = opts.normalized()
	r := renderer{src: src, opts: opts, appendRune: cp437.AppendRune}
	if opts.LegacyUTF8 {
		r.appendRune = cp437.AppendRuneLegacy
	}

	var lines []Line
	off := 0
	for off < len(src) {
		var text []byte
		next := off
		switch opts.Display {
		case DisplayBinary:
			text, next = r.binaryLine(off)
		case DisplayHex:
			text, next = r.hexLine(off)
		default:
			text, next = r.textLine(off)
		}
		lines = append(lines, Line{Offset: int64(off), Text: string(text)})
		off = next
	}
	return lines
}

type renderer struct {
	src        []byte
	opts       Options
	appendRune func([]byte, uint32) []byte
	buf        []byte
}

func (r *renderer) textLine(off int) ([]byte, int) {
	r.buf = r.buf[:0]
	col := 0
	wrapAt := 0
	if r.opts.Wrap && r.opts.Width > 0 {
		wrapAt = r.opts.Width
	}

	for off < len(r.src) {
		cp, n := r.opts.Mode.Decode(r.src[off:])
		switch cp {
		case '\n':
			return r.buf, off + n
		case '\r':
			off += n
			if off < len(r.src) && r.src[off] == '\n' {
				off++
			}
			return r.buf, off
		case '\t':
			if wrapAt > 0 && col >= wrapAt {
				return r.buf, off
			}
			spaces := r.opts.TabSize - col%r.opts.TabSize
			if wrapAt > 0 && col+spaces > wrapAt {
				spaces = wrapAt - col
			}
			for i := 0; i < spaces; i++ {
				r.buf = append(r.buf, ' ')
			}
			col += spaces
			off += n
			continue
		}

		w := runewidth.RuneWidth(cp)
		if wrapAt > 0 && col > 0 && col+w > wrapAt {
			return r.buf, off
		}
		r.buf = r.appendRune(r.buf, uint32(cp))
		col += w
		off += n
	}
	return r.buf, off
}

func (r *renderer) binaryLine(off int) ([]byte, int) {
	r.buf = r.buf[:0]
	for chars := 0; chars < r.opts.BinaryWidth && off < len(r.src); chars++ {
		cp, n := r.opts.Mode.Decode(r.src[off:])
		if cp < 0x20 {
			cp = inputmode.Placeholder
		}
		r.buf = r.appendRune(r.buf, uint32(cp))
		off += n
	}
	return r.buf, off
}

const hexDigits = "0123456789abcdef"

func (r *renderer) hexLine(off int) ([]byte, int) {
	width := r.opts.HexWidth
	end := off + width
	if end > len(r.src) {
		end = len(r.src)
	}
	row := r.src[off:end]

	r.buf = append(r.buf[:0], fmt.Sprintf("%08x  ", off)...)
	for i := 0; i < width; i++ {
		if i > 0 && i == width/2 {
			r.buf = append(r.buf, ' ')
		}
		if i < len(row) {
			b := row[i]
			r.buf = append(r.buf, hexDigits[b>>4], hexDigits[b&0x0F], ' ')
		} else {
			r.buf = append(r.buf, "   "...)
		}
	}
	r.buf = append(r.buf, ' ')
	for i := range row {
		cp, _ := r.opts.Mode.Decode(row[i : i+1])
		if cp < 0x20 {
			cp = inputmode.Placeholder
		}
		r.buf = r.appendRune(r.buf, uint32(cp))
	}
	return r.buf, end
}

// LineAt returns the index of the line containing offset, for keeping the
// scroll position across layout changes.
func LineAt(lines []Line, offset int64) int {
	i := sort.Search(len(lines), func(i int) bool { return lines[i].Offset > offset })
	if i == 0 {
		return 0
	}
	return i - 1
}

// FindNext returns the index of the first line at or after from whose text
// contains query, ignoring case, wrapping around to the top. It returns -1
// when nothing matches or query is empty.
func FindNext(lines []Line, query string, from int) int {
	if query == "" || len(lines) == 0 {
		return -1
	}
	q := strings.ToLower(query)
	if from < 0 || from >= len(lines) {
		from = 0
	}
	for i := 0; i < len(lines); i++ {
		idx := (from + i) % len(lines)
		if strings.Contains(strings.ToLower(lines[idx].Text), q) {
			return idx
		}
	}
	return -1
}
