// Package inputmode decodes raw document bytes into code points for the
// viewer. A mode never fails: undecodable input is shown as a dot.
package inputmode

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/stlalpha/gviewer/internal/cp437"
)

// Placeholder is shown for bytes a mode cannot display.
const Placeholder = '.'

// ErrUnknownMode is returned by Lookup for names it cannot resolve.
var ErrUnknownMode = errors.New("unknown input mode")

// Mode decodes one character from the head of a byte slice.
type Mode interface {
	Name() string
	// Decode returns the code point at the start of src and the number of
	// bytes it occupies. size is at least 1 when src is non-empty.
	Decode(src []byte) (cp rune, size int)
}

// Built-in mode names.
const (
	NameASCII = "ASCII"
	NameUTF8  = "UTF8"
	NameCP437 = "CP437"
)

var (
	ASCII Mode = asciiMode{}
	UTF8  Mode = utf8Mode{}
	CP437 Mode = cp437Mode{}
)

// Names lists the built-in modes in the order the viewer cycles them.
func Names() []string {
	return []string{NameASCII, NameUTF8, NameCP437}
}

// Lookup resolves a mode by name, case-insensitively. Besides the built-in
// names it accepts any single-byte charset from the IANA registry, such as
// "ISO-8859-1", "windows-1252" or "KOI8-R".
func Lookup(name string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case NameASCII, "US-ASCII":
		return ASCII, nil
	case NameUTF8, "UTF-8":
		return UTF8, nil
	case NameCP437, "IBM437", "437":
		return CP437, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	cm, ok := enc.(*charmap.Charmap)
	if !ok {
		// Registered but either unsupported by x/text or not single-byte.
		return nil, fmt.Errorf("%w: %q is not a single-byte charset", ErrUnknownMode, name)
	}
	canonical, err := ianaindex.IANA.Name(cm)
	if err != nil {
		canonical = strings.ToUpper(name)
	}
	return charmapMode{name: canonical, cm: cm}, nil
}

func isLayoutControl(b byte) bool {
	return b == '\t' || b == '\n' || b == '\r'
}

type asciiMode struct{}

func (asciiMode) Name() string { return NameASCII }

func (asciiMode) Decode(src []byte) (rune, int) {
	if len(src) == 0 {
		return 0, 0
	}
	b := src[0]
	if (b >= 0x20 && b < 0x7F) || isLayoutControl(b) {
		return rune(b), 1
	}
	return Placeholder, 1
}

type utf8Mode struct{}

func (utf8Mode) Name() string { return NameUTF8 }

func (utf8Mode) Decode(src []byte) (rune, int) {
	if len(src) == 0 {
		return 0, 0
	}
	if src[0] < utf8.RuneSelf {
		b := src[0]
		if (b < 0x20 && !isLayoutControl(b)) || b == 0x7F {
			return Placeholder, 1
		}
		return rune(b), 1
	}
	r, size := utf8.DecodeRune(src)
	if r == utf8.RuneError && size <= 1 {
		return Placeholder, 1
	}
	return r, size
}

type cp437Mode struct{}

func (cp437Mode) Name() string { return NameCP437 }

func (cp437Mode) Decode(src []byte) (rune, int) {
	if len(src) == 0 {
		return 0, 0
	}
	if isLayoutControl(src[0]) {
		return rune(src[0]), 1
	}
	return cp437.ToUnicode(src[0]), 1
}

type charmapMode struct {
	name string
	cm   *charmap.Charmap
}

func (m charmapMode) Name() string { return m.name }

func (m charmapMode) Decode(src []byte) (rune, int) {
	if len(src) == 0 {
		return 0, 0
	}
	b := src[0]
	if isLayoutControl(b) {
		return rune(b), 1
	}
	r := m.cm.DecodeByte(b)
	if r == utf8.RuneError || r < 0x20 || (r >= 0x7F && r < 0xA0) {
		return Placeholder, 1
	}
	return r, 1
}
