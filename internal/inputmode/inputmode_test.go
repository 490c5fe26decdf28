package inputmode

import (
	"errors"
	"testing"
)

func decodeAll(m Mode, src []byte) []rune {
	var out []rune
	for len(src) > 0 {
		r, n := m.Decode(src)
		out = append(out, r)
		src = src[n:]
	}
	return out
}

func TestDecodeModes(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		src  []byte
		want string
	}{
		{"ascii printable", ASCII, []byte("Hi!\t\n"), "Hi!\t\n"},
		{"ascii high bytes", ASCII, []byte{'a', 0xB3, 0x00, 0x7F}, "a..."},
		{"utf8 valid", UTF8, []byte("héllo €"), "héllo €"},
		{"utf8 invalid byte", UTF8, []byte{'a', 0xFF, 'b'}, "a.b"},
		{"utf8 truncated", UTF8, []byte{'a', 0xE2, 0x82}, "a.."},
		{"utf8 control", UTF8, []byte{0x01, '\r', '\n'}, ".\r\n"},
		{"cp437 box", CP437, []byte{0xC9, 0xCD, 0xBB}, "╔═╗"},
		{"cp437 nul and layout", CP437, []byte{0x00, '\t', 0x01, '\n'}, ".\t☺\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(decodeAll(tt.mode, tt.src))
			if got != tt.want {
				t.Errorf("decode = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	for _, m := range []Mode{ASCII, UTF8, CP437} {
		if _, n := m.Decode(nil); n != 0 {
			t.Errorf("%s: Decode(nil) size = %d, want 0", m.Name(), n)
		}
	}
}

func TestLookupBuiltins(t *testing.T) {
	tests := map[string]string{
		"ascii":  NameASCII,
		"UTF-8":  NameUTF8,
		"utf8":   NameUTF8,
		"cp437":  NameCP437,
		"IBM437": NameCP437,
	}
	for in, want := range tests {
		m, err := Lookup(in)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", in, err)
		}
		if m.Name() != want {
			t.Errorf("Lookup(%q).Name() = %q, want %q", in, m.Name(), want)
		}
	}
}

func TestLookupCharmap(t *testing.T) {
	m, err := Lookup("windows-1252")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got := string(decodeAll(m, []byte{0x80, 'a', 0xE9})); got != "€aé" {
		t.Errorf("windows-1252 decode = %q", got)
	}

	m, err = Lookup("iso-8859-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got := string(decodeAll(m, []byte{0x85, 0xE9})); got != ".é" {
		t.Errorf("iso-8859-1 decode = %q", got)
	}
}

func TestLookupUnknown(t *testing.T) {
	for _, name := range []string{"no-such-charset", "UTF-16"} {
		if _, err := Lookup(name); !errors.Is(err, ErrUnknownMode) {
			t.Errorf("Lookup(%q) error = %v, want ErrUnknownMode", name, err)
		}
	}
}
