package cp437

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Encoding is the display variant of CP437: decoding goes through Table,
// so control bytes come out as their IBM PC glyphs. Encoding back to
// CP437 uses the standard charmap encoder.
var Encoding encoding.Encoding = displayEncoding{}

type displayEncoding struct{}

func (displayEncoding) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: &decoder{}}
}

func (displayEncoding) NewEncoder() *encoding.Encoder {
	return charmap.CodePage437.NewEncoder()
}

func (displayEncoding) String() string {
	return "CP437 (display)"
}

type decoder struct {
	transform.NopResetter
}

// Transform implements transform.Transformer.
func (d *decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	var buf [UTFMax]byte
	for nSrc < len(src) {
		n := EncodeRune(buf[:], uint32(Table[src[nSrc]]))
		if nDst+n > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		copy(dst[nDst:], buf[:n])
		nDst += n
		nSrc++
	}
	return nDst, nSrc, nil
}
