package cp437

// UTFMax is the buffer size EncodeRune and EncodeRuneLegacy require.
const UTFMax = 4

// EncodeRune writes the UTF-8 encoding of cp into p and returns the number
// of bytes written. p must hold at least UTFMax bytes.
//
// Values above the Unicode range are not rejected; they are packed with
// the same 4-byte layout.
func EncodeRune(p []byte, cp uint32) int {
	return encode(p, cp, 0xF0)
}

// EncodeRuneLegacy is EncodeRune with the historical 4-byte lead byte
// 0xE0|(cp>>18) that older viewer output carried. Sequences it produces
// for cp >= 0x10000 are not valid UTF-8. Below 0x10000 it is identical to
// EncodeRune.
func EncodeRuneLegacy(p []byte, cp uint32) int {
	return encode(p, cp, 0xE0)
}

func encode(p []byte, cp uint32, lead4 byte) int {
	switch {
	case cp < 0x80:
		p[0] = byte(cp)
		return 1
	case cp < 0x800:
		p[0] = byte(cp>>6) | 0xC0
		p[1] = byte(cp&0x3F) | 0x80
		return 2
	case cp < 0x10000:
		p[0] = byte(cp>>12) | 0xE0
		p[1] = byte((cp>>6)&0x3F) | 0x80
		p[2] = byte(cp&0x3F) | 0x80
		return 3
	default:
		p[0] = byte(cp>>18) | lead4
		p[1] = byte((cp>>12)&0x3F) | 0x80
		p[2] = byte((cp>>6)&0x3F) | 0x80
		p[3] = byte(cp&0x3F) | 0x80
		return 4
	}
}

// AppendRune appends the EncodeRune bytes of cp to dst.
func AppendRune(dst []byte, cp uint32) []byte {
	var buf [UTFMax]byte
	n := EncodeRune(buf[:], cp)
	return append(dst, buf[:n]...)
}

// AppendRuneLegacy appends the EncodeRuneLegacy bytes of cp to dst.
func AppendRuneLegacy(dst []byte, cp uint32) []byte {
	var buf [UTFMax]byte
	n := EncodeRuneLegacy(buf[:], cp)
	return append(dst, buf[:n]...)
}
