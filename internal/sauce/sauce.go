// Package sauce reads and strips SAUCE metadata records.
//
// SAUCE (Standard Architecture for Universal Comment Extensions) is a
// 128-byte record appended to ANSI art and NFO files, optionally preceded
// by a COMNT comment block and an EOF marker (0x1A). Viewers must hide it
// or it shows up as garbage at the end of the document.
package sauce

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"

	"github.com/stlalpha/gviewer/internal/cp437"
	"github.com/stlalpha/gviewer/internal/logging"
)

const (
	// RecordSize is the size of the trailing SAUCE record.
	RecordSize = 128
	// CommentLineSize is the size of one COMNT line.
	CommentLineSize = 64

	eofMarker = 0x1A
	// Offset of the comment count inside the record.
	commentsOffset = 104
)

var (
	recordID  = []byte("SAUCE")
	commentID = []byte("COMNT")
)

// DataType values from the SAUCE standard.
const (
	DataTypeNone       = 0
	DataTypeCharacter  = 1
	DataTypeBitmap     = 2
	DataTypeVector     = 3
	DataTypeAudio      = 4
	DataTypeBinaryText = 5
	DataTypeXBin       = 6
	DataTypeArchive    = 7
	DataTypeExecutable = 8
)

// rawRecord mirrors the on-disk layout, little-endian.
type rawRecord struct {
	ID       [5]byte
	Version  [2]byte
	Title    [35]byte
	Author   [20]byte
	Group    [20]byte
	Date     [8]byte
	FileSize uint32
	DataType uint8
	FileType uint8
	TInfo1   uint16
	TInfo2   uint16
	TInfo3   uint16
	TInfo4   uint16
	Comments uint8
	TFlags   uint8
	TInfoS   [22]byte
}

// Record is a decoded SAUCE record.
type Record struct {
	Version  string
	Title    string
	Author   string
	Group    string
	Date     string // CCYYMMDD as stored
	FileSize uint32
	DataType uint8
	FileType uint8
	TInfo    [4]uint16
	Flags    uint8
	TInfoS   string
	Comments []string
}

// Parse decodes the SAUCE record at the end of data. ok is false when data
// carries no record.
func Parse(data []byte) (rec *Record, ok bool) {
	if len(data) < RecordSize {
		return nil, false
	}
	start := len(data) - RecordSize
	if !bytes.HasPrefix(data[start:], recordID) {
		return nil, false
	}

	var raw rawRecord
	if err := binary.Read(bytes.NewReader(data[start:]), binary.LittleEndian, &raw); err != nil {
		logging.Debug("SAUCE record unreadable: %v", err)
		return nil, false
	}

	rec = &Record{
		Version:  string(raw.Version[:]),
		Title:    field(raw.Title[:]),
		Author:   field(raw.Author[:]),
		Group:    field(raw.Group[:]),
		Date:     field(raw.Date[:]),
		FileSize: raw.FileSize,
		DataType: raw.DataType,
		FileType: raw.FileType,
		TInfo:    [4]uint16{raw.TInfo1, raw.TInfo2, raw.TInfo3, raw.TInfo4},
		Flags:    raw.TFlags,
		TInfoS:   strings.TrimRight(string(bytes.TrimRight(raw.TInfoS[:], "\x00")), " "),
	}
	rec.Comments = comments(data[:start], int(raw.Comments))
	return rec, true
}

// comments reads n COMNT lines ending right before the SAUCE record.
func comments(head []byte, n int) []string {
	if n == 0 {
		return nil
	}
	blockSize := len(commentID) + n*CommentLineSize
	if len(head) < blockSize {
		return nil
	}
	block := head[len(head)-blockSize:]
	if !bytes.HasPrefix(block, commentID) {
		return nil
	}
	block = block[len(commentID):]
	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, field(block[i*CommentLineSize:(i+1)*CommentLineSize]))
	}
	return lines
}

// field decodes a space or NUL padded CP437 field.
func field(b []byte) string {
	b = bytes.TrimRight(b, " \x00")
	return cp437.DecodeString(b)
}

// Time parses the record date. ok is false for empty or malformed dates.
func (r *Record) Time() (time.Time, bool) {
	t, err := time.Parse("20060102", r.Date)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Width returns the character width for character and binary-text
// records, or 0 when the record does not say.
func (r *Record) Width() int {
	switch r.DataType {
	case DataTypeCharacter:
		return int(r.TInfo[0])
	case DataTypeBinaryText:
		return int(r.FileType) * 2
	}
	return 0
}

// Summary returns a one-line description such as
// "Title by Author/Group, 1996-04-12".
func (r *Record) Summary() string {
	var b strings.Builder
	b.WriteString(orUntitled(r.Title))
	if r.Author != "" {
		b.WriteString(" by ")
		b.WriteString(r.Author)
	}
	if r.Group != "" {
		b.WriteString("/")
		b.WriteString(r.Group)
	}
	if t, ok := r.Time(); ok {
		b.WriteString(", ")
		b.WriteString(t.Format("2006-01-02"))
	}
	return b.String()
}

func orUntitled(s string) string {
	if s == "" {
		return "(untitled)"
	}
	return s
}

// Strip returns data without its SAUCE record, comment block and EOF
// marker. Data without a record is returned unchanged.
func Strip(data []byte) []byte {
	end, ok := contentEnd(data)
	if !ok {
		return data
	}
	logging.Debug("SAUCE record found, content ends at %d of %d bytes", end, len(data))
	return data[:end]
}

// contentEnd returns the length of the document proper: the record, the
// COMNT block it announces and one EOF byte right before them are not
// part of it. A 0x1A anywhere else is content.
func contentEnd(data []byte) (int, bool) {
	if len(data) < RecordSize {
		return 0, false
	}
	end := len(data) - RecordSize
	if !bytes.HasPrefix(data[end:], recordID) {
		return 0, false
	}
	if n := int(data[end+commentsOffset]); n > 0 {
		block := len(commentID) + n*CommentLineSize
		if block <= end && bytes.HasPrefix(data[end-block:], commentID) {
			end -= block
		}
	}
	if end > 0 && data[end-1] == eofMarker {
		end--
	}
	return end, true
}
