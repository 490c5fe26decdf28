package sauce

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildRecord returns a 128-byte SAUCE record.
func buildRecord(t *testing.T, title, author, date string, dataType, fileType uint8, width uint16, comments uint8) []byte {
	t.Helper()
	raw := rawRecord{DataType: dataType, FileType: fileType, TInfo1: width, Comments: comments, FileSize: 1234}
	copy(raw.ID[:], "SAUCE")
	copy(raw.Version[:], "00")
	pad := func(dst []byte, s string) {
		for i := range dst {
			dst[i] = ' '
		}
		copy(dst, s)
	}
	pad(raw.Title[:], title)
	pad(raw.Author[:], author)
	pad(raw.Group[:], "")
	copy(raw.Date[:], date)
	copy(raw.TInfoS[:], "IBM VGA")

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &raw); err != nil {
		t.Fatalf("encode record: %v", err)
	}
	if buf.Len() != RecordSize {
		t.Fatalf("record size = %d, want %d", buf.Len(), RecordSize)
	}
	return buf.Bytes()
}

func withComments(t *testing.T, body string, eof bool, lines ...string) []byte {
	t.Helper()
	data := []byte(body)
	if eof {
		data = append(data, 0x1A)
	}
	if len(lines) > 0 {
		data = append(data, "COMNT"...)
		for _, l := range lines {
			line := bytes.Repeat([]byte(" "), CommentLineSize)
			copy(line, l)
			data = append(data, line...)
		}
	}
	return append(data, buildRecord(t, "t", "a", "", DataTypeCharacter, 1, 80, uint8(len(lines)))...)
}

func TestStrip(t *testing.T) {
	notSauce := append([]byte("Normal content"), make([]byte, RecordSize)...)
	copy(notSauce[14:], "NOTASAUCE")

	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"no record", []byte("Hello\x1B[1;31mRed\x1B[0m"), "Hello\x1B[1;31mRed\x1B[0m"},
		{"too small", []byte("Small file"), "Small file"},
		{"bad signature", notSauce, string(notSauce)},
		{"eof marker", withComments(t, "art\r\n", true), "art\r\n"},
		{"no eof marker", withComments(t, "art\r\n", false), "art\r\n"},
		{"comments and eof", withComments(t, "art", true, "a comment"), "art"},
		{"comments without eof", withComments(t, "hello world\r\n", false, "a comment line"), "hello world\r\n"},
		{"0x1a inside content", withComments(t, "arrow \x1a in content, then more text", false), "arrow \x1a in content, then more text"},
		{"only one eof byte dropped", withComments(t, "x\x1a", true), "x\x1a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Strip(tt.input); string(got) != tt.want {
				t.Errorf("Strip() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripMissingCommentBlock(t *testing.T) {
	// The record announces two comment lines that are not there.
	data := append([]byte("body"), buildRecord(t, "t", "a", "", DataTypeCharacter, 1, 80, 2)...)
	if got := Strip(data); string(got) != "body" {
		t.Errorf("Strip = %q, want %q", got, "body")
	}
}

func TestParse(t *testing.T) {
	body := []byte("\xC9\xCD\xBB art\r\n")
	data := append(append([]byte(nil), body...), 0x1A)
	data = append(data, buildRecord(t, "Gr\x81n Title", "artist", "19960412", DataTypeCharacter, 1, 80, 0)...)

	rec, ok := Parse(data)
	if !ok {
		t.Fatal("Parse did not find the record")
	}
	if rec.Title != "Grün Title" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.Author != "artist" || rec.Group != "" {
		t.Errorf("Author/Group = %q/%q", rec.Author, rec.Group)
	}
	if rec.Version != "00" || rec.FileSize != 1234 {
		t.Errorf("Version/FileSize = %q/%d", rec.Version, rec.FileSize)
	}
	if rec.Width() != 80 {
		t.Errorf("Width = %d, want 80", rec.Width())
	}
	if rec.TInfoS != "IBM VGA" {
		t.Errorf("TInfoS = %q", rec.TInfoS)
	}
	tm, ok := rec.Time()
	if !ok || tm.Year() != 1996 || tm.Month() != 4 || tm.Day() != 12 {
		t.Errorf("Time = %v, %v", tm, ok)
	}
	if got := Strip(data); !bytes.Equal(got, body) {
		t.Errorf("Strip = %q, want %q", got, body)
	}
	if got, want := rec.Summary(), "Grün Title by artist, 1996-04-12"; got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestSummaryUntitled(t *testing.T) {
	rec := &Record{Group: "ACiD", Date: "bogus"}
	if got, want := rec.Summary(), "(untitled)/ACiD"; got != want {
		t.Errorf("Summary = %q, want %q", got, want)
	}
}

func TestParseComments(t *testing.T) {
	line1 := make([]byte, CommentLineSize)
	line2 := make([]byte, CommentLineSize)
	copy(line1, "first comment")
	copy(line2, "second")

	data := []byte("text")
	data = append(data, 0x1A)
	data = append(data, "COMNT"...)
	data = append(data, line1...)
	data = append(data, line2...)
	data = append(data, buildRecord(t, "t", "a", "", DataTypeCharacter, 1, 0, 2)...)

	rec, ok := Parse(data)
	if !ok {
		t.Fatal("Parse did not find the record")
	}
	if len(rec.Comments) != 2 || rec.Comments[0] != "first comment" || rec.Comments[1] != "second" {
		t.Errorf("Comments = %q", rec.Comments)
	}
	if _, ok := rec.Time(); ok {
		t.Error("empty date parsed as valid")
	}
	if got := Strip(data); string(got) != "text" {
		t.Errorf("Strip = %q, want %q", got, "text")
	}
}

func TestParseNoRecord(t *testing.T) {
	if _, ok := Parse([]byte("plain")); ok {
		t.Error("Parse found a record in plain text")
	}
	if _, ok := Parse(bytes.Repeat([]byte("x"), 200)); ok {
		t.Error("Parse found a record without the SAUCE id")
	}
}
