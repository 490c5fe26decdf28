package terminalio

import (
	"bufio"
	"io"
)

// WriteLines writes each line followed by CRLF in the given output mode.
// CP437 mode converts the UTF-8 text back to CP437 bytes; any other mode
// passes it through. Lines end in CRLF so raw SSH channels render them
// correctly.
func WriteLines(w io.Writer, lines []string, mode OutputMode) error {
	return writeLines(w, lines, mode, "\r\n")
}

// WriteLinesLF is WriteLines with bare LF line endings, for pipes and files.
func WriteLinesLF(w io.Writer, lines []string, mode OutputMode) error {
	return writeLines(w, lines, mode, "\n")
}

func writeLines(w io.Writer, lines []string, mode OutputMode, eol string) error {
	bw := bufio.NewWriter(w)
	var out io.Writer = bw
	if mode == OutputModeCP437 {
		out = NewSelectiveCP437Writer(bw)
	}
	for _, line := range lines {
		if _, err := io.WriteString(out, line); err != nil {
			return err
		}
		if _, err := io.WriteString(out, eol); err != nil {
			return err
		}
	}
	return bw.Flush()
}
