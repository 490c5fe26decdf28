package main

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stlalpha/gviewer/internal/config"
	"github.com/stlalpha/gviewer/internal/inputmode"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCmdCat(t *testing.T) {
	cfgDir := t.TempDir()
	file := writeFile(t, t.TempDir(), "logo.ans", []byte("\xC9\xCD\xBB\r\n\xBAhi\xBA\r\n"))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"cp437", []string{"-mode", "CP437"}, "╔═╗\n║hi║\n"},
		{"ascii", []string{"-mode", "ascii"}, "...\n.hi.\n"},
		{"cp437 output", []string{"-mode", "CP437", "-output", "cp437"}, "\xC9\xCD\xBB\n\xBAhi\xBA\n"},
		{"wrap", []string{"-mode", "CP437", "-wrap", "-width", "2"}, "╔═\n╗\n║h\ni║\n"},
		{"hex", []string{"-display", "hex", "-mode", "CP437"}, "00000000  c9 cd bb 0d 0a ba 68 69  ba 0d 0a                 ╔═╗..║hi║..\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			args := append([]string{"-config", cfgDir}, tt.args...)
			if err := cmdCat(append(args, file), &out); err != nil {
				t.Fatalf("cmdCat: %v", err)
			}
			if out.String() != tt.want {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestCmdCatErrors(t *testing.T) {
	cfgDir := t.TempDir()
	file := writeFile(t, t.TempDir(), "a.txt", []byte("a"))
	var out bytes.Buffer

	if err := cmdCat([]string{"-config", cfgDir, "-mode", "klingon", file}, &out); !errors.Is(err, inputmode.ErrUnknownMode) {
		t.Errorf("unknown mode error = %v", err)
	}
	if err := cmdCat([]string{"-config", cfgDir, "-display", "columns", file}, &out); err == nil {
		t.Error("unknown display accepted")
	}
	if err := cmdCat([]string{"-config", cfgDir, "-tab", "0", file}, &out); err == nil {
		t.Error("zero tab size accepted")
	}
	if err := cmdCat([]string{"-config", cfgDir}, &out); err == nil {
		t.Error("missing FILE accepted")
	}
}

func TestCmdCatUsesConfig(t *testing.T) {
	cfgDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.InputMode = "ASCII"
	if err := config.SaveConfig(cfgDir, cfg); err != nil {
		t.Fatal(err)
	}
	file := writeFile(t, t.TempDir(), "a.txt", []byte("\xB3x"))
	var out bytes.Buffer
	if err := cmdCat([]string{"-config", cfgDir, file}, &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != ".x\n" {
		t.Errorf("output = %q, want config input mode applied", out.String())
	}
}

func TestCmdCatArchiveMember(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("docs/FILE_ID.DIZ")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("\xDA\xC4\xBF release"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	archive := writeFile(t, dir, "release.zip", buf.Bytes())

	var out bytes.Buffer
	if err := cmdCat([]string{"-config", t.TempDir(), "-mode", "CP437", "-member", "file_id.diz", archive}, &out); err != nil {
		t.Fatalf("cmdCat: %v", err)
	}
	if out.String() != "┌─┐ release\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestCmdSelect(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "B.TXT", "c.md", "d.ans"} {
		writeFile(t, dir, name, []byte("x"))
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"select", []string{"*.txt"}, []string{"B.TXT", "a.txt"}},
		{"case", []string{"-case", "*.txt"}, []string{"a.txt"}},
		{"unselect", []string{"-u", "*.txt"}, []string{"c.md", "d.ans"}},
		{"invert", []string{"-i", "*.{md,ans}"}, []string{"B.TXT", "a.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgDir := t.TempDir()
			var out bytes.Buffer
			args := append([]string{"-config", cfgDir}, tt.args...)
			if err := cmdSelect(append(args, dir), &out); err != nil {
				t.Fatalf("cmdSelect: %v", err)
			}
			var want []string
			for _, n := range tt.want {
				want = append(want, filepath.Join(dir, n))
			}
			got := strings.Fields(out.String())
			if !reflect.DeepEqual(got, want) {
				t.Errorf("selected %q, want %q", got, want)
			}
		})
	}
}

func TestCmdSelectSavesHistory(t *testing.T) {
	dir := t.TempDir()
	cfgDir := t.TempDir()
	var out bytes.Buffer
	for _, p := range []string{"*.txt", "*.md", "*.txt"} {
		if err := cmdSelect([]string{"-config", cfgDir, p, dir}, &out); err != nil {
			t.Fatal(err)
		}
	}
	cfg, err := config.LoadConfig(cfgDir)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"*.txt", "*.md"}; !reflect.DeepEqual(cfg.PatternHistory, want) {
		t.Errorf("history = %q, want %q", cfg.PatternHistory, want)
	}

	if err := cmdSelect([]string{"-config", cfgDir, "[oops", dir}, &out); err == nil {
		t.Error("bad pattern accepted")
	}
}

func TestCmdTable(t *testing.T) {
	var out bytes.Buffer
	if err := cmdTable(nil, &out); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 17 {
		t.Fatalf("grid has %d lines, want 17", len(lines))
	}
	if !strings.HasPrefix(lines[12], "B_  ░ ▒ ▓ │") {
		t.Errorf("row B = %q", lines[12])
	}

	out.Reset()
	if err := cmdTable([]string{"-list"}, &out); err != nil {
		t.Fatal(err)
	}
	list := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(list) != 256 {
		t.Fatalf("list has %d lines", len(list))
	}
	if list[0xB3] != "0xB3 U+2502 │" || list[0] != "0x00 U+002E ." {
		t.Errorf("list entries = %q, %q", list[0xB3], list[0])
	}
}

func sauceRecord(title, author, group, date string) []byte {
	rec := make([]byte, 0, 128)
	pad := func(s string, n int) []byte {
		b := []byte(s)
		for len(b) < n {
			b = append(b, ' ')
		}
		return b[:n]
	}
	rec = append(rec, "SAUCE00"...)
	rec = append(rec, pad(title, 35)...)
	rec = append(rec, pad(author, 20)...)
	rec = append(rec, pad(group, 20)...)
	rec = append(rec, pad(date, 8)...)
	rec = binary.LittleEndian.AppendUint32(rec, 42)
	rec = append(rec, 1, 1) // character, ANSi
	rec = binary.LittleEndian.AppendUint16(rec, 80)
	rec = binary.LittleEndian.AppendUint16(rec, 25)
	rec = binary.LittleEndian.AppendUint16(rec, 0)
	rec = binary.LittleEndian.AppendUint16(rec, 0)
	rec = append(rec, 0, 0) // comments, flags
	return append(rec, make([]byte, 22)...)
}

func TestCmdSauce(t *testing.T) {
	data := append([]byte("art\x1a"), sauceRecord("Logo", "Artist", "Group", "19970102")...)
	file := writeFile(t, t.TempDir(), "logo.ans", data)

	var out bytes.Buffer
	if err := cmdSauce([]string{"-config", t.TempDir(), file}, &out); err != nil {
		t.Fatalf("cmdSauce: %v", err)
	}
	for _, want := range []string{"Title:    Logo\n", "Author:   Artist\n", "Date:     1997-01-02\n", "Width:    80\n"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}

	plain := writeFile(t, t.TempDir(), "plain.txt", []byte("no record"))
	if err := cmdSauce([]string{plain}, &out); err == nil || !strings.Contains(err.Error(), "no SAUCE") {
		t.Errorf("plain file error = %v", err)
	}
}

func TestViewerConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SSH.OutputMode = "cp437"
	v, err := viewerConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if v.Root != cfg.SSH.Root || v.OutputMode.String() != "cp437" || !v.Source.StripSAUCE {
		t.Errorf("viewer config = %+v", v)
	}
}

func TestCmdPasswd(t *testing.T) {
	cfgDir := t.TempDir()
	var out bytes.Buffer
	if err := cmdPasswd([]string{"-config", cfgDir, "sysop"}, strings.NewReader("s3cret\n"), &out); err != nil {
		t.Fatalf("cmdPasswd: %v", err)
	}
	cfg, err := config.LoadConfig(cfgDir)
	if err != nil {
		t.Fatal(err)
	}
	hash := cfg.SSH.Users["sysop"]
	if !strings.HasPrefix(hash, "$2") || strings.Contains(hash, "s3cret") {
		t.Fatalf("stored hash = %q", hash)
	}
	pw, keys, err := authHandlers(cfg.SSH, cfgDir)
	if err != nil || pw == nil || keys != nil {
		t.Errorf("authHandlers = %v, %v, %v", pw != nil, keys != nil, err)
	}

	if err := cmdPasswd([]string{"-config", cfgDir, "-delete", "sysop"}, strings.NewReader(""), &out); err != nil {
		t.Fatalf("delete: %v", err)
	}
	cfg, _ = config.LoadConfig(cfgDir)
	if _, ok := cfg.SSH.Users["sysop"]; ok {
		t.Error("user not removed")
	}
	if err := cmdPasswd([]string{"-config", cfgDir, "-delete", "sysop"}, strings.NewReader(""), &out); err == nil {
		t.Error("removing a missing user succeeded")
	}
	if err := cmdPasswd([]string{"-config", cfgDir, "sysop"}, strings.NewReader("\n"), &out); err == nil {
		t.Error("empty password accepted")
	}
	if err := cmdPasswd([]string{"-config", cfgDir}, strings.NewReader("x\n"), &out); err == nil {
		t.Error("missing USER accepted")
	}
}

func TestAuthHandlersRequireCredentials(t *testing.T) {
	cfg := config.DefaultConfig()
	if _, _, err := authHandlers(cfg.SSH, t.TempDir()); err == nil {
		t.Error("serving without credentials was allowed by default")
	}

	cfg.SSH.AllowAnonymous = true
	pw, keys, err := authHandlers(cfg.SSH, t.TempDir())
	if err != nil || pw != nil || keys != nil {
		t.Errorf("anonymous handlers = %v, %v, %v", pw != nil, keys != nil, err)
	}

	cfg.SSH.AuthorizedKeysPath = "missing_keys"
	if _, _, err := authHandlers(cfg.SSH, t.TempDir()); err == nil {
		t.Error("missing authorized_keys file accepted")
	}
}

func TestIsLoopback(t *testing.T) {
	for host, want := range map[string]bool{
		"127.0.0.1": true,
		"::1":       true,
		"localhost": true,
		"0.0.0.0":   false,
		"":          false,
		"10.0.0.5":  false,
	} {
		if got := isLoopback(host); got != want {
			t.Errorf("isLoopback(%q) = %v, want %v", host, got, want)
		}
	}
}

func TestModeFlagUsageListsModes(t *testing.T) {
	fs := flag.NewFlagSet("cat", flag.ContinueOnError)
	addCommonFlags(fs)
	usage := fs.Lookup("mode").Usage
	for _, name := range inputmode.Names() {
		if !strings.Contains(usage, name) {
			t.Errorf("-mode usage %q does not mention %s", usage, name)
		}
	}
}
