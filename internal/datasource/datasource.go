// Package datasource loads the bytes of a document for the viewer, either
// from a plain file or from a member inside an archive.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"

	"github.com/stlalpha/gviewer/internal/logging"
	"github.com/stlalpha/gviewer/internal/sauce"
)

// MaxSize caps how many bytes a Source will hold.
var MaxSize int64 = 64 << 20

var (
	// ErrTooLarge is returned for documents bigger than MaxSize.
	ErrTooLarge = errors.New("document too large")
	// ErrMemberNotFound is returned when an archive has no such member.
	ErrMemberNotFound = errors.New("archive member not found")
	// ErrNotArchive is returned when a member is requested from a file
	// that is not a recognised archive.
	ErrNotArchive = errors.New("not a supported archive")
)

// Source is an immutable in-memory view of one document.
type Source struct {
	name  string
	data  []byte
	sauce *sauce.Record
}

// Options control how a Source is loaded.
type Options struct {
	// StripSAUCE hides trailing SAUCE metadata from the content. The record
	// stays available through Sauce().
	StripSAUCE bool
}

// Name is the display name of the document.
func (s *Source) Name() string { return s.name }

// Bytes returns the document content. Callers must not modify it.
func (s *Source) Bytes() []byte { return s.data }

// Len returns the content length in bytes.
func (s *Source) Len() int64 { return int64(len(s.data)) }

// Sauce returns the SAUCE record found at load time, or nil.
func (s *Source) Sauce() *sauce.Record { return s.sauce }

// FromBytes wraps data as a Source.
func FromBytes(name string, data []byte, opts Options) *Source {
	src := &Source{name: name, data: data}
	if rec, ok := sauce.Parse(data); ok {
		src.sauce = rec
		if opts.StripSAUCE {
			src.data = sauce.Strip(data)
		}
	}
	return src
}

// Open reads the file at path.
func Open(filePath string, opts Options) (*Source, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", filePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open %s: is a directory", filePath)
	}
	if info.Size() > MaxSize {
		return nil, fmt.Errorf("%s: %w (%d bytes)", filePath, ErrTooLarge, info.Size())
	}

	data, err := readLimited(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}
	logging.Debug("Loaded %s (%d bytes)", filePath, len(data))
	return FromBytes(filepath.Base(filePath), data, opts), nil
}

// OpenArchiveMember reads member from the archive at archivePath. The
// member name is matched case-insensitively against the cleaned path in
// the archive, or against its base name when member has no slash.
func OpenArchiveMember(ctx context.Context, archivePath, member string, opts Options) (*Source, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer f.Close()

	format, stream, err := archives.Identify(ctx, archivePath, f)
	if err != nil {
		if errors.Is(err, archives.NoMatch) {
			return nil, fmt.Errorf("%s: %w", archivePath, ErrNotArchive)
		}
		return nil, fmt.Errorf("identify %s: %w", archivePath, err)
	}
	extractor, ok := format.(archives.Extractor)
	if !ok {
		return nil, fmt.Errorf("%s: %w", archivePath, ErrNotArchive)
	}

	// stream is f itself, rewound, so zip and 7z get their random access.
	want := strings.ToLower(path.Clean(strings.ReplaceAll(member, "\\", "/")))
	matchBase := !strings.Contains(want, "/")

	var data []byte
	var found string
	err = extractor.Extract(ctx, stream, func(ctx context.Context, fi archives.FileInfo) error {
		if fi.IsDir() {
			return nil
		}
		name := strings.ToLower(path.Clean(fi.NameInArchive))
		if name != want && !(matchBase && path.Base(name) == want) {
			return nil
		}
		if fi.Size() > MaxSize {
			return fmt.Errorf("%s: %w (%d bytes)", fi.NameInArchive, ErrTooLarge, fi.Size())
		}
		rc, err := fi.Open()
		if err != nil {
			return fmt.Errorf("open member %s: %w", fi.NameInArchive, err)
		}
		defer rc.Close()
		data, err = readLimited(rc)
		if err != nil {
			return fmt.Errorf("read member %s: %w", fi.NameInArchive, err)
		}
		found = fi.NameInArchive
		return fs.SkipAll
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return nil, err
	}
	if found == "" {
		return nil, fmt.Errorf("%s in %s: %w", member, archivePath, ErrMemberNotFound)
	}

	logging.Debug("Loaded %s from %s (%d bytes)", found, archivePath, len(data))
	return FromBytes(filepath.Base(archivePath)+":"+found, data, opts), nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
