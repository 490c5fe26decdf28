package browser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrOutsideRoot is returned for paths that escape the browser root.
var ErrOutsideRoot = errors.New("path outside root")

// Entry is one line of a directory listing.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
}

// readDir lists dir with directories first, each group sorted by name
// ignoring case.
func readDir(dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		e := Entry{Name: de.Name(), IsDir: de.IsDir()}
		if info, err := de.Info(); err == nil {
			if !e.IsDir && info.Mode()&os.ModeSymlink != 0 {
				if st, err := os.Stat(filepath.Join(dir, de.Name())); err == nil {
					e.IsDir = st.IsDir()
					info = st
				}
			}
			if !e.IsDir {
				e.Size = info.Size()
			}
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	return entries, nil
}

// resolveWithin resolves p, following symlinks, and verifies the result
// lies inside root. root must already be resolved.
func resolveWithin(root, p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return resolved, nil
}

// ResolvePath joins a client-supplied relative path onto root and
// confines it there. Absolute paths are treated as relative to root.
func ResolvePath(root, name string) (string, error) {
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", err
	}
	clean := filepath.Clean(string(filepath.Separator) + filepath.FromSlash(name))
	return resolveWithin(resolvedRoot, filepath.Join(resolvedRoot, clean))
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%c", float64(n)/float64(div), "KMGTPE"[exp])
}
