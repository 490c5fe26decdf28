// Package patternsel selects and unselects file names by glob pattern, the
// way an orthodox file manager's "+" and "-" keys do.
package patternsel

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrBadPattern is returned for empty or malformed patterns.
var ErrBadPattern = errors.New("bad pattern")

// Mode says whether matching names are added to or removed from the
// selection.
type Mode int

const (
	Select Mode = iota
	Unselect
)

func (m Mode) String() string {
	if m == Unselect {
		return "unselect"
	}
	return "select"
}

// Selection is a set of selected names. The zero value is an empty
// selection ready to use.
type Selection struct {
	names map[string]struct{}
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{names: make(map[string]struct{})}
}

// Match reports whether the base name of name matches pattern.
func Match(pattern, name string, caseSensitive bool) (bool, error) {
	if strings.TrimSpace(pattern) == "" {
		return false, fmt.Errorf("%w: empty pattern", ErrBadPattern)
	}
	if !doublestar.ValidatePattern(pattern) {
		return false, fmt.Errorf("%w: %q", ErrBadPattern, pattern)
	}
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if !caseSensitive {
		pattern = strings.ToLower(pattern)
		base = strings.ToLower(base)
	}
	ok, err := doublestar.Match(pattern, base)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBadPattern, err)
	}
	return ok, nil
}

// Apply selects or unselects every name matching pattern and returns how
// many names changed state.
func (s *Selection) Apply(names []string, pattern string, mode Mode, caseSensitive bool) (int, error) {
	// Validate once up front so an empty list still reports bad patterns.
	if _, err := Match(pattern, "", caseSensitive); err != nil {
		return 0, err
	}

	s.init()
	changed := 0
	for _, name := range names {
		ok, err := Match(pattern, name, caseSensitive)
		if err != nil {
			return changed, err
		}
		if !ok {
			continue
		}
		_, was := s.names[name]
		switch mode {
		case Select:
			if !was {
				s.names[name] = struct{}{}
				changed++
			}
		case Unselect:
			if was {
				delete(s.names, name)
				changed++
			}
		}
	}
	return changed, nil
}

func (s *Selection) init() {
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
}

// Toggle flips the selection state of name and returns the new state.
func (s *Selection) Toggle(name string) bool {
	s.init()
	if _, ok := s.names[name]; ok {
		delete(s.names, name)
		return false
	}
	s.names[name] = struct{}{}
	return true
}

// Invert flips every name in names.
func (s *Selection) Invert(names []string) {
	for _, name := range names {
		s.Toggle(name)
	}
}

// IsSelected reports whether name is selected.
func (s *Selection) IsSelected(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Len returns the number of selected names.
func (s *Selection) Len() int { return len(s.names) }

// Clear empties the selection.
func (s *Selection) Clear() {
	clear(s.names)
}

// Names returns the selected names, sorted.
func (s *Selection) Names() []string {
	out := make([]string, 0, len(s.names))
	for name := range s.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
