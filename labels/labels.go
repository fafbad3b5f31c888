// Package labels holds the label vocabulary for a token classification task.
//
// The vocabulary is established once, at dataset loading time, and then
// shared read-only by the tokenization, decoding and metric components.
// A Scheme is immutable after construction.
package labels

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// IgnoreIndex is the sentinel label id for positions excluded from loss and
// metric computation (padding, special tokens). It is never a valid index
// into a Scheme.
const IgnoreIndex = -100

// Outside is the label marking tokens that belong to no entity.
const Outside = "O"

// Scheme is an ordered, index-addressable BIO label vocabulary.
// Each label is either "O", a "B-<TYPE>" or an "I-<TYPE>".
type Scheme struct {
	names []string
	ids   map[string]int
}

// New builds a Scheme from an ordered label list. The list is copied, so the
// caller may reuse its slice.
func New(names []string) (*Scheme, error) {
	if len(names) == 0 {
		return nil, errors.New("label scheme must have at least one label")
	}
	s := &Scheme{
		names: make([]string, len(names)),
		ids:   make(map[string]int, len(names)),
	}
	copy(s.names, names)
	for id, name := range s.names {
		if name == "" {
			return nil, errors.Errorf("empty label name at index %d", id)
		}
		if prev, found := s.ids[name]; found {
			return nil, errors.Errorf("duplicate label %q at indices %d and %d", name, prev, id)
		}
		s.ids[name] = id
	}
	return s, nil
}

// MSRA returns the label scheme of the MSRA NER dataset, the default corpus
// for Chinese token classification runs.
func MSRA() *Scheme {
	s, _ := New([]string{"B-PER", "I-PER", "B-ORG", "I-ORG", "B-LOC", "I-LOC", "O"})
	return s
}

// FromFile loads a Scheme from a text file with one label per line.
// Blank lines are skipped.
func FromFile(path string) (*Scheme, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open labels file %q", path)
	}
	defer f.Close()
	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read labels file %q", path)
	}
	s, err := New(names)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid labels file %q", path)
	}
	return s, nil
}

// Len returns the number of labels.
func (s *Scheme) Len() int { return len(s.names) }

// Names returns a copy of the ordered label list.
func (s *Scheme) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// Name returns the label at the given id.
// It fails when id is out of range; IgnoreIndex is never a valid id.
func (s *Scheme) Name(id int) (string, error) {
	if id < 0 || id >= len(s.names) {
		return "", errors.Errorf("label id %d out of range [0, %d)", id, len(s.names))
	}
	return s.names[id], nil
}

// ID returns the id of the given label name.
func (s *Scheme) ID(name string) (int, error) {
	id, found := s.ids[name]
	if !found {
		return 0, errors.Errorf("label %q not in scheme", name)
	}
	return id, nil
}

// NoEntityID returns the id of the "O" label.
func (s *Scheme) NoEntityID() (int, error) {
	return s.ID(Outside)
}

// Valid reports whether id is a valid index into the scheme.
func (s *Scheme) Valid(id int) bool {
	return id >= 0 && id < len(s.names)
}

// IsOutside reports whether the label name is the outside marker.
func IsOutside(name string) bool { return name == Outside }

// IsBegin reports whether the label name opens an entity.
func IsBegin(name string) bool { return strings.HasPrefix(name, "B-") }

// IsInside reports whether the label name continues an entity.
func IsInside(name string) bool { return strings.HasPrefix(name, "I-") }

// EntityType returns the type of a B- or I- label ("PER" for "B-PER"),
// or the empty string for "O" and anything without a recognized prefix.
func EntityType(name string) string {
	if IsBegin(name) || IsInside(name) {
		return name[2:]
	}
	return ""
}
