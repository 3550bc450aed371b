// Package compare decides whether a program's output matches the expected output.
package compare

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownComparator is returned when a comparator name is not registered.
var ErrUnknownComparator = errors.New("unknown comparator")

// Default is the comparator used when none is requested.
const Default = "exact"

// Comparator reports whether actual output is acceptable for expected output.
type Comparator interface {
	Compare(actual, expected string) bool
}

// Func adapts a plain function to the Comparator interface.
type Func func(actual, expected string) bool

func (f Func) Compare(actual, expected string) bool {
	return f(actual, expected)
}

// Exact matches after trimming trailing whitespace at the end of the output.
// Whitespace inside the output is significant.
func Exact(actual, expected string) bool {
	return trimTrailing(actual) == trimTrailing(expected)
}

// Tokens matches when both outputs split into the same whitespace-separated tokens.
func Tokens(actual, expected string) bool {
	a := strings.Fields(actual)
	e := strings.Fields(expected)
	if len(a) != len(e) {
		return false
	}
	for i := range a {
		if a[i] != e[i] {
			return false
		}
	}
	return true
}

// Lines matches line by line, ignoring trailing spaces on each line and
// trailing blank lines.
func Lines(actual, expected string) bool {
	a := splitLines(actual)
	e := splitLines(expected)
	if len(a) != len(e) {
		return false
	}
	for i := range a {
		if a[i] != e[i] {
			return false
		}
	}
	return true
}

func trimTrailing(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(trimTrailing(s), "\r\n", "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return lines
}

// Registry resolves comparators by name.
type Registry struct {
	comparators map[string]Comparator
}

// NewRegistry returns a registry holding the built-in comparators.
func NewRegistry() *Registry {
	return &Registry{
		comparators: map[string]Comparator{
			"exact":  Func(Exact),
			"tokens": Func(Tokens),
			"lines":  Func(Lines),
		},
	}
}

// Register adds or replaces a comparator.
func (r *Registry) Register(name string, c Comparator) error {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return fmt.Errorf("compare: comparator name is required")
	}
	if c == nil {
		return fmt.Errorf("compare: comparator %q is nil", name)
	}
	r.comparators[name] = c
	return nil
}

// Resolve returns the named comparator. An empty name selects Default.
func (r *Registry) Resolve(name string) (Comparator, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		name = Default
	}
	c, ok := r.comparators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComparator, name)
	}
	return c, nil
}

// Names lists the registered comparators in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.comparators))
	for name := range r.comparators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
