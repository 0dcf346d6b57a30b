// Package trie implements a segment trie for name routing. Patterns are
// '/'-separated segments with two wildcards: "+" matches exactly one segment
// and a trailing "#" matches everything below. The voice mux routes
// "provider/model" names through it.
package trie

import (
	"errors"
	"sort"
	"strings"
)

// ErrBadPattern reports a malformed pattern ("#" not in last position, or an
// empty segment).
var ErrBadPattern = errors.New("trie: bad pattern")

// Trie maps '/'-separated patterns to values of type T.
type Trie[T any] struct {
	root node[T]
	size int
}

type node[T any] struct {
	kids map[string]*node[T]
	one  *node[T] // "+"
	rest *node[T] // "#"
	set  bool
	val  T
}

// New creates an empty trie.
func New[T any]() *Trie[T] {
	return &Trie[T]{}
}

func splitPattern(p string) ([]string, error) {
	if p == "" {
		return nil, nil
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if s == "" {
			return nil, ErrBadPattern
		}
		if s == "#" && i != len(segs)-1 {
			return nil, ErrBadPattern
		}
	}
	return segs, nil
}

// Set stores v at pattern, replacing any previous value.
func (t *Trie[T]) Set(pattern string, v T) error {
	segs, err := splitPattern(pattern)
	if err != nil {
		return err
	}
	n := &t.root
	for _, s := range segs {
		switch s {
		case "+":
			if n.one == nil {
				n.one = &node[T]{}
			}
			n = n.one
		case "#":
			if n.rest == nil {
				n.rest = &node[T]{}
			}
			n = n.rest
		default:
			if n.kids == nil {
				n.kids = make(map[string]*node[T])
			}
			kid, ok := n.kids[s]
			if !ok {
				kid = &node[T]{}
				n.kids[s] = kid
			}
			n = kid
		}
	}
	if !n.set {
		t.size++
	}
	n.set = true
	n.val = v
	return nil
}

// Get returns the value matched by path. Exact segments win over "+", which
// wins over "#".
func (t *Trie[T]) Get(path string) (T, bool) {
	_, v, ok := t.Match(path)
	return v, ok
}

// Match returns the winning pattern and its value for path.
func (t *Trie[T]) Match(path string) (pattern string, v T, ok bool) {
	var segs []string
	if path != "" {
		segs = strings.Split(path, "/")
	}
	return t.root.match(nil, segs)
}

func (n *node[T]) match(matched, segs []string) (string, T, bool) {
	if len(segs) == 0 {
		if n.set {
			return strings.Join(matched, "/"), n.val, true
		}
		var zero T
		return "", zero, false
	}
	first, rest := segs[0], segs[1:]
	if kid, ok := n.kids[first]; ok {
		if p, v, ok := kid.match(append(matched, first), rest); ok {
			return p, v, true
		}
	}
	if n.one != nil {
		if p, v, ok := n.one.match(append(matched, "+"), rest); ok {
			return p, v, true
		}
	}
	if n.rest != nil && n.rest.set {
		return strings.Join(append(matched, "#"), "/"), n.rest.val, true
	}
	var zero T
	return "", zero, false
}

// Delete removes the value at exactly pattern. It reports whether a value
// was present.
func (t *Trie[T]) Delete(pattern string) bool {
	segs, err := splitPattern(pattern)
	if err != nil {
		return false
	}
	n := &t.root
	for _, s := range segs {
		switch s {
		case "+":
			n = n.one
		case "#":
			n = n.rest
		default:
			n = n.kids[s]
		}
		if n == nil {
			return false
		}
	}
	if !n.set {
		return false
	}
	n.set = false
	var zero T
	n.val = zero
	t.size--
	return true
}

// Len reports the number of stored patterns.
func (t *Trie[T]) Len() int { return t.size }

// Walk visits every stored pattern and value.
func (t *Trie[T]) Walk(fn func(pattern string, v T)) {
	t.root.walk(nil, fn)
}

func (n *node[T]) walk(path []string, fn func(string, T)) {
	if n.set {
		fn(strings.Join(path, "/"), n.val)
	}
	for seg, kid := range n.kids {
		kid.walk(append(path, seg), fn)
	}
	if n.one != nil {
		n.one.walk(append(path, "+"), fn)
	}
	if n.rest != nil {
		n.rest.walk(append(path, "#"), fn)
	}
}

// Patterns returns all stored patterns, sorted.
func (t *Trie[T]) Patterns() []string {
	var out []string
	t.Walk(func(p string, _ T) { out = append(out, p) })
	sort.Strings(out)
	return out
}
