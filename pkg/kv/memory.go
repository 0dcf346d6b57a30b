package kv

import (
	"bytes"
	"context"
	"iter"
	"slices"
	"sync"
)

// Memory is an in-memory Store. It is safe for concurrent use and is the
// backend behind "memory://" profiles and most tests.
type Memory struct {
	mu   sync.RWMutex
	m    map[string][]byte
	opts *Options
}

// NewMemory creates an empty in-memory store. opts may be nil.
func NewMemory(opts *Options) *Memory {
	return &Memory{m: make(map[string][]byte), opts: opts}
}

func (s *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := string(s.opts.encode(key))
	s.mu.RLock()
	v, ok := s.m[k]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (s *Memory) Set(_ context.Context, key Key, value []byte) error {
	k := string(s.opts.encode(key))
	v := bytes.Clone(value)
	s.mu.Lock()
	s.m[k] = v
	s.mu.Unlock()
	return nil
}

func (s *Memory) Delete(_ context.Context, key Key) error {
	k := string(s.opts.encode(key))
	s.mu.Lock()
	delete(s.m, k)
	s.mu.Unlock()
	return nil
}

func (s *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := s.opts.scanPrefix(prefix)

	// Snapshot under the read lock so iteration never observes writes.
	s.mu.RLock()
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		if p == nil || bytes.HasPrefix([]byte(k), p) {
			keys = append(keys, k)
		}
	}
	vals := make(map[string][]byte, len(keys))
	for _, k := range keys {
		vals[k] = bytes.Clone(s.m[k])
	}
	s.mu.RUnlock()

	slices.Sort(keys)
	return func(yield func(Entry, error) bool) {
		for _, k := range keys {
			e := Entry{Key: s.opts.decode([]byte(k)), Value: vals[k]}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func (s *Memory) BatchSet(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.m[string(s.opts.encode(e.Key))] = bytes.Clone(e.Value)
	}
	return nil
}

func (s *Memory) BatchDelete(_ context.Context, keys []Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.m, string(s.opts.encode(k)))
	}
	return nil
}

func (s *Memory) Close() error { return nil }
