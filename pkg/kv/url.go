package kv

import (
	"fmt"
	"strings"
)

// Open selects a backend from a URL:
//
//	memory://            in-memory store
//	badger:///path/to/db on-disk BadgerDB
//
// A bare path with no scheme opens BadgerDB at that path.
func Open(url string) (Store, error) {
	switch {
	case url == "" || url == "memory://":
		return NewMemory(nil), nil
	case strings.HasPrefix(url, "badger://"):
		dir := strings.TrimPrefix(url, "badger://")
		if dir == "" {
			return nil, fmt.Errorf("kv: badger url %q has no path", url)
		}
		return NewBadger(BadgerOptions{Dir: dir})
	case strings.Contains(url, "://"):
		return nil, fmt.Errorf("kv: unsupported store url %q", url)
	default:
		return NewBadger(BadgerOptions{Dir: url})
	}
}
