package convo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/parleyhq/parley/pkg/kv"
)

// Thread is the record of a named conversation.
type Thread struct {
	ID        string `json:"id" msgpack:"id"`
	Title     string `json:"title,omitempty" msgpack:"title,omitempty"`
	CreatedAt int64  `json:"created_at" msgpack:"created_at"`
	UpdatedAt int64  `json:"updated_at" msgpack:"updated_at"`
}

// Threads manages the set of conversations in a kv store.
type Threads struct {
	store kv.Store
}

// NewThreads creates a thread manager over store.
func NewThreads(store kv.Store) *Threads {
	return &Threads{store: store}
}

// New creates a thread and returns its message store. An empty title
// is filled from the first user message appended.
func (t *Threads) New(ctx context.Context, title string) (*Store, error) {
	now := nowNano()
	th := Thread{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := msgpack.Marshal(th)
	if err != nil {
		return nil, err
	}
	if err := t.store.Set(ctx, threadKey(th.ID), data); err != nil {
		return nil, err
	}
	return NewStore(t.store, th.ID), nil
}

// Open returns the message store for an existing thread.
func (t *Threads) Open(ctx context.Context, id string) (*Store, error) {
	if _, err := t.Get(ctx, id); err != nil {
		return nil, err
	}
	return NewStore(t.store, id), nil
}

// Get returns a thread record.
func (t *Threads) Get(ctx context.Context, id string) (Thread, error) {
	data, err := t.store.Get(ctx, threadKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return Thread{}, fmt.Errorf("convo: thread %s: %w", id, kv.ErrNotFound)
		}
		return Thread{}, err
	}
	var th Thread
	if err := msgpack.Unmarshal(data, &th); err != nil {
		return Thread{}, err
	}
	return th, nil
}

// List returns all threads, most recently active first.
func (t *Threads) List(ctx context.Context) ([]Thread, error) {
	var threads []Thread
	for entry, err := range t.store.List(ctx, threadPrefix()) {
		if err != nil {
			return nil, err
		}
		var th Thread
		if err := msgpack.Unmarshal(entry.Value, &th); err != nil {
			continue
		}
		threads = append(threads, th)
	}
	sort.Slice(threads, func(i, j int) bool {
		return threads[i].UpdatedAt > threads[j].UpdatedAt
	})
	return threads, nil
}

// Remove deletes a thread and all its messages.
func (t *Threads) Remove(ctx context.Context, id string) error {
	if err := NewStore(t.store, id).Clear(ctx); err != nil {
		return err
	}
	return t.store.Delete(ctx, threadKey(id))
}
