// Package convo stores chat conversations. Each thread keeps its
// messages in a kv store keyed by nanosecond timestamp, so listing a
// thread yields chronological order for free. A revert point written
// on every user message supports the regenerate flow: Revert drops the
// last user message and everything after it.
package convo

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/parleyhq/parley/pkg/kv"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role   `json:"role" msgpack:"role"`
	Name    string `json:"name,omitempty" msgpack:"name,omitempty"`
	Content string `json:"content,omitempty" msgpack:"content,omitempty"`

	// Timestamp is the Unix timestamp in nanoseconds when this message
	// was created. Zero means "now" on Append.
	Timestamp int64 `json:"ts" msgpack:"ts"`

	// Tool call fields (only used when Role == RoleTool).
	ToolCallID string `json:"tc_id,omitempty" msgpack:"tc_id,omitempty"`
	ToolName   string `json:"tc_name,omitempty" msgpack:"tc_name,omitempty"`

	Meta *Meta `json:"meta,omitempty" msgpack:"meta,omitempty"`
}

// Meta carries extras attached to a message.
type Meta struct {
	// Citations collected from a model response.
	Citations []Citation `json:"citations,omitempty" msgpack:"citations,omitempty"`

	// Attachments are storage paths of files sent with the message.
	Attachments []string `json:"attachments,omitempty" msgpack:"attachments,omitempty"`

	// Audio is the storage path of the spoken form, when one exists.
	Audio string `json:"audio,omitempty" msgpack:"audio,omitempty"`
}

// Citation is a source reference in a model response.
type Citation struct {
	Title string `json:"title,omitempty" msgpack:"title,omitempty"`
	URL   string `json:"url,omitempty" msgpack:"url,omitempty"`
}

// Time returns the message timestamp as a time.Time.
func (m Message) Time() time.Time {
	return time.Unix(0, m.Timestamp)
}

var nowNano = func() int64 {
	return time.Now().UnixNano()
}

// Store reads and writes the messages of one thread.
type Store struct {
	store kv.Store
	id    string
}

// NewStore opens the message store for a thread ID, without checking
// that the thread exists. Threads.Open is the checked path.
func NewStore(store kv.Store, threadID string) *Store {
	return &Store{store: store, id: threadID}
}

// ThreadID returns the thread this store belongs to.
func (s *Store) ThreadID() string { return s.id }

// Append stores a message. A zero Timestamp is set to the current
// time. User messages save a revert point so Revert can undo back to
// this message. The thread record, when present, is touched so that
// thread listings sort by activity.
func (s *Store) Append(ctx context.Context, msg Message) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = nowNano()
	}

	data, err := msgpack.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, msgKey(s.id, msg.Timestamp), data); err != nil {
		return err
	}

	if msg.Role == RoleUser {
		ts := strconv.FormatInt(msg.Timestamp, 10)
		if err := s.store.Set(ctx, revertKey(s.id), []byte(ts)); err != nil {
			return err
		}
	}

	return s.touchThread(ctx, msg)
}

// Messages yields every message in chronological order. Undecodable
// entries yield an error and iteration continues at the caller's
// discretion.
func (s *Store) Messages(ctx context.Context) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for entry, err := range s.store.List(ctx, msgPrefix(s.id)) {
			if err != nil {
				yield(Message{}, err)
				return
			}
			var msg Message
			if err := msgpack.Unmarshal(entry.Value, &msg); err != nil {
				if !yield(Message{}, err) {
					return
				}
				continue
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// Recent returns the n most recent messages in chronological order
// (oldest first). If fewer than n exist, all are returned.
func (s *Store) Recent(ctx context.Context, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}

	var all []Message
	for entry, err := range s.store.List(ctx, msgPrefix(s.id)) {
		if err != nil {
			return nil, err
		}
		var msg Message
		if err := msgpack.Unmarshal(entry.Value, &msg); err != nil {
			continue
		}
		all = append(all, msg)
	}

	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

// Count returns the number of messages in the thread.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	for _, err := range s.store.List(ctx, msgPrefix(s.id)) {
		if err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

// Revert removes the most recent model response(s) and the user
// message that triggered them. Nothing happens when no revert point
// exists.
func (s *Store) Revert(ctx context.Context) error {
	data, err := s.store.Get(ctx, revertKey(s.id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return err
	}
	revertTS, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}

	var toDelete []kv.Key
	for entry, err := range s.store.List(ctx, msgPrefix(s.id)) {
		if err != nil {
			return err
		}
		ts, err := strconv.ParseInt(entry.Key[len(entry.Key)-1], 10, 64)
		if err != nil {
			continue
		}
		if ts >= revertTS {
			toDelete = append(toDelete, entry.Key)
		}
	}
	if len(toDelete) == 0 {
		return nil
	}
	if err := s.store.BatchDelete(ctx, toDelete); err != nil {
		return err
	}

	// Move the revert point to the previous user message.
	var latestUserTS int64
	for entry, err := range s.store.List(ctx, msgPrefix(s.id)) {
		if err != nil {
			return err
		}
		var msg Message
		if err := msgpack.Unmarshal(entry.Value, &msg); err != nil {
			continue
		}
		if msg.Role == RoleUser && msg.Timestamp > latestUserTS {
			latestUserTS = msg.Timestamp
		}
	}
	if latestUserTS > 0 {
		ts := strconv.FormatInt(latestUserTS, 10)
		return s.store.Set(ctx, revertKey(s.id), []byte(ts))
	}
	return s.store.Delete(ctx, revertKey(s.id))
}

// Clear removes all messages and the revert point.
func (s *Store) Clear(ctx context.Context) error {
	var keys []kv.Key
	for entry, err := range s.store.List(ctx, msgPrefix(s.id)) {
		if err != nil {
			return err
		}
		keys = append(keys, entry.Key)
	}
	keys = append(keys, revertKey(s.id))
	return s.store.BatchDelete(ctx, keys)
}

// touchThread bumps the thread's UpdatedAt and fills an empty title
// from the first user message. Standalone stores without a thread
// record skip this.
func (s *Store) touchThread(ctx context.Context, msg Message) error {
	data, err := s.store.Get(ctx, threadKey(s.id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return err
	}
	var th Thread
	if err := msgpack.Unmarshal(data, &th); err != nil {
		return err
	}
	th.UpdatedAt = msg.Timestamp
	if th.Title == "" && msg.Role == RoleUser {
		th.Title = titleFrom(msg.Content)
	}
	data, err = msgpack.Marshal(th)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, threadKey(s.id), data)
}

const maxTitleRunes = 80

// titleFrom derives a thread title from the first line of content.
func titleFrom(content string) string {
	for i, r := range content {
		if r == '\n' {
			content = content[:i]
			break
		}
	}
	runes := []rune(content)
	if len(runes) > maxTitleRunes {
		return string(runes[:maxTitleRunes]) + "..."
	}
	return content
}
