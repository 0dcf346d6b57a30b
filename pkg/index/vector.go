package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/parleyhq/parley/pkg/kv"
)

// Row is one indexed chunk.
type Row struct {
	ID     string    `msgpack:"id"`
	Source string    `msgpack:"source,omitempty"`
	Chunk  string    `msgpack:"chunk,omitempty"`
	Vector []float32 `msgpack:"vector"`
}

// Match is a scored search result. Score is cosine similarity in
// [-1, 1]; higher is closer.
type Match struct {
	Row
	Score float32
}

// VectorIndex is a brute-force cosine index. Rows live in memory for
// search and are persisted to kv, so an index survives restarts. Fine
// for local corpora up to a few tens of thousands of chunks.
//
// It is safe for concurrent use.
type VectorIndex struct {
	store kv.Store
	name  string

	mu   sync.RWMutex
	rows map[string]Row
}

// OpenVectorIndex loads the named index from store.
func OpenVectorIndex(ctx context.Context, store kv.Store, name string) (*VectorIndex, error) {
	x := &VectorIndex{
		store: store,
		name:  name,
		rows:  make(map[string]Row),
	}
	for entry, err := range store.List(ctx, rowPrefix(name)) {
		if err != nil {
			return nil, err
		}
		var row Row
		if err := msgpack.Unmarshal(entry.Value, &row); err != nil {
			return nil, err
		}
		x.rows[row.ID] = row
	}
	return x, nil
}

func rowKey(name, id string) kv.Key {
	return kv.Key{"index", name, "row", id}
}

func rowPrefix(name string) kv.Key {
	return kv.Key{"index", name, "row"}
}

// Name returns the index name.
func (x *VectorIndex) Name() string { return x.name }

// Insert adds or replaces a row.
func (x *VectorIndex) Insert(ctx context.Context, row Row) error {
	data, err := msgpack.Marshal(row)
	if err != nil {
		return err
	}
	if err := x.store.Set(ctx, rowKey(x.name, row.ID), data); err != nil {
		return err
	}
	x.mu.Lock()
	x.rows[row.ID] = row
	x.mu.Unlock()
	return nil
}

// BatchInsert adds or replaces several rows in one write.
func (x *VectorIndex) BatchInsert(ctx context.Context, rows []Row) error {
	entries := make([]kv.Entry, len(rows))
	for i, row := range rows {
		data, err := msgpack.Marshal(row)
		if err != nil {
			return err
		}
		entries[i] = kv.Entry{Key: rowKey(x.name, row.ID), Value: data}
	}
	if err := x.store.BatchSet(ctx, entries); err != nil {
		return err
	}
	x.mu.Lock()
	for _, row := range rows {
		x.rows[row.ID] = row
	}
	x.mu.Unlock()
	return nil
}

// Search returns the topK most similar rows, best first.
func (x *VectorIndex) Search(query []float32, topK int) []Match {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.rows) == 0 || topK <= 0 {
		return nil
	}
	matches := make([]Match, 0, len(x.rows))
	for _, row := range x.rows {
		matches = append(matches, Match{Row: row, Score: cosineSimilarity(query, row.Vector)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

// Delete removes a row. Missing IDs are not an error.
func (x *VectorIndex) Delete(ctx context.Context, id string) error {
	if err := x.store.Delete(ctx, rowKey(x.name, id)); err != nil {
		return err
	}
	x.mu.Lock()
	delete(x.rows, id)
	x.mu.Unlock()
	return nil
}

// DeleteSource removes every row of a source. It returns the number
// of rows removed.
func (x *VectorIndex) DeleteSource(ctx context.Context, source string) (int, error) {
	x.mu.RLock()
	var ids []string
	var keys []kv.Key
	for id, row := range x.rows {
		if row.Source == source {
			ids = append(ids, id)
			keys = append(keys, rowKey(x.name, id))
		}
	}
	x.mu.RUnlock()

	if len(ids) == 0 {
		return 0, nil
	}
	if err := x.store.BatchDelete(ctx, keys); err != nil {
		return 0, err
	}
	x.mu.Lock()
	for _, id := range ids {
		delete(x.rows, id)
	}
	x.mu.Unlock()
	return len(ids), nil
}

// Sources returns the distinct sources in the index, sorted.
func (x *VectorIndex) Sources() []string {
	x.mu.RLock()
	seen := make(map[string]struct{})
	for _, row := range x.rows {
		if row.Source != "" {
			seen[row.Source] = struct{}{}
		}
	}
	x.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of rows.
func (x *VectorIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.rows)
}

// cosineSimilarity returns the cosine of the angle between a and b,
// clamped to [-1, 1]. Mismatched lengths and zero vectors score 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return float32(sim)
}
