package feedstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"snapgrid/internal/localstore"
	"snapgrid/internal/logging"
)

// ErrNotFound is returned by lookups and mutations addressing an ID that is
// not in the collection. It is never retried internally.
var ErrNotFound = errors.New("not found")

// NotFound wraps ErrNotFound with the entity kind and ID.
func notFoundErr(entity string, id int) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// Latencies is the artificial delay applied per operation class to emulate a
// network backend. The zero value disables the delay entirely (tests).
type Latencies struct {
	Read   time.Duration // getAll / getByID / queries
	Write  time.Duration // create
	Mutate time.Duration // update / delete / toggles
}

// Options configures store construction.
type Options struct {
	Latencies Latencies

	// SkipSeed leaves absent collections empty instead of loading fixtures.
	SkipSeed bool
}

// Stores bundles the four entity stores over one KV.
type Stores struct {
	Posts    *PostStore
	Comments *CommentStore
	Stories  *StoryStore
	Users    *UserStore
}

// Open constructs all four stores over kv, seeding any absent collection
// synchronously from the bundled fixtures.
func Open(kv localstore.KV, opts Options) *Stores {
	return &Stores{
		Posts:    NewPostStore(kv, opts),
		Comments: NewCommentStore(kv, opts),
		Stories:  NewStoryStore(kv, opts),
		Users:    NewUserStore(kv, opts),
	}
}

// delay blocks for d, honoring context cancellation. A zero or negative d
// only checks the context.
func delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// loadCollection reads and decodes the JSON array under key. An absent key
// yields an empty slice; a malformed blob is recovered as an empty collection
// (apparent data loss beats a crashed app for a local mock store).
func loadCollection[T any](kv localstore.KV, key string) ([]T, error) {
	blob, ok, err := kv.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	if !ok || len(blob) == 0 {
		return []T{}, nil
	}

	var records []T
	if err := json.Unmarshal(blob, &records); err != nil {
		logging.StoreWarn("malformed blob under %s, treating as empty: %v", key, err)
		return []T{}, nil
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// saveCollection serializes records and writes the full array back under key.
func saveCollection[T any](kv localstore.KV, key string, records []T) error {
	blob, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := kv.Set(key, blob); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

// nextID returns max(existing)+1, or 1 for an empty collection.
func nextID(ids []int) int {
	max := 0
	for _, id := range ids {
		if id > max {
			max = id
		}
	}
	return max + 1
}
