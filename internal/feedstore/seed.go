package feedstore

import (
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"snapgrid/internal/localstore"
	"snapgrid/internal/logging"
)

// Bundled fixture data, used only for first-run seeding.
//
//go:embed fixtures/*.json
var fixtureFS embed.FS

// seedCollection writes the fixture collection under key if the key is
// absent. Fixture failures are recovered by seeding an empty collection:
// a local mock store must come up even when its sample data is broken.
func seedCollection[T any](kv localstore.KV, key string, load func() ([]T, error)) {
	_, ok, err := kv.Get(key)
	if err != nil {
		logging.SeedWarn("cannot check %s, skipping seed: %v", key, err)
		return
	}
	if ok {
		return // already seeded
	}

	records, err := load()
	if err != nil {
		logging.SeedWarn("fixture load failed for %s, seeding empty: %v", key, err)
		records = []T{}
	}

	if err := saveCollection(kv, key, records); err != nil {
		logging.SeedWarn("failed to seed %s: %v", key, err)
		return
	}
	logging.Seed("seeded %s with %d records", key, len(records))
}

// seedCurrentUser initializes the current-user scalar to the first seeded
// user when absent.
func seedCurrentUser(kv localstore.KV) {
	_, ok, err := kv.Get(KeyCurrentUser)
	if err != nil || ok {
		return
	}
	if err := kv.Set(KeyCurrentUser, []byte(strconv.Itoa(1))); err != nil {
		logging.SeedWarn("failed to seed current user: %v", err)
	}
}

func loadFixture[T any](name string) ([]T, error) {
	blob, err := fixtureFS.ReadFile("fixtures/" + name)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", name, err)
	}
	var records []T
	if err := json.Unmarshal(blob, &records); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", name, err)
	}
	return records, nil
}

func fixturePosts() ([]Post, error) {
	return loadFixture[Post]("posts.json")
}

func fixtureComments() ([]Comment, error) {
	return loadFixture[Comment]("comments.json")
}

// fixtureStories rebases the fixture timestamps against the current time so
// seeded stories begin inside their 24h activity window instead of expiring
// with the fixture file's age.
func fixtureStories() ([]Story, error) {
	stories, err := loadFixture[Story]("stories.json")
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range stories {
		stories[i].Timestamp = now.Add(-time.Duration(i+1) * 2 * time.Hour)
	}
	return stories, nil
}

func fixtureUsers() ([]User, error) {
	return loadFixture[User]("users.json")
}
