package feedstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"snapgrid/internal/localstore"
	"snapgrid/internal/logging"
)

// PostStore persists the post collection.
type PostStore struct {
	mu  sync.Mutex
	kv  localstore.KV
	lat Latencies
}

// NewPostStore constructs the store and seeds the collection from fixtures
// if the storage key is absent.
func NewPostStore(kv localstore.KV, opts Options) *PostStore {
	s := &PostStore{kv: kv, lat: opts.Latencies}
	if !opts.SkipSeed {
		seedCollection[Post](kv, KeyPosts, fixturePosts)
	}
	return s
}

// PostDraft carries the caller-supplied fields for Create. Zero-value fields
// fall back to defaults: UserID 1, Timestamp now, Hashtags empty.
type PostDraft struct {
	UserID    int
	ImageURL  string
	Caption   string
	Hashtags  []string
	Timestamp time.Time
}

// PostPatch is a partial update. Nil fields are left unchanged. Likes and
// Saved are deliberately absent: they change only through their toggles.
type PostPatch struct {
	ImageURL *string
	Caption  *string
	Hashtags []string
}

// GetAll returns every post, newest first.
func (s *PostStore) GetAll(ctx context.Context) ([]Post, error) {
	if err := delay(ctx, s.lat.Read); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := loadCollection[Post](s.kv, KeyPosts)
	if err != nil {
		return nil, err
	}

	out := make([]Post, len(posts))
	for i, p := range posts {
		out[i] = p.clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// GetByID returns one post, or ErrNotFound.
func (s *PostStore) GetByID(ctx context.Context, id int) (Post, error) {
	if err := delay(ctx, s.lat.Read); err != nil {
		return Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := loadCollection[Post](s.kv, KeyPosts)
	if err != nil {
		return Post{}, err
	}
	for _, p := range posts {
		if p.ID == id {
			return p.clone(), nil
		}
	}
	return Post{}, notFoundErr("post", id)
}

// Create appends a new post with the next monotonic ID.
func (s *PostStore) Create(ctx context.Context, draft PostDraft) (Post, error) {
	if err := delay(ctx, s.lat.Write); err != nil {
		return Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := loadCollection[Post](s.kv, KeyPosts)
	if err != nil {
		return Post{}, err
	}

	post := Post{
		ID:        nextID(postIDs(posts)),
		UserID:    draft.UserID,
		ImageURL:  draft.ImageURL,
		Caption:   draft.Caption,
		Hashtags:  append([]string{}, draft.Hashtags...),
		Likes:     0,
		Comments:  []int{},
		Timestamp: draft.Timestamp,
		Saved:     false,
	}
	if post.UserID == 0 {
		post.UserID = 1
	}
	if post.Timestamp.IsZero() {
		post.Timestamp = time.Now().UTC()
	}

	posts = append(posts, post)
	if err := saveCollection(s.kv, KeyPosts, posts); err != nil {
		return Post{}, err
	}

	logging.Store("post created: id=%d user=%d tags=%d", post.ID, post.UserID, len(post.Hashtags))
	return post.clone(), nil
}

// Update applies patch to the post. The ID is immutable.
func (s *PostStore) Update(ctx context.Context, id int, patch PostPatch) (Post, error) {
	if err := delay(ctx, s.lat.Mutate); err != nil {
		return Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := loadCollection[Post](s.kv, KeyPosts)
	if err != nil {
		return Post{}, err
	}

	idx := postIndex(posts, id)
	if idx < 0 {
		return Post{}, notFoundErr("post", id)
	}

	if patch.ImageURL != nil {
		posts[idx].ImageURL = *patch.ImageURL
	}
	if patch.Caption != nil {
		posts[idx].Caption = *patch.Caption
	}
	if patch.Hashtags != nil {
		posts[idx].Hashtags = append([]string{}, patch.Hashtags...)
	}

	if err := saveCollection(s.kv, KeyPosts, posts); err != nil {
		return Post{}, err
	}
	return posts[idx].clone(), nil
}

// Delete removes the post. Deleting an absent ID is a no-op.
func (s *PostStore) Delete(ctx context.Context, id int) error {
	if err := delay(ctx, s.lat.Mutate); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := loadCollection[Post](s.kv, KeyPosts)
	if err != nil {
		return err
	}

	kept := posts[:0]
	for _, p := range posts {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	return saveCollection(s.kv, KeyPosts, kept)
}

// ToggleLike flips the like aggregate: a liked post (likes > 0) loses one
// like, an unliked post gains one. Applying it twice restores the original
// count.
func (s *PostStore) ToggleLike(ctx context.Context, id int) (Post, error) {
	if err := delay(ctx, s.lat.Mutate); err != nil {
		return Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := loadCollection[Post](s.kv, KeyPosts)
	if err != nil {
		return Post{}, err
	}

	idx := postIndex(posts, id)
	if idx < 0 {
		return Post{}, notFoundErr("post", id)
	}

	if posts[idx].Likes > 0 {
		posts[idx].Likes--
	} else {
		posts[idx].Likes++
	}

	if err := saveCollection(s.kv, KeyPosts, posts); err != nil {
		return Post{}, err
	}
	logging.StoreDebug("post %d likes now %d", id, posts[idx].Likes)
	return posts[idx].clone(), nil
}

// ToggleSave flips the saved flag.
func (s *PostStore) ToggleSave(ctx context.Context, id int) (Post, error) {
	if err := delay(ctx, s.lat.Mutate); err != nil {
		return Post{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := loadCollection[Post](s.kv, KeyPosts)
	if err != nil {
		return Post{}, err
	}

	idx := postIndex(posts, id)
	if idx < 0 {
		return Post{}, notFoundErr("post", id)
	}

	posts[idx].Saved = !posts[idx].Saved

	if err := saveCollection(s.kv, KeyPosts, posts); err != nil {
		return Post{}, err
	}
	return posts[idx].clone(), nil
}

// Saved returns all bookmarked posts in storage order.
func (s *PostStore) Saved(ctx context.Context) ([]Post, error) {
	return s.filter(ctx, func(p Post) bool { return p.Saved })
}

// ByUser returns the user's posts in storage order (profile grid).
func (s *PostStore) ByUser(ctx context.Context, userID int) ([]Post, error) {
	return s.filter(ctx, func(p Post) bool { return p.UserID == userID })
}

// SearchByHashtag returns posts with a hashtag containing the query,
// case-insensitive.
func (s *PostStore) SearchByHashtag(ctx context.Context, hashtag string) ([]Post, error) {
	q := strings.ToLower(hashtag)
	return s.filter(ctx, func(p Post) bool {
		for _, tag := range p.Hashtags {
			if strings.Contains(strings.ToLower(tag), q) {
				return true
			}
		}
		return false
	})
}

// SearchByCaption returns posts whose caption contains the query,
// case-insensitive.
func (s *PostStore) SearchByCaption(ctx context.Context, query string) ([]Post, error) {
	q := strings.ToLower(query)
	return s.filter(ctx, func(p Post) bool {
		return strings.Contains(strings.ToLower(p.Caption), q)
	})
}

func (s *PostStore) filter(ctx context.Context, keep func(Post) bool) ([]Post, error) {
	if err := delay(ctx, s.lat.Read); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := loadCollection[Post](s.kv, KeyPosts)
	if err != nil {
		return nil, err
	}

	out := []Post{}
	for _, p := range posts {
		if keep(p) {
			out = append(out, p.clone())
		}
	}
	return out, nil
}

func postIDs(posts []Post) []int {
	ids := make([]int, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func postIndex(posts []Post, id int) int {
	for i, p := range posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}
