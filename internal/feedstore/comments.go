package feedstore

import (
	"context"
	"sync"
	"time"

	"snapgrid/internal/localstore"
	"snapgrid/internal/logging"
)

// CommentStore persists the comment collection.
type CommentStore struct {
	mu  sync.Mutex
	kv  localstore.KV
	lat Latencies
}

// NewCommentStore constructs the store, seeding from fixtures when absent.
func NewCommentStore(kv localstore.KV, opts Options) *CommentStore {
	s := &CommentStore{kv: kv, lat: opts.Latencies}
	if !opts.SkipSeed {
		seedCollection[Comment](kv, KeyComments, fixtureComments)
	}
	return s
}

// CommentDraft carries caller-supplied fields for Create.
// UserID defaults to 1 (the local account); Timestamp to now.
type CommentDraft struct {
	PostID    int
	UserID    int
	Text      string
	Timestamp time.Time
}

// GetAll returns every comment in storage order.
func (s *CommentStore) GetAll(ctx context.Context) ([]Comment, error) {
	if err := delay(ctx, s.lat.Read); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	comments, err := loadCollection[Comment](s.kv, KeyComments)
	if err != nil {
		return nil, err
	}
	return append([]Comment{}, comments...), nil
}

// GetByPostID returns the post's comments in storage order. A post ID with no
// comments (including a dangling one) yields an empty slice, not an error.
func (s *CommentStore) GetByPostID(ctx context.Context, postID int) ([]Comment, error) {
	if err := delay(ctx, s.lat.Read); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	comments, err := loadCollection[Comment](s.kv, KeyComments)
	if err != nil {
		return nil, err
	}

	out := []Comment{}
	for _, c := range comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Create appends a new comment with the next monotonic ID.
func (s *CommentStore) Create(ctx context.Context, draft CommentDraft) (Comment, error) {
	if err := delay(ctx, s.lat.Write); err != nil {
		return Comment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	comments, err := loadCollection[Comment](s.kv, KeyComments)
	if err != nil {
		return Comment{}, err
	}

	ids := make([]int, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
	}

	comment := Comment{
		ID:        nextID(ids),
		PostID:    draft.PostID,
		UserID:    draft.UserID,
		Text:      draft.Text,
		Timestamp: draft.Timestamp,
	}
	if comment.UserID == 0 {
		comment.UserID = 1
	}
	if comment.Timestamp.IsZero() {
		comment.Timestamp = time.Now().UTC()
	}

	comments = append(comments, comment)
	if err := saveCollection(s.kv, KeyComments, comments); err != nil {
		return Comment{}, err
	}

	logging.Store("comment created: id=%d post=%d", comment.ID, comment.PostID)
	return comment, nil
}

// Delete removes the comment. Deleting an absent ID is a no-op.
func (s *CommentStore) Delete(ctx context.Context, id int) error {
	if err := delay(ctx, s.lat.Mutate); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	comments, err := loadCollection[Comment](s.kv, KeyComments)
	if err != nil {
		return err
	}

	kept := comments[:0]
	for _, c := range comments {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	return saveCollection(s.kv, KeyComments, kept)
}
