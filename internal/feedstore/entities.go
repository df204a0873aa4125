// Package feedstore implements the entity stores backing the snapgrid feed:
// Posts, Comments, Stories and Users, each persisted as one JSON array under
// a dedicated key in a localstore.KV. The contract deliberately mimics a mock
// network backend: every operation carries a configurable artificial latency,
// reads return defensive copies, and mutations are full read-modify-write
// cycles over the serialized collection, guarded by a per-store mutex.
package feedstore

import "time"

// Storage keys, one per collection, plus the current-user scalar.
const (
	KeyPosts       = "snapgrid_posts"
	KeyComments    = "snapgrid_comments"
	KeyStories     = "snapgrid_stories"
	KeyUsers       = "snapgrid_users"
	KeyCurrentUser = "snapgrid_current_user"
)

// StoryType discriminates story content.
type StoryType string

const (
	StoryImage StoryType = "image"
	StoryText  StoryType = "text"
)

// StoryActiveWindow is how long a story stays visible after creation.
const StoryActiveWindow = 24 * time.Hour

// Post is a feed entry. Likes is a per-post aggregate, not a per-user
// relation; Saved is the current user's bookmark flag.
type Post struct {
	ID        int       `json:"Id"`
	UserID    int       `json:"userId"`
	ImageURL  string    `json:"imageUrl"`
	Caption   string    `json:"caption"`
	Hashtags  []string  `json:"hashtags"`
	Likes     int       `json:"likes"`
	Comments  []int     `json:"comments"` // comment IDs, denormalized count source
	Timestamp time.Time `json:"timestamp"`
	Saved     bool      `json:"saved"`
}

// clone returns a deep copy so callers never alias stored state.
func (p Post) clone() Post {
	out := p
	out.Hashtags = append([]string(nil), p.Hashtags...)
	out.Comments = append([]int(nil), p.Comments...)
	return out
}

// Comment belongs to a post. PostID and UserID are not referentially
// enforced; consumers must tolerate dangling references.
type Comment struct {
	ID        int       `json:"Id"`
	PostID    int       `json:"postId"`
	UserID    int       `json:"userId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Story is an ephemeral item: active while now-Timestamp < StoryActiveWindow,
// excluded from reads but never deleted once expired.
type Story struct {
	ID        int       `json:"Id"`
	UserID    int       `json:"userId"`
	Content   string    `json:"content"` // image URL or text body, per Type
	Type      StoryType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Viewed    bool      `json:"viewed"`
}

// Active reports whether the story is still within its visibility window.
func (s Story) Active(now time.Time) bool {
	return now.Sub(s.Timestamp) < StoryActiveWindow
}

// User is a profile record.
type User struct {
	ID         int    `json:"Id"`
	Username   string `json:"username"`
	Bio        string `json:"bio"`
	ProfilePic string `json:"profilePic"`
	Followers  int    `json:"followers"`
	Following  int    `json:"following"`
}
