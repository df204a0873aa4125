package feedstore

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"snapgrid/internal/localstore"
	"snapgrid/internal/logging"
)

// UserStore persists the user collection plus the current-user scalar key.
// Users are seeded from fixtures and never created at runtime; only profile
// updates mutate the collection.
type UserStore struct {
	mu  sync.Mutex
	kv  localstore.KV
	lat Latencies
}

// NewUserStore constructs the store, seeding users and the current-user key
// (first seeded user) when absent.
func NewUserStore(kv localstore.KV, opts Options) *UserStore {
	s := &UserStore{kv: kv, lat: opts.Latencies}
	if !opts.SkipSeed {
		seedCollection[User](kv, KeyUsers, fixtureUsers)
		seedCurrentUser(kv)
	}
	return s
}

// UserPatch is a partial profile update. Nil fields are left unchanged.
// Follower/following counts are fixture-owned and not patchable.
type UserPatch struct {
	Username   *string
	Bio        *string
	ProfilePic *string
}

// GetAll returns every user in storage order.
func (s *UserStore) GetAll(ctx context.Context) ([]User, error) {
	if err := delay(ctx, s.lat.Read); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := loadCollection[User](s.kv, KeyUsers)
	if err != nil {
		return nil, err
	}
	return append([]User{}, users...), nil
}

// GetByID returns one user, or ErrNotFound.
func (s *UserStore) GetByID(ctx context.Context, id int) (User, error) {
	if err := delay(ctx, s.lat.Read); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := loadCollection[User](s.kv, KeyUsers)
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return User{}, notFoundErr("user", id)
}

// Update applies patch to the user. The ID is immutable.
func (s *UserStore) Update(ctx context.Context, id int, patch UserPatch) (User, error) {
	if err := delay(ctx, s.lat.Mutate); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := loadCollection[User](s.kv, KeyUsers)
	if err != nil {
		return User{}, err
	}

	for i := range users {
		if users[i].ID != id {
			continue
		}
		if patch.Username != nil {
			users[i].Username = *patch.Username
		}
		if patch.Bio != nil {
			users[i].Bio = *patch.Bio
		}
		if patch.ProfilePic != nil {
			users[i].ProfilePic = *patch.ProfilePic
		}
		if err := saveCollection(s.kv, KeyUsers, users); err != nil {
			return User{}, err
		}
		logging.Store("user %d profile updated", id)
		return users[i], nil
	}
	return User{}, notFoundErr("user", id)
}

// CurrentUserID returns the ID stored under the current-user key,
// falling back to 1 when the key is absent or unreadable.
func (s *UserStore) CurrentUserID() int {
	blob, ok, err := s.kv.Get(KeyCurrentUser)
	if err != nil || !ok {
		return 1
	}
	id, err := strconv.Atoi(strings.TrimSpace(string(blob)))
	if err != nil || id <= 0 {
		logging.StoreWarn("malformed current-user key %q, falling back to 1", blob)
		return 1
	}
	return id
}

// SetCurrentUser persists a new current-user ID.
func (s *UserStore) SetCurrentUser(id int) error {
	return s.kv.Set(KeyCurrentUser, []byte(strconv.Itoa(id)))
}

// CurrentUser returns the current user's record.
func (s *UserStore) CurrentUser(ctx context.Context) (User, error) {
	return s.GetByID(ctx, s.CurrentUserID())
}

// UpdateProfile applies patch to the current user.
func (s *UserStore) UpdateProfile(ctx context.Context, patch UserPatch) (User, error) {
	return s.Update(ctx, s.CurrentUserID(), patch)
}

// Search returns users whose username or bio contains the query,
// case-insensitive, in storage order.
func (s *UserStore) Search(ctx context.Context, query string) ([]User, error) {
	if err := delay(ctx, s.lat.Read); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := loadCollection[User](s.kv, KeyUsers)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	out := []User{}
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.Bio), q) {
			out = append(out, u)
		}
	}
	return out, nil
}
