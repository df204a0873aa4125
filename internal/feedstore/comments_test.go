package feedstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentCreateAndFetchByPost(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)

	post, err := s.Posts.Create(ctx, PostDraft{Caption: "discussable"})
	require.NoError(t, err)

	first, err := s.Comments.Create(ctx, CommentDraft{PostID: post.ID, UserID: 2, Text: "nice"})
	require.NoError(t, err)
	second, err := s.Comments.Create(ctx, CommentDraft{PostID: post.ID, UserID: 3, Text: "agreed"})
	require.NoError(t, err)
	assert.Equal(t, first.ID+1, second.ID)

	comments, err := s.Comments.GetByPostID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "nice", comments[0].Text)
	assert.Equal(t, "agreed", comments[1].Text)
}

func TestCommentDanglingPostYieldsEmptySlice(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)

	_, err := s.Comments.Create(ctx, CommentDraft{PostID: 777, Text: "orphan"})
	require.NoError(t, err, "referential integrity is not enforced")

	comments, err := s.Comments.GetByPostID(ctx, 12345)
	require.NoError(t, err)
	assert.NotNil(t, comments)
	assert.Empty(t, comments)
}

func TestCommentDefaults(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)

	c, err := s.Comments.Create(ctx, CommentDraft{PostID: 1, Text: "defaults"})
	require.NoError(t, err)
	assert.Equal(t, 1, c.UserID)
	assert.False(t, c.Timestamp.IsZero())
}

func TestCommentDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStores(t)

	c, err := s.Comments.Create(ctx, CommentDraft{PostID: 1, Text: "regret"})
	require.NoError(t, err)

	require.NoError(t, s.Comments.Delete(ctx, c.ID))
	require.NoError(t, s.Comments.Delete(ctx, c.ID), "double delete is a no-op")

	all, err := s.Comments.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
