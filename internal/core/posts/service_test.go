package posts

import (
	"Fanvault/internal/core/readcache"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPostRepository struct {
	mock.Mock
}

func (m *mockPostRepository) Create(ctx context.Context, post *Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *mockPostRepository) GetByID(ctx context.Context, id string) (*Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Post), args.Error(1)
}

func (m *mockPostRepository) List(ctx context.Context, limit, offset int) ([]*Post, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Post), args.Error(1)
}

func (m *mockPostRepository) GetCounts(ctx context.Context, ids []string) (map[string]Counts, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]Counts), args.Error(1)
}

func (m *mockPostRepository) IncrementLikeCount(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPostRepository) DecrementLikeCount(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockPostRepository) ReconcileLikeCount(ctx context.Context, id string) (int, int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockPostRepository) ReconcileAllLikeCounts(ctx context.Context) ([]CountDrift, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]CountDrift), args.Error(1)
}

func testPosts() []*Post {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return []*Post{
		{ID: "p1", AuthorID: "creator-1", Title: "First", CreatedAt: created, LikeCount: 99},
		{ID: "p2", AuthorID: "creator-2", Title: "Second", CreatedAt: created},
	}
}

func TestListPosts_CachesListingButNotCounts(t *testing.T) {
	repo := new(mockPostRepository)
	cache := readcache.New(readcache.NewMemoryBackend())
	service := NewPostService(repo, cache, time.Minute, nil)
	ctx := context.Background()

	repo.On("List", mock.Anything, 20, 0).Return(testPosts(), nil).Once()
	repo.On("GetCounts", mock.Anything, []string{"p1", "p2"}).
		Return(map[string]Counts{"p1": {LikeCount: 5}, "p2": {LikeCount: 1, CommentCount: 2}}, nil).Once()
	repo.On("GetCounts", mock.Anything, []string{"p1", "p2"}).
		Return(map[string]Counts{"p1": {LikeCount: 6}, "p2": {LikeCount: 1, CommentCount: 2}}, nil).Once()

	first, err := service.ListPosts(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 5, first[0].LikeCount, "counter comes from GetCounts, not the listed row")

	second, err := service.ListPosts(ctx, 20, 0)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, 6, second[0].LikeCount)
	assert.Equal(t, "First", second[0].Title)

	repo.AssertNumberOfCalls(t, "List", 1)
	repo.AssertNumberOfCalls(t, "GetCounts", 2)
}

func TestListPosts_SkipsPostsDeletedSinceCaching(t *testing.T) {
	repo := new(mockPostRepository)
	service := NewPostService(repo, nil, 0, nil)

	repo.On("List", mock.Anything, 20, 0).Return(testPosts(), nil)
	repo.On("GetCounts", mock.Anything, []string{"p1", "p2"}).
		Return(map[string]Counts{"p2": {LikeCount: 3}}, nil)

	views, err := service.ListPosts(context.Background(), 20, 0)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "p2", views[0].ID)
}

func TestListPosts_InvalidateListingsForcesRefetch(t *testing.T) {
	repo := new(mockPostRepository)
	cache := readcache.New(readcache.NewMemoryBackend())
	service := NewPostService(repo, cache, time.Hour, nil)
	ctx := context.Background()

	repo.On("List", mock.Anything, 20, 0).Return(testPosts(), nil)
	repo.On("GetCounts", mock.Anything, mock.Anything).Return(map[string]Counts{"p1": {}, "p2": {}}, nil)

	_, err := service.ListPosts(ctx, 20, 0)
	require.NoError(t, err)
	service.InvalidateListings(ctx)
	_, err = service.ListPosts(ctx, 20, 0)
	require.NoError(t, err)

	repo.AssertNumberOfCalls(t, "List", 2)
}

func TestListPosts_Validation(t *testing.T) {
	service := NewPostService(new(mockPostRepository), nil, 0, nil)

	_, err := service.ListPosts(context.Background(), 101, 0)
	assert.True(t, IsValidationError(err))

	_, err = service.ListPosts(context.Background(), 10, -1)
	assert.True(t, IsValidationError(err))
}

func TestListPosts_RepositoryError(t *testing.T) {
	repo := new(mockPostRepository)
	service := NewPostService(repo, nil, 0, nil)
	boom := errors.New("connection reset")

	repo.On("List", mock.Anything, 20, 0).Return(nil, boom)

	_, err := service.ListPosts(context.Background(), 20, 0)
	assert.ErrorIs(t, err, boom)
}

func TestGetCounts_EmptyInput(t *testing.T) {
	repo := new(mockPostRepository)
	service := NewPostService(repo, nil, 0, nil)

	counts, err := service.GetCounts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, counts)
	repo.AssertNotCalled(t, "GetCounts", mock.Anything, mock.Anything)
}
