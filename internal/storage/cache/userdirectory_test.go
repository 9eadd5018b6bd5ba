package cache_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-recipe-notifier/internal/storage/cache"
	"github.com/tinywideclouds/go-recipe-notifier/pkg/dispatch"
)

// --- Mocks ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}
func (m *MockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockRealStore struct {
	mock.Mock
}

func (m *MockRealStore) ListUsers(ctx context.Context) ([]dispatch.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]dispatch.User), args.Error(1)
}
func (m *MockRealStore) GetUser(ctx context.Context, id string) (*dispatch.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dispatch.User), args.Error(1)
}
func (m *MockRealStore) ClearFCMToken(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *MockRealStore) SetFCMToken(ctx context.Context, id string, token string) error {
	return m.Called(ctx, id, token).Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCachedUserDirectory(t *testing.T) {
	ctx := context.Background()
	cacheKey := "recipes:users:X"

	t.Run("Cache hit skips the store", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedUserDirectory(mockDB, mockCache, time.Hour, newTestLogger())

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Run(func(args mock.Arguments) {
			*args.Get(2).(*dispatch.User) = dispatch.User{ID: "X", Nickname: "Mina"}
		}).Return(nil)

		u, err := store.GetUser(ctx, "X")

		require.NoError(t, err)
		assert.Equal(t, "Mina", u.Nickname)
		mockDB.AssertNotCalled(t, "GetUser", mock.Anything, mock.Anything)
	})

	t.Run("Cache miss reads through and fills", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedUserDirectory(mockDB, mockCache, time.Hour, newTestLogger())

		fresh := &dispatch.User{ID: "X", Nickname: "Mina"}
		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(cache.ErrMiss)
		mockDB.On("GetUser", ctx, "X").Return(fresh, nil)
		mockCache.On("Set", ctx, cacheKey, fresh, time.Hour).Return(nil)

		u, err := store.GetUser(ctx, "X")

		require.NoError(t, err)
		assert.Equal(t, fresh, u)
		mockCache.AssertExpectations(t)
	})

	t.Run("Broken cache never fails reads", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedUserDirectory(mockDB, mockCache, time.Hour, newTestLogger())

		fresh := &dispatch.User{ID: "X"}
		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(errors.New("connection refused"))
		mockDB.On("GetUser", ctx, "X").Return(fresh, nil)
		mockCache.On("Set", ctx, cacheKey, fresh, time.Hour).Return(errors.New("connection refused"))

		u, err := store.GetUser(ctx, "X")

		require.NoError(t, err)
		assert.Equal(t, fresh, u)
	})

	t.Run("Not found is passed through and not cached", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedUserDirectory(mockDB, mockCache, time.Hour, newTestLogger())

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(cache.ErrMiss)
		mockDB.On("GetUser", ctx, "X").Return(nil, dispatch.ErrNotFound)

		_, err := store.GetUser(ctx, "X")

		assert.ErrorIs(t, err, dispatch.ErrNotFound)
		mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ListUsers always reads the store", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedUserDirectory(mockDB, mockCache, time.Hour, newTestLogger())

		mockDB.On("ListUsers", ctx).Return([]dispatch.User{{ID: "A", FCMToken: "tokA"}}, nil)

		users, err := store.ListUsers(ctx)

		require.NoError(t, err)
		assert.Len(t, users, 1)
		assert.Empty(t, mockCache.Calls)
	})

	t.Run("Token writes invalidate immediately", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedUserDirectory(mockDB, mockCache, time.Hour, newTestLogger())

		mockDB.On("ClearFCMToken", ctx, "X").Return(nil)
		mockDB.On("SetFCMToken", ctx, "X", "tokX").Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(nil).Twice()

		require.NoError(t, store.ClearFCMToken(ctx, "X"))
		require.NoError(t, store.SetFCMToken(ctx, "X", "tokX"))

		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Failed store write leaves cache alone", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedUserDirectory(mockDB, mockCache, time.Hour, newTestLogger())

		mockDB.On("ClearFCMToken", ctx, "X").Return(errors.New("permission denied"))

		require.Error(t, store.ClearFCMToken(ctx, "X"))
		mockCache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
	})
}
