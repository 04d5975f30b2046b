package waitlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/internal/models"
	"github.com/akeren/waitlist-api/pkg/constants"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var fixedNow = time.Date(2026, 3, 10, 15, 4, 5, 0, time.Local)

func newServiceUnderTest(t *testing.T, cache StatsCache) (*waitlistService, *MockWaitlistRepository, *prometheus.Registry) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockRepo := NewMockWaitlistRepository(ctrl)
	mockRepo.EXPECT().Name().Return(BackendFile).AnyTimes()

	reg := prometheus.NewRegistry()
	svc := NewWaitlistService(log.NewDiscardLogger(), mockRepo, cache, 30*time.Second, NewMetrics(reg)).(*waitlistService)
	svc.now = func() time.Time { return fixedNow }

	return svc, mockRepo, reg
}

func TestWaitlistService_Join(t *testing.T) {
	t.Run("new signup", func(t *testing.T) {
		cache := newMemCache()
		cache.values[constants.WaitlistStatsCacheKey] = `{"day":"2026-03-10","total":2,"joinedToday":2}`
		svc, mockRepo, reg := newServiceUnderTest(t, cache)

		mockRepo.EXPECT().
			Join(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e *models.WaitlistEntry) (*JoinResult, error) {
				assert.Equal(t, "new@example.com", e.Email)
				assert.Equal(t, constants.DefaultWaitlistSource, e.Source)
				assert.True(t, e.CreatedAt.Equal(fixedNow))
				assert.Equal(t, time.UTC, e.CreatedAt.Location())
				return &JoinResult{Entry: e, Created: true, Position: 3, Total: 3, Backend: BackendFile}, nil
			})

		resp, err := svc.Join(context.Background(), &JoinWaitlistRequest{Email: "New@Example.com"})
		require.NoError(t, err)
		assert.Equal(t, &SignupResponse{Position: 3, Total: 3, JoinedToday: 1}, resp)

		assert.Equal(t, 1, cache.deletes, "stats cache invalidated")
		assert.Empty(t, cache.values)
		assert.Equal(t, 1.0, counterValue(t, reg, "waitlist_signups_total", map[string]string{"backend": BackendFile, "outcome": OutcomeCreated}))
	})

	t.Run("duplicate signup", func(t *testing.T) {
		cache := newMemCache()
		svc, mockRepo, reg := newServiceUnderTest(t, cache)

		mockRepo.EXPECT().
			Join(gomock.Any(), gomock.Any()).
			Return(&JoinResult{Entry: &models.WaitlistEntry{Email: "dup@example.com"}, Created: false, Position: 2, Total: 5, Backend: BackendHosted}, nil)

		resp, err := svc.Join(context.Background(), &JoinWaitlistRequest{Email: "dup@example.com", Source: "twitter"})
		require.NoError(t, err)
		assert.Equal(t, &SignupResponse{Position: 2, Total: 5, JoinedToday: 0}, resp)

		assert.Zero(t, cache.deletes)
		assert.Equal(t, 1.0, counterValue(t, reg, "waitlist_signups_total", map[string]string{"backend": BackendHosted, "outcome": OutcomeDuplicate}))
	})

	t.Run("invalid email never reaches the store", func(t *testing.T) {
		svc, _, _ := newServiceUnderTest(t, nil)

		for _, email := range []string{"no-at-sign", "no-domain@", "trailing@dot.", "two@@example.com", "spa ce@example.com"} {
			_, err := svc.Join(context.Background(), &JoinWaitlistRequest{Email: email})
			require.Error(t, err, email)
			assert.Equal(t, apperrors.ErrorTypeInvalidRequest, apperrors.GetErrorType(err), email)
		}

		_, err := svc.Join(context.Background(), nil)
		assert.Equal(t, apperrors.ErrorTypeInvalidRequest, apperrors.GetErrorType(err))
	})

	t.Run("store error is reported as internal", func(t *testing.T) {
		svc, mockRepo, reg := newServiceUnderTest(t, nil)

		mockRepo.EXPECT().
			Join(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("boom"))

		resp, err := svc.Join(context.Background(), &JoinWaitlistRequest{Email: "a@example.com"})
		assert.Nil(t, resp)
		assert.Equal(t, apperrors.ErrorTypeInternalServerError, apperrors.GetErrorType(err))
		assert.Equal(t, 1.0, counterValue(t, reg, "waitlist_signups_total", map[string]string{"backend": BackendFile, "outcome": OutcomeError}))
	})

	t.Run("timeout is reported as unavailable", func(t *testing.T) {
		svc, mockRepo, _ := newServiceUnderTest(t, nil)

		mockRepo.EXPECT().
			Join(gomock.Any(), gomock.Any()).
			Return(nil, apperrors.NewDatabaseError("insert", context.DeadlineExceeded))

		_, err := svc.Join(context.Background(), &JoinWaitlistRequest{Email: "a@example.com"})
		assert.Equal(t, apperrors.ErrorTypeServiceUnavailable, apperrors.GetErrorType(err))
	})

	t.Run("app errors pass through", func(t *testing.T) {
		svc, mockRepo, _ := newServiceUnderTest(t, nil)

		mockRepo.EXPECT().
			Join(gomock.Any(), gomock.Any()).
			Return(nil, apperrors.NewStorageError("write failed", nil))

		_, err := svc.Join(context.Background(), &JoinWaitlistRequest{Email: "a@example.com"})
		assert.Equal(t, apperrors.ErrorTypeStorageError, apperrors.GetErrorType(err))
	})
}

func TestWaitlistService_Position(t *testing.T) {
	t.Run("normalizes before lookup", func(t *testing.T) {
		svc, mockRepo, _ := newServiceUnderTest(t, nil)
		mockRepo.EXPECT().Position(gomock.Any(), "someone@example.com").Return(int64(7), nil)

		resp, err := svc.Position(context.Background(), "  SomeOne@Example.com ")
		require.NoError(t, err)
		assert.Equal(t, int64(7), resp.Position)
	})

	t.Run("malformed email is position zero", func(t *testing.T) {
		svc, _, _ := newServiceUnderTest(t, nil)

		resp, err := svc.Position(context.Background(), "not-an-email")
		require.NoError(t, err)
		assert.Zero(t, resp.Position)
	})

	t.Run("store error", func(t *testing.T) {
		svc, mockRepo, _ := newServiceUnderTest(t, nil)
		mockRepo.EXPECT().Position(gomock.Any(), gomock.Any()).Return(int64(0), apperrors.NewDatabaseError("down", nil))

		_, err := svc.Position(context.Background(), "a@example.com")
		assert.Error(t, err)
	})
}

func TestWaitlistService_Stats(t *testing.T) {
	midnight := time.Date(2026, 3, 10, 0, 0, 0, 0, time.Local)

	t.Run("counts since local midnight and caches", func(t *testing.T) {
		cache := newMemCache()
		svc, mockRepo, _ := newServiceUnderTest(t, cache)

		mockRepo.EXPECT().Count(gomock.Any()).Return(int64(12), nil).Times(1)
		mockRepo.EXPECT().CountSince(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, since time.Time) (int64, error) {
				assert.True(t, since.Equal(midnight))
				return 4, nil
			}).Times(1)

		first, err := svc.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, &StatsResponse{Total: 12, JoinedToday: 4}, first)

		second, err := svc.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("cached stats from another day are ignored", func(t *testing.T) {
		cache := newMemCache()
		cache.values[constants.WaitlistStatsCacheKey] = `{"day":"2026-03-09","total":9,"joinedToday":9}`
		svc, mockRepo, _ := newServiceUnderTest(t, cache)

		mockRepo.EXPECT().Count(gomock.Any()).Return(int64(10), nil)
		mockRepo.EXPECT().CountSince(gomock.Any(), gomock.Any()).Return(int64(1), nil)

		stats, err := svc.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, &StatsResponse{Total: 10, JoinedToday: 1}, stats)
	})

	t.Run("cache failure falls through to the store", func(t *testing.T) {
		cache := newMemCache()
		cache.err = errors.New("redis down")
		svc, mockRepo, _ := newServiceUnderTest(t, cache)

		mockRepo.EXPECT().Count(gomock.Any()).Return(int64(3), nil)
		mockRepo.EXPECT().CountSince(gomock.Any(), gomock.Any()).Return(int64(3), nil)

		stats, err := svc.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.Total)
	})

	t.Run("store error", func(t *testing.T) {
		svc, mockRepo, _ := newServiceUnderTest(t, nil)
		mockRepo.EXPECT().Count(gomock.Any()).Return(int64(0), apperrors.NewDatabaseError("down", nil))

		_, err := svc.Stats(context.Background())
		assert.Error(t, err)
	})
}

func TestWaitlistService_Export(t *testing.T) {
	svc, mockRepo, _ := newServiceUnderTest(t, nil)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mockRepo.EXPECT().List(gomock.Any()).Return([]*models.WaitlistEntry{
		{ID: 2, Email: "b@example.com", CreatedAt: base.Add(time.Minute)},
		{ID: 1, Email: "a@example.com", CreatedAt: base},
	}, nil)

	exported, err := svc.Export(context.Background())
	require.NoError(t, err)
	require.Len(t, exported, 2)

	assert.Equal(t, "a@example.com", exported[0].Email)
	assert.Equal(t, int64(1), exported[0].Position)
	assert.Equal(t, "2026-03-01T09:00:00Z", exported[0].CreatedAt)
	assert.Equal(t, int64(2), exported[1].Position)
}

func TestNewWaitlistService_ZeroTTLDisablesCache(t *testing.T) {
	svc := NewWaitlistService(log.NewDiscardLogger(), nil, newMemCache(), 0, nil).(*waitlistService)
	assert.Nil(t, svc.cache)
}
