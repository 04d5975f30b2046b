package waitlist

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/pkg/constants"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
)

type WaitlistService interface {
	// Join signs an email up, or reports the existing position for a repeat.
	Join(ctx context.Context, req *JoinWaitlistRequest) (*SignupResponse, error)

	// Position returns 0 for unknown or malformed emails.
	Position(ctx context.Context, email string) (*PositionResponse, error)

	// Stats counts all entries and those created since local midnight.
	Stats(ctx context.Context) (*StatsResponse, error)

	// Export lists every entry with its position, in queue order.
	Export(ctx context.Context) ([]ExportedEntry, error)
}

// StatsCache is the subset of the shared cache used for aggregate stats.
type StatsCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type cachedStats struct {
	Day         string `json:"day"`
	Total       int64  `json:"total"`
	JoinedToday int64  `json:"joinedToday"`
}

type waitlistService struct {
	logger     *log.Logger
	repository WaitlistRepository
	cache      StatsCache
	cacheTTL   time.Duration
	metrics    *Metrics
	now        func() time.Time
}

// NewWaitlistService accepts a nil cache (stats are then always computed) and
// nil metrics.
func NewWaitlistService(logger *log.Logger, repository WaitlistRepository, cache StatsCache, cacheTTL time.Duration, metrics *Metrics) WaitlistService {
	if cacheTTL <= 0 {
		cache = nil
	}

	return &waitlistService{
		logger:     logger,
		repository: repository,
		cache:      cache,
		cacheTTL:   cacheTTL,
		metrics:    metrics,
		now:        time.Now,
	}
}

func (s *waitlistService) Join(ctx context.Context, req *JoinWaitlistRequest) (*SignupResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if req == nil {
		return nil, apperrors.NewInvalidRequestError("Email is required", nil)
	}
	if !IsValidEmail(strings.TrimSpace(req.Email)) {
		return nil, apperrors.NewInvalidRequestError("Invalid email format", nil)
	}

	entry := ToWaitlistEntryModel(req, s.now().UTC().Truncate(time.Microsecond))

	logger.Info("Processing waitlist signup", "source", entry.Source)

	result, err := s.repository.Join(ctx, entry)
	if err != nil {
		s.metrics.ObserveSignup(s.repository.Name(), OutcomeError)
		logger.Error("Failed to join waitlist", "error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewServiceUnavailableError("Waitlist is busy, please try again", err)
		}
		if apperrors.GetErrorType(err) == apperrors.ErrorTypeUnknown {
			return nil, apperrors.NewInternalServerError("failed to join waitlist", err)
		}
		return nil, err
	}

	if !result.Created {
		s.metrics.ObserveSignup(result.Backend, OutcomeDuplicate)
		logger.Info("Email already on waitlist", "position", result.Position, "backend", result.Backend)

		return &SignupResponse{
			Position:    result.Position,
			Total:       result.Total,
			JoinedToday: 0,
		}, nil
	}

	s.metrics.ObserveSignup(result.Backend, OutcomeCreated)
	s.invalidateStats(ctx, logger)

	logger.Info("Added to waitlist", "position", result.Position, "total", result.Total, "backend", result.Backend)

	return &SignupResponse{
		Position:    result.Position,
		Total:       result.Total,
		JoinedToday: 1,
	}, nil
}

func (s *waitlistService) Position(ctx context.Context, email string) (*PositionResponse, error) {
	normalized := NormalizeEmail(email)
	if !IsValidEmail(normalized) {
		return &PositionResponse{Position: 0}, nil
	}

	position, err := s.repository.Position(ctx, normalized)
	if err != nil {
		log.GetLoggerInstanceFromContext(ctx, s.logger).Error("Failed to look up waitlist position", "error", err)
		return nil, err
	}

	return &PositionResponse{Position: position}, nil
}

func (s *waitlistService) Stats(ctx context.Context) (*StatsResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	day := midnight.Format(time.DateOnly)

	if stats, ok := s.cachedStats(ctx, logger, day); ok {
		return stats, nil
	}

	total, err := s.repository.Count(ctx)
	if err != nil {
		logger.Error("Failed to count waitlist entries", "error", err)
		return nil, err
	}

	joinedToday, err := s.repository.CountSince(ctx, midnight)
	if err != nil {
		logger.Error("Failed to count today's waitlist entries", "error", err)
		return nil, err
	}

	stats := &StatsResponse{Total: total, JoinedToday: joinedToday}
	s.storeStats(ctx, logger, day, stats)

	return stats, nil
}

func (s *waitlistService) Export(ctx context.Context) ([]ExportedEntry, error) {
	entries, err := s.repository.List(ctx)
	if err != nil {
		log.GetLoggerInstanceFromContext(ctx, s.logger).Error("Failed to list waitlist entries", "error", err)
		return nil, err
	}

	sortByQueueOrder(entries)

	exported := make([]ExportedEntry, 0, len(entries))
	for i, entry := range entries {
		exported = append(exported, ToExportedEntry(entry, int64(i+1)))
	}

	return exported, nil
}

// Cache failures only cost a recomputation, so they are logged and ignored.
func (s *waitlistService) cachedStats(ctx context.Context, logger *log.Logger, day string) (*StatsResponse, bool) {
	if s.cache == nil {
		return nil, false
	}

	raw, err := s.cache.Get(ctx, constants.WaitlistStatsCacheKey)
	if err != nil {
		logger.Warn("Stats cache read failed", "error", err)
		return nil, false
	}
	if raw == "" {
		return nil, false
	}

	var cached cachedStats
	if err := json.Unmarshal([]byte(raw), &cached); err != nil || cached.Day != day {
		return nil, false
	}

	return &StatsResponse{Total: cached.Total, JoinedToday: cached.JoinedToday}, true
}

func (s *waitlistService) storeStats(ctx context.Context, logger *log.Logger, day string, stats *StatsResponse) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(cachedStats{Day: day, Total: stats.Total, JoinedToday: stats.JoinedToday})
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, constants.WaitlistStatsCacheKey, string(payload), s.cacheTTL); err != nil {
		logger.Warn("Stats cache write failed", "error", err)
	}
}

func (s *waitlistService) invalidateStats(ctx context.Context, logger *log.Logger) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Delete(ctx, constants.WaitlistStatsCacheKey); err != nil {
		logger.Warn("Stats cache invalidation failed", "error", err)
	}
}
