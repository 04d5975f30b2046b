package waitlist

import (
	"context"
	"time"

	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/internal/models"
	"github.com/akeren/waitlist-api/pkg/circuitbreaker"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/akeren/waitlist-api/domain/waitlist"

// FailoverRepository serves every operation from the primary store and
// answers from the fallback whenever the primary errors or its breaker is open.
// Primary errors are logged, never returned.
type FailoverRepository struct {
	primary  WaitlistRepository
	fallback WaitlistRepository
	breaker  circuitbreaker.CircuitBreaker
	logger   *log.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

func NewFailoverRepository(
	primary WaitlistRepository,
	fallback WaitlistRepository,
	breaker circuitbreaker.CircuitBreaker,
	logger *log.Logger,
	metrics *Metrics,
) *FailoverRepository {
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(nil)
	}
	if logger == nil {
		logger = log.NewLoggerWithJSONOutput()
	}

	return &FailoverRepository{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
	}
}

func (r *FailoverRepository) Name() string {
	return BackendFailover
}

func (r *FailoverRepository) BreakerState() circuitbreaker.CircuitState {
	return r.breaker.State()
}

// withFailover runs op against the primary through the breaker and against
// the fallback if that fails. A NOT_FOUND answer from the primary is a valid
// answer, not a failure.
func withFailover[T any](ctx context.Context, r *FailoverRepository, operation string, op func(context.Context, WaitlistRepository) (T, error)) (T, error) {
	ctx, span := r.tracer.Start(ctx, "waitlist.store."+operation)
	defer span.End()

	var (
		result    T
		answerErr error
	)

	primaryErr := r.breaker.Call(func() error {
		var err error
		result, err = op(ctx, r.primary)
		if err != nil && apperrors.IsNotFound(err) {
			answerErr = err
			return nil
		}
		return err
	})

	if primaryErr == nil {
		span.SetAttributes(attribute.String("waitlist.backend", r.primary.Name()))
		return result, answerErr
	}

	logger := log.GetLoggerInstanceFromContext(ctx, r.logger)
	logger.Warn("Hosted waitlist store failed, answering from fallback",
		"operation", operation,
		"breaker_state", r.breaker.State().String(),
		"error", primaryErr,
	)
	r.metrics.ObserveFallback(operation)

	span.SetAttributes(
		attribute.String("waitlist.backend", r.fallback.Name()),
		attribute.Bool("waitlist.fallback", true),
	)
	span.AddEvent("primary store failed", trace.WithAttributes(attribute.String("error", primaryErr.Error())))

	result, err := op(ctx, r.fallback)
	if err != nil && !apperrors.IsNotFound(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fallback store failed")
	}

	return result, err
}

func (r *FailoverRepository) Join(ctx context.Context, entry *models.WaitlistEntry) (*JoinResult, error) {
	return withFailover(ctx, r, "join", func(ctx context.Context, repo WaitlistRepository) (*JoinResult, error) {
		// Each backend may mutate its argument, so each gets its own copy.
		return repo.Join(ctx, copyEntry(entry))
	})
}

func (r *FailoverRepository) FindByEmail(ctx context.Context, email string) (*models.WaitlistEntry, error) {
	return withFailover(ctx, r, "find_by_email", func(ctx context.Context, repo WaitlistRepository) (*models.WaitlistEntry, error) {
		return repo.FindByEmail(ctx, email)
	})
}

func (r *FailoverRepository) Position(ctx context.Context, email string) (int64, error) {
	return withFailover(ctx, r, "position", func(ctx context.Context, repo WaitlistRepository) (int64, error) {
		return repo.Position(ctx, email)
	})
}

func (r *FailoverRepository) Count(ctx context.Context) (int64, error) {
	return withFailover(ctx, r, "count", func(ctx context.Context, repo WaitlistRepository) (int64, error) {
		return repo.Count(ctx)
	})
}

func (r *FailoverRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return withFailover(ctx, r, "count_since", func(ctx context.Context, repo WaitlistRepository) (int64, error) {
		return repo.CountSince(ctx, since)
	})
}

func (r *FailoverRepository) List(ctx context.Context) ([]*models.WaitlistEntry, error) {
	return withFailover(ctx, r, "list", func(ctx context.Context, repo WaitlistRepository) ([]*models.WaitlistEntry, error) {
		return repo.List(ctx)
	})
}
