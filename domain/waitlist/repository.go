package waitlist

import (
	"context"
	"time"

	"github.com/akeren/waitlist-api/internal/models"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=waitlist

const (
	BackendHosted   = "hosted"
	BackendFile     = "file"
	BackendFailover = "failover"
)

// JoinResult is computed by the backend that stored (or found) the entry, so
// position and total always come from the same source.
type JoinResult struct {
	Entry    *models.WaitlistEntry
	Created  bool
	Position int64
	Total    int64
	Backend  string
}

type WaitlistRepository interface {
	// Join stores entry unless its email is already present. Existence check
	// and insert are atomic.
	Join(ctx context.Context, entry *models.WaitlistEntry) (*JoinResult, error)
	// FindByEmail returns a NOT_FOUND app error when the email is unknown.
	FindByEmail(ctx context.Context, email string) (*models.WaitlistEntry, error)
	// Position is the 1-based queue rank of email, or 0 when unknown.
	Position(ctx context.Context, email string) (int64, error)
	Count(ctx context.Context) (int64, error)
	// CountSince counts entries created at or after since.
	CountSince(ctx context.Context, since time.Time) (int64, error)
	// List returns every entry in queue order.
	List(ctx context.Context) ([]*models.WaitlistEntry, error)
	Name() string
}
