package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/akeren/waitlist-api/internal/models"
	apperrors "github.com/akeren/waitlist-api/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HostedRepository keeps the waitlist in the waitlist_entries table.
type HostedRepository struct {
	db *gorm.DB
}

func NewHostedRepository(db *gorm.DB) *HostedRepository {
	return &HostedRepository{db: db}
}

func (r *HostedRepository) Name() string {
	return BackendHosted
}

func (r *HostedRepository) Join(ctx context.Context, entry *models.WaitlistEntry) (*JoinResult, error) {
	if entry == nil {
		return nil, apperrors.NewInvalidRequestError("entry cannot be nil", nil)
	}

	// timestamptz keeps microseconds; truncate so the stored value and the
	// value used in the position query agree.
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC().Truncate(time.Microsecond)

	db := r.db.WithContext(ctx)

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(entry)
	created := res.RowsAffected > 0
	if res.Error != nil {
		// Drivers without ON CONFLICT support report the unique index instead.
		if !apperrors.IsDuplicateKeyError(res.Error) {
			return nil, apperrors.NewDatabaseError("unable to insert waitlist entry", res.Error)
		}
		created = false
	}

	stored := entry

	if !created {
		existing, err := r.FindByEmail(ctx, entry.Email)
		if err != nil {
			return nil, err
		}
		stored = existing
	}

	position, err := r.positionOf(ctx, stored)
	if err != nil {
		return nil, err
	}

	total, err := r.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &JoinResult{
		Entry:    stored,
		Created:  created,
		Position: position,
		Total:    total,
		Backend:  BackendHosted,
	}, nil
}

func (r *HostedRepository) FindByEmail(ctx context.Context, email string) (*models.WaitlistEntry, error) {
	var entry models.WaitlistEntry

	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("waitlist entry not found", err)
		}
		return nil, apperrors.NewDatabaseError("failed to fetch waitlist entry", err)
	}

	return &entry, nil
}

func (r *HostedRepository) Position(ctx context.Context, email string) (int64, error) {
	entry, err := r.FindByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}

	return r.positionOf(ctx, entry)
}

// positionOf ranks by created_at with id breaking ties.
func (r *HostedRepository) positionOf(ctx context.Context, entry *models.WaitlistEntry) (int64, error) {
	var ahead int64

	err := r.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Where("created_at < ? OR (created_at = ? AND id < ?)", entry.CreatedAt, entry.CreatedAt, entry.ID).
		Count(&ahead).Error
	if err != nil {
		return 0, apperrors.NewDatabaseError("unable to compute waitlist position", err)
	}

	return ahead + 1, nil
}

func (r *HostedRepository) Count(ctx context.Context) (int64, error) {
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.WaitlistEntry{}).Count(&total).Error; err != nil {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}

	return total, nil
}

func (r *HostedRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64

	err := r.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Where("created_at >= ?", since.UTC()).
		Count(&total).Error
	if err != nil {
		return 0, apperrors.NewDatabaseError("unable to count recent waitlist entries", err)
	}

	return total, nil
}

func (r *HostedRepository) List(ctx context.Context) ([]*models.WaitlistEntry, error) {
	var entries []*models.WaitlistEntry

	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, apperrors.NewDatabaseError("unable to list waitlist entries", err)
	}

	return entries, nil
}

// Ping reports whether the hosted database answers.
func (r *HostedRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return apperrors.NewDatabaseError("unable to get database handle", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return apperrors.NewDatabaseError("database ping failed", err)
	}

	return nil
}
