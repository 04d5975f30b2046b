package waitlist

import (
	"context"

	"github.com/akeren/waitlist-api/internal/log"
	"github.com/akeren/waitlist-api/internal/models"
)

type SyncReport struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// SyncFileToHosted replays every entry of the fallback file into the hosted
// store in queue order. Original createdAt values are kept so positions do not
// shift; emails already present in the hosted store are skipped.
func SyncFileToHosted(ctx context.Context, file *FileRepository, hosted *HostedRepository, logger *log.Logger) (*SyncReport, error) {
	entries, err := file.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res, err := hosted.Join(ctx, &models.WaitlistEntry{
			Email:     entry.Email,
			Name:      entry.Name,
			Source:    entry.Source,
			CreatedAt: entry.CreatedAt,
		})
		if err != nil {
			return report, err
		}

		if res.Created {
			report.Inserted++
			logger.Debug("Synced waitlist entry", "email", entry.Email)
		} else {
			report.Skipped++
		}
	}

	logger.Info("Waitlist sync finished", "inserted", report.Inserted, "skipped", report.Skipped)

	return report, nil
}
