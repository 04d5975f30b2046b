package waitlist

import (
	"strings"
	"time"

	"github.com/akeren/waitlist-api/internal/models"
	"github.com/akeren/waitlist-api/pkg/constants"
)

type JoinWaitlistRequest struct {
	Email  string `json:"email" binding:"required,waitlist_email,max=255"`
	Name   string `json:"name" binding:"max=255"`
	Source string `json:"source" binding:"max=64"`
}

// SignupResponse reports JoinedToday as 1 for a fresh signup and 0 for a
// repeat, not as a daily aggregate.
type SignupResponse struct {
	Position    int64 `json:"position"`
	Total       int64 `json:"total"`
	JoinedToday int64 `json:"joinedToday"`
}

type PositionResponse struct {
	Position int64 `json:"position"`
}

type StatsResponse struct {
	Total       int64 `json:"total"`
	JoinedToday int64 `json:"joinedToday"`
}

type ExportedEntry struct {
	Position  int64  `json:"position"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// ========================================
// Mappers
// ========================================

func ToWaitlistEntryModel(req *JoinWaitlistRequest, createdAt time.Time) *models.WaitlistEntry {
	if req == nil {
		return nil
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = constants.DefaultWaitlistSource
	}

	return &models.WaitlistEntry{
		Email:     NormalizeEmail(req.Email),
		Name:      strings.TrimSpace(req.Name),
		Source:    source,
		CreatedAt: createdAt,
	}
}

func ToExportedEntry(entry *models.WaitlistEntry, position int64) ExportedEntry {
	if entry == nil {
		return ExportedEntry{}
	}

	return ExportedEntry{
		Position:  position,
		Email:     entry.Email,
		Name:      entry.Name,
		Source:    entry.Source,
		CreatedAt: entry.CreatedAt.UTC().Format(constants.RFC3339DateTimeFormat),
	}
}
