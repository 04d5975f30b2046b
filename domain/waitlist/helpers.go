package waitlist

import (
	"sort"

	"github.com/akeren/waitlist-api/internal/models"
)

func sortByQueueOrder(entries []*models.WaitlistEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
