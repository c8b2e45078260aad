package feed

import (
	"time"

	"masterboxer.com/vibe-feed/models"
)

// LiveWindow is how long after its visit time a drop-in still counts as happening.
const LiveWindow = 3 * time.Hour

// IsLive reports whether the post's visit time is in the future or within the
// trailing LiveWindow. Posts without a parseable visit time are never live.
func IsLive(p models.Post, now time.Time) bool {
	visit, ok := ParseTimestamp(p.VisitDate)
	if !ok {
		return false
	}
	return visit.After(now.Add(-LiveWindow))
}
