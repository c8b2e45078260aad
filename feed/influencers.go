package feed

import (
	"slices"

	"masterboxer.com/vibe-feed/models"
)

// GetFollowedInfluencers returns the roster entries the viewer follows,
// founders first and otherwise in roster order. Duplicate ids keep their
// first occurrence.
func GetFollowedInfluencers(roster []models.UserSummary, viewer models.Viewer) []models.UserSummary {
	seen := make(map[string]struct{}, len(roster))
	out := make([]models.UserSummary, 0)
	for _, u := range roster {
		if u.ID == "" || !viewer.Follows(u.ID) {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	slices.SortStableFunc(out, func(a, b models.UserSummary) int {
		switch {
		case a.IsFounder == b.IsFounder:
			return 0
		case a.IsFounder:
			return -1
		default:
			return 1
		}
	})
	return out
}
