// Package feed ranks and partitions posts into the four feed views.
//
// Everything here is a pure function of its arguments: no I/O, no clocks
// unless the caller leaves Request.Now zero, and no shared state. Malformed
// posts are neutralised (no score, never live, sorted last) rather than
// failing the call.
package feed

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"masterboxer.com/vibe-feed/models"
)

// View is one of the four mutually exclusive feed tabs.
type View string

const (
	ViewInnerCircle View = "inner-circle"
	ViewTrend       View = "trend"
	ViewPlaces      View = "places"
	ViewPolls       View = "polls"
)

// Views lists every supported view in tab order.
var Views = []View{ViewInnerCircle, ViewTrend, ViewPlaces, ViewPolls}

// ParseView maps a case-insensitive tab name to its View.
func ParseView(raw string) (View, error) {
	v := View(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := viewRules[v]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownView, raw)
	}
	return v, nil
}

// Request is the full snapshot a feed is computed from.
type Request struct {
	Posts       []models.Post
	Viewer      models.Viewer
	Influencers []models.UserSummary
	View        View
	DateMode    DateMode
	// FollowedPlaces and FrequentPlaces annotate items; they never filter or reorder.
	FollowedPlaces []string
	FrequentPlaces []string
	// Now anchors liveness. Zero means time.Now().
	Now    time.Time
	Policy Policy
}

// Item is a ranked post together with the values it was ranked by.
type Item struct {
	Post          models.Post `json:"post"`
	Score         float64     `json:"score"`
	Live          bool        `json:"live"`
	SortKey       int64       `json:"sortKey,omitempty"`
	FollowedPlace bool        `json:"followedPlace,omitempty"`
	FrequentPlace bool        `json:"frequentPlace,omitempty"`

	hasKey bool
}

// Result is a ranked view plus the stories strip of followed influencers.
type Result struct {
	View    View                 `json:"view"`
	Items   []Item               `json:"items"`
	Stories []models.UserSummary `json:"stories"`
}

// Posts returns the ranked posts without their ranking metadata.
func (r Result) Posts() []models.Post {
	posts := make([]models.Post, len(r.Items))
	for i, it := range r.Items {
		posts[i] = it.Post
	}
	return posts
}

type comparator func(a, b Item) int

type rule struct {
	keep  func(p models.Post, viewer models.Viewer) bool
	order []comparator
}

var viewRules = map[View]rule{
	ViewInnerCircle: {
		keep:  func(p models.Post, v models.Viewer) bool { return v.InInnerCircle(p.Author.ID) },
		order: []comparator{liveFirst, newestFirst},
	},
	ViewTrend: {
		keep:  func(p models.Post, v models.Viewer) bool { return !v.InInnerCircle(p.Author.ID) },
		order: []comparator{liveFirst, highestScore, newestFirst},
	},
	// Places ranks venues by cumulative popularity; liveness is deliberately ignored.
	ViewPlaces: {
		keep:  func(p models.Post, _ models.Viewer) bool { return strings.TrimSpace(p.Location.Name) != "" },
		order: []comparator{highestScore, newestFirst},
	},
	ViewPolls: {
		keep:  func(p models.Post, _ models.Viewer) bool { return p.Type == models.PostTypePoll },
		order: []comparator{newestFirst},
	},
}

// GetFeedPosts filters and orders posts for req.View.
func GetFeedPosts(req Request) ([]models.Post, error) {
	res, err := Rank(req)
	if err != nil {
		return nil, err
	}
	return res.Posts(), nil
}

// Rank is GetFeedPosts with the ranking metadata and stories strip attached.
// It returns ErrUnknownView or ErrUnknownDateMode for invalid selectors.
func Rank(req Request) (Result, error) {
	r, ok := viewRules[req.View]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownView, req.View)
	}
	mode := req.DateMode
	if mode == "" {
		mode = DatePosted
	}
	if mode != DatePosted && mode != DateVisited {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownDateMode, req.DateMode)
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	followed := placeSet(req.FollowedPlaces)
	frequent := placeSet(req.FrequentPlaces)

	items := make([]Item, 0, len(req.Posts))
	for _, p := range req.Posts {
		if !r.keep(p, req.Viewer) {
			continue
		}
		key, hasKey := SortKey(p, mode)
		place := placeKey(p.Location.Name)
		_, isFollowed := followed[place]
		_, isFrequent := frequent[place]
		items = append(items, Item{
			Post:          p,
			Score:         req.Policy.Score(p),
			Live:          IsLive(p, now),
			SortKey:       key,
			FollowedPlace: place != "" && isFollowed,
			FrequentPlace: place != "" && isFrequent,
			hasKey:        hasKey,
		})
	}

	order := append(slices.Clone(r.order), byID)
	slices.SortStableFunc(items, func(a, b Item) int {
		for _, c := range order {
			if n := c(a, b); n != 0 {
				return n
			}
		}
		return 0
	})

	return Result{
		View:    req.View,
		Items:   items,
		Stories: GetFollowedInfluencers(req.Influencers, req.Viewer),
	}, nil
}

func liveFirst(a, b Item) int {
	switch {
	case a.Live == b.Live:
		return 0
	case a.Live:
		return -1
	default:
		return 1
	}
}

func highestScore(a, b Item) int {
	return cmp.Compare(b.Score, a.Score)
}

// newestFirst orders by descending sort key; posts without one go last.
func newestFirst(a, b Item) int {
	if a.hasKey != b.hasKey {
		if a.hasKey {
			return -1
		}
		return 1
	}
	return cmp.Compare(b.SortKey, a.SortKey)
}

func byID(a, b Item) int {
	return strings.Compare(a.Post.ID, b.Post.ID)
}

func placeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func placeSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if k := placeKey(n); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}
