package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"masterboxer.com/vibe-feed/cache"
	"masterboxer.com/vibe-feed/feed"
	"masterboxer.com/vibe-feed/metrics"
	"masterboxer.com/vibe-feed/models"
)

const frequentPlacesLimit = 5

// SnapshotSource is the read side of the store the feed is computed from.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context, since time.Time) ([]models.Post, error)
	LoadViewer(ctx context.Context, userID string) (models.Viewer, error)
	LoadInfluencers(ctx context.Context) ([]models.UserSummary, error)
	FollowedPlaces(ctx context.Context, userID string) ([]string, error)
	FrequentPlaces(ctx context.Context, userID string, limit int) ([]string, error)
}

type FeedOptions struct {
	Policy feed.Policy
	// Window bounds how far back the snapshot reaches. Zero loads everything.
	Window   time.Duration
	Founders []string
}

// FeedService assembles a feed.Request from the store and cache and runs
// the engine over it.
type FeedService struct {
	source   SnapshotSource
	cache    *cache.Cache
	metrics  *metrics.Collector
	logger   *logrus.Logger
	opts     FeedOptions
	founders map[string]struct{}
	now      func() time.Time
}

func NewFeedService(source SnapshotSource, c *cache.Cache, m *metrics.Collector, logger *logrus.Logger, opts FeedOptions) *FeedService {
	founders := make(map[string]struct{}, len(opts.Founders))
	for _, id := range opts.Founders {
		founders[id] = struct{}{}
	}
	if c == nil {
		c = cache.New(nil, 0, logger, cache.Hooks{})
	}
	return &FeedService{
		source:   source,
		cache:    c,
		metrics:  m,
		logger:   logger,
		opts:     opts,
		founders: founders,
		now:      time.Now,
	}
}

// Feed ranks the current snapshot for viewerID.
func (s *FeedService) Feed(ctx context.Context, viewerID string, view feed.View, mode feed.DateMode) (feed.Result, error) {
	now := s.now()
	req, err := s.request(ctx, viewerID, now)
	if err != nil {
		s.observe(view, "store_error", 0, 0)
		return feed.Result{}, err
	}
	req.View = view
	req.DateMode = mode

	start := time.Now()
	res, err := feed.Rank(req)
	took := time.Since(start)
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, feed.ErrUnknownView):
			outcome = "invalid_view"
		case errors.Is(err, feed.ErrUnknownDateMode):
			outcome = "invalid_date_mode"
		}
		s.observe(view, outcome, 0, took)
		return feed.Result{}, err
	}

	s.observe(view, "ok", len(res.Items), took)
	s.logger.WithFields(logrus.Fields{
		"viewer":    viewerID,
		"view":      view,
		"date_mode": mode,
		"snapshot":  len(req.Posts),
		"items":     len(res.Items),
	}).Debug("Feed ranked")
	return res, nil
}

// Stories returns the followed influencers strip, founders first.
func (s *FeedService) Stories(ctx context.Context, viewerID string) ([]models.UserSummary, error) {
	viewer, err := s.source.LoadViewer(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load viewer: %w", err)
	}
	roster, err := s.roster(ctx)
	if err != nil {
		return nil, err
	}
	return feed.GetFollowedInfluencers(roster, viewer), nil
}

// Invalidate drops the cached snapshot after a write.
func (s *FeedService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WithError(err).Warn("Snapshot invalidation failed")
	}
}

// InvalidateRoster drops the cached influencer roster.
func (s *FeedService) InvalidateRoster(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, cache.RosterKey); err != nil {
		s.logger.WithError(err).Warn("Roster invalidation failed")
	}
}

func (s *FeedService) request(ctx context.Context, viewerID string, now time.Time) (feed.Request, error) {
	var since time.Time
	if s.opts.Window > 0 {
		since = now.Add(-s.opts.Window)
	}
	posts, err := s.cache.Posts(ctx, func(ctx context.Context) ([]models.Post, error) {
		return s.source.LoadSnapshot(ctx, since)
	})
	if err != nil {
		return feed.Request{}, fmt.Errorf("load snapshot: %w", err)
	}

	viewer, err := s.source.LoadViewer(ctx, viewerID)
	if err != nil {
		return feed.Request{}, fmt.Errorf("load viewer: %w", err)
	}
	roster, err := s.roster(ctx)
	if err != nil {
		return feed.Request{}, err
	}

	followed, err := s.source.FollowedPlaces(ctx, viewerID)
	if err != nil {
		return feed.Request{}, fmt.Errorf("load followed places: %w", err)
	}
	frequent, err := s.source.FrequentPlaces(ctx, viewerID, frequentPlacesLimit)
	if err != nil {
		return feed.Request{}, fmt.Errorf("load frequent places: %w", err)
	}

	return feed.Request{
		Posts:          s.markFounders(posts),
		Viewer:         viewer,
		Influencers:    roster,
		FollowedPlaces: followed,
		FrequentPlaces: frequent,
		Now:            now,
		Policy:         s.opts.Policy,
	}, nil
}

func (s *FeedService) roster(ctx context.Context) ([]models.UserSummary, error) {
	roster, err := s.cache.Roster(ctx, s.source.LoadInfluencers)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	if len(s.founders) == 0 {
		return roster, nil
	}
	out := make([]models.UserSummary, len(roster))
	for i, u := range roster {
		if _, ok := s.founders[u.ID]; ok {
			u.IsFounder = true
		}
		out[i] = u
	}
	return out, nil
}

// markFounders flags configured founders on post authors. The cached
// snapshot is shared, so posts are copied rather than mutated.
func (s *FeedService) markFounders(posts []models.Post) []models.Post {
	if len(s.founders) == 0 {
		return posts
	}
	out := make([]models.Post, len(posts))
	for i, p := range posts {
		if _, ok := s.founders[p.Author.ID]; ok {
			p.Author.IsFounder = true
		}
		out[i] = p
	}
	return out
}

func (s *FeedService) observe(view feed.View, outcome string, items int, took time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveFeed(string(view), outcome, items, took)
	}
}
