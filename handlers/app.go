package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"masterboxer.com/vibe-feed/auth"
	"masterboxer.com/vibe-feed/feed"
	"masterboxer.com/vibe-feed/metrics"
	"masterboxer.com/vibe-feed/models"
	"masterboxer.com/vibe-feed/services"
	"masterboxer.com/vibe-feed/store"
)

var log = logrus.New()

// SetLogger replaces the package logger.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}

type PostStore interface {
	CreatePost(ctx context.Context, p models.Post) (models.Post, error)
	PostAuthor(ctx context.Context, postID string) (string, error)
	DeletePost(ctx context.Context, postID, userID string) error
	ToggleLike(ctx context.Context, postID, userID string) (bool, error)
	AddComment(ctx context.Context, postID, userID, text string) (models.Comment, error)
	SoftDeleteComment(ctx context.Context, commentID, userID string) error
	SetRSVP(ctx context.Context, postID, userID string, status models.RSVPStatus) error
	CastPollVote(ctx context.Context, postID, userID, optionID string, now time.Time) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	DisplayName(ctx context.Context, id string) (string, error)
	Follow(ctx context.Context, followerID, followingID string) (string, error)
	Unfollow(ctx context.Context, followerID, followingID string) error
	Followers(ctx context.Context, userID string) ([]models.FollowerInfo, error)
	Following(ctx context.Context, userID string) ([]models.FollowerInfo, error)
	PendingFollowers(ctx context.Context, userID string) ([]models.FollowerInfo, error)
	RespondFollow(ctx context.Context, userID, followerID string, accept bool) error
	FollowPlace(ctx context.Context, userID, place string) error
	UnfollowPlace(ctx context.Context, userID, place string) error
	RegisterToken(ctx context.Context, userID, token string) error
}

// FeedSource computes ranked feeds and owns the snapshot cache.
type FeedSource interface {
	Feed(ctx context.Context, viewerID string, view feed.View, mode feed.DateMode) (feed.Result, error)
	Stories(ctx context.Context, viewerID string) ([]models.UserSummary, error)
	Invalidate(ctx context.Context)
}

// App is everything the HTTP handlers depend on.
type App struct {
	Posts    PostStore
	Users    UserStore
	Feed     FeedSource
	Notifier services.Notifier
	Issuer   *auth.Issuer
	Metrics  *metrics.Collector
	Now      func() time.Time
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

const notifyTimeout = 30 * time.Second

// notify sends in the background; failures are logged, never surfaced.
func (a *App) notify(kind string, userIDs []string, title, body string, data map[string]string) {
	if a.Notifier == nil || len(userIDs) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		err := a.Notifier.NotifyUsers(ctx, userIDs, title, body, data)
		if a.Metrics != nil {
			a.Metrics.Push(kind, err)
		}
		if err != nil {
			log.Printf("notify %s error: %v", kind, err)
		}
	}()
}

// displayName falls back to "Someone" the way the app renders unknown actors.
func (a *App) displayName(ctx context.Context, userID string) string {
	name, err := a.Users.DisplayName(ctx, userID)
	if err != nil || name == "" {
		if err != nil {
			log.Printf("Error getting display name for %s: %v", userID, err)
		}
		return "Someone"
	}
	return name
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response error: %v", err)
	}
}

// storeError maps repository sentinels onto HTTP statuses.
func storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, store.ErrForbidden):
		http.Error(w, "Not allowed", http.StatusForbidden)
	case errors.Is(err, store.ErrConflict):
		http.Error(w, "Already exists", http.StatusConflict)
	case errors.Is(err, store.ErrPollClosed):
		http.Error(w, "Poll is closed", http.StatusConflict)
	case errors.Is(err, store.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		log.WithError(err).Errorf("%s error", op)
	}
}
