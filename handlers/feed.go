package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"masterboxer.com/vibe-feed/auth"
	"masterboxer.com/vibe-feed/feed"
)

// GetFeed serves GET /feed?view=<view>&date_mode=<posted|visited>.
func GetFeed(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID := auth.ViewerID(r.Context())
		q := r.URL.Query()

		if q.Get("view") == "" {
			http.Error(w, "view parameter missing", http.StatusBadRequest)
			return
		}
		view, err := feed.ParseView(q.Get("view"))
		if err != nil {
			http.Error(w, "Unknown view", http.StatusBadRequest)
			return
		}
		mode, err := feed.ParseDateMode(q.Get("date_mode"))
		if err != nil {
			http.Error(w, "Unknown date_mode", http.StatusBadRequest)
			return
		}

		res, err := app.Feed.Feed(r.Context(), viewerID, view, mode)
		if err != nil {
			if errors.Is(err, feed.ErrUnknownView) || errors.Is(err, feed.ErrUnknownDateMode) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "Failed to fetch feed", http.StatusInternalServerError)
			log.Printf("GetFeed error: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

// GetStories serves the followed-influencer strip shown above the feed.
func GetStories(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stories, err := app.Feed.Stories(r.Context(), auth.ViewerID(r.Context()))
		if err != nil {
			http.Error(w, "Failed to fetch stories", http.StatusInternalServerError)
			log.Printf("GetStories error: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, stories)
	}
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

func Healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
