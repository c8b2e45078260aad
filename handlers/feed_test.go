package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"masterboxer.com/vibe-feed/feed"
	"masterboxer.com/vibe-feed/models"
)

func TestGetFeed(t *testing.T) {
	f := &fakeFeed{result: feed.Result{
		View: feed.ViewTrend,
		Items: []feed.Item{
			{Post: models.Post{ID: "p1"}, Score: 3.5, Live: true, FollowedPlace: true},
		},
		Stories: []models.UserSummary{},
	}}
	app := &App{Feed: f}

	rec := serve(GetFeed(app), http.MethodGet, "/feed", "/feed?view=Trend&date_mode=visited", "me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, feed.ViewTrend, f.gotView)
	require.Equal(t, feed.DateVisited, f.gotMode)

	var body struct {
		View  string `json:"view"`
		Items []struct {
			Post          models.Post `json:"post"`
			Score         float64     `json:"score"`
			Live          bool        `json:"live"`
			FollowedPlace bool        `json:"followedPlace"`
		} `json:"items"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "trend", body.View)
	require.Len(t, body.Items, 1)
	require.Equal(t, "p1", body.Items[0].Post.ID)
	require.True(t, body.Items[0].Live)
	require.True(t, body.Items[0].FollowedPlace)
}

func TestGetFeedDefaultsToPostedDate(t *testing.T) {
	f := &fakeFeed{}
	rec := serve(GetFeed(&App{Feed: f}), http.MethodGet, "/feed", "/feed?view=polls", "me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, feed.DatePosted, f.gotMode)
}

func TestGetFeedRejectsBadSelectors(t *testing.T) {
	app := &App{Feed: &fakeFeed{}}
	for _, target := range []string{
		"/feed",
		"/feed?view=for-you",
		"/feed?view=trend&date_mode=tomorrow",
	} {
		rec := serve(GetFeed(app), http.MethodGet, "/feed", target, "me", "")
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetFeedStoreFailure(t *testing.T) {
	app := &App{Feed: &fakeFeed{err: errors.New("db down")}}
	rec := serve(GetFeed(app), http.MethodGet, "/feed", "/feed?view=trend", "me", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetStories(t *testing.T) {
	f := &fakeFeed{result: feed.Result{Stories: []models.UserSummary{{ID: "f1", IsFounder: true}, {ID: "i1"}}}}
	rec := serve(GetStories(&App{Feed: f}), http.MethodGet, "/stories", "/stories", "me", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stories []models.UserSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stories))
	require.Equal(t, "f1", stories[0].ID)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealthz(t *testing.T) {
	rec := serve(Healthz(pinger{}), http.MethodGet, "/healthz", "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(Healthz(pinger{err: errors.New("down")}), http.MethodGet, "/healthz", "/healthz", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
