package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"masterboxer.com/vibe-feed/models"
	"masterboxer.com/vibe-feed/store"
)

func newPostApp() (*App, *fakePosts, *fakeFeed, *fakeNotifier) {
	posts := &fakePosts{authors: map[string]string{"p1": "author"}}
	f := &fakeFeed{}
	n := newFakeNotifier()
	app := &App{
		Posts: posts,
		Users: &fakeUsers{
			users: map[string]models.User{
				"me": {UserSummary: models.UserSummary{ID: "me", DisplayName: "Ana"}},
			},
			followers: []models.FollowerInfo{{ID: "fan"}},
		},
		Feed:     f,
		Notifier: n,
		Now:      func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	return app, posts, f, n
}

func TestCreatePost(t *testing.T) {
	app, posts, f, n := newPostApp()

	rec := serve(CreatePost(app), http.MethodPost, "/posts", "/posts", "me",
		`{"location":{"name":"Blue Bottle"},"visitDate":"2025-03-01T18:00:00Z","description":" coffee "}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "me", posts.created.Author.ID)
	require.Equal(t, models.PostTypeRegular, posts.created.Type)
	require.Equal(t, "coffee", posts.created.Description)
	require.Equal(t, 1, f.invalidated)

	sent := n.next(t)
	require.Equal(t, []string{"fan"}, sent.UserIDs)
	require.Equal(t, "Ana checked in at Blue Bottle", sent.Body)
}

func TestCreatePollPost(t *testing.T) {
	app, posts, _, _ := newPostApp()

	rec := serve(CreatePost(app), http.MethodPost, "/posts", "/posts", "me",
		`{"type":"poll","visitDate":"2025-03-01","poll":{"question":"Where?","options":["Pier"," ","Roof"]}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, posts.created.Poll.Options, 2)
}

func TestCreatePostValidation(t *testing.T) {
	app, _, f, _ := newPostApp()
	for name, body := range map[string]string{
		"bad json":       `{`,
		"bad visit date": `{"location":{"name":"x"},"visitDate":"soon"}`,
		"no location":    `{"visitDate":"2025-03-01T18:00:00Z"}`,
		"thin poll":      `{"type":"poll","visitDate":"2025-03-01","poll":{"question":"?","options":["a"]}}`,
		"unknown type":   `{"type":"story","location":{"name":"x"},"visitDate":"2025-03-01"}`,
	} {
		rec := serve(CreatePost(app), http.MethodPost, "/posts", "/posts", "me", body)
		require.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
	require.Zero(t, f.invalidated)
}

func TestDeletePostOwnership(t *testing.T) {
	app, _, f, _ := newPostApp()

	rec := serve(DeletePost(app), http.MethodDelete, "/posts/{id}", "/posts/p1", "me", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(DeletePost(app), http.MethodDelete, "/posts/{id}", "/posts/nope", "me", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(DeletePost(app), http.MethodDelete, "/posts/{id}", "/posts/p1", "author", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, 1, f.invalidated)
}

func TestToggleLikeNotifiesAuthorOnce(t *testing.T) {
	app, _, _, n := newPostApp()

	rec := serve(ToggleLike(app), http.MethodPost, "/posts/{postId}/like", "/posts/p1/like", "me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"liked":true}`, rec.Body.String())
	require.Equal(t, []string{"author"}, n.next(t).UserIDs)

	rec = serve(ToggleLike(app), http.MethodPost, "/posts/{postId}/like", "/posts/p1/like", "me", "")
	require.JSONEq(t, `{"liked":false}`, rec.Body.String())
	n.none(t)
}

func TestCreateComment(t *testing.T) {
	app, _, f, n := newPostApp()

	rec := serve(CreateComment(app), http.MethodPost, "/posts/{postId}/comments", "/posts/p1/comments", "me", `{"text":"see you there"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, f.invalidated)
	require.Equal(t, "Ana: see you there", n.next(t).Body)

	rec = serve(CreateComment(app), http.MethodPost, "/posts/{postId}/comments", "/posts/p1/comments", "me", `{"text":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(CreateComment(app), http.MethodPost, "/posts/{postId}/comments", "/posts/zz/comments", "me", `{"text":"hi"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetRSVP(t *testing.T) {
	app, posts, _, n := newPostApp()

	rec := serve(SetRSVP(app), http.MethodPut, "/posts/{postId}/rsvp", "/posts/p1/rsvp", "me", `{"status":"going"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.RSVPGoing, posts.rsvp)
	require.JSONEq(t, `{"postId":"p1","status":"Going"}`, rec.Body.String())
	require.Equal(t, "rsvp", n.next(t).Data["type"])

	rec = serve(SetRSVP(app), http.MethodPut, "/posts/{postId}/rsvp", "/posts/p1/rsvp", "me", `{"status":"Not Going"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.RSVPNotGoing, posts.rsvp)
	n.none(t)

	rec = serve(SetRSVP(app), http.MethodPut, "/posts/{postId}/rsvp", "/posts/p1/rsvp", "me", `{"status":"none"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.RSVPNone, posts.rsvp)

	rec = serve(SetRSVP(app), http.MethodPut, "/posts/{postId}/rsvp", "/posts/p1/rsvp", "me", `{"status":"perhaps"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCastVote(t *testing.T) {
	app, posts, _, _ := newPostApp()

	rec := serve(CastVote(app), http.MethodPost, "/posts/{postId}/vote", "/posts/p1/vote", "me", `{"optionId":"o1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	posts.voteErr = store.ErrPollClosed
	rec = serve(CastVote(app), http.MethodPost, "/posts/{postId}/vote", "/posts/p1/vote", "me", `{"optionId":"o1"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(CastVote(app), http.MethodPost, "/posts/{postId}/vote", "/posts/p1/vote", "me", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	posts.voteErr = nil
	rec = serve(CastVote(app), http.MethodPost, "/posts/{postId}/vote", "/posts/p1/vote", "me", `{"optionId":"o2"}`)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "o2", body["optionId"])
}
