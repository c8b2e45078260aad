package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"masterboxer.com/vibe-feed/auth"
	"masterboxer.com/vibe-feed/feed"
	"masterboxer.com/vibe-feed/models"
	"masterboxer.com/vibe-feed/store"
)

func init() {
	l := logrus.New()
	l.SetOutput(io.Discard)
	SetLogger(l)
}

type fakeFeed struct {
	result      feed.Result
	err         error
	gotView     feed.View
	gotMode     feed.DateMode
	invalidated int
}

func (f *fakeFeed) Feed(_ context.Context, _ string, view feed.View, mode feed.DateMode) (feed.Result, error) {
	f.gotView, f.gotMode = view, mode
	return f.result, f.err
}

func (f *fakeFeed) Stories(context.Context, string) ([]models.UserSummary, error) {
	return f.result.Stories, f.err
}

func (f *fakeFeed) Invalidate(context.Context) { f.invalidated++ }

type fakePosts struct {
	authors  map[string]string
	created  models.Post
	liked    bool
	rsvp     models.RSVPStatus
	voteErr  error
	deleteBy string
}

func (f *fakePosts) CreatePost(_ context.Context, p models.Post) (models.Post, error) {
	p.ID = "new-post"
	f.created = p
	return p, nil
}

func (f *fakePosts) PostAuthor(_ context.Context, postID string) (string, error) {
	a, ok := f.authors[postID]
	if !ok {
		return "", store.ErrNotFound
	}
	return a, nil
}

func (f *fakePosts) DeletePost(_ context.Context, postID, userID string) error {
	a, ok := f.authors[postID]
	if !ok {
		return store.ErrNotFound
	}
	if a != userID {
		return store.ErrForbidden
	}
	f.deleteBy = userID
	return nil
}

func (f *fakePosts) ToggleLike(context.Context, string, string) (bool, error) {
	f.liked = !f.liked
	return f.liked, nil
}

func (f *fakePosts) AddComment(_ context.Context, _, userID, text string) (models.Comment, error) {
	return models.Comment{ID: "c1", UserID: userID, Text: text, Timestamp: "2025-03-01T12:00:00Z"}, nil
}

func (f *fakePosts) SoftDeleteComment(context.Context, string, string) error { return nil }

func (f *fakePosts) SetRSVP(_ context.Context, _, _ string, status models.RSVPStatus) error {
	f.rsvp = status
	return nil
}

func (f *fakePosts) CastPollVote(context.Context, string, string, string, time.Time) error {
	return f.voteErr
}

type fakeUsers struct {
	users      map[string]models.User
	followers  []models.FollowerInfo
	followResp string
	followErr  error
	created    models.User
	tokens     []string
	places     []string
}

func (f *fakeUsers) CreateUser(_ context.Context, u models.User) (models.User, error) {
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return models.User{}, store.ErrConflict
		}
	}
	u.ID = "u-new"
	f.created = u
	u.PasswordHash = ""
	return u, nil
}

func (f *fakeUsers) GetUser(_ context.Context, id string) (models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) UserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range f.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (f *fakeUsers) DisplayName(_ context.Context, id string) (string, error) {
	if u, ok := f.users[id]; ok {
		return u.DisplayName, nil
	}
	return "", store.ErrNotFound
}

func (f *fakeUsers) Follow(context.Context, string, string) (string, error) {
	return f.followResp, f.followErr
}

func (f *fakeUsers) Unfollow(context.Context, string, string) error { return nil }

func (f *fakeUsers) Followers(context.Context, string) ([]models.FollowerInfo, error) {
	return f.followers, nil
}

func (f *fakeUsers) Following(context.Context, string) ([]models.FollowerInfo, error) {
	return []models.FollowerInfo{}, nil
}

func (f *fakeUsers) PendingFollowers(context.Context, string) ([]models.FollowerInfo, error) {
	return []models.FollowerInfo{}, nil
}

func (f *fakeUsers) RespondFollow(context.Context, string, string, bool) error { return nil }

func (f *fakeUsers) FollowPlace(_ context.Context, _, place string) error {
	f.places = append(f.places, place)
	return nil
}

func (f *fakeUsers) UnfollowPlace(context.Context, string, string) error { return store.ErrNotFound }

func (f *fakeUsers) RegisterToken(_ context.Context, _, token string) error {
	f.tokens = append(f.tokens, token)
	return nil
}

type sentNotification struct {
	UserIDs []string
	Title   string
	Body    string
	Data    map[string]string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent chan sentNotification
	err  error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(chan sentNotification, 16)}
}

func (f *fakeNotifier) NotifyUsers(_ context.Context, userIDs []string, title, body string, data map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent <- sentNotification{UserIDs: userIDs, Title: title, Body: body, Data: data}
	return f.err
}

func (f *fakeNotifier) next(t *testing.T) sentNotification {
	t.Helper()
	select {
	case n := <-f.sent:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification")
		return sentNotification{}
	}
}

func (f *fakeNotifier) none(t *testing.T) {
	t.Helper()
	select {
	case n := <-f.sent:
		t.Fatalf("unexpected notification: %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

// serve routes a single handler as viewer and returns the recorded response.
func serve(h http.HandlerFunc, method, pattern, target, viewer, body string) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	r.HandleFunc(pattern, h).Methods(method)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if viewer != "" {
		req = req.WithContext(auth.WithViewer(req.Context(), viewer))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
