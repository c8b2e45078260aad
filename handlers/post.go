package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"masterboxer.com/vibe-feed/auth"
	"masterboxer.com/vibe-feed/feed"
	"masterboxer.com/vibe-feed/models"
)

const maxCommentLength = 1000

type createPostRequest struct {
	Location    models.Location `json:"location"`
	VisitDate   string          `json:"visitDate"`
	Description string          `json:"description"`
	Type        models.PostType `json:"type"`
	Poll        *struct {
		Question  string   `json:"question"`
		Options   []string `json:"options"`
		ExpiresAt string   `json:"expiresAt"`
	} `json:"poll"`
}

func CreatePost(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewerID := auth.ViewerID(r.Context())

		var req createPostRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if _, ok := feed.ParseTimestamp(req.VisitDate); !ok {
			http.Error(w, "visitDate must be an ISO-8601 timestamp", http.StatusBadRequest)
			return
		}

		p := models.Post{
			Author:      models.UserSummary{ID: viewerID},
			Location:    req.Location,
			VisitDate:   req.VisitDate,
			Description: strings.TrimSpace(req.Description),
			Type:        req.Type,
		}

		switch req.Type {
		case "", models.PostTypeRegular:
			p.Type = models.PostTypeRegular
			if strings.TrimSpace(req.Location.Name) == "" {
				http.Error(w, "location.name is required", http.StatusBadRequest)
				return
			}
		case models.PostTypePoll:
			if req.Poll == nil || strings.TrimSpace(req.Poll.Question) == "" || len(req.Poll.Options) < 2 {
				http.Error(w, "Polls need a question and at least two options", http.StatusBadRequest)
				return
			}
			if req.Poll.ExpiresAt != "" {
				if _, ok := feed.ParseTimestamp(req.Poll.ExpiresAt); !ok {
					http.Error(w, "poll.expiresAt must be an ISO-8601 timestamp", http.StatusBadRequest)
					return
				}
			}
			poll := &models.Poll{Question: strings.TrimSpace(req.Poll.Question), ExpiresAt: req.Poll.ExpiresAt}
			for _, text := range req.Poll.Options {
				if text = strings.TrimSpace(text); text != "" {
					poll.Options = append(poll.Options, models.PollOption{Text: text})
				}
			}
			if len(poll.Options) < 2 {
				http.Error(w, "Polls need a question and at least two options", http.StatusBadRequest)
				return
			}
			p.Poll = poll
		default:
			http.Error(w, "Unknown post type", http.StatusBadRequest)
			return
		}

		created, err := app.Posts.CreatePost(r.Context(), p)
		if err != nil {
			storeError(w, "CreatePost", err)
			return
		}
		app.Feed.Invalidate(r.Context())

		if followers, err := app.Users.Followers(r.Context(), viewerID); err != nil {
			log.Printf("CreatePost followers lookup error: %v", err)
		} else if len(followers) > 0 {
			ids := make([]string, len(followers))
			for i, f := range followers {
				ids[i] = f.ID
			}
			name := app.displayName(r.Context(), viewerID)
			body := name + " checked in"
			if created.Location.Name != "" {
				body += " at " + created.Location.Name
			}
			app.notify("new_post", ids, "New vibe", body, map[string]string{
				"type":    "new_post",
				"post_id": created.ID,
				"user_id": viewerID,
			})
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

func DeletePost(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := mux.Vars(r)["id"]
		if err := app.Posts.DeletePost(r.Context(), postID, auth.ViewerID(r.Context())); err != nil {
			storeError(w, "DeletePost", err)
			return
		}
		app.Feed.Invalidate(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

func ToggleLike(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := mux.Vars(r)["postId"]
		viewerID := auth.ViewerID(r.Context())

		authorID, err := app.Posts.PostAuthor(r.Context(), postID)
		if err != nil {
			storeError(w, "ToggleLike", err)
			return
		}
		liked, err := app.Posts.ToggleLike(r.Context(), postID, viewerID)
		if err != nil {
			storeError(w, "ToggleLike", err)
			return
		}
		app.Feed.Invalidate(r.Context())

		if liked && authorID != viewerID {
			name := app.displayName(r.Context(), viewerID)
			app.notify("like", []string{authorID}, "New like", name+" liked your vibe", map[string]string{
				"type":    "like",
				"post_id": postID,
				"user_id": viewerID,
			})
		}

		writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
	}
}

func CreateComment(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := mux.Vars(r)["postId"]
		viewerID := auth.ViewerID(r.Context())

		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		req.Text = strings.TrimSpace(req.Text)
		if req.Text == "" {
			http.Error(w, "Comment text is required", http.StatusBadRequest)
			return
		}
		if len(req.Text) > maxCommentLength {
			http.Error(w, "Comment is too long", http.StatusBadRequest)
			return
		}

		authorID, err := app.Posts.PostAuthor(r.Context(), postID)
		if err != nil {
			storeError(w, "CreateComment", err)
			return
		}
		comment, err := app.Posts.AddComment(r.Context(), postID, viewerID, req.Text)
		if err != nil {
			storeError(w, "CreateComment", err)
			return
		}
		app.Feed.Invalidate(r.Context())

		if authorID != viewerID {
			name := app.displayName(r.Context(), viewerID)
			preview := req.Text
			if len(preview) > 50 {
				preview = preview[:47] + "..."
			}
			app.notify("comment", []string{authorID}, "New comment", name+": "+preview, map[string]string{
				"type":       "comment",
				"post_id":    postID,
				"comment_id": comment.ID,
			})
		}

		writeJSON(w, http.StatusCreated, comment)
	}
}

// DeleteComment hides the comment; it stops counting toward the post's score.
func DeleteComment(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID := mux.Vars(r)["commentId"]
		if err := app.Posts.SoftDeleteComment(r.Context(), commentID, auth.ViewerID(r.Context())); err != nil {
			storeError(w, "DeleteComment", err)
			return
		}
		app.Feed.Invalidate(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

// SetRSVP records the viewer's answer. "none" or an empty status clears it.
func SetRSVP(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := mux.Vars(r)["postId"]
		viewerID := auth.ViewerID(r.Context())

		var req struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		status := models.NormalizeRSVP(req.Status)
		raw := strings.ToLower(strings.TrimSpace(req.Status))
		if !status.Valid() && raw != "" && raw != "none" {
			http.Error(w, "Unknown RSVP status", http.StatusBadRequest)
			return
		}

		authorID, err := app.Posts.PostAuthor(r.Context(), postID)
		if err != nil {
			storeError(w, "SetRSVP", err)
			return
		}
		if err := app.Posts.SetRSVP(r.Context(), postID, viewerID, status); err != nil {
			storeError(w, "SetRSVP", err)
			return
		}
		app.Feed.Invalidate(r.Context())

		if status == models.RSVPGoing && authorID != viewerID {
			name := app.displayName(r.Context(), viewerID)
			app.notify("rsvp", []string{authorID}, "Someone's coming", name+" is going to your vibe", map[string]string{
				"type":    "rsvp",
				"post_id": postID,
				"status":  status.String(),
			})
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"postId": postID, "status": status})
	}
}

func CastVote(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID := mux.Vars(r)["postId"]

		var req struct {
			OptionID string `json:"optionId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OptionID == "" {
			http.Error(w, "optionId is required", http.StatusBadRequest)
			return
		}

		if err := app.Posts.CastPollVote(r.Context(), postID, auth.ViewerID(r.Context()), req.OptionID, app.now()); err != nil {
			storeError(w, "CastVote", err)
			return
		}
		app.Feed.Invalidate(r.Context())
		writeJSON(w, http.StatusOK, map[string]string{"postId": postID, "optionId": req.OptionID})
	}
}
