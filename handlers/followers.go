package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"masterboxer.com/vibe-feed/auth"
	"masterboxer.com/vibe-feed/store"
)

// FollowUser follows {id}. Private accounts get a pending request instead.
func FollowUser(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		followerID := auth.ViewerID(r.Context())
		followingID := mux.Vars(r)["id"]

		if followingID == followerID {
			http.Error(w, "Cannot follow yourself", http.StatusBadRequest)
			return
		}

		status, err := app.Users.Follow(r.Context(), followerID, followingID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, "User not found", http.StatusNotFound)
			return
		case errors.Is(err, store.ErrConflict) && status == "pending":
			http.Error(w, "Follow request already sent", http.StatusConflict)
			return
		case errors.Is(err, store.ErrConflict):
			http.Error(w, "Already following this user", http.StatusConflict)
			return
		case err != nil:
			http.Error(w, "Failed to follow user", http.StatusInternalServerError)
			log.Println("FollowUser error:", err)
			return
		}

		name := app.displayName(r.Context(), followerID)
		if status == "accepted" {
			app.notify("new_follower", []string{followingID}, "New Follower", name+" started following you!", map[string]string{
				"type":        "new_follower",
				"follower_id": followerID,
			})
		} else {
			app.notify("follow_request", []string{followingID}, "Follow Request", name+" wants to follow you", map[string]string{
				"type":        "follow_request",
				"follower_id": followerID,
			})
		}

		message := "Successfully followed user"
		if status == "pending" {
			message = "Follow request sent"
		}
		writeJSON(w, http.StatusCreated, map[string]string{
			"message": message,
			"status":  status,
		})
	}
}

func UnfollowUser(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := app.Users.Unfollow(r.Context(), auth.ViewerID(r.Context()), mux.Vars(r)["id"])
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Not following this user", http.StatusNotFound)
			return
		}
		if err != nil {
			storeError(w, "UnfollowUser", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func GetUserFollowers(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := app.Users.Followers(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			http.Error(w, "Failed to fetch followers", http.StatusInternalServerError)
			log.Printf("GetUserFollowers error: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetUserFollowing(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := app.Users.Following(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			http.Error(w, "Failed to fetch following", http.StatusInternalServerError)
			log.Printf("GetUserFollowing error: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func GetPendingFollowRequests(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := app.Users.PendingFollowers(r.Context(), auth.ViewerID(r.Context()))
		if err != nil {
			http.Error(w, "Failed to fetch follow requests", http.StatusInternalServerError)
			log.Printf("GetPendingFollowRequests error: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func AcceptFollowRequest(app *App) http.HandlerFunc {
	return respondFollow(app, true)
}

func RejectFollowRequest(app *App) http.HandlerFunc {
	return respondFollow(app, false)
}

func respondFollow(app *App, accept bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.ViewerID(r.Context())
		followerID := mux.Vars(r)["followerId"]

		err := app.Users.RespondFollow(r.Context(), userID, followerID, accept)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Follow request not found", http.StatusNotFound)
			return
		}
		if err != nil {
			storeError(w, "RespondFollow", err)
			return
		}

		if accept {
			name := app.displayName(r.Context(), userID)
			app.notify("follow_accepted", []string{followerID}, "Follow Request Accepted", name+" accepted your follow request", map[string]string{
				"type":    "follow_accepted",
				"user_id": userID,
			})
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type placeRequest struct {
	Place string `json:"place"`
}

func decodePlace(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req placeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return "", false
	}
	place := strings.TrimSpace(req.Place)
	if place == "" {
		http.Error(w, "place is required", http.StatusBadRequest)
		return "", false
	}
	return place, true
}

func FollowPlace(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		place, ok := decodePlace(w, r)
		if !ok {
			return
		}
		if err := app.Users.FollowPlace(r.Context(), auth.ViewerID(r.Context()), place); err != nil {
			storeError(w, "FollowPlace", err)
			return
		}
		writeJSON(w, http.StatusCreated, placeRequest{Place: place})
	}
}

func UnfollowPlace(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		place, ok := decodePlace(w, r)
		if !ok {
			return
		}
		if err := app.Users.UnfollowPlace(r.Context(), auth.ViewerID(r.Context()), place); err != nil {
			storeError(w, "UnfollowPlace", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
