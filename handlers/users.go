package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"slices"
	"strings"

	"github.com/gorilla/mux"

	"masterboxer.com/vibe-feed/auth"
	"masterboxer.com/vibe-feed/models"
	"masterboxer.com/vibe-feed/store"
)

const minPasswordLength = 8

func CreateUser(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		u.Handle = strings.TrimPrefix(strings.TrimSpace(u.Handle), "@")
		u.DisplayName = strings.TrimSpace(u.DisplayName)
		if u.Handle == "" || u.DisplayName == "" || u.Email == "" || u.Password == "" {
			http.Error(w, "handle, name, email, and password are required", http.StatusBadRequest)
			return
		}
		if _, err := mail.ParseAddress(u.Email); err != nil {
			http.Error(w, "Invalid email address", http.StatusBadRequest)
			return
		}
		if len(u.Password) < minPasswordLength {
			http.Error(w, "Password is too short", http.StatusBadRequest)
			return
		}

		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			http.Error(w, "Failed to hash password", http.StatusInternalServerError)
			return
		}
		u.PasswordHash = hash
		u.Password = ""
		// Influencer and founder flags are curated, never self-assigned.
		u.IsInfluencer, u.IsFounder, u.TrustScore = false, false, 0

		created, err := app.Users.CreateUser(r.Context(), u)
		if errors.Is(err, store.ErrConflict) {
			http.Error(w, "Handle or email already taken", http.StatusConflict)
			return
		}
		if err != nil {
			storeError(w, "CreateUser", err)
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

func Login(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		u, err := app.Users.UserByEmail(r.Context(), req.Email)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			storeError(w, "Login", err)
			return
		}
		if err != nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
			http.Error(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}

		token, err := app.Issuer.Issue(u.ID)
		if err != nil {
			http.Error(w, "Failed to issue token", http.StatusInternalServerError)
			log.Printf("Login token error: %v", err)
			return
		}
		u.PasswordHash = ""

		writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": u})
	}
}

func GetUserByID(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if id == "me" {
			id = auth.ViewerID(r.Context())
		}

		u, err := app.Users.GetUser(r.Context(), id)
		if err != nil {
			storeError(w, "GetUserByID", err)
			return
		}

		viewerID := auth.ViewerID(r.Context())
		if u.IsPrivate && viewerID != u.ID && !slices.Contains(u.Followers, viewerID) {
			// Private profiles expose the card but not the graph.
			u.Following, u.Followers = nil, nil
		}
		if viewerID != u.ID {
			u.Email = ""
		}

		writeJSON(w, http.StatusOK, u)
	}
}

func RegisterFCMToken(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Token) == "" {
			http.Error(w, "FCM token is required", http.StatusBadRequest)
			return
		}

		if err := app.Users.RegisterToken(r.Context(), auth.ViewerID(r.Context()), req.Token); err != nil {
			http.Error(w, "Failed to register FCM token", http.StatusInternalServerError)
			log.Printf("RegisterFCMToken error: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"message": "FCM token registered successfully",
		})
	}
}
