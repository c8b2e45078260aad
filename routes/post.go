package routes

import (
	"github.com/gorilla/mux"

	"masterboxer.com/vibe-feed/auth"
	"masterboxer.com/vibe-feed/handlers"
)

func CreatePostRoutes(app *handlers.App, router *mux.Router) *mux.Router {
	router.HandleFunc("/feed", auth.Require(handlers.GetFeed(app))).Methods("GET")
	router.HandleFunc("/stories", auth.Require(handlers.GetStories(app))).Methods("GET")

	router.HandleFunc("/posts", auth.Require(handlers.CreatePost(app))).Methods("POST")
	router.HandleFunc("/posts/{id}", auth.Require(handlers.DeletePost(app))).Methods("DELETE")
	router.HandleFunc("/posts/{postId}/like", auth.Require(handlers.ToggleLike(app))).Methods("POST")
	router.HandleFunc("/posts/{postId}/comments", auth.Require(handlers.CreateComment(app))).Methods("POST")
	router.HandleFunc("/comments/{commentId}", auth.Require(handlers.DeleteComment(app))).Methods("DELETE")
	router.HandleFunc("/posts/{postId}/rsvp", auth.Require(handlers.SetRSVP(app))).Methods("PUT")
	router.HandleFunc("/posts/{postId}/vote", auth.Require(handlers.CastVote(app))).Methods("POST")

	return router
}
