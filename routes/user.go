package routes

import (
	"github.com/gorilla/mux"

	"masterboxer.com/vibe-feed/auth"
	"masterboxer.com/vibe-feed/handlers"
)

func CreateUserRoutes(app *handlers.App, router *mux.Router) *mux.Router {
	router.HandleFunc("/users", handlers.CreateUser(app)).Methods("POST")
	router.HandleFunc("/login", handlers.Login(app)).Methods("POST")

	router.HandleFunc("/users/me/fcm-token", auth.Require(handlers.RegisterFCMToken(app))).Methods("POST")
	router.HandleFunc("/users/me/follow-requests", auth.Require(handlers.GetPendingFollowRequests(app))).Methods("GET")
	router.HandleFunc("/users/me/follow-requests/{followerId}/accept", auth.Require(handlers.AcceptFollowRequest(app))).Methods("POST")
	router.HandleFunc("/users/me/follow-requests/{followerId}/reject", auth.Require(handlers.RejectFollowRequest(app))).Methods("POST")

	router.HandleFunc("/users/{id}", auth.Require(handlers.GetUserByID(app))).Methods("GET")
	router.HandleFunc("/users/{id}/follow", auth.Require(handlers.FollowUser(app))).Methods("POST")
	router.HandleFunc("/users/{id}/follow", auth.Require(handlers.UnfollowUser(app))).Methods("DELETE")
	router.HandleFunc("/users/{id}/followers", auth.Require(handlers.GetUserFollowers(app))).Methods("GET")
	router.HandleFunc("/users/{id}/following", auth.Require(handlers.GetUserFollowing(app))).Methods("GET")

	router.HandleFunc("/places/follow", auth.Require(handlers.FollowPlace(app))).Methods("POST")
	router.HandleFunc("/places/follow", auth.Require(handlers.UnfollowPlace(app))).Methods("DELETE")

	return router
}
