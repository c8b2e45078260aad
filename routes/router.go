package routes

import (
	"github.com/gorilla/mux"

	"masterboxer.com/vibe-feed/handlers"
)

// NewRouter mounts every route behind metrics and bearer-token middleware.
// db backs /healthz.
func NewRouter(app *handlers.App, db handlers.Pinger) *mux.Router {
	router := mux.NewRouter()
	if app.Metrics != nil {
		router.Use(app.Metrics.Middleware)
		router.Handle("/metrics", app.Metrics.Handler()).Methods("GET")
	}
	router.Use(app.Issuer.Middleware)

	router.HandleFunc("/healthz", handlers.Healthz(db)).Methods("GET")
	CreatePostRoutes(app, router)
	CreateUserRoutes(app, router)
	return router
}
