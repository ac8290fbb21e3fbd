package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"iotgate/internal/api/handlers"
	"iotgate/internal/gateway"
)

// NewRouter builds the outer HTTP surface. Session bootstrap and health
// live here; everything under /api is handed to the gateway, which does
// its own credential checks, quota accounting, and route dispatch.
func NewRouter(auth *handlers.AuthHandler, health *handlers.HealthHandler, gw *gateway.Gateway) *httprouter.Router {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/healthz", health.Check)

	router.HandlerFunc(http.MethodPost, "/auth/signup", auth.Signup)
	router.HandlerFunc(http.MethodPost, "/auth/login", auth.Login)
	router.HandlerFunc(http.MethodPost, "/auth/refresh", auth.Refresh)

	mount := func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gw.ServeHTTP(w, r)
	}
	for _, method := range []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	} {
		router.Handle(method, "/api/*path", mount)
	}

	return router
}
