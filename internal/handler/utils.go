package handler

import (
	"net/http"

	"mediadrop/portal/internal/pkg/auth"
	"mediadrop/portal/internal/pkg/httputils"
)

type PongResponse struct {
	Message string `json:"message"`
}

// Ping
// @Summary Ping the server
// @Description Liveness probe
// @Tags system
// @Produce json
// @Success 200 {object} PongResponse
// @Router /ping [get]
func Ping(w http.ResponseWriter, r *http.Request) {
	httputils.ResponseJSON(w, 200, PongResponse{Message: "Pong"})
}

// RequireAuth guards operator endpoints with a bearer token.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.FromRequest(r); err != nil {
			httputils.ResponseError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next(w, r)
	}
}
