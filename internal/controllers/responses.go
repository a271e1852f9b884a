package controllers

import (
	"context"
	"errors"
	"moriportal/internal/models"
	"moriportal/internal/providers"
	"net/http"

	json "github.com/goccy/go-json"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	gson, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps a domain error onto the HTTP status and the message the
// caller gets to see. Store and unknown failures never leak details.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrAuthMissing), errors.Is(err, models.ErrAuthInvalid):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, models.ErrIdentityUnavailable):
		return http.StatusServiceUnavailable, models.ErrIdentityUnavailable.Error()
	case errors.Is(err, models.ErrValidation), errors.Is(err, models.ErrInvalidKind), errors.Is(err, models.ErrSignupRejected):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrSignupNotSupported):
		return http.StatusNotImplemented, models.ErrSignupNotSupported.Error()
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// resolveIdentity returns the caller for identity-required routes.
func resolveIdentity(ctx context.Context, r *http.Request, identity providers.IdentityProviderInterface) (*models.Identity, error) {
	token := providers.ExtractAccessToken(r, identity.AnonKey())
	if token == "" {
		return nil, models.ErrAuthMissing
	}
	return identity.Resolve(ctx, token)
}
