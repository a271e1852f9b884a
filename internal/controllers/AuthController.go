package controllers

import (
	"fmt"
	"moriportal/internal/models"
	"moriportal/internal/providers"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
)

type AuthController struct {
	logger   providers.Logger
	identity providers.IdentityProviderInterface
}

func NewAuthController(logger providers.Logger, identity providers.IdentityProviderInterface) *AuthController {
	return &AuthController{
		logger:   logger,
		identity: identity,
	}
}

type signupResponse struct {
	Data json.RawMessage `json:"data"`
}

func (ac *AuthController) Signup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req models.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)

	v := validate.Struct(&req)
	if !v.Validate() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s: %s", models.ErrValidation, v.Errors.One()))
		return
	}

	data, err := ac.identity.Signup(r.Context(), &req)
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			ac.logger.Errorf(providers.TypeAuth, "Signup failed: %s", err)
		}
		writeError(w, status, msg)
		return
	}

	ac.logger.Infof(providers.TypeAuth, "Account created for %s", req.Email)
	writeJSON(w, http.StatusOK, signupResponse{Data: data})
}
