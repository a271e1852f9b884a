package models

type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required|email"`
	Password string `json:"password" validate:"required|minLen:6|maxLen:72"`
	Name     string `json:"name" validate:"maxLen:64"`
}
