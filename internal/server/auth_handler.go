package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Kavyam172/E-commerce-FSE/internal/auth"
	"github.com/Kavyam172/E-commerce-FSE/internal/repository"
)

type AuthHandler struct {
	users   repository.UserRepository
	issuer  *auth.Issuer
	timeout time.Duration
}

func NewAuthHandler(users repository.UserRepository, issuer *auth.Issuer, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		users:   users,
		issuer:  issuer,
		timeout: timeout,
	}
}

type signupRequestDTO struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponseDTO struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req signupRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_credentials", "email and password are required")
		return
	}
	if len(req.Password) < 8 {
		respondError(w, http.StatusBadRequest, "weak_password", "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	user := &repository.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
	}
	if err := h.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			respondError(w, http.StatusConflict, "already_exists", "an account with this email already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	if !h.issueSessionCookies(w, user.ID) {
		return
	}
	respondJSON(w, http.StatusCreated, sessionResponseDTO{UserID: user.ID, Name: user.Name, Email: user.Email})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req loginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	user, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Same answer as a bad password, so probing for accounts
			// learns nothing.
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)); err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	if !h.issueSessionCookies(w, user.ID) {
		return
	}
	respondJSON(w, http.StatusOK, sessionResponseDTO{UserID: user.ID, Name: user.Name, Email: user.Email})
}

// Refresh trades a valid refresh token for a fresh access token. The refresh
// token itself is left alone; it expires on its original schedule.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(auth.RefreshTokenCookie)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing refresh token")
		return
	}
	session, err := h.issuer.VerifyRefreshToken(cookie.Value)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid_token", "refresh token is invalid or expired")
		return
	}

	accessToken, err := h.issuer.IssueAccessToken(session.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	http.SetCookie(w, sessionCookie(auth.AccessTokenCookie, accessToken, h.issuer.AccessTTL()))
	respondJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, expiredCookie(auth.AccessTokenCookie))
	http.SetCookie(w, expiredCookie(auth.RefreshTokenCookie))
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AuthHandler) issueSessionCookies(w http.ResponseWriter, userID string) bool {
	accessToken, err := h.issuer.IssueAccessToken(userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return false
	}
	refreshToken, err := h.issuer.IssueRefreshToken(userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return false
	}
	http.SetCookie(w, sessionCookie(auth.AccessTokenCookie, accessToken, h.issuer.AccessTTL()))
	http.SetCookie(w, sessionCookie(auth.RefreshTokenCookie, refreshToken, h.issuer.RefreshTTL()))
	return true
}

func sessionCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
