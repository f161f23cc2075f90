package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"hp-booking/internal/middleware"
	"hp-booking/internal/model"
	"hp-booking/internal/service"
	"hp-booking/internal/session"
	"hp-booking/pkg/apierror"
)

type sessionTokenReader interface {
	SessionToken(r *http.Request) string
}

type AuthHandler struct {
	service        *service.AuthService
	cookies        *session.CookieAdapter
	profileCookies *session.CookieAdapter
	tokens         sessionTokenReader
	trustProxy     bool
}

func NewAuthHandler(service *service.AuthService, cookies *session.CookieAdapter, tokens sessionTokenReader, trustProxy bool) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
		// The profile page has always reissued its cookie as Lax.
		profileCookies: cookies.WithSameSite(http.SameSiteLaxMode),
		tokens:         tokens,
		trustProxy:     trustProxy,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), payload, h.clientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.cookies.Write(w, r, result.Token)
	writeSuccess(w, http.StatusOK, "Login successful", result, nil)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.Register(r.Context(), payload, h.clientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.cookies.Write(w, r, result.Token)
	writeSuccess(w, http.StatusCreated, "Registration successful", result, nil)
}

// Logout always succeeds, with or without a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context(), h.tokens.SessionToken(r), h.clientIP(r))

	h.cookies.Clear(w, r)
	writeSuccess(w, http.StatusOK, "Logout successful", model.LogoutResult{RedirectURL: "/"}, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session.DisableCaching(w)

	claims, err := h.service.Authenticate(h.tokens.SessionToken(r))
	if err != nil {
		writeUnauthenticated(w)
		return
	}

	profile, err := h.service.CurrentUser(r.Context(), claims)
	if err != nil {
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatus == http.StatusUnauthorized {
			writeUnauthenticated(w)
			return
		}
		writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", model.MeResult{User: profile, IsAuthenticated: true}, nil)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, model.ErrUnauthorized)
		return
	}

	var payload model.UpdateProfileRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := h.service.UpdateProfile(r.Context(), *claims, payload, h.clientIP(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if result.Token != "" {
		h.profileCookies.Write(w, r, result.Token)
	}
	writeSuccess(w, http.StatusOK, "Profile updated", result, nil)
}

func (h *AuthHandler) clientIP(r *http.Request) string {
	return middleware.ClientIP(r, h.trustProxy)
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(model.UnauthenticatedResponse{
		Success:         false,
		IsAuthenticated: false,
		Error: &model.APIError{
			Code:    apierror.CodeUnauthorized,
			Message: "Not authenticated",
		},
	})
}
