// Package web exposes the passkey ceremonies over HTTP.
package web

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/Lordhacker756/vortex-api/internal/services/auth/user"
	"github.com/Lordhacker756/vortex-api/internal/web"
)

// maxResponseBytes bounds the signed ceremony response body.
const maxResponseBytes = 1 << 20

// CeremonyService drives the registration and login ceremonies.
// *ceremony.Service satisfies it.
type CeremonyService interface {
	StartRegistration(ctx context.Context, username string) (*protocol.CredentialCreation, error)
	FinishRegistration(ctx context.Context, username string, signedResponse []byte) (user.User, string, error)
	StartLogin(ctx context.Context, username string) (*protocol.CredentialAssertion, error)
	FinishLogin(ctx context.Context, username string, signedResponse []byte) (user.User, string, error)
}

// Handler serves the auth HTTP surface.
type Handler struct {
	ceremonies CeremonyService
	tokenTTL   time.Duration
}

// NewHandler builds the auth handler. tokenTTL controls the auth cookie
// lifetime, matching the bearer token's own expiry.
func NewHandler(ceremonies CeremonyService, tokenTTL time.Duration) *Handler {
	return &Handler{ceremonies: ceremonies, tokenTTL: tokenTTL}
}

// Register mounts the auth routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/register", h.startRegistration)
	mux.HandleFunc("POST /api/auth/verify-register/{username}", h.finishRegistration)
	mux.HandleFunc("GET /api/auth/login", h.startLogin)
	mux.HandleFunc("POST /api/auth/verify-login/{username}", h.finishLogin)
	mux.HandleFunc("POST /api/auth/logout", h.logout)
}

func (h *Handler) startRegistration(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	challenge, err := h.ceremonies.StartRegistration(r.Context(), username)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, "registration challenge issued", challenge)
}

func (h *Handler) finishRegistration(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	signedResponse, err := readSignedResponse(w, r)
	if err != nil {
		web.WriteError(w, err)
		return
	}

	identity, token, err := h.ceremonies.FinishRegistration(r.Context(), username, signedResponse)
	if err != nil {
		web.WriteError(w, err)
		return
	}

	h.setAuthCookie(w, token)
	web.WriteJSON(w, http.StatusOK, "registration verified", map[string]string{
		"user_id":  identity.ID,
		"username": identity.Username,
		"token":    token,
	})
}

func (h *Handler) startLogin(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	challenge, err := h.ceremonies.StartLogin(r.Context(), username)
	if err != nil {
		web.WriteError(w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, "login challenge issued", challenge)
}

func (h *Handler) finishLogin(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	signedResponse, err := readSignedResponse(w, r)
	if err != nil {
		web.WriteError(w, err)
		return
	}

	identity, token, err := h.ceremonies.FinishLogin(r.Context(), username, signedResponse)
	if err != nil {
		web.WriteError(w, err)
		return
	}

	h.setAuthCookie(w, token)
	web.WriteJSON(w, http.StatusOK, "login verified", map[string]string{
		"user_id":  identity.ID,
		"username": identity.Username,
		"token":    token,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     web.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	web.WriteJSON(w, http.StatusOK, "logged out", nil)
}

// setAuthCookie stores the bearer token for browser clients. SameSite=None
// with Secure lets the frontend live on a different origin.
func (h *Handler) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     web.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

func readSignedResponse(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxResponseBytes))
}
