package http

import (
	"net/http"

	"github.com/aussiebroadwan/minivisionary/internal/studio/service"
	"github.com/aussiebroadwan/minivisionary/pkg/httpx"
	"github.com/aussiebroadwan/minivisionary/pkg/slogx"
	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
)

type AuthHandler struct {
	AuthService *service.AuthService
}

// Signup creates an account and logs it in.
//
//	@Summary		Create an account
//	@Description	Creates a user with the signup credit bonus and returns a session token.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		visionsdk.SignupRequest	true	"email, password (8+ chars), optional display_name"
//	@Success		201		{object}	visionsdk.AuthResponse	"token and profile"
//	@Failure		400		{object}	httpx.ErrorBody			"invalid_input"
//	@Failure		409		{object}	httpx.ErrorBody			"email_exists"
//	@Failure		429		{object}	httpx.ErrorBody			"rate_limited"
//	@Router			/auth/signup [post].
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req visionsdk.SignupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	sess, err := h.AuthService.Signup(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	profile := toProfile(sess.User)
	httpx.WriteJSON(w, http.StatusCreated, visionsdk.AuthResponse{OK: true, Token: sess.Token, User: &profile})
}

// Login exchanges credentials for a session token.
//
//	@Summary		Log in
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		visionsdk.LoginRequest	true	"email and password"
//	@Success		200		{object}	visionsdk.AuthResponse	"token and profile"
//	@Failure		401		{object}	httpx.ErrorBody			"invalid_credentials"
//	@Failure		429		{object}	httpx.ErrorBody			"rate_limited"
//	@Router			/auth/login [post].
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req visionsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	sess, err := h.AuthService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	profile := toProfile(sess.User)
	httpx.WriteJSON(w, http.StatusOK, visionsdk.AuthResponse{OK: true, Token: sess.Token, User: &profile})
}

// Logout revokes the presented token.
//
//	@Summary	Log out
//	@Tags		Auth
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	visionsdk.OKResponse
//	@Failure	401	{object}	httpx.ErrorBody	"unauthenticated"
//	@Router		/auth/logout [post].
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		visionsdk.NewAPIError(http.StatusUnauthorized, visionsdk.CodeUnauthenticated, "missing session").WriteError(w)
		return
	}

	if err := h.AuthService.Logout(r.Context(), claims); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(r.Context()).Info("user logged out")
	httpx.WriteJSON(w, http.StatusOK, visionsdk.OKResponse{OK: true})
}
