package http

import (
	"net/http"

	"github.com/aussiebroadwan/minivisionary/internal/studio/service"
	"github.com/aussiebroadwan/minivisionary/pkg/httpx"
	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
)

type ProfileHandler struct {
	ProfileService *service.ProfileService
}

// Me returns the caller's profile. It is the authoritative credit balance.
//
//	@Summary	Current profile
//	@Tags		Profile
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	visionsdk.ProfileResponse
//	@Failure	401	{object}	httpx.ErrorBody	"unauthenticated"
//	@Router		/me [get].
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	u, err := h.ProfileService.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, visionsdk.ProfileResponse{OK: true, User: toProfile(u)})
}

// Update changes the display name.
//
//	@Summary	Update profile
//	@Tags		Profile
//	@Security	BearerAuth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		visionsdk.UpdateProfileRequest	true	"display_name"
//	@Success	200		{object}	visionsdk.ProfileResponse
//	@Failure	400		{object}	httpx.ErrorBody	"invalid_input"
//	@Failure	401		{object}	httpx.ErrorBody	"unauthenticated"
//	@Router		/me [patch].
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req visionsdk.UpdateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	u, err := h.ProfileService.UpdateDisplayName(r.Context(), userID, req.DisplayName)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, visionsdk.ProfileResponse{OK: true, User: toProfile(u)})
}
