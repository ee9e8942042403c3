package http

import (
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/minivisionary/internal/studio/poster"
	"github.com/aussiebroadwan/minivisionary/internal/studio/service"
	"github.com/aussiebroadwan/minivisionary/pkg/httpx"
	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
)

const defaultLibraryLimit = 50

type PosterHandler struct {
	PosterService *service.PosterService
}

// Generate renders a poster for 10 credits.
//
//	@Summary		Generate a poster
//	@Description	Debits 10 credits, renders the prompt and stores the image. Failures after the debit are refunded.
//	@Tags			Posters
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		visionsdk.PosterRequest		true	"prompt, optional style and size"
//	@Success		200		{object}	visionsdk.PosterResponse	"poster plus the balance after the spend"
//	@Failure		400		{object}	httpx.ErrorBody				"missing_prompt"
//	@Failure		401		{object}	httpx.ErrorBody				"unauthenticated"
//	@Failure		402		{object}	httpx.ErrorBody				"insufficient_credits"
//	@Router			/poster/generate [post].
func (h *PosterHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req visionsdk.PosterRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	out, err := h.PosterService.Generate(r.Context(), userID, poster.Request{
		Prompt: req.Prompt,
		Style:  req.Style,
		Size:   req.Size,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	credits := out.Credits
	httpx.WriteJSON(w, http.StatusOK, visionsdk.PosterResponse{
		OK:      true,
		ID:      out.Poster.ID,
		URL:     out.Poster.URL,
		Key:     out.Poster.StorageKey,
		Prompt:  out.Poster.Prompt,
		Width:   out.Poster.Width,
		Height:  out.Poster.Height,
		Credits: &credits,
	})
}

// List returns the caller's library.
//
//	@Summary	List posters
//	@Tags		Posters
//	@Security	BearerAuth
//	@Produce	json
//	@Param		limit	query		int	false	"max items (default 50)"
//	@Success	200		{object}	visionsdk.PostersResponse
//	@Failure	401		{object}	httpx.ErrorBody	"unauthenticated"
//	@Router		/posters [get].
func (h *PosterHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := defaultLibraryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	posters, err := h.PosterService.Library(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items := make([]visionsdk.Poster, 0, len(posters))
	for _, p := range posters {
		items = append(items, toPoster(p))
	}
	httpx.WriteJSON(w, http.StatusOK, visionsdk.PostersResponse{OK: true, Items: items})
}

// Delete removes one of the caller's posters.
//
//	@Summary	Delete a poster
//	@Tags		Posters
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string	true	"poster id"
//	@Success	200	{object}	visionsdk.OKResponse
//	@Failure	404	{object}	httpx.ErrorBody	"not_found"
//	@Router		/posters/{id} [delete].
func (h *PosterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.PosterService.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, visionsdk.OKResponse{OK: true})
}
