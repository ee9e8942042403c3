package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/minivisionary/internal/studio/service"
	"github.com/aussiebroadwan/minivisionary/pkg/httpx"
	"github.com/aussiebroadwan/minivisionary/pkg/slogx"
	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
)

var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrInvalidInput, http.StatusBadRequest, visionsdk.CodeInvalidInput},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, visionsdk.CodeInvalidCredentials},
	{service.ErrEmailExists, http.StatusConflict, visionsdk.CodeEmailExists},
	{service.ErrInsufficientCredits, http.StatusPaymentRequired, visionsdk.CodeInsufficientCredits},
	{service.ErrMissingPrompt, http.StatusBadRequest, visionsdk.CodeMissingPrompt},
	{service.ErrInvalidSKU, http.StatusBadRequest, visionsdk.CodeInvalidSKU},
	{service.ErrNotFound, http.StatusNotFound, visionsdk.CodeNotFound},
	{service.ErrInvalidSignature, http.StatusBadRequest, visionsdk.CodeInvalidSignature},
}

// writeServiceError maps a service error onto the API error envelope.
// Anything unrecognised is logged and reported as server_error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			msg := strings.TrimPrefix(strings.TrimPrefix(err.Error(), se.code), ": ")
			visionsdk.NewAPIError(se.status, se.code, msg).WriteError(w)
			return
		}
	}

	slogx.FromContext(r.Context()).Error("request failed", "err", err)
	visionsdk.NewAPIError(http.StatusInternalServerError, visionsdk.CodeServerError, "").WriteError(w)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	visionsdk.NewAPIError(http.StatusBadRequest, visionsdk.CodeInvalidInput, message).WriteError(w)
}

// requireUser returns the authenticated user id. AuthnMiddleware guarantees
// one, so a miss is reported as unauthenticated.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := httpx.UserIDFromContext(r.Context())
	if !ok {
		visionsdk.NewAPIError(http.StatusUnauthorized, visionsdk.CodeUnauthenticated, "missing session").WriteError(w)
		return "", false
	}
	return userID, true
}
