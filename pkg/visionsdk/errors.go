package visionsdk

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/minivisionary/pkg/httpx"
)

// Error codes carried in the "error" field of failed responses.
const (
	CodeInvalidInput        = "invalid_input"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeEmailExists         = "email_exists"
	CodeUnauthenticated     = "unauthenticated"
	CodeInsufficientCredits = "insufficient_credits"
	CodeMissingPrompt       = "missing_prompt"
	CodeInvalidSKU          = "invalid_sku"
	CodeNotFound            = "not_found"
	CodePaymentUnconfirmed  = "payment_unconfirmed"
	CodeInvalidSignature    = "invalid_signature"
	CodeRateLimited         = "rate_limited"
	CodeServerError         = "server_error"
)

// Sentinel errors. Every error returned by Client and Store matches at most
// one of the first six with errors.Is.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrNetwork             = errors.New("network error")
	ErrServer              = errors.New("server error")
	ErrPaymentUnconfirmed  = errors.New("payment unconfirmed")

	// ErrActionPending is returned when an action of the same kind is in flight.
	ErrActionPending = errors.New("action already pending")
	// ErrCanceled is returned when an action was canceled or its session ended
	// before the response arrived.
	ErrCanceled = errors.New("canceled")
)

// APIError is a failed backend response. The server writes it with
// WriteError and the client rebuilds it with parseErrorResponse.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message,omitempty"`
}

// NewAPIError builds an APIError.
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{StatusCode: status, Code: code, Message: message}
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap maps the error onto the client taxonomy.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == CodeInvalidCredentials:
		return ErrInvalidCredentials
	case e.Code == CodeInsufficientCredits || e.StatusCode == http.StatusPaymentRequired:
		return ErrInsufficientCredits
	case e.StatusCode == http.StatusUnauthorized || e.Code == CodeUnauthenticated:
		return ErrUnauthenticated
	case e.Code == CodePaymentUnconfirmed:
		return ErrPaymentUnconfirmed
	case e.StatusCode >= http.StatusInternalServerError || e.Code == CodeServerError:
		return ErrServer
	}
	return nil
}

// WriteError writes e as the standard error envelope.
func (e *APIError) WriteError(w http.ResponseWriter) {
	if e.StatusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	httpx.WriteError(w, e.StatusCode, e.Code, e.Message)
}

// IsUnauthenticated reports whether err invalidates the current session.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}
