package cli

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/minivisionary/pkg/visionsdk"
)

// BlockedError reports a command the gate refused in the current session
// state. Redirect names the command to run instead.
type BlockedError struct {
	Command  string
	Redirect string
}

func (e *BlockedError) Error() string {
	if e.Redirect == cmdLogin {
		return fmt.Sprintf("%s needs a session; run %s first", e.Command, e.Redirect)
	}
	return fmt.Sprintf("%s is only for signed-out users; you are logged in (try %s)", e.Command, e.Redirect)
}

type usageError struct {
	usage string
}

func (e usageError) Error() string { return "usage: " + e.usage }

// Describe turns an error into a message for the terminal.
func Describe(err error) string {
	var (
		blocked *BlockedError
		usage   usageError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &blocked):
		return blocked.Error()
	case errors.As(err, &usage):
		return usage.Error()
	case errors.Is(err, visionsdk.ErrInvalidCredentials):
		return "wrong email or password"
	case errors.Is(err, visionsdk.ErrInsufficientCredits):
		return "not enough credits; see products and buy <sku>"
	case errors.Is(err, visionsdk.ErrUnauthenticated):
		return "your session has ended; please log in again"
	case errors.Is(err, visionsdk.ErrNetwork):
		return "cannot reach the studio; check VISION_API_URL"
	case errors.Is(err, visionsdk.ErrServer):
		return "the studio hit a problem; try again shortly"
	case errors.Is(err, visionsdk.ErrPaymentUnconfirmed):
		return "payment not confirmed yet; finish paying, then run confirm again"
	case errors.Is(err, visionsdk.ErrActionPending):
		return "that is already in progress"
	case errors.Is(err, visionsdk.ErrCanceled):
		return "canceled"
	}

	var apiErr *visionsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
