package service

import "errors"

// Service errors. Their text doubles as the wire error code.
var (
	ErrInvalidInput        = errors.New("invalid_input")
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrEmailExists         = errors.New("email_exists")
	ErrInsufficientCredits = errors.New("insufficient_credits")
	ErrMissingPrompt       = errors.New("missing_prompt")
	ErrInvalidSKU          = errors.New("invalid_sku")
	ErrNotFound            = errors.New("not_found")
	ErrInvalidSignature    = errors.New("invalid_signature")
)
