// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"

	"support_worker/core/domain"
)

// =============================================================================
// MailProvider (Gmail)
// =============================================================================

// MailProvider defines the outbound port for the customer mailbox.
type MailProvider interface {
	// FetchUnansweredEmails returns recent inbound emails that have no reply
	// or draft yet, one per thread.
	FetchUnansweredEmails(ctx context.Context) ([]domain.Email, error)
	// CreateDraftReply stores text as a draft reply to email.
	CreateDraftReply(ctx context.Context, email domain.Email, text string) error
	// SendReply sends text as a reply to email.
	SendReply(ctx context.Context, email domain.Email, text string) error
	// MarkHandled tags email so later fetches no longer return it.
	MarkHandled(ctx context.Context, email domain.Email) error
}

// ProviderErrorCode represents error codes.
type ProviderErrorCode string

const (
	ProviderErrAuth         ProviderErrorCode = "auth_error"
	ProviderErrTokenExpired ProviderErrorCode = "token_expired"
	ProviderErrRateLimit    ProviderErrorCode = "rate_limit"
	ProviderErrNotFound     ProviderErrorCode = "not_found"
	ProviderErrNetwork      ProviderErrorCode = "network_error"
	ProviderErrServer       ProviderErrorCode = "server_error"
	ProviderErrInvalidInput ProviderErrorCode = "invalid_input"
	ProviderErrUnavailable  ProviderErrorCode = "circuit_open"
)

// ProviderError represents a provider error.
type ProviderError struct {
	Provider  string
	Code      ProviderErrorCode
	Message   string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error.
func NewProviderError(provider string, code ProviderErrorCode, message string, err error, retryable bool) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}
