// Package provider implements mail provider adapters.
package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"support_worker/core/domain"
	"support_worker/core/port/out"
	"support_worker/pkg/htmltext"
	"support_worker/pkg/logger"
)

const (
	gmailUser     = "me"
	providerName  = "gmail"
	unknownSender = "Unknown"
	noSubject     = "No Subject"

	// DefaultHandledLabel tags threads the workflow has finished with.
	DefaultHandledLabel = "support-handled"
)

// =============================================================================
// Gmail Adapter
// =============================================================================

// GmailAdapter implements out.MailProvider for a single Gmail mailbox.
type GmailAdapter struct {
	svc        *gmail.Service
	myEmail    string
	lookback   time.Duration
	maxResults int64
	label      string
	cb         *gobreaker.CircuitBreaker
	now        func() time.Time

	labelMu sync.Mutex
	labelID string
}

// GmailConfig holds mailbox settings.
type GmailConfig struct {
	MyEmail    string
	Lookback   time.Duration
	MaxResults int64
	// HandledLabel is applied to every message the workflow closes and
	// excluded from later fetches.
	HandledLabel string
}

// NewGmailAdapter creates an adapter over an authorized Gmail service.
func NewGmailAdapter(svc *gmail.Service, cfg GmailConfig) *GmailAdapter {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 8 * time.Hour
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	if cfg.HandledLabel == "" {
		cfg.HandledLabel = DefaultHandledLabel
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// 5 consecutive failures, or a 60% failure rate over at least 10 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			var nce *nonCircuitError
			return err == nil || errors.As(err, &nce)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &GmailAdapter{
		svc:        svc,
		myEmail:    strings.ToLower(cfg.MyEmail),
		lookback:   cfg.Lookback,
		maxResults: cfg.MaxResults,
		label:      cfg.HandledLabel,
		cb:         gobreaker.NewCircuitBreaker(cbSettings),
		now:        time.Now,
	}
}

// =============================================================================
// Fetch
// =============================================================================

// FetchUnansweredEmails lists messages received within the lookback window and
// keeps the first message of each thread that has no draft, carries no
// handled label and was not sent from the mailbox itself.
func (a *GmailAdapter) FetchUnansweredEmails(ctx context.Context) ([]domain.Email, error) {
	query := a.listQuery(a.now())

	var listed *gmail.ListMessagesResponse
	err := a.executeWithCircuitBreaker(ctx, "ListMessages", func() error {
		var apiErr error
		listed, apiErr = a.svc.Users.Messages.List(gmailUser).Q(query).MaxResults(a.maxResults).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, a.wrapError(err, "failed to list messages")
	}

	drafted, err := a.draftThreads(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var emails []domain.Email
	for _, ref := range listed.Messages {
		if seen[ref.ThreadId] || drafted[ref.ThreadId] {
			continue
		}
		seen[ref.ThreadId] = true

		var msg *gmail.Message
		err := a.executeWithCircuitBreaker(ctx, "GetMessage", func() error {
			var apiErr error
			msg, apiErr = a.svc.Users.Messages.Get(gmailUser, ref.Id).Format("full").Context(ctx).Do()
			return apiErr
		})
		if err != nil {
			return nil, a.wrapError(err, "failed to get message "+ref.Id)
		}

		email := convertMessage(msg)
		if a.myEmail != "" && strings.Contains(strings.ToLower(email.Sender), a.myEmail) {
			continue
		}
		emails = append(emails, email)
	}

	logger.WithFields(map[string]any{"listed": len(listed.Messages), "kept": len(emails)}).
		Info("[GmailAdapter] fetched %d unanswered emails", len(emails))
	return emails, nil
}

func (a *GmailAdapter) listQuery(now time.Time) string {
	return fmt.Sprintf("after:%d before:%d -label:%s", now.Add(-a.lookback).Unix(), now.Unix(), a.label)
}

func (a *GmailAdapter) draftThreads(ctx context.Context) (map[string]bool, error) {
	var drafts *gmail.ListDraftsResponse
	err := a.executeWithCircuitBreaker(ctx, "ListDrafts", func() error {
		var apiErr error
		drafts, apiErr = a.svc.Users.Drafts.List(gmailUser).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, a.wrapError(err, "failed to list drafts")
	}

	threads := make(map[string]bool, len(drafts.Drafts))
	for _, d := range drafts.Drafts {
		if d.Message != nil {
			threads[d.Message.ThreadId] = true
		}
	}
	return threads, nil
}

// =============================================================================
// Reply
// =============================================================================

// CreateDraftReply stores text as a draft in the email's thread.
func (a *GmailAdapter) CreateDraftReply(ctx context.Context, email domain.Email, text string) error {
	draft := &gmail.Draft{
		Message: &gmail.Message{
			Raw:      base64.URLEncoding.EncodeToString([]byte(buildRawMessage(email, text, ""))),
			ThreadId: email.ThreadID,
		},
	}

	err := a.executeWithCircuitBreaker(ctx, "CreateDraft", func() error {
		_, apiErr := a.svc.Users.Drafts.Create(gmailUser, draft).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return a.wrapError(err, "failed to create draft")
	}
	return nil
}

// SendReply sends text as a reply in the email's thread.
func (a *GmailAdapter) SendReply(ctx context.Context, email domain.Email, text string) error {
	messageID := fmt.Sprintf("<%s@gmail.com>", uuid.New().String())
	msg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(buildRawMessage(email, text, messageID))),
		ThreadId: email.ThreadID,
	}

	err := a.executeWithCircuitBreaker(ctx, "Send", func() error {
		_, apiErr := a.svc.Users.Messages.Send(gmailUser, msg).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return a.wrapError(err, "failed to send reply")
	}
	return nil
}

// =============================================================================
// Labels
// =============================================================================

// MarkHandled applies the handled label to the email so later fetches skip it.
func (a *GmailAdapter) MarkHandled(ctx context.Context, email domain.Email) error {
	labelID, err := a.handledLabelID(ctx)
	if err != nil {
		return err
	}

	req := &gmail.ModifyMessageRequest{AddLabelIds: []string{labelID}}
	err = a.executeWithCircuitBreaker(ctx, "ModifyMessage", func() error {
		_, apiErr := a.svc.Users.Messages.Modify(gmailUser, email.ID, req).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return a.wrapError(err, "failed to label message "+email.ID)
	}
	return nil
}

// handledLabelID looks up the handled label, creating it on first use.
func (a *GmailAdapter) handledLabelID(ctx context.Context) (string, error) {
	a.labelMu.Lock()
	defer a.labelMu.Unlock()
	if a.labelID != "" {
		return a.labelID, nil
	}

	var labels *gmail.ListLabelsResponse
	err := a.executeWithCircuitBreaker(ctx, "ListLabels", func() error {
		var apiErr error
		labels, apiErr = a.svc.Users.Labels.List(gmailUser).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return "", a.wrapError(err, "failed to list labels")
	}
	for _, l := range labels.Labels {
		if strings.EqualFold(l.Name, a.label) {
			a.labelID = l.Id
			return a.labelID, nil
		}
	}

	var created *gmail.Label
	err = a.executeWithCircuitBreaker(ctx, "CreateLabel", func() error {
		var apiErr error
		created, apiErr = a.svc.Users.Labels.Create(gmailUser, &gmail.Label{
			Name:                  a.label,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return "", a.wrapError(err, "failed to create label "+a.label)
	}
	logger.Info("[GmailAdapter] created label %s (%s)", a.label, created.Id)
	a.labelID = created.Id
	return a.labelID, nil
}

// =============================================================================
// Message Conversion
// =============================================================================

func convertMessage(msg *gmail.Message) domain.Email {
	email := domain.Email{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		Sender:   unknownSender,
		Subject:  noSubject,
	}
	if msg.Payload == nil {
		return email
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "message-id":
			email.MessageID = h.Value
		case "references":
			email.References = h.Value
		case "from":
			if h.Value != "" {
				email.Sender = h.Value
			}
		case "subject":
			if h.Value != "" {
				email.Subject = h.Value
			}
		}
	}
	email.Body = extractBody(msg.Payload)
	return email
}

// extractBody prefers the first text/plain part and falls back to the first
// text/html part converted to text.
func extractBody(payload *gmail.MessagePart) string {
	if text := findPart(payload, "text/plain"); text != "" {
		return htmltext.Collapse(text)
	}
	if html := findPart(payload, "text/html"); html != "" {
		return htmltext.ToText(html)
	}
	return ""
}

func findPart(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}
	for _, child := range part.Parts {
		if text := findPart(child, mimeType); text != "" {
			return text
		}
	}
	return ""
}

func decodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(decoded)
}

// buildRawMessage renders an RFC 2822 HTML reply. messageID is only set when
// sending; drafts get theirs from Gmail.
func buildRawMessage(email domain.Email, text, messageID string) string {
	var buf strings.Builder

	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.Sender))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", email.ReplySubject()))
	if messageID != "" {
		buf.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	}
	if email.MessageID != "" {
		buf.WriteString(fmt.Sprintf("In-Reply-To: %s\r\n", email.MessageID))
		buf.WriteString(fmt.Sprintf("References: %s\r\n", email.ReplyReferences()))
	}
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(htmlBody(text))

	return buf.String()
}

var lineBreaks = strings.NewReplacer(`\n`, "<br>", "\r\n", "<br>", "\n", "<br>")

func htmlBody(text string) string {
	return lineBreaks.Replace(text)
}

// =============================================================================
// Circuit Breaker & Errors
// =============================================================================

// executeWithCircuitBreaker wraps an API call with circuit breaker protection.
func (a *GmailAdapter) executeWithCircuitBreaker(ctx context.Context, operation string, fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				switch apiErr.Code {
				case 400, 401, 403, 404:
					// client errors do not trip the breaker
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}

	if err != nil {
		logger.WithContext(ctx).WithError(err).
			Warn("[GmailAdapter] circuit breaker error for %s: state=%s", operation, a.cb.State().String())
	}
	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

// CircuitState returns the current breaker state.
func (a *GmailAdapter) CircuitState() string {
	return a.cb.State().String()
}

func (a *GmailAdapter) wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return out.NewProviderError(providerName, out.ProviderErrUnavailable, "Gmail circuit open", err, true)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 400:
			return out.NewProviderError(providerName, out.ProviderErrInvalidInput, "Invalid request", err, false)
		case 401:
			return out.NewProviderError(providerName, out.ProviderErrTokenExpired, "Token expired", err, false)
		case 403:
			if strings.Contains(apiErr.Message, "Rate Limit") {
				return out.NewProviderError(providerName, out.ProviderErrRateLimit, "Rate limit exceeded", err, true)
			}
			return out.NewProviderError(providerName, out.ProviderErrAuth, "Access denied", err, false)
		case 404:
			return out.NewProviderError(providerName, out.ProviderErrNotFound, "Not found", err, false)
		case 429:
			return out.NewProviderError(providerName, out.ProviderErrRateLimit, "Too many requests", err, true)
		case 500, 502, 503:
			return out.NewProviderError(providerName, out.ProviderErrServer, "Server error", err, true)
		}
	}

	return out.NewProviderError(providerName, out.ProviderErrNetwork, defaultMsg, err, true)
}

var _ out.MailProvider = (*GmailAdapter)(nil)
