package workflow

import (
	"context"
	"strings"
	"time"

	"support_worker/core/domain"
	"support_worker/core/port/out"
	"support_worker/pkg/logger"
)

// Runtime bundles the collaborators that workflow steps require.
type Runtime struct {
	Mail      out.MailProvider
	LLM       out.ResponderLLM
	Knowledge out.KnowledgeBase
	// Reporter is optional.
	Reporter out.RunReporter
	Logger   *logger.Logger
	Policy   DeliveryPolicy
}

func (rt *Runtime) log(ctx context.Context) *logger.Logger {
	l := rt.Logger
	if l == nil {
		l = logger.Default()
	}
	return l.WithContext(ctx)
}

// record writes the audit entry for the email leaving the loop. Reporter
// failures never affect the run.
func (rt *Runtime) record(ctx context.Context, s State, action domain.Action, cause error) {
	if rt.Reporter == nil || s.CurrentEmail == nil {
		return
	}
	e := s.CurrentEmail
	outcome := &domain.EmailOutcome{
		RunID:       RunID(ctx),
		EmailID:     e.ID,
		ThreadID:    e.ThreadID,
		Sender:      e.Sender,
		Subject:     e.Subject,
		Category:    s.Category,
		Action:      action,
		Trials:      s.Trials,
		CompletedAt: time.Now().UTC(),
	}
	if cause != nil {
		outcome.Error = cause.Error()
	}
	if err := rt.Reporter.Record(ctx, outcome); err != nil {
		rt.log(ctx).WithError(err).Warn("failed to record outcome for %s", e.ID)
	}
}

// markHandled labels the email in the mailbox so the next fetch skips it.
// Failures are logged and the email may come back on a later pass.
func (rt *Runtime) markHandled(ctx context.Context, e domain.Email) {
	if err := rt.Mail.MarkHandled(ctx, e); err != nil {
		rt.log(ctx).WithError(err).Warn("failed to mark %s handled", e.ID)
	}
}

// DeliveryPolicy decides which sendable drafts go out directly. Drafts for
// other categories are saved for a human to review.
type DeliveryPolicy struct {
	autoSend map[domain.Category]bool
}

// NewDeliveryPolicy builds a policy from category labels.
func NewDeliveryPolicy(categories ...string) DeliveryPolicy {
	p := DeliveryPolicy{autoSend: make(map[domain.Category]bool)}
	for _, c := range categories {
		if cat := domain.ParseCategory(c); cat.IsValid() {
			p.autoSend[cat] = true
		}
	}
	return p
}

// DefaultDeliveryPolicy sends product enquiries and drafts everything else.
func DefaultDeliveryPolicy() DeliveryPolicy {
	return NewDeliveryPolicy(string(domain.CategoryProductEnquiry))
}

// AutoSend reports whether a sendable draft for c is sent without review.
func (p DeliveryPolicy) AutoSend(c domain.Category) bool { return p.autoSend[c] }

func (p DeliveryPolicy) String() string {
	var names []string
	for _, c := range domain.Categories {
		if p.autoSend[c] {
			names = append(names, string(c))
		}
	}
	return strings.Join(names, ",")
}

// RunID returns the run id stored in ctx by WithRunID.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(logger.RunIDKey).(string)
	return id
}

// WithRunID tags ctx with a run id picked up by logs and outcome records.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, logger.RunIDKey, id)
}
