package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"support_worker/core/domain"
)

// Step names.
const (
	StepLoadEmails       StepName = "load_emails"
	StepInboxCheck       StepName = "inbox_check"
	StepCategorize       StepName = "categorize_email"
	StepConstructQueries StepName = "construct_rag_queries"
	StepRetrieve         StepName = "retrieve_from_rag"
	StepWriteDraft       StepName = "write_draft"
	StepVerifyDraft      StepName = "verify_draft"
	StepSendReply        StepName = "send_reply"
	StepSaveDraft        StepName = "save_draft"
	StepDiscard          StepName = "discard_email"
	StepSkipUnrelated    StepName = "skip_unrelated"
)

// MaxRAGQueries caps the questions asked of the knowledge base per email.
const MaxRAGQueries = 3

// closeWrites is what every terminal step writes when an email leaves the loop.
const closeWrites = FieldQueue | FieldHistory | FieldRetrievedDocuments | FieldTrials

// LoadEmailsStep fetches unanswered mail into the queue. A fetch failure
// leaves the queue empty so the run ends cleanly.
func LoadEmailsStep(rt *Runtime) Step {
	return NewStep(FieldQueue, func(ctx context.Context, s State) (Update, error) {
		emails, err := rt.Mail.FetchUnansweredEmails(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Update{}, ctxErr
			}
			rt.log(ctx).WithError(err).Error("failed to fetch emails, continuing with empty inbox")
			emails = nil
		}

		queue := make([]domain.Email, len(emails))
		copy(queue, emails)
		rt.log(ctx).WithField("count", len(queue)).Info("Loaded %d new emails", len(queue))
		return Update{}.WithQueue(queue), nil
	})
}

// InboxCheckStep is the pass-through the queue-empty router hangs off.
func InboxCheckStep() Step {
	return NewStep(0, func(ctx context.Context, s State) (Update, error) {
		return Update{}, nil
	})
}

// CategorizeStep classifies the email at the queue tail and starts its cycle
// with clean scratch state.
func CategorizeStep(rt *Runtime) Step {
	writes := FieldCurrentEmail | FieldCategory | FieldTrials | FieldHistory |
		FieldRetrievedDocuments | FieldRAGQueries | FieldGeneratedEmail | FieldSendable
	return NewStep(writes, func(ctx context.Context, s State) (Update, error) {
		email, ok := s.Tail()
		if !ok {
			return Update{}, fmt.Errorf("categorize: %w: queue is empty", ErrCategorizeFailed)
		}

		category, err := rt.LLM.Categorize(ctx, email.Body)
		if err != nil {
			return Update{}, fmt.Errorf("categorize: %w: %w", ErrCategorizeFailed, err)
		}

		log := rt.log(ctx).WithFields(map[string]any{"email_id": email.ID, "category": string(category)})
		if category == domain.CategoryUnknown {
			log.Warn("Unrecognized category for %s, using direct response", email.ID)
		} else {
			log.Info("Email category: %s", category)
		}

		return Update{}.
			WithCurrentEmail(&email).
			WithCategory(category).
			WithTrials(0).
			WithHistory(nil).
			WithRetrievedDocuments("").
			WithRAGQueries(nil).
			WithGeneratedEmail("").
			WithSendable(false), nil
	})
}

// ConstructQueriesStep asks the model for knowledge-base questions.
func ConstructQueriesStep(rt *Runtime) Step {
	return NewStep(FieldRAGQueries, func(ctx context.Context, s State) (Update, error) {
		if s.CurrentEmail == nil {
			return Update{}, fmt.Errorf("construct queries: %w: no current email", ErrQueryFailed)
		}

		raw, err := rt.LLM.GenerateQueries(ctx, s.CurrentEmail.Body)
		if err != nil {
			return Update{}, fmt.Errorf("construct queries: %w: %w", ErrQueryFailed, err)
		}

		queries := make([]string, 0, MaxRAGQueries)
		for _, q := range raw {
			if q = strings.TrimSpace(q); q == "" {
				continue
			}
			if len(queries) == MaxRAGQueries {
				break
			}
			queries = append(queries, q)
		}

		rt.log(ctx).WithField("email_id", s.CurrentEmail.ID).Debug("Designed %d RAG queries", len(queries))
		return Update{}.WithRAGQueries(queries), nil
	})
}

// RetrieveStep answers each query and concatenates the results in order.
func RetrieveStep(rt *Runtime) Step {
	return NewStep(FieldRetrievedDocuments, func(ctx context.Context, s State) (Update, error) {
		var b strings.Builder
		for _, q := range s.RAGQueries {
			answer, err := rt.Knowledge.Answer(ctx, q)
			if err != nil {
				return Update{}, fmt.Errorf("retrieve: %w: %w", ErrRetrieveFailed, err)
			}
			b.WriteString(q)
			b.WriteString("\n")
			b.WriteString(answer)
			b.WriteString("\n\n")
		}
		return Update{}.WithRetrievedDocuments(b.String()), nil
	})
}

// draftContext is the user message handed to the writer.
func draftContext(s State) string {
	return fmt.Sprintf("# **Email category:** %s\n\n# **Email Content:**\n%s\n\n# **Information:**\n%s",
		s.Category, s.CurrentEmail.Body, s.RetrievedDocuments)
}

// WriteDraftStep produces a reply draft and records it in the history.
func WriteDraftStep(rt *Runtime) Step {
	return NewStep(FieldGeneratedEmail|FieldTrials|FieldHistory, func(ctx context.Context, s State) (Update, error) {
		if s.CurrentEmail == nil {
			return Update{}, fmt.Errorf("write draft: %w: no current email", ErrWriteFailed)
		}

		history := s.History
		if history == nil {
			history = OpenHistory(s.CurrentEmail.ID)
		} else if history.EmailID != s.CurrentEmail.ID {
			return Update{}, fmt.Errorf("write draft: %w: %s != %s", ErrHistoryMismatch, history.EmailID, s.CurrentEmail.ID)
		}

		draft, err := rt.LLM.WriteDraft(ctx, draftContext(s), history.Entries())
		if err != nil {
			return Update{}, fmt.Errorf("write draft: %w: %w", ErrWriteFailed, err)
		}

		trials := s.Trials + 1
		rt.log(ctx).WithFields(map[string]any{"email_id": s.CurrentEmail.ID, "trial": trials}).Debug("Draft %d written", trials)
		return Update{}.
			WithGeneratedEmail(draft).
			WithTrials(trials).
			WithHistory(history.Append(fmt.Sprintf("**Draft%d:**\n%s", trials, draft))), nil
	})
}

// VerifyDraftStep has the proofreader judge the current draft.
func VerifyDraftStep(rt *Runtime) Step {
	return NewStep(FieldSendable|FieldHistory, func(ctx context.Context, s State) (Update, error) {
		if s.CurrentEmail == nil || s.History == nil {
			return Update{}, fmt.Errorf("verify draft: %w: no draft to verify", ErrProofreadFailed)
		}
		if s.History.EmailID != s.CurrentEmail.ID {
			return Update{}, fmt.Errorf("verify draft: %w: %s != %s", ErrHistoryMismatch, s.History.EmailID, s.CurrentEmail.ID)
		}

		review, err := rt.LLM.Proofread(ctx, s.CurrentEmail.Body, s.GeneratedEmail)
		if err != nil {
			return Update{}, fmt.Errorf("verify draft: %w: %w", ErrProofreadFailed, err)
		}
		if review == nil {
			return Update{}, fmt.Errorf("verify draft: %w: empty review", ErrProofreadFailed)
		}

		rt.log(ctx).WithFields(map[string]any{"email_id": s.CurrentEmail.ID, "send": review.Send}).Info("Proofreader verdict for draft %d", s.Trials)
		return Update{}.
			WithSendable(review.Send).
			WithHistory(s.History.Append("**Proofreader Feedback:**\n" + review.Feedback)), nil
	})
}

// closeCurrent pops the current email and discards its scratch state.
func closeCurrent(s State) (Update, error) {
	tail, ok := s.Tail()
	if !ok || s.CurrentEmail == nil {
		return Update{}, fmt.Errorf("%w: nothing to pop", ErrQueueMismatch)
	}
	if tail.ID != s.CurrentEmail.ID {
		return Update{}, fmt.Errorf("%w: tail %s, current %s", ErrQueueMismatch, tail.ID, s.CurrentEmail.ID)
	}

	queue := make([]domain.Email, len(s.Queue)-1)
	copy(queue, s.Queue[:len(s.Queue)-1])
	return Update{}.
		WithQueue(queue).
		WithHistory(nil).
		WithRetrievedDocuments("").
		WithTrials(0), nil
}

// SendReplyStep sends the approved draft. A provider failure is logged and
// recorded, and the email still leaves the queue. It stays unlabelled so a
// later pass can deliver it.
func SendReplyStep(rt *Runtime) Step {
	return deliveryStep(rt, domain.ActionSent, func(ctx context.Context, e domain.Email, text string) error {
		return rt.Mail.SendReply(ctx, e, text)
	})
}

// SaveDraftStep stores the approved reply as a draft for human review.
func SaveDraftStep(rt *Runtime) Step {
	return deliveryStep(rt, domain.ActionDrafted, func(ctx context.Context, e domain.Email, text string) error {
		return rt.Mail.CreateDraftReply(ctx, e, text)
	})
}

func deliveryStep(rt *Runtime, action domain.Action, deliver func(context.Context, domain.Email, string) error) Step {
	return NewStep(closeWrites, func(ctx context.Context, s State) (Update, error) {
		upd, err := closeCurrent(s)
		if err != nil {
			return Update{}, err
		}

		email := *s.CurrentEmail
		log := rt.log(ctx).WithFields(map[string]any{"email_id": email.ID, "thread_id": email.ThreadID})
		derr := deliver(ctx, email, s.GeneratedEmail)
		if derr != nil {
			if errors.Is(derr, context.Canceled) || errors.Is(derr, context.DeadlineExceeded) {
				return Update{}, derr
			}
			log.WithError(derr).Error("Failed to deliver reply (%s), removing email from queue", action)
		} else {
			log.Info("Reply %s for %q", action, email.Subject)
			rt.markHandled(ctx, email)
		}

		rt.record(ctx, s, action, derr)
		return upd, nil
	})
}

// DiscardStep drops an email whose drafts never passed review.
func DiscardStep(rt *Runtime) Step {
	return NewStep(closeWrites, func(ctx context.Context, s State) (Update, error) {
		upd, err := closeCurrent(s)
		if err != nil {
			return Update{}, err
		}
		rt.log(ctx).WithFields(map[string]any{"email_id": s.CurrentEmail.ID, "trials": s.Trials}).
			Warn("No acceptable draft after %d attempts, leaving email unanswered", s.Trials)
		rt.markHandled(ctx, *s.CurrentEmail)
		rt.record(ctx, s, domain.ActionStopped, nil)
		return upd, nil
	})
}

// SkipUnrelatedStep drops an email that needs no reply.
func SkipUnrelatedStep(rt *Runtime) Step {
	return NewStep(closeWrites, func(ctx context.Context, s State) (Update, error) {
		upd, err := closeCurrent(s)
		if err != nil {
			return Update{}, err
		}
		rt.log(ctx).WithField("email_id", s.CurrentEmail.ID).Info("Skipping unrelated email")
		rt.markHandled(ctx, *s.CurrentEmail)
		rt.record(ctx, s, domain.ActionSkipped, nil)
		return upd, nil
	})
}
