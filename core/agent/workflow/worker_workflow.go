// Package workflow runs the support-email state machine: load the inbox,
// categorize each email, optionally consult the knowledge base, then draft
// and proofread a reply until it passes or the trial limit is hit.
package workflow

import (
	"context"

	"support_worker/pkg/logger"
)

// GraphName identifies the support workflow in logs.
const GraphName = "support-email"

// NewEngine builds and verifies the support workflow graph.
func NewEngine(rt *Runtime, cfg GraphConfig) (*Engine, error) {
	if cfg.Name == "" {
		cfg.Name = GraphName
	}
	graph, err := buildGraph(rt, cfg)
	if err != nil {
		return nil, err
	}
	return graph.Build()
}

func buildGraph(rt *Runtime, cfg GraphConfig) (*Graph, error) {
	graph := NewGraph(cfg)

	steps := []struct {
		name StepName
		step Step
	}{
		{StepLoadEmails, LoadEmailsStep(rt)},
		{StepInboxCheck, InboxCheckStep()},
		{StepCategorize, CategorizeStep(rt)},
		{StepConstructQueries, ConstructQueriesStep(rt)},
		{StepRetrieve, RetrieveStep(rt)},
		{StepWriteDraft, WriteDraftStep(rt)},
		{StepVerifyDraft, VerifyDraftStep(rt)},
		{StepSendReply, SendReplyStep(rt)},
		{StepSaveDraft, SaveDraftStep(rt)},
		{StepDiscard, DiscardStep(rt)},
		{StepSkipUnrelated, SkipUnrelatedStep(rt)},
	}
	for _, s := range steps {
		if err := graph.AddStep(s.name, s.step); err != nil {
			return nil, err
		}
	}

	if err := graph.AddEdge(StepLoadEmails, StepInboxCheck); err != nil {
		return nil, err
	}

	if err := graph.AddRoute(StepInboxCheck, CheckInbox(), map[Outcome]StepName{
		OutcomeEmpty:   End,
		OutcomeProcess: StepCategorize,
	}); err != nil {
		return nil, err
	}

	if err := graph.AddRoute(StepCategorize, RouteByCategory(), map[Outcome]StepName{
		OutcomeProduct: StepConstructQueries,
		OutcomeDirect:  StepWriteDraft,
		OutcomeSkip:    StepSkipUnrelated,
	}); err != nil {
		return nil, err
	}

	if err := graph.AddEdge(StepConstructQueries, StepRetrieve); err != nil {
		return nil, err
	}

	if err := graph.AddEdge(StepRetrieve, StepWriteDraft); err != nil {
		return nil, err
	}

	if err := graph.AddEdge(StepWriteDraft, StepVerifyDraft); err != nil {
		return nil, err
	}

	if err := graph.AddRoute(StepVerifyDraft, MustRewrite(rt.Policy), map[Outcome]StepName{
		OutcomeSend:    StepSendReply,
		OutcomeDraft:   StepSaveDraft,
		OutcomeRewrite: StepWriteDraft,
		OutcomeStop:    StepDiscard,
	}); err != nil {
		return nil, err
	}

	// Every terminal step hands control back to the inbox check.
	for _, name := range []StepName{StepSendReply, StepSaveDraft, StepDiscard, StepSkipUnrelated} {
		if err := graph.AddEdge(name, StepInboxCheck); err != nil {
			return nil, err
		}
	}

	if err := graph.SetEntryPoint(StepLoadEmails); err != nil {
		return nil, err
	}

	return graph, nil
}

// LogObserver logs every completed step.
func LogObserver(l *logger.Logger) Observer {
	return func(ctx context.Context, step StepName, s State) {
		fields := map[string]any{"step": string(step), "queue": len(s.Queue)}
		if s.CurrentEmail != nil {
			fields["email_id"] = s.CurrentEmail.ID
		}
		l.WithContext(ctx).WithFields(fields).Info("Finished running: %s", step)
	}
}

// ChainObservers calls each non-nil observer in order.
func ChainObservers(observers ...Observer) Observer {
	return func(ctx context.Context, step StepName, s State) {
		for _, o := range observers {
			if o != nil {
				o(ctx, step, s)
			}
		}
	}
}
