package workflow

import "support_worker/core/domain"

// MaxTrials is the number of drafts written for one email before giving up.
const MaxTrials = 3

// Router outcomes.
const (
	OutcomeEmpty   Outcome = "empty"
	OutcomeProcess Outcome = "process"

	OutcomeProduct Outcome = "product"
	OutcomeDirect  Outcome = "direct"
	OutcomeSkip    Outcome = "skip"

	OutcomeSend    Outcome = "send"
	OutcomeDraft   Outcome = "draft"
	OutcomeRewrite Outcome = "rewrite"
	OutcomeStop    Outcome = "stop"
)

// CheckInbox ends the run once the queue is drained.
func CheckInbox() Router {
	return NewRouter(func(s State) Outcome {
		if len(s.Queue) == 0 {
			return OutcomeEmpty
		}
		return OutcomeProcess
	}, OutcomeEmpty, OutcomeProcess)
}

// RouteByCategory picks the knowledge-augmented, direct or skip path.
func RouteByCategory() Router {
	return NewRouter(func(s State) Outcome {
		switch s.Category {
		case domain.CategoryProductEnquiry:
			return OutcomeProduct
		case domain.CategoryUnrelated:
			return OutcomeSkip
		case domain.CategoryCustomerComplaint, domain.CategoryCustomerFeedback:
			return OutcomeDirect
		case domain.CategoryUnknown:
			return OutcomeDirect
		default:
			return OutcomeDirect
		}
	}, OutcomeProduct, OutcomeDirect, OutcomeSkip)
}

// MustRewrite decides what happens after a verdict: deliver, retry or stop.
func MustRewrite(policy DeliveryPolicy) Router {
	return NewRouter(func(s State) Outcome {
		switch {
		case s.Sendable && policy.AutoSend(s.Category):
			return OutcomeSend
		case s.Sendable:
			return OutcomeDraft
		case s.Trials >= MaxTrials:
			return OutcomeStop
		default:
			return OutcomeRewrite
		}
	}, OutcomeSend, OutcomeDraft, OutcomeRewrite, OutcomeStop)
}
