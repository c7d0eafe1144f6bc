package domain

import "time"

// Review is the proofreader verdict on a draft.
type Review struct {
	Feedback string `json:"feedback"`
	Send     bool   `json:"send"`
}

// Action is what happened to an email at the end of its cycle.
type Action string

const (
	ActionSent    Action = "sent"
	ActionDrafted Action = "drafted"
	ActionStopped Action = "stopped"
	ActionSkipped Action = "skipped"
)

// EmailOutcome is the audit record written once per processed email.
type EmailOutcome struct {
	RunID       string    `json:"run_id" bson:"run_id"`
	EmailID     string    `json:"email_id" bson:"email_id"`
	ThreadID    string    `json:"thread_id" bson:"thread_id"`
	Sender      string    `json:"sender" bson:"sender"`
	Subject     string    `json:"subject" bson:"subject"`
	Category    Category  `json:"category" bson:"category"`
	Action      Action    `json:"action" bson:"action"`
	Trials      int       `json:"trials" bson:"trials"`
	Error       string    `json:"error,omitempty" bson:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at" bson:"completed_at"`
}

// RunSummary aggregates outcomes of one workflow run.
type RunSummary struct {
	RunID      string         `json:"run_id" bson:"run_id"`
	StartedAt  time.Time      `json:"started_at" bson:"started_at"`
	FinishedAt time.Time      `json:"finished_at" bson:"finished_at"`
	Steps      int            `json:"steps" bson:"steps"`
	Actions    map[Action]int `json:"actions" bson:"actions"`
	Error      string         `json:"error,omitempty" bson:"error,omitempty"`
}
