package workflow

import "errors"

// Graph construction errors.
var (
	ErrDuplicateStep       = errors.New("duplicate step")
	ErrUnknownStep         = errors.New("unknown step")
	ErrMissingEntry        = errors.New("entry point not set")
	ErrMissingTransition   = errors.New("step has no outgoing transition")
	ErrDuplicateTransition = errors.New("step already has an outgoing transition")
	ErrIncompleteRoute     = errors.New("route table does not cover router outcomes")
	ErrUnreachableStep     = errors.New("step unreachable from entry point")
	ErrNoTermination       = errors.New("end unreachable from step")
)

// Run errors.
var (
	ErrStepLimit       = errors.New("step limit exceeded")
	ErrUnknownOutcome  = errors.New("router returned unmapped outcome")
	ErrUndeclaredWrite = errors.New("step wrote undeclared fields")
	ErrQueueMismatch   = errors.New("queue tail is not the current email")
	ErrHistoryMismatch = errors.New("history belongs to another email")
)

// Step failures.
var (
	ErrCategorizeFailed = errors.New("categorize failed")
	ErrQueryFailed      = errors.New("query construction failed")
	ErrRetrieveFailed   = errors.New("retrieval failed")
	ErrWriteFailed      = errors.New("draft writing failed")
	ErrProofreadFailed  = errors.New("proofreading failed")
)
