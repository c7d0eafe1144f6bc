package workflow

import (
	"strings"

	"support_worker/core/domain"
)

// State is the record threaded through one workflow run. Only the engine
// mutates it, by applying the Update returned from each step.
type State struct {
	Queue              []domain.Email
	CurrentEmail       *domain.Email
	Category           domain.Category
	GeneratedEmail     string
	RAGQueries         []string
	RetrievedDocuments string
	History            *History
	Sendable           bool
	Trials             int
}

// Tail returns the email at the end of the queue.
func (s State) Tail() (domain.Email, bool) {
	if len(s.Queue) == 0 {
		return domain.Email{}, false
	}
	return s.Queue[len(s.Queue)-1], true
}

// Field identifies one State field. Fields combine as a bit set.
type Field uint16

const (
	FieldQueue Field = 1 << iota
	FieldCurrentEmail
	FieldCategory
	FieldGeneratedEmail
	FieldRAGQueries
	FieldRetrievedDocuments
	FieldHistory
	FieldSendable
	FieldTrials
)

var fieldNames = []struct {
	f    Field
	name string
}{
	{FieldQueue, "queue"},
	{FieldCurrentEmail, "current_email"},
	{FieldCategory, "category"},
	{FieldGeneratedEmail, "generated_email"},
	{FieldRAGQueries, "rag_queries"},
	{FieldRetrievedDocuments, "retrieved_documents"},
	{FieldHistory, "history"},
	{FieldSendable, "sendable"},
	{FieldTrials, "trials"},
}

// Has reports whether every field in o is in f.
func (f Field) Has(o Field) bool { return f&o == o }

func (f Field) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, fn := range fieldNames {
		if f&fn.f != 0 {
			names = append(names, fn.name)
		}
	}
	return strings.Join(names, "|")
}

// Update is a partial state change. Fields that were not set are left
// untouched when the update is applied.
type Update struct {
	fields Field
	values State
}

// Fields returns the set of fields this update writes.
func (u Update) Fields() Field { return u.fields }

func (u Update) WithQueue(q []domain.Email) Update {
	u.fields |= FieldQueue
	u.values.Queue = q
	return u
}

func (u Update) WithCurrentEmail(e *domain.Email) Update {
	u.fields |= FieldCurrentEmail
	u.values.CurrentEmail = e
	return u
}

func (u Update) WithCategory(c domain.Category) Update {
	u.fields |= FieldCategory
	u.values.Category = c
	return u
}

func (u Update) WithGeneratedEmail(text string) Update {
	u.fields |= FieldGeneratedEmail
	u.values.GeneratedEmail = text
	return u
}

func (u Update) WithRAGQueries(q []string) Update {
	u.fields |= FieldRAGQueries
	u.values.RAGQueries = q
	return u
}

func (u Update) WithRetrievedDocuments(docs string) Update {
	u.fields |= FieldRetrievedDocuments
	u.values.RetrievedDocuments = docs
	return u
}

func (u Update) WithHistory(h *History) Update {
	u.fields |= FieldHistory
	u.values.History = h
	return u
}

func (u Update) WithSendable(v bool) Update {
	u.fields |= FieldSendable
	u.values.Sendable = v
	return u
}

func (u Update) WithTrials(n int) Update {
	u.fields |= FieldTrials
	u.values.Trials = n
	return u
}

// apply merges u into s field by field.
func (s State) apply(u Update) State {
	v := u.values
	if u.fields.Has(FieldQueue) {
		s.Queue = v.Queue
	}
	if u.fields.Has(FieldCurrentEmail) {
		s.CurrentEmail = v.CurrentEmail
	}
	if u.fields.Has(FieldCategory) {
		s.Category = v.Category
	}
	if u.fields.Has(FieldGeneratedEmail) {
		s.GeneratedEmail = v.GeneratedEmail
	}
	if u.fields.Has(FieldRAGQueries) {
		s.RAGQueries = v.RAGQueries
	}
	if u.fields.Has(FieldRetrievedDocuments) {
		s.RetrievedDocuments = v.RetrievedDocuments
	}
	if u.fields.Has(FieldHistory) {
		s.History = v.History
	}
	if u.fields.Has(FieldSendable) {
		s.Sendable = v.Sendable
	}
	if u.fields.Has(FieldTrials) {
		s.Trials = v.Trials
	}
	return s
}

// History is the scratch buffer of drafts and proofreader feedback for a
// single email. It is opened by the first draft and discarded when the
// email leaves the retry loop. Append never modifies the receiver.
type History struct {
	EmailID string
	entries []string
}

// OpenHistory starts an empty buffer bound to emailID.
func OpenHistory(emailID string) *History {
	return &History{EmailID: emailID}
}

// Append returns a new buffer with entry added.
func (h *History) Append(entry string) *History {
	next := &History{EmailID: h.EmailID, entries: make([]string, len(h.entries), len(h.entries)+1)}
	copy(next.entries, h.entries)
	next.entries = append(next.entries, entry)
	return next
}

// Entries returns a copy of the buffered entries in order.
func (h *History) Entries() []string {
	if h == nil {
		return nil
	}
	out := make([]string, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries; a nil buffer is empty.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}
