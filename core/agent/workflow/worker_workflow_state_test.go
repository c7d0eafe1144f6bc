package workflow

import (
	"testing"

	"support_worker/core/domain"
)

func TestHistoryAppendDoesNotMutate(t *testing.T) {
	h := OpenHistory("A")
	h1 := h.Append("one")
	h2 := h1.Append("two")

	if h.Len() != 0 || h1.Len() != 1 || h2.Len() != 2 {
		t.Errorf("unexpected lengths %d %d %d", h.Len(), h1.Len(), h2.Len())
	}
	if h2.EmailID != "A" {
		t.Errorf("expected email id A, got %q", h2.EmailID)
	}

	entries := h2.Entries()
	entries[0] = "changed"
	if h2.Entries()[0] != "one" {
		t.Error("Entries should return a copy")
	}
}

func TestNilHistory(t *testing.T) {
	var h *History
	if h.Len() != 0 {
		t.Errorf("expected 0, got %d", h.Len())
	}
	if h.Entries() != nil {
		t.Error("expected nil entries")
	}
}

func TestFieldString(t *testing.T) {
	tests := []struct {
		f        Field
		expected string
	}{
		{0, "none"},
		{FieldQueue, "queue"},
		{FieldTrials | FieldHistory, "history|trials"},
	}
	for _, tt := range tests {
		if got := tt.f.String(); got != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, got)
		}
	}
}

func TestMustRewrite(t *testing.T) {
	r := MustRewrite(DefaultDeliveryPolicy())
	tests := []struct {
		name     string
		state    State
		expected Outcome
	}{
		{"sendable product", State{Sendable: true, Category: domain.CategoryProductEnquiry, Trials: 1}, OutcomeSend},
		{"sendable complaint", State{Sendable: true, Category: domain.CategoryCustomerComplaint, Trials: 3}, OutcomeDraft},
		{"ceiling reached", State{Sendable: false, Category: domain.CategoryProductEnquiry, Trials: 3}, OutcomeStop},
		{"retry", State{Sendable: false, Trials: 2}, OutcomeRewrite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Route(tt.state); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRouteByCategory(t *testing.T) {
	r := RouteByCategory()
	tests := []struct {
		category domain.Category
		expected Outcome
	}{
		{domain.CategoryProductEnquiry, OutcomeProduct},
		{domain.CategoryUnrelated, OutcomeSkip},
		{domain.CategoryCustomerComplaint, OutcomeDirect},
		{domain.CategoryCustomerFeedback, OutcomeDirect},
		{domain.CategoryUnknown, OutcomeDirect},
		{domain.Category("bogus"), OutcomeDirect},
	}
	for _, tt := range tests {
		if got := r.Route(State{Category: tt.category}); got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.category, tt.expected, got)
		}
	}
}

func TestDeliveryPolicy(t *testing.T) {
	p := NewDeliveryPolicy("customer_feedback", "nonsense", "product_enquiry")
	if !p.AutoSend(domain.CategoryCustomerFeedback) || !p.AutoSend(domain.CategoryProductEnquiry) {
		t.Error("expected configured categories to auto-send")
	}
	if p.AutoSend(domain.CategoryUnknown) {
		t.Error("unknown must never auto-send")
	}
	if got := p.String(); got != "product_enquiry,customer_feedback" {
		t.Errorf("unexpected policy string %q", got)
	}
}
