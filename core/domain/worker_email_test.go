package domain

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in       string
		expected Category
	}{
		{"product_enquiry", CategoryProductEnquiry},
		{" Product_Enquiry ", CategoryProductEnquiry},
		{"customer_complaint", CategoryCustomerComplaint},
		{"customer_complain", CategoryCustomerComplaint},
		{"customer_feedback", CategoryCustomerFeedback},
		{"unrelated", CategoryUnrelated},
		{"", CategoryUnknown},
		{"spam", CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseCategory(tt.in); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestCategoryIsValid(t *testing.T) {
	if CategoryUnknown.IsValid() {
		t.Error("unknown should not be a classifier label")
	}
	for _, c := range Categories {
		if !c.IsValid() {
			t.Errorf("%q should be valid", c)
		}
	}
}

func TestReplySubject(t *testing.T) {
	tests := []struct {
		subject  string
		expected string
	}{
		{"Pricing", "Re: Pricing"},
		{"Re: Pricing", "Re: Pricing"},
		{"RE: Pricing", "RE: Pricing"},
		{"", "Re: "},
	}

	for _, tt := range tests {
		e := Email{Subject: tt.subject}
		if got := e.ReplySubject(); got != tt.expected {
			t.Errorf("expected %q, got %q", tt.expected, got)
		}
	}
}

func TestReplyReferences(t *testing.T) {
	e := Email{MessageID: "<b@x>", References: "<a@x>"}
	if got := e.ReplyReferences(); got != "<a@x> <b@x>" {
		t.Errorf("expected %q, got %q", "<a@x> <b@x>", got)
	}
	e = Email{MessageID: "<b@x>"}
	if got := e.ReplyReferences(); got != "<b@x>" {
		t.Errorf("expected %q, got %q", "<b@x>", got)
	}
}
