package domain

import "strings"

// Email is one inbound customer message as fetched from the mail provider.
// Values are never mutated after construction.
type Email struct {
	ID         string `json:"id" bson:"id"`
	ThreadID   string `json:"thread_id" bson:"thread_id"`
	MessageID  string `json:"message_id" bson:"message_id"`
	References string `json:"references" bson:"references"`
	Sender     string `json:"sender" bson:"sender"`
	Subject    string `json:"subject" bson:"subject"`
	Body       string `json:"body" bson:"body"`
}

// ReplySubject returns the subject for a reply, adding "Re: " once.
func (e Email) ReplySubject() string {
	if strings.HasPrefix(strings.ToLower(e.Subject), "re:") {
		return e.Subject
	}
	return "Re: " + e.Subject
}

// ReplyReferences returns the References header for a reply to e.
func (e Email) ReplyReferences() string {
	return strings.TrimSpace(e.References + " " + e.MessageID)
}

// Category is the classification result for an email.
type Category string

const (
	CategoryProductEnquiry    Category = "product_enquiry"
	CategoryCustomerComplaint Category = "customer_complaint"
	CategoryCustomerFeedback  Category = "customer_feedback"
	CategoryUnrelated         Category = "unrelated"
	// CategoryUnknown is assigned when the classifier output matches no label.
	CategoryUnknown Category = "unknown"
)

// Categories lists the labels the classifier may choose from.
var Categories = []Category{
	CategoryProductEnquiry,
	CategoryCustomerComplaint,
	CategoryCustomerFeedback,
	CategoryUnrelated,
}

// ParseCategory maps a classifier label to a Category. Anything unrecognized,
// including the empty string, becomes CategoryUnknown.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "product_enquiry", "product_inquiry":
		return CategoryProductEnquiry
	case "customer_complaint", "customer_complain":
		return CategoryCustomerComplaint
	case "customer_feedback":
		return CategoryCustomerFeedback
	case "unrelated":
		return CategoryUnrelated
	default:
		return CategoryUnknown
	}
}

func (c Category) String() string { return string(c) }

// IsValid reports whether c is one of the classifier labels.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}
