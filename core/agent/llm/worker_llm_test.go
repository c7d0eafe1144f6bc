package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"support_worker/core/domain"
)

func TestTruncateBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		maxLen   int
		expected string
	}{
		{
			name:     "short body",
			body:     "Hello world",
			maxLen:   100,
			expected: "Hello world",
		},
		{
			name:     "exact length",
			body:     "Hello",
			maxLen:   5,
			expected: "Hello",
		},
		{
			name:     "truncated",
			body:     "Hello world, this is a long message",
			maxLen:   10,
			expected: "Hello worl...",
		},
		{
			name:     "empty body",
			body:     "",
			maxLen:   100,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := truncateBody(tt.body, tt.maxLen)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name     string
		resp     string
		expected domain.Category
		wantErr  bool
	}{
		{"plain", `{"category":"product_enquiry"}`, domain.CategoryProductEnquiry, false},
		{"fenced", "```json\n{\"category\": \"unrelated\"}\n```", domain.CategoryUnrelated, false},
		{"legacy label", `{"category":"customer_complain"}`, domain.CategoryCustomerComplaint, false},
		{"unknown label", `{"category":"billing"}`, domain.CategoryUnknown, false},
		{"not json", "product_enquiry", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCategory(tt.resp)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseQueries(t *testing.T) {
	got, err := parseQueries(`{"queries":["a","b"]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("unexpected queries %v", got)
	}

	got, err = parseQueries(`{"queries":[]}`)
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty queries, got %v, %v", got, err)
	}
}

func TestParseDraft(t *testing.T) {
	if _, err := parseDraft(`{"email":"  "}`); err == nil {
		t.Error("expected error for blank draft")
	}
	got, err := parseDraft(`{"email":"Dear customer,\nThanks."}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Dear customer,\nThanks." {
		t.Errorf("unexpected draft %q", got)
	}
}

func TestParseReview(t *testing.T) {
	got, err := parseReview(`{"feedback":"Missing the refund timeline.","send":false}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Send || got.Feedback != "Missing the refund timeline." {
		t.Errorf("unexpected review %+v", got)
	}
}

type chatRequest struct {
	Model          string `json:"model"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionServer(t *testing.T, content string, seen *[]chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		var req chatRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		*seen = append(*seen, req)

		reply, _ := json.Marshal(content)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini",`+
			`"choices":[{"index":0,"message":{"role":"assistant","content":`+string(reply)+`},"finish_reason":"stop"}],`+
			`"usage":{"prompt_tokens":100,"completion_tokens":20,"total_tokens":120}}`)
	}))
}

func TestClientCategorize(t *testing.T) {
	var seen []chatRequest
	srv := completionServer(t, `{"category":"customer_feedback"}`, &seen)
	defer srv.Close()

	c := NewClientWithConfig(ClientConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})
	got, err := c.Categorize(context.Background(), "Love the new dashboard!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != domain.CategoryCustomerFeedback {
		t.Errorf("expected %q, got %q", domain.CategoryCustomerFeedback, got)
	}

	if len(seen) != 1 {
		t.Fatalf("expected 1 request, got %d", len(seen))
	}
	if seen[0].ResponseFormat == nil || seen[0].ResponseFormat.Type != "json_object" {
		t.Error("expected json_object response format")
	}
	if stats := c.Costs().GetStats(); stats.TotalTokens != 120 || stats.RequestCount != 1 {
		t.Errorf("unexpected cost stats %+v", stats)
	}
}

func TestClientWriteDraftReplaysHistory(t *testing.T) {
	var seen []chatRequest
	srv := completionServer(t, `{"email":"Hello again"}`, &seen)
	defer srv.Close()

	c := NewClientWithConfig(ClientConfig{APIKey: "test", BaseURL: srv.URL + "/v1"})
	history := []string{"**Draft1:**\nHello", "**Proofreader Feedback:**\nToo short"}
	got, err := c.WriteDraft(context.Background(), "# **Email category:** customer_feedback", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello again" {
		t.Errorf("expected %q, got %q", "Hello again", got)
	}

	msgs := seen[0].Messages
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "system" || msgs[1].Content != history[0] || msgs[2].Content != history[1] {
		t.Errorf("unexpected message order %+v", msgs)
	}
	if msgs[3].Content != "# **Email category:** customer_feedback" {
		t.Errorf("expected context last, got %q", msgs[3].Content)
	}
}

func TestCalculateCost(t *testing.T) {
	if got := CalculateCost("unknown-model", 1000, 1000); got != 0 {
		t.Errorf("expected 0 for unknown model, got %v", got)
	}
	got := CalculateCost("gpt-4o-mini", 1_000_000, 1_000_000)
	if got < 0.749 || got > 0.751 {
		t.Errorf("expected 0.75, got %v", got)
	}
}
