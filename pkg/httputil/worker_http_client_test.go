package httputil

import (
	"net/http"
	"testing"
	"time"
)

func TestOpenAIClientConfig(t *testing.T) {
	tests := []struct {
		timeout  time.Duration
		expected time.Duration
	}{
		{0, 120 * time.Second},
		{-time.Second, 120 * time.Second},
		{45 * time.Second, 45 * time.Second},
	}
	for _, tt := range tests {
		if got := OpenAIClientConfig(tt.timeout).ResponseTimeout; got != tt.expected {
			t.Errorf("timeout %s: expected %s, got %s", tt.timeout, tt.expected, got)
		}
	}
}

func TestNewClient(t *testing.T) {
	cfg := GmailClientConfig()
	c := NewClient(cfg)
	if c.Timeout != cfg.ResponseTimeout {
		t.Errorf("expected timeout %s, got %s", cfg.ResponseTimeout, c.Timeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.Transport)
	}
	if tr.MaxIdleConnsPerHost != 5 {
		t.Errorf("expected 5 idle conns per host, got %d", tr.MaxIdleConnsPerHost)
	}
}
