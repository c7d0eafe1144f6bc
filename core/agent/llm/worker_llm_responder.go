package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	openai "github.com/sashabaranov/go-openai"

	"support_worker/core/domain"
)

const maxPromptBody = 6000

type categorizeResponse struct {
	Category string `json:"category"`
}

type queriesResponse struct {
	Queries []string `json:"queries"`
}

type writeResponse struct {
	Email string `json:"email"`
}

type proofreadResponse struct {
	Feedback string `json:"feedback"`
	Send     bool   `json:"send"`
}

// Categorize assigns one support category to the email body.
func (c *Client) Categorize(ctx context.Context, body string) (domain.Category, error) {
	resp, err := c.CompleteJSON(ctx, categorizeSystemPrompt, "Email:\n"+truncateBody(body, maxPromptBody))
	if err != nil {
		return "", err
	}
	return parseCategory(resp)
}

func parseCategory(resp string) (domain.Category, error) {
	var result categorizeResponse
	if err := json.Unmarshal([]byte(stripFence(resp)), &result); err != nil {
		return "", fmt.Errorf("failed to parse category response: %w", err)
	}
	return domain.ParseCategory(result.Category), nil
}

// GenerateQueries designs knowledge-base questions for a product enquiry.
func (c *Client) GenerateQueries(ctx context.Context, body string) ([]string, error) {
	resp, err := c.CompleteJSON(ctx, queriesSystemPrompt, "Email:\n"+truncateBody(body, maxPromptBody))
	if err != nil {
		return nil, err
	}
	return parseQueries(resp)
}

func parseQueries(resp string) ([]string, error) {
	var result queriesResponse
	if err := json.Unmarshal([]byte(stripFence(resp)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse queries response: %w", err)
	}
	return result.Queries, nil
}

// WriteDraft writes a reply. History entries are replayed between the
// system prompt and the new request so the model sees earlier attempts.
func (c *Client) WriteDraft(ctx context.Context, emailContext string, history []string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: writerSystemPrompt})
	for _, h := range history {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: h})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: emailContext})

	resp, err := c.chat(ctx, messages, true)
	if err != nil {
		return "", err
	}
	return parseDraft(resp)
}

func parseDraft(resp string) (string, error) {
	var result writeResponse
	if err := json.Unmarshal([]byte(stripFence(resp)), &result); err != nil {
		return "", fmt.Errorf("failed to parse draft response: %w", err)
	}
	if strings.TrimSpace(result.Email) == "" {
		return "", fmt.Errorf("draft response has no email text")
	}
	return result.Email, nil
}

// Proofread judges whether draft is ready to send in reply to original.
func (c *Client) Proofread(ctx context.Context, original, draft string) (*domain.Review, error) {
	user := fmt.Sprintf("# **INITIAL EMAIL:**\n%s\n\n# **GENERATED REPLY:**\n%s", truncateBody(original, maxPromptBody), draft)
	resp, err := c.CompleteJSON(ctx, proofreaderSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	return parseReview(resp)
}

func parseReview(resp string) (*domain.Review, error) {
	var result proofreadResponse
	if err := json.Unmarshal([]byte(stripFence(resp)), &result); err != nil {
		return nil, fmt.Errorf("failed to parse proofreader response: %w", err)
	}
	return &domain.Review{Feedback: result.Feedback, Send: result.Send}, nil
}

// AnswerFromContext answers question using retrieved knowledge snippets.
func (c *Client) AnswerFromContext(ctx context.Context, question string, snippets []string) (string, error) {
	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(snippets, "\n\n---\n\n"), question)
	resp, err := c.CompleteWithSystem(ctx, ragAnswerSystemPrompt, user)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}
