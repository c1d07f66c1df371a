package llm

// #region imports
import (
	"context"
	"errors"
	"net/http"

	"github.com/Hussain0327/ValtricConsulting/internal/backend"
)

// #endregion

// #region chat-client

// Chat is a chat-completions backend (DeepSeek and other compatible
// services). It serves the triage tier.
type Chat struct {
	hc   *http.Client
	url  string
	opts Options
}

// NewChat returns a chat backend, or backend.ErrNotConfigured without an API key.
func NewChat(hc *http.Client, opts Options) (*Chat, error) {
	opts, err := opts.resolve("chat completions", DefaultDeepSeekBaseURL, DefaultChatModel)
	if err != nil {
		return nil, err
	}
	return &Chat{hc: orDefault(hc), url: backend.JoinURL(opts.BaseURL, "chat/completions"), opts: opts}, nil
}

func (c *Chat) Name() string { return "chat:" + c.opts.Model }

// #endregion

// #region complete

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	Reasoning *effortHint   `json:"reasoning,omitempty"`
}

type effortHint struct {
	Effort string `json:"effort"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

var errNoChoices = errors.New("chat completions: response has no choices")

func (c *Chat) Complete(ctx context.Context, req backend.CompletionRequest) (string, error) {
	system := req.System
	if system == "" {
		system = chatSystemPrompt
	}
	body := chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Prompt},
		},
	}
	if req.Effort != "" {
		body.Reasoning = &effortHint{Effort: req.Effort}
	}

	var resp chatResponse
	if err := backend.PostJSON(ctx, c.hc, "chat completions", c.url, c.opts.headers(), body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// #endregion
