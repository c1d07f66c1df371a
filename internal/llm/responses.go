package llm

// #region imports
import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Hussain0327/ValtricConsulting/internal/backend"
)

// #endregion

// #region responses-client

// Responses is an OpenAI Responses API backend. It serves the synthesis tier
// and honours both effort and verbosity hints.
type Responses struct {
	hc   *http.Client
	url  string
	opts Options
}

// NewResponses returns a Responses backend, or backend.ErrNotConfigured without an API key.
func NewResponses(hc *http.Client, opts Options) (*Responses, error) {
	opts, err := opts.resolve("responses", DefaultOpenAIBaseURL, DefaultResponsesModel)
	if err != nil {
		return nil, err
	}
	return &Responses{hc: orDefault(hc), url: backend.JoinURL(opts.BaseURL, "responses"), opts: opts}, nil
}

func (r *Responses) Name() string { return "responses:" + r.opts.Model }

// #endregion

// #region request

type inputText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type inputMessage struct {
	Role    string      `json:"role"`
	Content []inputText `json:"content"`
}

type verbosityHint struct {
	Verbosity string `json:"verbosity"`
}

type responsesRequest struct {
	Model     string         `json:"model"`
	Input     []inputMessage `json:"input"`
	Text      *verbosityHint `json:"text,omitempty"`
	Reasoning *effortHint    `json:"reasoning,omitempty"`
}

// #endregion

// #region response

type responsesResponse struct {
	OutputText json.RawMessage `json:"output_text"`
	Output     []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

var errNoOutputText = errors.New("responses: no output text")

// text prefers the convenience output_text field (a string or a list of
// strings) and otherwise joins the text items of every output message.
func (r responsesResponse) text() (string, error) {
	if len(r.OutputText) > 0 && string(r.OutputText) != "null" {
		var s string
		if err := json.Unmarshal(r.OutputText, &s); err == nil {
			return s, nil
		}
		var parts []string
		if err := json.Unmarshal(r.OutputText, &parts); err == nil {
			return strings.Join(parts, ""), nil
		}
	}
	var parts []string
	for _, item := range r.Output {
		for _, c := range item.Content {
			if c.Type == "output_text" || c.Type == "text" {
				parts = append(parts, c.Text)
			}
		}
	}
	if len(parts) == 0 {
		return "", errNoOutputText
	}
	return strings.Join(parts, ""), nil
}

// #endregion

// #region complete

func (r *Responses) Complete(ctx context.Context, req backend.CompletionRequest) (string, error) {
	var input []inputMessage
	if req.System != "" {
		input = append(input, inputMessage{Role: "system", Content: []inputText{{Type: "input_text", Text: req.System}}})
	}
	input = append(input, inputMessage{Role: "user", Content: []inputText{{Type: "input_text", Text: req.Prompt}}})

	body := responsesRequest{Model: r.opts.Model, Input: input}
	if req.Verbosity != "" {
		body.Text = &verbosityHint{Verbosity: req.Verbosity}
	}
	if req.Effort != "" {
		body.Reasoning = &effortHint{Effort: req.Effort}
	}

	var resp responsesResponse
	if err := backend.PostJSON(ctx, r.hc, "responses", r.url, r.opts.headers(), body, &resp); err != nil {
		return "", err
	}
	return resp.text()
}

// #endregion
