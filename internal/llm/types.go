package llm

// #region imports
import (
	"fmt"
	"net/http"

	"github.com/Hussain0327/ValtricConsulting/internal/backend"
)

// #endregion

// #region defaults

const (
	DefaultOpenAIBaseURL   = "https://api.openai.com/v1"
	DefaultDeepSeekBaseURL = "https://api.deepseek.com/v1"

	DefaultChatModel      = "deepseek-chat"
	DefaultResponsesModel = "gpt-5-nano"
	DefaultEmbeddingModel = "text-embedding-3-large"
)

// chatSystemPrompt is sent when a request carries no system prompt of its own.
const chatSystemPrompt = "You produce concise valuation memos as strict minified JSON. " +
	"Never return markdown or commentary outside the JSON object."

// #endregion

// #region options

// Options configures one HTTP reasoning or embedding backend.
type Options struct {
	BaseURL string
	APIKey  string
	Model   string
	// Headers are added to every request after Authorization.
	Headers map[string]string
}

func (o Options) resolve(op, baseURL, model string) (Options, error) {
	if o.APIKey == "" {
		return o, fmt.Errorf("%s: %w", op, backend.ErrNotConfigured)
	}
	if o.BaseURL == "" {
		o.BaseURL = baseURL
	}
	if o.Model == "" {
		o.Model = model
	}
	return o, nil
}

func (o Options) headers() map[string]string {
	h := make(map[string]string, len(o.Headers)+1)
	h["Authorization"] = "Bearer " + o.APIKey
	for k, v := range o.Headers {
		h[k] = v
	}
	return h
}

func orDefault(hc *http.Client) *http.Client {
	if hc == nil {
		return backend.NewHTTPClient(backend.Timeouts{})
	}
	return hc
}

// #endregion
