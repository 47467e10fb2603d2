package llm

import (
	"fmt"
	"strings"

	"github.com/hoeteam/openchat/internal/models"
)

// modelNamePlaceholder is substituted with the configured model identifier
// in endpoint templates that embed the model in the URL path.
const modelNamePlaceholder = "MODEL_PLACEHOLDER"

// defaultEndpoint returns the fixed endpoint template for a provider. The
// custom provider has no default and requires an explicit URL.
func defaultEndpoint(provider models.Provider) string {
	switch provider {
	case models.ProviderOpenAI:
		return "https://api.openai.com/v1/chat/completions"
	case models.ProviderGemini:
		// The model name is part of the URL path.
		return "https://generativelanguage.googleapis.com/v1beta/models/" + modelNamePlaceholder + ":generateContent"
	case models.ProviderDeepSeek:
		return "https://api.deepseek.com/v1/chat/completions"
	case models.ProviderDashscope:
		return "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	case models.ProviderClaude:
		return "https://api.anthropic.com/v1/messages"
	case models.ProviderCustom:
		return ""
	}
	return ""
}

// ResolveEndpoint determines the URL for one outbound chat call. An explicit
// custom URL always wins, regardless of provider.
func ResolveEndpoint(cfg models.ModelConfig) (string, error) {
	endpoint := strings.TrimSpace(cfg.CustomAPIURL)
	if endpoint == "" {
		endpoint = defaultEndpoint(cfg.Provider)
	}
	if endpoint == "" {
		return "", fmt.Errorf("provider %s: %w", cfg.Provider, ErrMissingEndpoint)
	}
	if cfg.Provider == models.ProviderGemini {
		endpoint = strings.ReplaceAll(endpoint, modelNamePlaceholder, cfg.ModelName)
	}
	return endpoint, nil
}

// APIMessage is one turn of the uniform wire transcript.
type APIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the uniform request body sent to every provider.
type ChatRequest struct {
	Model    string       `json:"model"`
	Messages []APIMessage `json:"messages"`
}

// ChatResponse is the uniform response shape parsed from every provider.
type ChatResponse struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Message APIMessage `json:"message"`
}
