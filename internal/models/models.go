package models

import "time"

// Provider identifies one of the supported LLM backends.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderDeepSeek  Provider = "deepseek"
	ProviderDashscope Provider = "dashscope"
	ProviderClaude    Provider = "claude"
	ProviderCustom    Provider = "custom"
)

// DisplayName is the human-readable provider label shown in settings.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI / Azure OpenAI"
	case ProviderGemini:
		return "Google Gemini API"
	case ProviderDeepSeek:
		return "DeepSeek"
	case ProviderDashscope:
		return "Alibaba Cloud Dashscope"
	case ProviderClaude:
		return "Claude"
	case ProviderCustom:
		return "Custom API"
	}
	return string(p)
}

// ModelConfig is one user-defined LLM endpoint configuration. APIKey holds
// the decrypted secret while in memory; at rest it is stored encrypted by
// the settings repository.
type ModelConfig struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Provider     Provider `json:"provider"`
	APIKey       string   `json:"api_key"`
	ModelName    string   `json:"model_name"`
	SystemPrompt string   `json:"system_prompt"`
	CustomAPIURL string   `json:"custom_api_url,omitempty"`
	AppID        string   `json:"app_id,omitempty"`
}

// Role distinguishes who produced a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry. Failed is set on assistant turns that
// report an API error; such turns are shown to the user but excluded from
// subsequent outbound requests.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`
	Failed    bool      `json:"failed,omitempty"`
}
