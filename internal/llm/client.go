package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hoeteam/openchat/internal/models"
	"github.com/hoeteam/openchat/pkg/config"
	"go.uber.org/zap"
)

// noResponseFallback is appended as the assistant turn when a provider
// returns an empty choices list, so the transcript always gets a reply.
const noResponseFallback = "No response was returned by the LLM API."

// Client sends chat completion requests to whichever provider the active
// model configuration names.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg config.ChatConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			// Long request timeout: generation of long replies can take minutes.
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: cfg.ConnectTimeout,
				}).DialContext,
			},
		},
		logger: logger,
	}
}

// SendChat performs one chat completion call and returns the assistant
// reply. The configured system prompt is prepended to the transcript.
// Configuration problems fail before any network I/O; transport failures
// come back as a *RequestError carrying the failure class. Context
// cancellation is propagated as-is.
func (c *Client) SendChat(ctx context.Context, messages []APIMessage, cfg models.ModelConfig) (string, error) {
	endpoint, err := ResolveEndpoint(cfg)
	if err != nil {
		return "", configurationError(err)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return "", configurationError(fmt.Errorf("provider %s: %w", cfg.Provider, ErrMissingAPIKey))
	}

	fullMessages := make([]APIMessage, 0, len(messages)+1)
	fullMessages = append(fullMessages, APIMessage{Role: "system", Content: cfg.SystemPrompt})
	fullMessages = append(fullMessages, messages...)

	body, err := json.Marshal(ChatRequest{
		Model:    cfg.ModelName,
		Messages: fullMessages,
	})
	if err != nil {
		return "", &RequestError{Kind: KindUnknown, Message: "failed to encode request body", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", configurationError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	applyAuth(req, cfg)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Cancellation is never converted into a transport failure.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("chat completion response",
		zap.String("provider", string(cfg.Provider)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode >= 400 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", classifyStatusError(resp.StatusCode)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &RequestError{Kind: KindUnknown, Message: "failed to decode response body", Cause: err}
	}

	if len(chatResp.Choices) == 0 {
		return noResponseFallback, nil
	}
	return chatResp.Choices[0].Message.Content, nil
}

// applyAuth places the credential where the provider expects it. Everything
// but Gemini uses a bearer token; Gemini takes the key as a query parameter.
// Claude is deliberately left on the bearer scheme even though the real
// Claude API expects an x-api-key header; see DESIGN.md.
func applyAuth(req *http.Request, cfg models.ModelConfig) {
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	switch cfg.Provider {
	case models.ProviderGemini:
		q := req.URL.Query()
		q.Set("key", cfg.APIKey)
		req.URL.RawQuery = q.Encode()
		req.Header.Del("Authorization")
	case models.ProviderDashscope:
		if strings.TrimSpace(cfg.AppID) != "" {
			req.Header.Set("X-DashScope-Appid", cfg.AppID)
		}
	}
}

func classifyStatusError(status int) *RequestError {
	if status >= 500 {
		return &RequestError{
			Kind:       KindServer,
			StatusCode: status,
			Message:    fmt.Sprintf("server error: %d", status),
		}
	}
	return &RequestError{
		Kind:       KindClient,
		StatusCode: status,
		Message:    fmt.Sprintf("API error: %d, the key may be invalid or the request malformed", status),
	}
}

func classifyTransportError(err error) *RequestError {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &RequestError{
			Kind:    KindNetworkUnreachable,
			Message: "network connection failed: unable to resolve host",
			Cause:   err,
		}
	}
	return &RequestError{
		Kind:    KindUnknown,
		Message: "unknown error",
		Cause:   err,
	}
}
