package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoeteam/openchat/internal/models"
	"github.com/hoeteam/openchat/pkg/config"
	"go.uber.org/zap"
)

func testClient() *Client {
	return NewClient(config.ChatConfig{
		RequestTimeout: 5 * time.Second,
		ConnectTimeout: 2 * time.Second,
	}, zap.NewNop())
}

func testConfig(provider models.Provider, url string) models.ModelConfig {
	return models.ModelConfig{
		ID:           "cfg-1",
		Name:         "test",
		Provider:     provider,
		APIKey:       "k",
		ModelName:    "test-model",
		SystemPrompt: "You are helpful.",
		CustomAPIURL: url,
	}
}

func replyWith(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{
			ID:      "resp-1",
			Choices: []Choice{{Message: APIMessage{Role: "assistant", Content: content}}},
		})
	}
}

func TestResolveEndpointDefaults(t *testing.T) {
	tests := []struct {
		provider models.Provider
		want     string
	}{
		{models.ProviderOpenAI, "https://api.openai.com/v1/chat/completions"},
		{models.ProviderDeepSeek, "https://api.deepseek.com/v1/chat/completions"},
		{models.ProviderDashscope, "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"},
		{models.ProviderClaude, "https://api.anthropic.com/v1/messages"},
	}
	for _, tt := range tests {
		got, err := ResolveEndpoint(models.ModelConfig{Provider: tt.provider, ModelName: "m"})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestResolveEndpointGeminiPlaceholder(t *testing.T) {
	got, err := ResolveEndpoint(models.ModelConfig{
		Provider:  models.ProviderGemini,
		ModelName: "gemini-x",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-x:generateContent", got)
	assert.NotContains(t, got, modelNamePlaceholder)
}

func TestResolveEndpointCustomOverrideWins(t *testing.T) {
	got, err := ResolveEndpoint(models.ModelConfig{
		Provider:     models.ProviderOpenAI,
		CustomAPIURL: "https://example.com/v1/chat",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/v1/chat", got)
}

func TestResolveEndpointCustomWithoutURLFails(t *testing.T) {
	_, err := ResolveEndpoint(models.ModelConfig{Provider: models.ProviderCustom})
	assert.ErrorIs(t, err, ErrMissingEndpoint)
}

func TestSendChatBuildsUniformBody(t *testing.T) {
	var gotBody ChatRequest
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		replyWith("hello back")(w, r)
	}))
	defer server.Close()

	reply, err := testClient().SendChat(context.Background(),
		[]APIMessage{{Role: "user", Content: "hello"}},
		testConfig(models.ProviderOpenAI, server.URL))
	require.NoError(t, err)
	assert.Equal(t, "hello back", reply)
	assert.Equal(t, "Bearer k", gotAuth)

	assert.Equal(t, "test-model", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, APIMessage{Role: "system", Content: "You are helpful."}, gotBody.Messages[0])
	assert.Equal(t, APIMessage{Role: "user", Content: "hello"}, gotBody.Messages[1])
}

func TestSendChatGeminiAuthPlacement(t *testing.T) {
	var gotAuth, gotKey, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.URL.Query().Get("key")
		gotPath = r.URL.Path
		replyWith("ok")(w, r)
	}))
	defer server.Close()

	cfg := testConfig(models.ProviderGemini, server.URL+"/v1beta/models/MODEL_PLACEHOLDER:generateContent")
	cfg.ModelName = "gemini-x"

	_, err := testClient().SendChat(context.Background(),
		[]APIMessage{{Role: "user", Content: "hi"}}, cfg)
	require.NoError(t, err)

	assert.Empty(t, gotAuth, "Gemini requests must not carry an Authorization header")
	assert.Equal(t, "k", gotKey)
	assert.Contains(t, gotPath, "gemini-x")
}

func TestSendChatDashscopeAppIDHeader(t *testing.T) {
	var gotAppID, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAppID = r.Header.Get("X-DashScope-Appid")
		gotAuth = r.Header.Get("Authorization")
		replyWith("ok")(w, r)
	}))
	defer server.Close()

	cfg := testConfig(models.ProviderDashscope, server.URL)
	cfg.AppID = "app-7"

	_, err := testClient().SendChat(context.Background(), nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, "app-7", gotAppID)
	assert.Equal(t, "Bearer k", gotAuth)
}

func TestSendChatConfigurationErrorsSkipNetwork(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	// Custom provider without an endpoint.
	_, err := testClient().SendChat(context.Background(), nil,
		models.ModelConfig{Provider: models.ProviderCustom, APIKey: "k"})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindConfiguration, reqErr.Kind)
	assert.ErrorIs(t, err, ErrMissingEndpoint)

	// Blank API key.
	cfg := testConfig(models.ProviderOpenAI, server.URL)
	cfg.APIKey = "   "
	_, err = testClient().SendChat(context.Background(), nil, cfg)
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, KindConfiguration, reqErr.Kind)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	assert.Zero(t, calls, "no network call may be attempted on configuration errors")
}

func TestSendChatClassifiesHTTPStatuses(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
	}{
		{http.StatusUnauthorized, KindClient},
		{http.StatusTooManyRequests, KindClient},
		{http.StatusInternalServerError, KindServer},
		{http.StatusBadGateway, KindServer},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		_, err := testClient().SendChat(context.Background(), nil,
			testConfig(models.ProviderOpenAI, server.URL))
		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr, "status %d", tt.status)
		assert.Equal(t, tt.kind, reqErr.Kind, "status %d", tt.status)
		assert.Equal(t, tt.status, reqErr.StatusCode)
		server.Close()
	}
}

func TestSendChatEmptyChoicesSoftFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ChatResponse{ID: "resp-1"})
	}))
	defer server.Close()

	reply, err := testClient().SendChat(context.Background(), nil,
		testConfig(models.ProviderOpenAI, server.URL))
	require.NoError(t, err)
	assert.Equal(t, noResponseFallback, reply)
}

func TestSendChatPropagatesCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := testClient().SendChat(ctx,
		[]APIMessage{{Role: "user", Content: "hi"}},
		testConfig(models.ProviderOpenAI, server.URL))
	assert.ErrorIs(t, err, context.Canceled)

	var reqErr *RequestError
	assert.False(t, errors.As(err, &reqErr), "cancellation must not be classified as a transport failure")
}
