package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func TestOpenAIGenerate_Success(t *testing.T) {
	mock := &mockChatService{resp: openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "status_check"}},
		},
	}}
	client := &OpenAIClient{chat: mock, model: DefaultModel}

	out, err := client.Generate(context.Background(), Request{Prompt: "classify this", MaxTokens: 20, Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, "status_check", out)
	assert.Len(t, mock.params.Messages, 1)
	assert.Equal(t, int64(20), mock.params.MaxTokens.Value)
}

func TestOpenAIGenerate_WithSystemPrompt(t *testing.T) {
	mock := &mockChatService{resp: openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
	}}
	client := &OpenAIClient{chat: mock, model: DefaultModel}

	_, err := client.Generate(context.Background(), Request{SystemPrompt: "sys", Prompt: "usr"})
	require.NoError(t, err)
	assert.Len(t, mock.params.Messages, 2)
}

func TestOpenAIGenerate_ServiceError(t *testing.T) {
	client := &OpenAIClient{chat: &mockChatService{err: errors.New("service failure")}, model: DefaultModel}
	_, err := client.Generate(context.Background(), Request{Prompt: "usr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service failure")
}

func TestOpenAIGenerate_NoChoices(t *testing.T) {
	client := &OpenAIClient{chat: &mockChatService{resp: openai.ChatCompletion{}}, model: DefaultModel}
	_, err := client.Generate(context.Background(), Request{Prompt: "usr"})
	assert.ErrorIs(t, err, ErrNoChoicesReturned)
}

func TestOpenAIGenerate_EmptyPrompt(t *testing.T) {
	client := &OpenAIClient{chat: &mockChatService{}, model: DefaultModel}
	_, err := client.Generate(context.Background(), Request{Prompt: "   "})
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestNewOpenAIClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIClient()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewOpenAIClient_WithKey(t *testing.T) {
	cli, err := NewOpenAIClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	require.NoError(t, err)
	assert.Equal(t, openai.ChatModel("gpt-4o"), cli.model)
}

func TestHTTPGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "classify", body.Prompt)
		assert.Equal(t, 20, body.MaxTokens)
		assert.InDelta(t, 0.3, body.Temperature, 1e-9)
		assert.InDelta(t, DefaultTopP, body.TopP, 1e-9)
		_ = json.NewEncoder(w).Encode(generateResponse{GeneratedText: " greeting ", Status: "success"})
	}))
	defer srv.Close()

	client, err := NewHTTPClient(WithEndpoint(srv.URL))
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), Request{Prompt: "classify", MaxTokens: 20, Temperature: 0.3})
	require.NoError(t, err)
	assert.Equal(t, " greeting ", out)
}

func TestHTTPGenerate_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewHTTPClient(WithEndpoint(srv.URL))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), Request{Prompt: "classify"})
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestHTTPGenerate_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client, err := NewHTTPClient(WithEndpoint(srv.URL))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), Request{Prompt: "classify"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestHTTPGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := NewHTTPClient(WithEndpoint(srv.URL), WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), Request{Prompt: "classify"})
	assert.Error(t, err)
}

func TestNewHTTPClient_NoEndpoint(t *testing.T) {
	_, err := NewHTTPClient()
	assert.ErrorIs(t, err, ErrMissingEndpoint)
}
