package synthesizebreakdown

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpclient "change-order-generator/internal/common/http"
	"change-order-generator/internal/common/logger"
)

func chatCompletionBody(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o",
		"choices": []map[string]interface{}{{
			"index":         0,
			"message":       map[string]interface{}{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]interface{}{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
	})
	return string(body)
}

func TestOpenAICompleter_Complete(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody map[string]interface{}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletionBody(outletReply))
	}))
	defer server.Close()

	cfg := createTestConfig()
	cfg.BaseURL = server.URL
	completer, err := NewOpenAICompleter(cfg, httpclient.NewClient(5*time.Second))
	require.NoError(t, err)

	reply, err := completer.Complete(context.Background(), systemPrompt, "Job description:\nInstall outlets")

	require.NoError(t, err)
	assert.JSONEq(t, outletReply, reply)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o", gotBody["model"])

	messages, ok := gotBody["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAICompleter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error": {"message": "overloaded", "type": "server_error"}}`)
	}))
	defer server.Close()

	cfg := createTestConfig()
	cfg.BaseURL = server.URL
	completer, err := NewOpenAICompleter(cfg, httpclient.NewClient(5*time.Second))
	require.NoError(t, err)

	_, err = completer.Complete(context.Background(), systemPrompt, "anything")
	assert.Error(t, err)
}

func TestOpenAICompleter_FeedsHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletionBody("```json\n"+outletReply+"\n```"))
	}))
	defer server.Close()

	cfg := createTestConfig()
	cfg.BaseURL = server.URL
	completer, err := NewOpenAICompleter(cfg, nil)
	require.NoError(t, err)

	raw, err := NewHandler(cfg, completer, logger.NewNoOpLogger()).Execute(context.Background(), textInput("outlets"))
	require.NoError(t, err)
	assert.Contains(t, raw, "labor")
}

// ==========================
// JSON Mode
// ==========================

// captureRequest returns a server that answers every completion and stores
// the decoded request body.
func captureRequest(t *testing.T) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	body := map[string]interface{}{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatCompletionBody(outletReply))
	}))
	t.Cleanup(server.Close)
	return server, &body
}

func TestOpenAICompleter_DefaultConfigSendsAcceptedPairing(t *testing.T) {
	server, body := captureRequest(t)

	cfg := LoadConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = server.URL
	completer, err := NewOpenAICompleter(cfg, httpclient.NewClient(5*time.Second))
	require.NoError(t, err)

	_, err = completer.Complete(context.Background(), systemPrompt, "Install outlets")
	require.NoError(t, err)

	model, _ := (*body)["model"].(string)
	require.NotEmpty(t, model)
	assert.True(t, SupportsJSONMode(model), "default model %q must accept json_object", model)

	format, ok := (*body)["response_format"].(map[string]interface{})
	require.True(t, ok, "default config requests JSON mode")
	assert.Equal(t, "json_object", format["type"])
}

func TestOpenAICompleter_LegacyModelSkipsJSONMode(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		jsonMode bool
	}{
		{name: "gpt-4 with json mode configured", model: "gpt-4", jsonMode: true},
		{name: "gpt-4-0613", model: "gpt-4-0613", jsonMode: true},
		{name: "json mode disabled", model: "gpt-4o", jsonMode: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, body := captureRequest(t)

			cfg := createTestConfig()
			cfg.BaseURL = server.URL
			cfg.Model = tt.model
			cfg.JSONMode = tt.jsonMode
			completer, err := NewOpenAICompleter(cfg, nil)
			require.NoError(t, err)

			_, err = completer.Complete(context.Background(), systemPrompt, "Install outlets")
			require.NoError(t, err)

			assert.Equal(t, tt.model, (*body)["model"])
			assert.Nil(t, (*body)["response_format"])
		})
	}
}

func TestSupportsJSONMode(t *testing.T) {
	assert.True(t, SupportsJSONMode("gpt-4o"))
	assert.True(t, SupportsJSONMode("gpt-4-turbo"))
	assert.True(t, SupportsJSONMode("gpt-3.5-turbo"))
	assert.False(t, SupportsJSONMode("gpt-4"))
	assert.False(t, SupportsJSONMode(" GPT-4 "))
	assert.False(t, SupportsJSONMode("gpt-4-32k"))
}
