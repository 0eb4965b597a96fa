package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)

	c, err := NewClient(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())
}

func TestComplete_SendsToolsAndParsesToolCalls(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":null,
			"tool_calls":[{"id":"call_1","type":"function","function":{"name":"search_documents","arguments":"{\"query\":\"go\"}"}}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{APIKey: "secret", BaseURL: srv.URL + "/", Model: "m", Temperature: 0.2, MaxTokens: 64})
	require.NoError(t, err)
	tools := []Tool{NewFunctionTool("search_documents", "Search", map[string]interface{}{"type": "object"})}
	resp, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, tools)
	require.NoError(t, err)

	assert.Equal(t, "m", got["model"])
	assert.Equal(t, "auto", got["tool_choice"])
	assert.EqualValues(t, 0.2, got["temperature"])
	assert.EqualValues(t, 64, got["max_tokens"])
	assert.Len(t, got["tools"], 1)

	msg := resp.FirstMessage()
	require.NotNil(t, msg)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call_1", msg.ToolCalls[0].ID)
	assert.Equal(t, "search_documents", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"query":"go"}`, string(msg.ToolCalls[0].Function.RawArguments()))
}

func TestComplete_NoToolsOmitsToolChoice(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	resp, err := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.NotContains(t, got, "tools")
	assert.NotContains(t, got, "tool_choice")
	assert.Equal(t, "hello", resp.FirstMessage().Content)
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error body", http.StatusUnauthorized, `{"error":{"message":"invalid key","type":"auth"}}`},
		{"non-json error", http.StatusBadGateway, `upstream unavailable`},
		{"bad json", http.StatusOK, `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			c, _ := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
			_, err := c.Complete(context.Background(), nil, nil)
			assert.Error(t, err)
		})
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()
	c, _ := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	resp, err := c.Complete(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, resp.FirstMessage())
}

func TestMessage_MarshalToolResult(t *testing.T) {
	b, err := json.Marshal(Message{Role: RoleTool, ToolCallID: "call_1", Content: `{"success":true}`})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"tool","tool_call_id":"call_1","content":"{\"success\":true}"}`, string(b))
}
