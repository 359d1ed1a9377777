package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionJSON(content string, toolCalls ...map[string]any) string {
	message := map[string]any{"role": "assistant", "content": content}
	if len(toolCalls) > 0 {
		message["tool_calls"] = toolCalls
	}
	body, _ := json.Marshal(map[string]any{
		"model": "test-model",
		"choices": []map[string]any{
			{"message": message, "finish_reason": "stop"},
		},
		"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 7},
	})
	return string(body)
}

func TestChatPlainAnswer(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(completionJSON("E. coli is facultative.")))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "sk-test", "test-model", nil)
	resp, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "oxygen?"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotPath != "/v1/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if resp.Message.Content != "E. coli is facultative." {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 7 {
		t.Errorf("usage = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
}

func TestChatNativeToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionJSON("", map[string]any{
			"id":   "call_1",
			"type": "function",
			"function": map[string]any{
				"name":      "query_micro_features",
				"arguments": `{"oxygen": "anaerobic", "limit": 5}`,
			},
		})))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "test-model", nil)
	resp, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %v", resp.Message.ToolCalls)
	}
	tc := resp.Message.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "query_micro_features" {
		t.Errorf("call = %+v", tc)
	}
	if tc.Arguments["oxygen"] != "anaerobic" {
		t.Errorf("arguments string not decoded: %v", tc.Arguments)
	}
	if tc.Arguments["limit"].(float64) != 5 {
		t.Errorf("numeric argument = %v", tc.Arguments["limit"])
	}
}

func TestChatTextToolCallFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionJSON(`{"name": "list_experts", "arguments": {"field": "genomics"}}`)))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "test-model", nil)
	resp, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 || resp.Message.ToolCalls[0].Name != "list_experts" {
		t.Fatalf("fallback parse failed: %+v", resp.Message)
	}
	if resp.Message.Content != "" {
		t.Errorf("content not cleared after fallback parse: %q", resp.Message.Content)
	}
}

func TestChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "test-model", nil)
	_, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error lacks status: %v", err)
	}
}

func TestChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model": "test-model", "choices": []}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "test-model", nil)
	if _, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestChatSendsToolsAndHistory(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(completionJSON("ok")))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "test-model", nil)
	tools := []map[string]any{{"type": "function"}}
	msgs := []Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "q"},
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "c1", Name: "lookup", Arguments: map[string]any{"x": 1}}}},
		{Role: "tool", Content: "obs", ToolCallID: "c1"},
	}
	if _, err := c.Chat(context.Background(), msgs, tools); err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if got.Model != "test-model" || len(got.Messages) != 4 || len(got.Tools) != 1 {
		t.Fatalf("request = %+v", got)
	}
	wc := got.Messages[2].ToolCalls[0]
	if wc.Function.Name != "lookup" || !strings.Contains(wc.Function.Arguments, `"x":1`) {
		t.Errorf("tool call not encoded as argument string: %+v", wc)
	}
	if got.Messages[3].ToolCallID != "c1" {
		t.Errorf("tool result correlation lost: %+v", got.Messages[3])
	}
}
