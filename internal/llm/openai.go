package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Dizzy12138/bio-agent/internal/httpkit"
)

// OpenAIClient speaks the OpenAI-compatible chat-completions dialect
// used by the inference backend (and by most local serving stacks).
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
// baseURL is the server root (no /v1 suffix). The overall request
// timeout is disabled: large models behind tool prompts can legitimately
// take minutes, and the caller's context still bounds the call.
func NewOpenAIClient(baseURL, apiKey, model string, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: httpkit.NewClient(0),
		logger:     logger,
	}
}

// Wire types for the chat-completions endpoint. Arguments travel as a
// JSON-encoded string in this dialect; conversion to map[string]any
// happens here, at the provider boundary.

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []wireMessage    `json:"messages"`
	Tools    []map[string]any `json:"tools,omitempty"`
}

type chatCompletion struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Chat sends a chat-completion request and normalizes the response.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, tools []map[string]any) (*ChatResponse, error) {
	req := chatRequest{
		Model:    c.model,
		Messages: toWire(messages),
		Tools:    tools,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	c.logger.Log(ctx, LevelTrace, "chat request", "payload", string(payload))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat API error %d: %s",
			resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 2048))
	}

	var completion chatCompletion
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("chat API returned no choices")
	}

	msg, err := fromWire(completion.Choices[0].Message)
	if err != nil {
		return nil, err
	}

	// Some models emit the tool call as JSON in the content instead of
	// using the native tool_calls field. Recover those here so the loop
	// only ever sees structured calls.
	if len(msg.ToolCalls) == 0 && msg.Content != "" {
		if parsed := ParseTextToolCalls(msg.Content); len(parsed) > 0 {
			msg.ToolCalls = parsed
			msg.Content = ""
		}
	}

	return &ChatResponse{
		Model:        completion.Model,
		Message:      msg,
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}, nil
}

func toWire(messages []Message) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, m := range messages {
		w := wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			var wc wireToolCall
			wc.ID = tc.ID
			wc.Type = "function"
			wc.Function.Name = tc.Name
			args, err := json.Marshal(tc.Arguments)
			if err != nil {
				args = []byte("{}")
			}
			wc.Function.Arguments = string(args)
			w.ToolCalls = append(w.ToolCalls, wc)
		}
		out[i] = w
	}
	return out
}

func fromWire(w wireMessage) (Message, error) {
	m := Message{
		Role:       w.Role,
		Content:    w.Content,
		ToolCallID: w.ToolCallID,
	}
	for _, wc := range w.ToolCalls {
		tc := ToolCall{ID: wc.ID, Name: wc.Function.Name}
		if wc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(wc.Function.Arguments), &tc.Arguments); err != nil {
				return Message{}, fmt.Errorf("parse tool call arguments for %s: %w", wc.Function.Name, err)
			}
		}
		if tc.Arguments == nil {
			tc.Arguments = map[string]any{}
		}
		m.ToolCalls = append(m.ToolCalls, tc)
	}
	return m, nil
}
