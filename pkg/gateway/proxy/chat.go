// Package proxy implements the thin request/response forwarders that sit
// beside the realtime relay: chat completion (SSE token stream) and text to
// speech (binary audio stream). Both validate the request shape and forward
// everything else verbatim; no model logic lives here.
package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const defaultChatModel = "gpt-4o-mini"

// ChatTurn is one {role, content} conversation turn.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the client-facing chat completion request.
type ChatRequest struct {
	Messages  []ChatTurn `json:"messages"`
	Model     string     `json:"model,omitempty"`
	MaxTokens int        `json:"max_tokens,omitempty"`
}

// Validate checks the request shape before it is forwarded.
func (r ChatRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	for i, turn := range r.Messages {
		switch turn.Role {
		case "system", "user", "assistant":
		default:
			return fmt.Errorf("messages[%d].role %q is not valid", i, turn.Role)
		}
		if turn.Content == "" {
			return fmt.Errorf("messages[%d].content must not be empty", i)
		}
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be >= 0")
	}
	return nil
}

// Chat streams token deltas from the upstream chat-completion endpoint.
type Chat struct {
	apiBase string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewChat creates a chat proxy.
func NewChat(apiBase, apiKey string, logger *zap.Logger) *Chat {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chat{
		apiBase: apiBase,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 2 * time.Minute},
		logger:  logger,
	}
}

// Forward validates req, requests a streaming completion upstream, and
// copies the SSE event stream to w until the terminating sentinel.
func (c *Chat) Forward(w http.ResponseWriter, r *http.Request, req ChatRequest) error {
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}
	if req.Model == "" {
		req.Model = defaultChatModel
	}

	body, err := json.Marshal(map[string]any{
		"model":      req.Model,
		"messages":   req.Messages,
		"max_tokens": req.MaxTokens,
		"stream":     true,
	})
	if err != nil {
		return err
	}

	upstream, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
		c.apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	upstream.Header.Set("Authorization", "Bearer "+c.apiKey)
	upstream.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(upstream)
	if err != nil {
		c.logger.Warn("chat upstream request failed", zap.Error(err))
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("chat upstream rejected request", zap.Int("status", resp.StatusCode))
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return nil
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			return nil
		}
	}
}
