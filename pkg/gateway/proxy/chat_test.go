package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func validChatRequest() ChatRequest {
	return ChatRequest{
		Messages: []ChatTurn{
			{Role: "system", Content: "you are terse"},
			{Role: "user", Content: "hi"},
		},
	}
}

func TestChatRequest_Validate(t *testing.T) {
	if err := validChatRequest().Validate(); err != nil {
		t.Fatal(err)
	}

	empty := ChatRequest{}
	if err := empty.Validate(); err == nil {
		t.Fatal("empty messages accepted")
	}

	badRole := validChatRequest()
	badRole.Messages[0].Role = "narrator"
	if err := badRole.Validate(); err == nil {
		t.Fatal("bad role accepted")
	}

	emptyContent := validChatRequest()
	emptyContent.Messages[1].Content = ""
	if err := emptyContent.Validate(); err == nil {
		t.Fatal("empty content accepted")
	}

	negTokens := validChatRequest()
	negTokens.MaxTokens = -1
	if err := negTokens.Validate(); err == nil {
		t.Fatal("negative max_tokens accepted")
	}
}

func TestChat_ForwardStreamsSSE(t *testing.T) {
	var gotBody map[string]any
	var gotAuth, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"delta\":\"hi\"}\n\ndata: [DONE]\n\n")
	}))
	defer upstream.Close()

	chat := NewChat(upstream.URL, "sk-test", nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)

	if err := chat.Forward(rec, req, validChatRequest()); err != nil {
		t.Fatal(err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%q", ct)
	}
	if !strings.Contains(rec.Body.String(), "data: [DONE]") {
		t.Fatalf("body=%q", rec.Body.String())
	}

	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth=%q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("path=%q", gotPath)
	}
	if gotBody["stream"] != true {
		t.Fatalf("stream=%v", gotBody["stream"])
	}
	if gotBody["model"] != defaultChatModel {
		t.Fatalf("model=%v", gotBody["model"])
	}
}

func TestChat_ForwardRejectsInvalidRequest(t *testing.T) {
	chat := NewChat("http://unused.invalid", "sk-test", nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)

	if err := chat.Forward(rec, req, ChatRequest{}); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestChat_ForwardPassesThroughUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":"rate limited"}`)
	}))
	defer upstream.Close()

	chat := NewChat(upstream.URL, "sk-test", nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)

	if err := chat.Forward(rec, req, validChatRequest()); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rate limited") {
		t.Fatalf("body=%q", rec.Body.String())
	}
}

func TestChat_ForwardUpstreamUnreachable(t *testing.T) {
	chat := NewChat("http://127.0.0.1:1", "sk-test", nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)

	if err := chat.Forward(rec, req, validChatRequest()); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rec.Code)
	}
}
