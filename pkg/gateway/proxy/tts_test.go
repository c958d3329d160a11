package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSpeechRequest_Validate(t *testing.T) {
	ok := SpeechRequest{Text: "hello"}
	if err := ok.Validate(); err != nil {
		t.Fatal(err)
	}
	withVoice := SpeechRequest{Text: "hello", Voice: "nova"}
	if err := withVoice.Validate(); err != nil {
		t.Fatal(err)
	}

	empty := SpeechRequest{}
	if err := empty.Validate(); err == nil {
		t.Fatal("empty text accepted")
	}

	long := SpeechRequest{Text: strings.Repeat("a", maxSpeechTextLen+1)}
	if err := long.Validate(); err == nil {
		t.Fatal("overlong text accepted")
	}
	atLimit := SpeechRequest{Text: strings.Repeat("a", maxSpeechTextLen)}
	if err := atLimit.Validate(); err != nil {
		t.Fatal(err)
	}

	badVoice := SpeechRequest{Text: "hello", Voice: "morgan"}
	if err := badVoice.Validate(); err == nil {
		t.Fatal("unknown voice accepted")
	}
}

func TestSpeech_ForwardStreamsAudio(t *testing.T) {
	var gotBody map[string]any
	var gotPath string
	audio := []byte{0xFF, 0xFB, 0x01, 0x02}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write(audio)
	}))
	defer upstream.Close()

	speech := NewSpeech(upstream.URL, "sk-test", nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/tts", nil)

	if err := speech.Forward(rec, req, SpeechRequest{Text: "hello"}); err != nil {
		t.Fatal(err)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content-type=%q", ct)
	}
	if string(rec.Body.Bytes()) != string(audio) {
		t.Fatalf("body=%v", rec.Body.Bytes())
	}

	if gotPath != "/audio/speech" {
		t.Fatalf("path=%q", gotPath)
	}
	// Voice omitted by the client falls back to the default preset.
	if gotBody["voice"] != defaultSpeechVoice {
		t.Fatalf("voice=%v", gotBody["voice"])
	}
	if gotBody["input"] != "hello" {
		t.Fatalf("input=%v", gotBody["input"])
	}
}

func TestSpeech_ForwardRejectsInvalidRequest(t *testing.T) {
	speech := NewSpeech("http://unused.invalid", "sk-test", nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/tts", nil)

	if err := speech.Forward(rec, req, SpeechRequest{}); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestSpeech_ForwardPassesThroughUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"bad key"}`)
	}))
	defer upstream.Close()

	speech := NewSpeech(upstream.URL, "sk-test", nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/tts", nil)

	if err := speech.Forward(rec, req, SpeechRequest{Text: "hello"}); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestSpeech_ForwardUpstreamUnreachable(t *testing.T) {
	speech := NewSpeech("http://127.0.0.1:1", "sk-test", nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/tts", nil)

	if err := speech.Forward(rec, req, SpeechRequest{Text: "hello"}); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status=%d", rec.Code)
	}
}
