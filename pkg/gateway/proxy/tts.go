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

const (
	maxSpeechTextLen   = 4096
	defaultSpeechModel = "tts-1"
	defaultSpeechVoice = "alloy"
)

// speechVoices are the upstream's named voice presets.
var speechVoices = map[string]bool{
	"alloy":   true,
	"echo":    true,
	"fable":   true,
	"onyx":    true,
	"nova":    true,
	"shimmer": true,
}

// SpeechRequest is the client-facing text-to-speech request.
type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Validate checks text length and voice preset.
func (r SpeechRequest) Validate() error {
	if r.Text == "" {
		return fmt.Errorf("text must not be empty")
	}
	if len(r.Text) > maxSpeechTextLen {
		return fmt.Errorf("text exceeds %d characters", maxSpeechTextLen)
	}
	if r.Voice != "" && !speechVoices[r.Voice] {
		return fmt.Errorf("voice %q is not a known preset", r.Voice)
	}
	return nil
}

// Speech streams synthesized audio from the upstream TTS endpoint.
type Speech struct {
	apiBase string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewSpeech creates a TTS proxy.
func NewSpeech(apiBase, apiKey string, logger *zap.Logger) *Speech {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Speech{
		apiBase: apiBase,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 2 * time.Minute},
		logger:  logger,
	}
}

// Forward validates req and streams the upstream's binary audio body to w.
func (s *Speech) Forward(w http.ResponseWriter, r *http.Request, req SpeechRequest) error {
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}
	if req.Voice == "" {
		req.Voice = defaultSpeechVoice
	}

	body, err := json.Marshal(map[string]any{
		"model": defaultSpeechModel,
		"input": req.Text,
		"voice": req.Voice,
	})
	if err != nil {
		return err
	}

	upstream, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
		s.apiBase+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return err
	}
	upstream.Header.Set("Authorization", "Bearer "+s.apiKey)
	upstream.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(upstream)
	if err != nil {
		s.logger.Warn("tts upstream request failed", zap.Error(err))
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("tts upstream rejected request", zap.Int("status", resp.StatusCode))
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, resp.Body)
	return nil
}
