package realtime

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
)

// ProtocolError reports a malformed wire frame.
type ProtocolError struct {
	Type    string
	Message string
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Type) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func protoErr(typ, message string) *ProtocolError {
	return &ProtocolError{Type: typ, Message: message}
}

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	Type string `json:"type"`
}

// SessionSettings is the session body carried by the configure message and
// echoed back by session.created / session.updated.
type SessionSettings struct {
	Model             string         `json:"model,omitempty"`
	Instructions      string         `json:"instructions,omitempty"`
	Voice             string         `json:"voice,omitempty"`
	InputAudioFormat  string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat string         `json:"output_audio_format,omitempty"`
	Modalities        []string       `json:"modalities,omitempty"`
	TurnDetection     *TurnDetection `json:"turn_detection,omitempty"`
}

// Outbound control messages. Each carries its own type tag so it can be
// written to the wire with a single json.Marshal.

type sessionUpdateMsg struct {
	Type    string          `json:"type"`
	Session SessionSettings `json:"session"`
}

type bufferAppendMsg struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type bufferCommitMsg struct {
	Type string `json:"type"`
}

type responseCreateMsg struct {
	Type string `json:"type"`
}

type responseCancelMsg struct {
	Type string `json:"type"`
}

// EncodeSessionUpdate builds the configure message sent once after connect.
func EncodeSessionUpdate(cfg SessionConfig) ([]byte, error) {
	return json.Marshal(sessionUpdateMsg{
		Type: "session.update",
		Session: SessionSettings{
			Model:             cfg.Model,
			Instructions:      cfg.Instructions,
			Voice:             cfg.Voice,
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
			Modalities:        []string{"audio", "text"},
			TurnDetection:     &TurnDetection{Type: "server_vad"},
		},
	})
}

// EncodeBufferAppend attaches one frame of little-endian PCM16 samples.
func EncodeBufferAppend(frame []int16) ([]byte, error) {
	pcm := make([]byte, len(frame)*2)
	for i, s := range frame {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return json.Marshal(bufferAppendMsg{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
}

// EncodeBufferCommit finalizes the appended input audio for the next turn.
func EncodeBufferCommit() ([]byte, error) {
	return json.Marshal(bufferCommitMsg{Type: "input_audio_buffer.commit"})
}

// EncodeResponseCreate requests a response when none is in progress.
func EncodeResponseCreate() ([]byte, error) {
	return json.Marshal(responseCreateMsg{Type: "response.create"})
}

// EncodeResponseCancel aborts an in-flight response.
func EncodeResponseCancel() ([]byte, error) {
	return json.Marshal(responseCancelMsg{Type: "response.cancel"})
}

// ServerEvent is the tagged union of inbound control messages.
type ServerEvent interface {
	serverEventType() string
}

// SessionCreatedEvent signals the session is ready.
type SessionCreatedEvent struct {
	Session SessionSettings `json:"session"`
}

func (SessionCreatedEvent) serverEventType() string { return "session.created" }

// SessionUpdatedEvent echoes an accepted configuration change.
type SessionUpdatedEvent struct {
	Session SessionSettings `json:"session"`
}

func (SessionUpdatedEvent) serverEventType() string { return "session.updated" }

// ServerErrorEvent carries an error code and message. Some codes are benign
// protocol noise; classification is the session's job, not the codec's.
type ServerErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ServerErrorEvent) serverEventType() string { return "error" }

// ResponseCreatedEvent marks the start of a remote response.
type ResponseCreatedEvent struct{}

func (ResponseCreatedEvent) serverEventType() string { return "response.created" }

// ResponseCancelledEvent marks an aborted response.
type ResponseCancelledEvent struct{}

func (ResponseCancelledEvent) serverEventType() string { return "response.cancelled" }

// ResponseDoneEvent marks a completed response.
type ResponseDoneEvent struct{}

func (ResponseDoneEvent) serverEventType() string { return "response.done" }

// OutputAudioDeltaEvent carries one base64 PCM16 chunk of assistant audio.
type OutputAudioDeltaEvent struct {
	Delta string `json:"delta"`
}

func (OutputAudioDeltaEvent) serverEventType() string { return "response.output_audio.delta" }

// OutputAudioDoneEvent marks the end of assistant audio for a response.
type OutputAudioDoneEvent struct{}

func (OutputAudioDoneEvent) serverEventType() string { return "response.output_audio.done" }

// OutputTranscriptDeltaEvent carries an assistant text chunk.
type OutputTranscriptDeltaEvent struct {
	Delta string `json:"delta"`
}

func (OutputTranscriptDeltaEvent) serverEventType() string {
	return "response.output_audio_transcript.delta"
}

// SpeechStartedEvent signals server-side detection of a new utterance.
type SpeechStartedEvent struct{}

func (SpeechStartedEvent) serverEventType() string { return "input_audio_buffer.speech_started" }

// SpeechStoppedEvent signals the end of the current utterance.
type SpeechStoppedEvent struct{}

func (SpeechStoppedEvent) serverEventType() string { return "input_audio_buffer.speech_stopped" }

// InputTranscriptDeltaEvent carries a user speech-to-text chunk.
type InputTranscriptDeltaEvent struct {
	Delta string `json:"delta"`
}

func (InputTranscriptDeltaEvent) serverEventType() string {
	return "conversation.item.input_audio_transcript.delta"
}

// UnknownEvent wraps inbound types this client does not recognize. The
// session ignores them; they are not errors.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) serverEventType() string { return e.Type }

// DecodeServerEvent maps one wire frame to its typed event.
func DecodeServerEvent(data []byte) (ServerEvent, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, protoErr("", "invalid json frame")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, protoErr("", "frame missing type")
	}

	switch typ {
	case "session.created":
		var ev SessionCreatedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, protoErr(typ, "invalid payload")
		}
		return ev, nil
	case "session.updated":
		var ev SessionUpdatedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, protoErr(typ, "invalid payload")
		}
		return ev, nil
	case "error":
		// The error body arrives either flat or nested under "error".
		var nested struct {
			Error ServerErrorEvent `json:"error"`
		}
		if err := json.Unmarshal(data, &nested); err != nil {
			return nil, protoErr(typ, "invalid payload")
		}
		if nested.Error.Code != "" || nested.Error.Message != "" {
			return nested.Error, nil
		}
		var ev ServerErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, protoErr(typ, "invalid payload")
		}
		return ev, nil
	case "response.created":
		return ResponseCreatedEvent{}, nil
	case "response.cancelled":
		return ResponseCancelledEvent{}, nil
	case "response.done":
		return ResponseDoneEvent{}, nil
	case "response.output_audio.delta":
		var ev OutputAudioDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, protoErr(typ, "invalid payload")
		}
		if ev.Delta == "" {
			return nil, protoErr(typ, "delta is required")
		}
		return ev, nil
	case "response.output_audio.done":
		return OutputAudioDoneEvent{}, nil
	case "response.output_audio_transcript.delta":
		var ev OutputTranscriptDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, protoErr(typ, "invalid payload")
		}
		return ev, nil
	case "input_audio_buffer.speech_started":
		return SpeechStartedEvent{}, nil
	case "input_audio_buffer.speech_stopped":
		return SpeechStoppedEvent{}, nil
	case "conversation.item.input_audio_transcript.delta":
		var ev InputTranscriptDeltaEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, protoErr(typ, "invalid payload")
		}
		return ev, nil
	default:
		return UnknownEvent{Type: typ, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}
