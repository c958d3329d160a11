package realtime

// Event is the interface for all session events delivered to the consumer.
type Event interface {
	// EventType returns the event type string for serialization.
	EventType() string
}

// ReadyEvent is emitted once the remote acknowledges the session.
type ReadyEvent struct {
	SessionID string          `json:"session_id"`
	Settings  SessionSettings `json:"settings"`
}

func (e *ReadyEvent) EventType() string { return "session.ready" }

// ConnStateEvent is emitted on connection lifecycle transitions.
type ConnStateEvent struct {
	From ConnState `json:"from"`
	To   ConnState `json:"to"`
}

func (e *ConnStateEvent) EventType() string { return "conn.state" }

// TranscriptEvent wraps a transcript message creation or update.
type TranscriptEvent struct {
	Update TranscriptUpdate `json:"update"`
}

func (e *TranscriptEvent) EventType() string { return "transcript.update" }

// PlaybackEvent reports whether assistant audio is currently rendering.
type PlaybackEvent struct {
	Playing bool `json:"playing"`
}

func (e *PlaybackEvent) EventType() string { return "playback.state" }

// RecordingStoppedEvent is emitted when capture stops, including the case
// where outbound frames were dropped because the connection was not open.
type RecordingStoppedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (e *RecordingStoppedEvent) EventType() string { return "recording.stopped" }

// SessionErrorEvent carries a fatal or local error surfaced to the caller.
type SessionErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *SessionErrorEvent) EventType() string { return "session.error" }

// DisconnectedEvent is emitted after teardown completes.
type DisconnectedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (e *DisconnectedEvent) EventType() string { return "session.disconnected" }

// DebugEvent is emitted for diagnostic information when debug is enabled.
type DebugEvent struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

func (e *DebugEvent) EventType() string { return "debug" }
