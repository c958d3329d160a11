package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ConnState is the connection lifecycle state of a Session.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnSessionPending
	ConnActive
	ConnClosing
)

// String returns a human-readable state name.
func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "DISCONNECTED"
	case ConnConnecting:
		return "CONNECTING"
	case ConnSessionPending:
		return "SESSION_PENDING"
	case ConnActive:
		return "ACTIVE"
	case ConnClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// ErrNotConnected is returned when an operation requires an open connection.
var ErrNotConnected = errors.New("realtime: not connected")

// Benign protocol error codes absorbed without surfacing to the caller.
const (
	errCodeCommitEmpty    = "input_audio_buffer_commit_empty"
	errCodeActiveResponse = "conversation_already_has_active_response"
)

// Conn is the duplex frame transport the session runs over. Satisfied by
// *websocket.Conn; tests substitute an in-memory double.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens the duplex connection to the remote realtime endpoint.
type Dialer func(ctx context.Context) (Conn, error)

// WebsocketDialer returns a Dialer for a websocket endpoint.
func WebsocketDialer(url string, header http.Header) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("dial %s (status %d): %w", url, resp.StatusCode, err)
			}
			return nil, fmt.Errorf("dial %s: %w", url, err)
		}
		return conn, nil
	}
}

// Session owns one realtime connection and wires the capture, scheduling,
// playback, and transcript components together. All inbound events flow
// through a single decode-then-route path.
type Session struct {
	cfg    SessionConfig
	dial   Dialer
	player Player

	mu         sync.Mutex
	state      ConnState
	conn       Conn
	sessionID  string
	settings   SessionSettings
	scheduler  *CommitScheduler
	playback   *PlaybackQueue
	transcript *TranscriptAssembler
	capturer   *FrameCapturer

	writeMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once
	readyErr  error

	events       chan Event
	debugEnabled bool
}

// NewSession creates a session. The player renders assistant audio; it may
// be nil only if the consumer never expects audio output.
func NewSession(cfg SessionConfig, dial Dialer, player Player) *Session {
	return &Session{
		cfg:    cfg.withDefaults(),
		dial:   dial,
		player: player,
		state:  ConnDisconnected,
		events: make(chan Event, 128),
	}
}

// EnableDebug turns on debug event emission.
func (s *Session) EnableDebug() {
	s.debugEnabled = true
}

// Events yields session events. The channel is never closed; consumers stop
// reading after DisconnectedEvent.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current connection state.
func (s *Session) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the local session identifier.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Scheduler exposes the commit scheduler. Test hook.
func (s *Session) Scheduler() *CommitScheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler
}

// Connect opens the duplex channel, sends the configure message, and waits
// for the remote session-ready acknowledgment. On timeout or any terminal
// connection error observed first, the connect fails and all resources are
// released.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != ConnDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("realtime: connect in state %s", s.state)
	}
	s.setStateLocked(ConnConnecting)
	s.sessionID = "sess_" + uuid.NewString()
	s.ready = make(chan struct{})
	s.readyOnce = sync.Once{}
	s.readyErr = nil
	s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err != nil {
		s.mu.Lock()
		s.setStateLocked(ConnDisconnected)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.scheduler = NewCommitScheduler(s.cfg, s.send)
	s.playback = NewPlaybackQueue(s.player, s.cfg.PlaybackMinBytes)
	s.transcript = NewTranscriptAssembler(func(u TranscriptUpdate) {
		s.emit(&TranscriptEvent{Update: u})
	})
	s.playback.SetCallbacks(
		func(playing bool) { s.emit(&PlaybackEvent{Playing: playing}) },
		func(err error) { s.debug("PLAYBACK", "decode failed, skipping chunk: "+err.Error()) },
	)
	if s.debugEnabled {
		s.scheduler.SetDebug(s.debug)
	}
	s.setStateLocked(ConnSessionPending)
	s.mu.Unlock()

	cfgMsg, err := EncodeSessionUpdate(s.cfg)
	if err != nil {
		s.teardown("configure encode failed")
		return err
	}
	if err := s.send(cfgMsg); err != nil {
		s.teardown("configure send failed")
		return err
	}

	go s.readLoop(conn)

	select {
	case <-s.ready:
		if s.readyErr != nil {
			s.teardown("session setup failed")
			return s.readyErr
		}
	case <-time.After(s.cfg.ConnectTimeout):
		s.teardown("session setup timeout")
		return fmt.Errorf("realtime: timed out waiting for session ready")
	case <-ctx.Done():
		s.teardown("connect cancelled")
		return ctx.Err()
	}

	return nil
}

// StartCall begins capturing frames from source and feeding them to the
// commit scheduler. Only valid while Active; a second call on the same
// connection is permitted after EndCall.
func (s *Session) StartCall(source io.Reader) error {
	s.mu.Lock()
	if s.state != ConnActive {
		s.mu.Unlock()
		return fmt.Errorf("realtime: start call in state %s", s.state)
	}
	if s.capturer != nil {
		s.mu.Unlock()
		return fmt.Errorf("realtime: call already in progress")
	}
	capturer := NewFrameCapturer(source, s.cfg.FrameSamples)
	s.capturer = capturer
	scheduler := s.scheduler
	s.mu.Unlock()

	go s.captureLoop(capturer, scheduler)
	return nil
}

// EndCall stops capture and discards the audio pipeline without closing the
// underlying connection.
func (s *Session) EndCall() {
	s.mu.Lock()
	capturer := s.capturer
	s.capturer = nil
	scheduler := s.scheduler
	s.mu.Unlock()

	if capturer != nil {
		capturer.Stop()
	}
	if scheduler != nil {
		scheduler.Reset()
	}
}

// Disconnect tears down capture, connection, and every component's internal
// state unconditionally, from any state. Idempotent: resources are released
// exactly once regardless of which path triggers teardown.
func (s *Session) Disconnect() error {
	s.teardown("disconnect")
	return nil
}

func (s *Session) captureLoop(capturer *FrameCapturer, scheduler *CommitScheduler) {
	for frame := range capturer.Frames() {
		if err := scheduler.HandleFrame(frame); err != nil {
			// A closed or unopened connection drops frames rather than
			// buffering without bound; surface it as stopped recording.
			s.debug("CAPTURE", "frame dropped: "+err.Error())
			s.emit(&RecordingStoppedEvent{Reason: "connection not open"})
			capturer.Stop()
			break
		}
	}

	s.mu.Lock()
	if s.capturer == capturer {
		s.capturer = nil
	}
	s.mu.Unlock()
}

func (s *Session) readLoop(conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// A loop left over from a torn-down connection must not abort
			// the handshake or teardown of its successor.
			s.mu.Lock()
			current := s.conn == conn
			s.mu.Unlock()
			if !current {
				return
			}
			s.failReady(fmt.Errorf("realtime: connection closed before session ready: %w", err))
			if s.State() == ConnActive {
				s.emit(&SessionErrorEvent{Code: "transport", Message: err.Error()})
			}
			s.teardown("transport error")
			return
		}

		ev, err := DecodeServerEvent(data)
		if err != nil {
			// One malformed frame is skipped, not fatal.
			s.debug("PROTOCOL", "skipping frame: "+err.Error())
			continue
		}
		s.route(ev)
	}
}

// route dispatches one inbound event to the owning component.
func (s *Session) route(ev ServerEvent) {
	s.mu.Lock()
	scheduler := s.scheduler
	playback := s.playback
	transcript := s.transcript
	s.mu.Unlock()
	if scheduler == nil || playback == nil || transcript == nil {
		return
	}

	switch ev := ev.(type) {
	case SessionCreatedEvent:
		s.markReady(ev.Session)
	case SessionUpdatedEvent:
		s.markReady(ev.Session)
	case ServerErrorEvent:
		s.handleServerError(ev, scheduler)
	case ResponseCreatedEvent:
		scheduler.HandleResponseCreated()
	case ResponseCancelledEvent:
		scheduler.HandleResponseFinished()
	case ResponseDoneEvent:
		scheduler.HandleResponseFinished()
		transcript.FinalizeTurn(RoleAssistant)
	case OutputAudioDeltaEvent:
		playback.HandleAudioDelta(ev.Delta)
	case OutputAudioDoneEvent:
		playback.HandleAudioDone()
	case OutputTranscriptDeltaEvent:
		transcript.HandleDelta(RoleAssistant, ev.Delta)
	case SpeechStartedEvent:
		scheduler.HandleSpeechStarted()
	case SpeechStoppedEvent:
		transcript.FinalizeTurn(RoleUser)
		scheduler.HandleSpeechStopped()
	case InputTranscriptDeltaEvent:
		transcript.HandleDelta(RoleUser, ev.Delta)
	case UnknownEvent:
		s.debug("PROTOCOL", "ignoring event type "+ev.Type)
	}
}

func (s *Session) handleServerError(ev ServerErrorEvent, scheduler *CommitScheduler) {
	switch ev.Code {
	case errCodeCommitEmpty:
		// The remote had less audio than we thought since the last
		// commit. Reset local counters silently; no response will come.
		s.debug("PROTOCOL", "commit rejected: buffer too small")
		scheduler.HandleCommitRejected()
	case errCodeActiveResponse:
		s.debug("PROTOCOL", "duplicate response request suppressed by remote")
	default:
		s.failReady(fmt.Errorf("realtime: session error %s: %s", ev.Code, ev.Message))
		s.emit(&SessionErrorEvent{Code: ev.Code, Message: ev.Message})
		s.teardown("session error")
	}
}

// markReady records the configuration echo and completes the connect
// handshake. Later session.updated events refresh the echo only.
func (s *Session) markReady(settings SessionSettings) {
	s.mu.Lock()
	s.settings = settings
	pending := s.state == ConnSessionPending
	if pending {
		s.setStateLocked(ConnActive)
	}
	id := s.sessionID
	s.mu.Unlock()

	s.readyOnce.Do(func() { close(s.ready) })
	if pending {
		s.emit(&ReadyEvent{SessionID: id, Settings: settings})
	}
}

// failReady aborts a pending connect. No-op once the handshake completed.
func (s *Session) failReady(err error) {
	s.readyOnce.Do(func() {
		s.readyErr = err
		close(s.ready)
	})
}

// send writes one outbound frame. Serialized by writeMu so the scheduler's
// timer callbacks and the capture loop never interleave partial writes.
func (s *Session) send(data []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

// teardown releases capture, playback, scheduler, and the connection. Safe
// to call from any state and from any path; only the first call per
// connection does work.
func (s *Session) teardown(reason string) {
	s.mu.Lock()
	if s.state == ConnDisconnected && s.conn == nil {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(ConnClosing)
	conn := s.conn
	s.conn = nil
	capturer := s.capturer
	s.capturer = nil
	scheduler := s.scheduler
	playback := s.playback
	transcript := s.transcript
	s.mu.Unlock()

	if capturer != nil {
		capturer.Stop()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if scheduler != nil {
		scheduler.Reset()
	}
	if playback != nil {
		playback.Close()
	}
	if transcript != nil {
		transcript.Reset()
	}

	s.failReady(fmt.Errorf("realtime: connection closed: %s", reason))

	s.mu.Lock()
	s.setStateLocked(ConnDisconnected)
	s.mu.Unlock()

	s.emit(&DisconnectedEvent{Reason: reason})
}

// setStateLocked mutates connection state. Callers hold s.mu.
func (s *Session) setStateLocked(next ConnState) {
	if s.state == next {
		return
	}
	prev := s.state
	s.state = next
	s.emit(&ConnStateEvent{From: prev, To: next})
}

// emit delivers an event without ever blocking the read loop.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

func (s *Session) debug(category, message string) {
	if s.debugEnabled {
		s.emit(&DebugEvent{Category: category, Message: message})
	}
}
