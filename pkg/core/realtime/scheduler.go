package realtime

import "sync"

// SchedulerState is the turn-taking state of the commit scheduler.
type SchedulerState int

const (
	// SchedIdle: no uncommitted audio, no response pending.
	SchedIdle SchedulerState = iota
	// SchedAccumulating: uncommitted audio present, user still speaking.
	SchedAccumulating
	// SchedGraceWait: speech stopped; waiting out the grace window to
	// catch trailing audio before committing.
	SchedGraceWait
	// SchedAwaitingResponse: commit sent; waiting for the remote to
	// auto-start a response.
	SchedAwaitingResponse
	// SchedResponseActive: a response is being generated or streamed.
	SchedResponseActive
)

// String returns a human-readable state name.
func (s SchedulerState) String() string {
	switch s {
	case SchedIdle:
		return "IDLE"
	case SchedAccumulating:
		return "ACCUMULATING"
	case SchedGraceWait:
		return "GRACE_WAIT"
	case SchedAwaitingResponse:
		return "AWAITING_RESPONSE"
	case SchedResponseActive:
		return "RESPONSE_ACTIVE"
	default:
		return "UNKNOWN"
	}
}

// CommitScheduler decides when accumulated input audio is committed and when
// a response is requested. The remote performs voice-activity detection
// server-side and usually auto-creates responses, but the timing between
// "speech stopped" and "enough audio committed" is racy over an unreliable
// network; the grace window and fallback timer bridge that race without
// dropping trailing words or double-triggering responses.
//
// All mutation funnels through named transition methods under one mutex, so
// the state machine stays mechanically checkable.
type CommitScheduler struct {
	cfg  SessionConfig
	send func(frame []byte) error

	mu              sync.Mutex
	state           SchedulerState
	pendingSamples  int
	dirty           bool
	responseActive  bool
	cancelRequested bool

	grace    eventTimer
	fallback eventTimer

	onDebug func(category, message string)
}

// NewCommitScheduler creates a scheduler that writes outbound control frames
// through send.
func NewCommitScheduler(cfg SessionConfig, send func(frame []byte) error) *CommitScheduler {
	return &CommitScheduler{
		cfg:   cfg.withDefaults(),
		send:  send,
		state: SchedIdle,
	}
}

// SetDebug installs an optional debug sink.
func (s *CommitScheduler) SetDebug(fn func(category, message string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDebug = fn
}

// State returns the current scheduler state.
func (s *CommitScheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ResponseActive reports whether a response is in flight.
func (s *CommitScheduler) ResponseActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responseActive
}

// PendingSamples returns the uncommitted sample count.
func (s *CommitScheduler) PendingSamples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingSamples
}

// HandleFrame encodes one captured frame as a buffer-append message, sends
// it, and accounts the samples as uncommitted.
func (s *CommitScheduler) HandleFrame(frame []int16) error {
	msg, err := EncodeBufferAppend(frame)
	if err != nil {
		return err
	}
	if err := s.send(msg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingSamples += len(frame)
	s.dirty = true
	if s.state == SchedIdle {
		s.toAccumulating()
	}
	return nil
}

// HandleSpeechStarted reacts to server-side detection of a new utterance.
// The remote discards whatever preceded it, so local counters reset too. If
// a response is still streaming, this is a barge-in: cancel it before the
// new utterance proceeds.
func (s *CommitScheduler) HandleSpeechStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grace.Clear()
	s.pendingSamples = 0
	s.dirty = false
	s.requestCancelLocked()
	s.toAccumulating()
}

// HandleSpeechStopped starts the grace window. The cancel check repeats here
// in case the speech_started that should have carried it was lost.
func (s *CommitScheduler) HandleSpeechStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestCancelLocked()
	s.toGraceWait()
}

// HandleResponseCreated records that the remote started a response, as
// expected after a commit.
func (s *CommitScheduler) HandleResponseCreated() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fallback.Clear()
	s.responseActive = true
	s.setState(SchedResponseActive)
}

// HandleResponseFinished records response.done or response.cancelled.
func (s *CommitScheduler) HandleResponseFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fallback.Clear()
	s.responseActive = false
	s.cancelRequested = false

	// Only fall back to Idle if nothing newer is underway: a barge-in may
	// already have the next utterance accumulating or in its grace window
	// when the cancelled ack arrives.
	if s.state == SchedResponseActive || s.state == SchedAwaitingResponse {
		s.setState(SchedIdle)
	}
}

// HandleCommitRejected absorbs the remote's commit-rejected-empty-buffer
// error: the remote held less audio than our counter claimed, no response is
// coming, and none of it is the user's problem.
func (s *CommitScheduler) HandleCommitRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pendingSamples = 0
	s.dirty = false
	if s.state == SchedAwaitingResponse {
		s.fallback.Clear()
		s.setState(SchedIdle)
	}
}

// Reset clears all timers, counters, and flags. Used on disconnect and when
// a call ends.
func (s *CommitScheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.grace.Clear()
	s.fallback.Clear()
	s.pendingSamples = 0
	s.dirty = false
	s.responseActive = false
	s.cancelRequested = false
	s.setState(SchedIdle)
}

// toAccumulating is the transition into (or within) the accumulating state.
func (s *CommitScheduler) toAccumulating() {
	s.setState(SchedAccumulating)
}

// toGraceWait arms the grace timer and enters GraceWait.
func (s *CommitScheduler) toGraceWait() {
	s.setState(SchedGraceWait)
	s.grace.Arm(s.cfg.GraceWindow, s.onGraceExpired)
}

// onGraceExpired commits if enough audio accumulated, otherwise discards
// silently: committing under the threshold is rejected by the remote, and
// that rejection is benign noise, not a user-visible error.
func (s *CommitScheduler) onGraceExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SchedGraceWait {
		return
	}

	if s.pendingSamples < s.cfg.MinCommitSamples {
		s.debug("COMMIT", "below threshold, discarding")
		s.pendingSamples = 0
		s.dirty = false
		s.setState(SchedIdle)
		return
	}

	if msg, err := EncodeBufferCommit(); err == nil {
		if err := s.send(msg); err != nil {
			s.debug("COMMIT", "send failed: "+err.Error())
		}
	}
	s.pendingSamples = 0
	s.dirty = false
	s.setState(SchedAwaitingResponse)
	s.fallback.Arm(s.cfg.ResponseFallback, s.onFallbackExpired)
}

// onFallbackExpired requests a response explicitly when the remote failed to
// auto-create one after a commit. Sent at most once, and never while a
// response is already active.
func (s *CommitScheduler) onFallbackExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SchedAwaitingResponse || s.responseActive {
		return
	}

	s.debug("RESPONSE", "no response.created before fallback, requesting")
	if msg, err := EncodeResponseCreate(); err == nil {
		if err := s.send(msg); err != nil {
			s.debug("RESPONSE", "send failed: "+err.Error())
		}
	}
	// Optimistic: assume the request lands so a second create is never
	// issued for this turn.
	s.responseActive = true
	s.setState(SchedResponseActive)
}

// requestCancelLocked sends response-cancel at most once per active
// response. Callers hold s.mu.
func (s *CommitScheduler) requestCancelLocked() {
	if !s.responseActive || s.cancelRequested {
		return
	}
	s.debug("RESPONSE", "barge-in, cancelling active response")
	if msg, err := EncodeResponseCancel(); err == nil {
		if err := s.send(msg); err != nil {
			s.debug("RESPONSE", "cancel send failed: "+err.Error())
		}
	}
	s.cancelRequested = true
}

// setState mutates state. Callers hold s.mu.
func (s *CommitScheduler) setState(next SchedulerState) {
	if s.state == next {
		return
	}
	s.debug("SCHED", s.state.String()+" -> "+next.String())
	s.state = next
}

func (s *CommitScheduler) debug(category, message string) {
	if s.onDebug != nil {
		s.onDebug(category, message)
	}
}
