package realtime

import (
	"encoding/base64"
	"sync"
)

// Player renders one decoded PCM chunk and returns when playback of that
// chunk has finished. PlaybackQueue relies on the blocking contract for
// gapless, strictly ordered output.
type Player interface {
	Play(pcm []byte) error
}

// PlaybackQueue buffers decoded audio-output chunks and plays them back in
// arrival order, decoupled from the burstiness of chunk arrival.
//
// Incoming base64 deltas are decoded immediately but held in a side buffer
// until the encoded payload seen crosses a minimum size; enqueuing too-small
// buffers produces audible clicking. The remainder is flushed when the
// response's audio stream ends.
type PlaybackQueue struct {
	player   Player
	minBytes int

	mu          sync.Mutex
	pending     []byte // decoded side buffer awaiting threshold
	pendingEnc  int    // encoded bytes accounted against minBytes
	queue       [][]byte
	playing     bool
	closed      bool
	wake        chan struct{}
	idle        chan struct{} // closed while nothing is queued or rendering
	idleClosed  bool
	onPlaying   func(bool)
	onDecodeErr func(err error)
}

// NewPlaybackQueue creates a queue draining into player. minBytes below or
// equal to zero selects the default threshold.
func NewPlaybackQueue(player Player, minBytes int) *PlaybackQueue {
	if minBytes <= 0 {
		minBytes = DefaultSessionConfig().PlaybackMinBytes
	}
	q := &PlaybackQueue{
		player:     player,
		minBytes:   minBytes,
		wake:       make(chan struct{}, 1),
		idle:       make(chan struct{}),
		idleClosed: true,
	}
	close(q.idle)
	go q.drain()
	return q
}

// SetCallbacks installs optional observers: onPlaying fires when the drain
// loop starts or stops, onDecodeErr when a delta fails to decode (the delta
// is skipped; the session survives).
func (q *PlaybackQueue) SetCallbacks(onPlaying func(bool), onDecodeErr func(err error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onPlaying = onPlaying
	q.onDecodeErr = onDecodeErr
}

// HandleAudioDelta decodes one base64 PCM16 delta into the side buffer and
// enqueues the buffer once the threshold is crossed.
func (q *PlaybackQueue) HandleAudioDelta(b64 string) {
	pcm, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		q.mu.Lock()
		cb := q.onDecodeErr
		q.mu.Unlock()
		if cb != nil {
			cb(err)
		}
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.pending = append(q.pending, pcm...)
	q.pendingEnc += len(b64)
	if q.pendingEnc >= q.minBytes {
		q.enqueuePendingLocked()
	}
}

// HandleAudioDone flushes whatever remains in the side buffer; called on the
// response's audio-done event.
func (q *PlaybackQueue) HandleAudioDone() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.enqueuePendingLocked()
}

// Playing reports whether audio is rendering or queued to render.
func (q *PlaybackQueue) Playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing || len(q.queue) > 0
}

// WaitIdle blocks until the queue is fully drained. Test hook.
func (q *PlaybackQueue) WaitIdle() {
	q.mu.Lock()
	ch := q.idle
	q.mu.Unlock()
	<-ch
}

// Close discards buffered audio and stops the drain loop. Idempotent.
func (q *PlaybackQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.pending = nil
	q.pendingEnc = 0
	q.queue = nil
	q.signalLocked()
}

func (q *PlaybackQueue) enqueuePendingLocked() {
	if len(q.pending) == 0 {
		q.pendingEnc = 0
		return
	}
	q.queue = append(q.queue, q.pending)
	q.pending = nil
	q.pendingEnc = 0
	// The queue is non-empty from this point, so waiters must block even
	// before the drain goroutine wakes.
	if q.idleClosed {
		q.idle = make(chan struct{})
		q.idleClosed = false
	}
	q.signalLocked()
}

func (q *PlaybackQueue) signalLocked() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *PlaybackQueue) drain() {
	for {
		q.mu.Lock()
		if q.closed && len(q.queue) == 0 {
			q.setPlayingLocked(false)
			q.closeIdleLocked()
			q.mu.Unlock()
			return
		}
		if len(q.queue) == 0 {
			q.setPlayingLocked(false)
			q.closeIdleLocked()
			q.mu.Unlock()
			<-q.wake
			continue
		}
		chunk := q.queue[0]
		q.queue = q.queue[1:]
		q.setPlayingLocked(true)
		q.mu.Unlock()

		// Blocks until the chunk finishes; the next chunk never starts
		// earlier. Render errors skip the chunk, not the session.
		_ = q.player.Play(chunk)
	}
}

// closeIdleLocked releases waiters once nothing is queued or rendering.
// Callers hold q.mu.
func (q *PlaybackQueue) closeIdleLocked() {
	if !q.idleClosed {
		close(q.idle)
		q.idleClosed = true
	}
}

// setPlayingLocked flips the observable rendering flag. Callers hold q.mu.
func (q *PlaybackQueue) setPlayingLocked(playing bool) {
	if q.playing == playing {
		return
	}
	q.playing = playing
	if q.onPlaying != nil {
		go q.onPlaying(playing)
	}
}
