package realtime

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the direction of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat transcript entry. While Streaming is true the content
// grows by append-only concatenation; once the turn completes the record is
// final and never mutated again.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Streaming bool      `json:"streaming"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptUpdate notifies a consumer about a created or updated message.
// Content always carries the full accumulated text, never just the delta, so
// renderers can replace rather than splice.
type TranscriptUpdate struct {
	Message Message
	Created bool
}

// TranscriptAssembler reconstructs two independent interleaved transcripts
// (user speech-to-text, assistant text-to-speech) from token-level deltas.
// One cursor per direction may be open at a time; the two directions overlap
// freely because user transcription and assistant generation run
// concurrently.
type TranscriptAssembler struct {
	emit func(TranscriptUpdate)

	mu      sync.Mutex
	cursors map[Role]*transcriptCursor
	now     func() time.Time
	newID   func() string
}

type transcriptCursor struct {
	id        string
	buf       strings.Builder
	createdAt time.Time
}

// NewTranscriptAssembler creates an assembler delivering updates through
// emit.
func NewTranscriptAssembler(emit func(TranscriptUpdate)) *TranscriptAssembler {
	return &TranscriptAssembler{
		emit:    emit,
		cursors: make(map[Role]*transcriptCursor),
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// HandleDelta folds one text delta into the open message for role, opening a
// new message if none is open.
func (a *TranscriptAssembler) HandleDelta(role Role, delta string) {
	if delta == "" {
		return
	}

	a.mu.Lock()
	cur, ok := a.cursors[role]
	created := false
	if !ok {
		cur = &transcriptCursor{id: a.newID(), createdAt: a.now()}
		a.cursors[role] = cur
		created = true
	}
	cur.buf.WriteString(delta)
	update := TranscriptUpdate{
		Message: Message{
			ID:        cur.id,
			Role:      role,
			Content:   cur.buf.String(),
			Streaming: true,
			CreatedAt: cur.createdAt,
		},
		Created: created,
	}
	a.mu.Unlock()

	a.emit(update)
}

// FinalizeTurn closes the open cursor for role, emitting the final
// non-streaming update. A role with no open cursor or an empty buffer is a
// no-op, so stray completion events are harmless.
func (a *TranscriptAssembler) FinalizeTurn(role Role) {
	a.mu.Lock()
	cur, ok := a.cursors[role]
	if !ok || cur.buf.Len() == 0 {
		delete(a.cursors, role)
		a.mu.Unlock()
		return
	}
	delete(a.cursors, role)
	update := TranscriptUpdate{
		Message: Message{
			ID:        cur.id,
			Role:      role,
			Content:   cur.buf.String(),
			Streaming: false,
			CreatedAt: cur.createdAt,
		},
	}
	a.mu.Unlock()

	a.emit(update)
}

// Open reports whether a streaming message is open for role.
func (a *TranscriptAssembler) Open(role Role) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.cursors[role]
	return ok
}

// Reset drops all open cursors without emitting finals. Used on disconnect.
func (a *TranscriptAssembler) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cursors = make(map[Role]*transcriptCursor)
}
