// Package realtime implements the client-side core of a duplex voice
// conversation against a turn-based streaming speech endpoint.
//
// The package is built from small, independently testable pieces:
//
//   - FrameCapturer slices a continuous PCM16 input stream into fixed-size
//     frames suitable for transmission.
//   - The protocol types in protocol.go are a pure codec for the control
//     message vocabulary exchanged with the remote endpoint.
//   - CommitScheduler is the turn-taking state machine: it decides when
//     accumulated input audio is committed and when a response is requested,
//     bridging the race between server-side speech detection and network
//     delivery with a grace window and a fallback timer.
//   - PlaybackQueue reassembles streamed audio deltas into gapless playback.
//   - TranscriptAssembler merges token-level text deltas for both directions
//     into stable, addressable message records.
//   - Session owns the websocket connection and wires everything together.
//
// All remote inference (speech recognition, response generation, synthesis)
// is delegated to the upstream provider; this package only manages buffers,
// timing, and lifecycle at the edge.
package realtime
