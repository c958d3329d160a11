package realtime

import "time"

// SessionConfig holds all configuration for a realtime session.
type SessionConfig struct {
	// Model is the remote speech-to-speech model to request.
	Model string `json:"model"`

	// Instructions is the behavior instruction string sent with the
	// session configure message.
	Instructions string `json:"instructions,omitempty"`

	// Voice selects the assistant output voice.
	Voice string `json:"voice,omitempty"`

	// Audio is the negotiated audio shape. Default: mono PCM16 at 24 kHz.
	Audio AudioConfig `json:"audio"`

	// FrameSamples is the capture frame size in samples. Default: 960
	// (~40 ms at 24 kHz), small enough to bound latency.
	FrameSamples int `json:"frame_samples"`

	// MinCommitSamples is the minimum uncommitted sample count required
	// before a buffer commit is sent. The remote rejects commits carrying
	// less than 100 ms of audio, so the default is 2400 samples at 24 kHz.
	MinCommitSamples int `json:"min_commit_samples"`

	// GraceWindow is how long to wait after speech-stopped before
	// committing, to catch trailing audio. Default: 120 ms.
	GraceWindow time.Duration `json:"grace_window"`

	// ResponseFallback is how long to wait after a commit for the remote
	// to auto-create a response before requesting one explicitly.
	// Default: 800 ms.
	ResponseFallback time.Duration `json:"response_fallback"`

	// PlaybackMinBytes is the minimum encoded payload accumulated before
	// decoded audio is enqueued for playback; too-small buffers produce
	// audible clicks. Default: 1500 bytes.
	PlaybackMinBytes int `json:"playback_min_bytes"`

	// ConnectTimeout bounds the wait for the session-ready event after
	// the connection opens. Default: 10 s.
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// DefaultSessionConfig returns a SessionConfig with the tuned defaults.
// The grace window, fallback, commit threshold, and playback buffering
// values are empirical; treat them as starting points, not invariants.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:            "gpt-realtime",
		Voice:            "alloy",
		Audio:            DefaultAudioConfig(),
		FrameSamples:     960,
		MinCommitSamples: 2400,
		GraceWindow:      120 * time.Millisecond,
		ResponseFallback: 800 * time.Millisecond,
		PlaybackMinBytes: 1500,
		ConnectTimeout:   10 * time.Second,
	}
}

// withDefaults fills zero-valued fields so a partially populated config is
// always usable.
func (c SessionConfig) withDefaults() SessionConfig {
	def := DefaultSessionConfig()
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.Channels == 0 {
		c.Audio.Channels = def.Audio.Channels
	}
	if c.Audio.BitsPerSample == 0 {
		c.Audio.BitsPerSample = def.Audio.BitsPerSample
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = def.FrameSamples
	}
	if c.MinCommitSamples <= 0 {
		c.MinCommitSamples = def.MinCommitSamples
	}
	if c.GraceWindow <= 0 {
		c.GraceWindow = def.GraceWindow
	}
	if c.ResponseFallback <= 0 {
		c.ResponseFallback = def.ResponseFallback
	}
	if c.PlaybackMinBytes <= 0 {
		c.PlaybackMinBytes = def.PlaybackMinBytes
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	return c
}

// AudioConfig specifies audio format parameters.
type AudioConfig struct {
	// SampleRate in Hz.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: 16 for PCM16.
	BitsPerSample int `json:"bits_per_sample"`
}

// DefaultAudioConfig returns the standard audio configuration.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:    24000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (c AudioConfig) DurationMs(bytes int) int {
	if c.BytesPerSecond() == 0 {
		return 0
	}
	return (bytes * 1000) / c.BytesPerSecond()
}

// SamplesForDuration returns the sample count for the given duration.
func (c AudioConfig) SamplesForDuration(d time.Duration) int {
	return int(int64(c.SampleRate) * d.Milliseconds() / 1000)
}
