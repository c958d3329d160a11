package realtime

import (
	"encoding/binary"
	"io"
	"sync"
)

// FrameCapturer slices a continuous mono PCM16 stream into fixed-size sample
// frames. Frames are delivered on a buffered channel as soon as they fill; a
// partial frame at stream end is discarded rather than flushed, since a final
// short frame is not worth the latency bookkeeping in a live call.
//
// A capturer is single-use: once the source reaches EOF or errors, the frame
// channel closes and the capturer cannot be restarted.
type FrameCapturer struct {
	source       io.Reader
	frameSamples int
	frames       chan []int16
	stop         chan struct{}
	stopOnce     sync.Once
}

// NewFrameCapturer creates a capturer reading little-endian PCM16 from
// source. Capture begins immediately.
func NewFrameCapturer(source io.Reader, frameSamples int) *FrameCapturer {
	if frameSamples <= 0 {
		frameSamples = DefaultSessionConfig().FrameSamples
	}
	c := &FrameCapturer{
		source:       source,
		frameSamples: frameSamples,
		frames:       make(chan []int16, 32),
		stop:         make(chan struct{}),
	}
	go c.run()
	return c
}

// Frames yields captured frames. The channel closes when the source ends or
// the capturer is stopped.
func (c *FrameCapturer) Frames() <-chan []int16 {
	return c.frames
}

// Stop ends capture. Safe to call more than once, including concurrently.
func (c *FrameCapturer) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *FrameCapturer) run() {
	defer close(c.frames)

	buf := make([]byte, c.frameSamples*2)
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if _, err := io.ReadFull(c.source, buf); err != nil {
			// EOF, short tail, or a dead source all end capture the
			// same way: drop the partial frame and close.
			return
		}

		frame := make([]int16, c.frameSamples)
		for i := range frame {
			frame[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
		}

		select {
		case c.frames <- frame:
		case <-c.stop:
			return
		}
	}
}
