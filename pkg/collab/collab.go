// Package collab defines the narrow collaborator interfaces the media
// core depends on (spec §6): socket transport, codec, audio/video I/O,
// timers, and the monotonic clock. No platform implementation lives
// here — these are the seams production call sites fill in, and tests
// fill with fakes.
package collab

import (
	"context"
	"time"
)

// Peer identifies the remote endpoint a socket datagram arrived from or
// should be sent to.
type Peer struct {
	Host string
	Port int
}

// ISocketIO is the datagram transport boundary: send a buffer, subscribe
// to inbound buffers tagged with the sending peer.
type ISocketIO interface {
	SendTo(ctx context.Context, data []byte, peer Peer) error
	Subscribe(onReceive func(data []byte, peer Peer))
}

// CodecFlags carries auxiliary encode-time metadata (e.g. whether the
// produced buffer is a key frame).
type CodecFlags struct {
	IsKeyFrame bool
}

// ICodec is the audio/video codec boundary: encode raw media to wire
// bytes and back, plus video-only bitrate/key-frame control.
type ICodec interface {
	Encode(raw []byte, mode int) (encoded []byte, flags CodecFlags, err error)
	Decode(encoded []byte) (raw []byte, err error)
	RequestKeyFrame()
	SetBitrate(bps int)
}

// IAudioIO is the blocking microphone/speaker boundary.
type IAudioIO interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, pcm []byte) error
}

// IVideoIO is the blocking camera/display boundary.
type IVideoIO interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, yuv []byte) error
}

// TimerHandle identifies a scheduled periodic callback for cancellation.
type TimerHandle uint64

// ITimer is the periodic-callback boundary the analyzer's 1s tick and the
// jitter buffer's recompute cadence are built on.
type ITimer interface {
	SchedulePeriodic(interval time.Duration, cb func()) TimerHandle
	Cancel(handle TimerHandle)
}

// IClock is the monotonic time source collaborators read instead of
// calling time.Now directly, so tests can inject deterministic clocks.
type IClock interface {
	Millis() int64
	Micros() int64
}

// SystemClock is the IClock backed by the real monotonic clock.
type SystemClock struct{ start time.Time }

// NewSystemClock creates a clock whose epoch is the call time; only
// deltas are meaningful, matching spec's "monotonic milliseconds".
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Millis() int64 {
	return time.Since(c.start).Milliseconds()
}

func (c *SystemClock) Micros() int64 {
	return time.Since(c.start).Microseconds()
}
