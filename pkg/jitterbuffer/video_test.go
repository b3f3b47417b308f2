package jitterbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ims-media/rtpcore/pkg/payload/video"
)

type countingVideoEvents struct {
	nackCalls  int
	lastState  string
	pliCalls   int
	firCalls   int
}

func (e *countingVideoEvents) RequestNACK(timestamp uint32, state string) {
	e.nackCalls++
	e.lastState = state
}
func (e *countingVideoEvents) RequestPictureLost(timestamp uint32) { e.pliCalls++ }
func (e *countingVideoEvents) RequestFIR()                         { e.firCalls++ }

func TestVideoBufferGatesUntilIDR(t *testing.T) {
	b := NewVideoBuffer(video.CodecH264, nil)

	nonIDR := append(append([]byte{}, video.StartCode...), 0x41, 0xAA)
	b.AddPacket(1000, nonIDR, true)

	_, _, ok := b.PopComplete()
	require.False(t, ok, "non-IDR frames must be gated until a key frame arrives")

	idr := append(append([]byte{}, video.StartCode...), 0x65, 0xBB)
	b.AddPacket(2000, idr, true)

	ts, nals, ok := b.PopComplete()
	require.True(t, ok)
	require.Equal(t, uint32(2000), ts)
	require.Len(t, nals, 1)
}

func TestVideoBufferNACKEscalatesToPLI(t *testing.T) {
	events := &countingVideoEvents{}
	b := NewVideoBuffer(video.CodecH264, events)

	b.MarkMissing(5000)
	require.Equal(t, 1, events.nackCalls)
	require.Equal(t, nackStateInitial, events.lastState)

	b.MarkMissing(5000)
	require.Equal(t, 2, events.nackCalls)
	require.Equal(t, nackStateSecond, events.lastState)

	b.MarkMissing(5000)
	require.Equal(t, 1, events.pliCalls)
}

func TestVideoBufferResetClearsIDRGate(t *testing.T) {
	b := NewVideoBuffer(video.CodecH264, nil)
	idr := append(append([]byte{}, video.StartCode...), 0x65, 0xBB)
	b.AddPacket(1000, idr, true)
	b.PopComplete()

	b.Reset()
	require.False(t, b.haveIDR)

	nonIDR := append(append([]byte{}, video.StartCode...), 0x41, 0xAA)
	b.AddPacket(2000, nonIDR, true)
	_, _, ok := b.PopComplete()
	require.False(t, ok, "a reset must re-require an IDR before releasing frames")
}
