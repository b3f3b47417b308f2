package jitterbuffer

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/ims-media/rtpcore/pkg/payload/video"
)

// NACK state machine states (spec §4.8): none -> initial-NACK ->
// second-NACK -> PLI, reset to none once the frame arrives or a PLI
// fires.
const (
	nackStateNone       = "none"
	nackStateInitial    = "initial"
	nackStateSecond     = "second"
	nackStatePLI        = "pli"
)

// VideoEvents is the callback set the video jitter buffer drives as frames
// complete, go missing, or require a key frame (spec §4.8).
type VideoEvents interface {
	RequestNACK(timestamp uint32, state string)
	RequestPictureLost(timestamp uint32)
	RequestFIR()
}

// nackEntry tracks one missing-frame's retransmission escalation.
type nackEntry struct {
	fsm       *fsm.FSM
	firstSeen time.Time
}

// VideoBuffer groups packets by RTP timestamp into frames, tracks missing
// frames through a NACK/PLI escalation state machine, and gates non-IDR
// output until a key frame arrives (spec §4.8).
type VideoBuffer struct {
	mu sync.Mutex

	codec  video.Codec
	events VideoEvents

	frames      map[uint32][][]byte // timestamp -> ordered raw NAL payloads
	frameOrder  []uint32
	complete    map[uint32]bool

	haveIDR      bool
	lastReset    time.Time
	firTimeout   time.Duration
	nacks        map[uint32]*nackEntry
}

// NewVideoBuffer creates a video jitter buffer for codec, delivering
// events to the given sink (may be nil in tests).
func NewVideoBuffer(codec video.Codec, events VideoEvents) *VideoBuffer {
	return &VideoBuffer{
		codec:      codec,
		events:     events,
		frames:     make(map[uint32][][]byte),
		complete:   make(map[uint32]bool),
		nacks:      make(map[uint32]*nackEntry),
		firTimeout: time.Second,
		lastReset:  time.Now(),
	}
}

// Reset clears IDR gating, requiring a fresh key frame before releasing
// any further output (spec §4.8 "gate non-IDR frames until an IDR is
// received after reset").
func (b *VideoBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.haveIDR = false
	b.lastReset = time.Now()
	b.frames = make(map[uint32][][]byte)
	b.complete = make(map[uint32]bool)
	b.frameOrder = nil
}

// AddPacket appends one depacketized NAL to its timestamp's frame and, on
// the marker bit, finalizes that frame.
func (b *VideoBuffer) AddPacket(timestamp uint32, nal []byte, marker bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.frames[timestamp]; !ok {
		b.frameOrder = append(b.frameOrder, timestamp)
	}
	b.frames[timestamp] = append(b.frames[timestamp], nal)

	if video.IsKeyframeNAL(b.codec, stripStartCode(nal)) {
		b.haveIDR = true
	}

	if marker {
		b.complete[timestamp] = true
		delete(b.nacks, timestamp)
	}

	if !b.haveIDR && time.Since(b.lastReset) > b.firTimeout {
		if b.events != nil {
			b.events.RequestFIR()
		}
		b.lastReset = time.Now()
	}
}

func stripStartCode(nal []byte) []byte {
	if len(nal) >= 4 && nal[0] == 0 && nal[1] == 0 && nal[2] == 0 && nal[3] == 1 {
		return nal[4:]
	}
	return nal
}

// PopComplete pops the oldest complete, gated-appropriate frame's NALs, or
// returns ok=false if none is ready. Complete frames popped before the
// buffer has seen a key frame since the last Reset are discarded.
func (b *VideoBuffer) PopComplete() (timestamp uint32, nals [][]byte, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.frameOrder) > 0 {
		ts := b.frameOrder[0]
		if !b.complete[ts] {
			return 0, nil, false
		}
		b.frameOrder = b.frameOrder[1:]
		nals := b.frames[ts]
		delete(b.frames, ts)
		delete(b.complete, ts)

		if !b.haveIDR {
			continue // still gated, drop silently per spec §4.8
		}
		return ts, nals, true
	}
	return 0, nil, false
}

// MarkMissing escalates (or starts) the NACK state machine for a
// timestamp that was expected but never arrived complete.
func (b *VideoBuffer) MarkMissing(timestamp uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.nacks[timestamp]
	if !ok {
		entry = &nackEntry{firstSeen: time.Now(), fsm: newNackFSM(b, timestamp)}
		b.nacks[timestamp] = entry
		_ = entry.fsm.Event(context.Background(), "missing")
		return
	}
	_ = entry.fsm.Event(context.Background(), "missing")
}

func newNackFSM(b *VideoBuffer, timestamp uint32) *fsm.FSM {
	return fsm.NewFSM(
		nackStateNone,
		fsm.Events{
			{Name: "missing", Src: []string{nackStateNone}, Dst: nackStateInitial},
			{Name: "missing", Src: []string{nackStateInitial}, Dst: nackStateSecond},
			{Name: "missing", Src: []string{nackStateSecond}, Dst: nackStatePLI},
		},
		fsm.Callbacks{
			"enter_" + nackStateInitial: func(_ context.Context, e *fsm.Event) {
				if b.events != nil {
					b.events.RequestNACK(timestamp, nackStateInitial)
				}
			},
			"enter_" + nackStateSecond: func(_ context.Context, e *fsm.Event) {
				if b.events != nil {
					b.events.RequestNACK(timestamp, nackStateSecond)
				}
			},
			"enter_" + nackStatePLI: func(_ context.Context, e *fsm.Event) {
				if b.events != nil {
					b.events.RequestPictureLost(timestamp)
				}
				delete(b.nacks, timestamp)
			},
		},
	)
}
