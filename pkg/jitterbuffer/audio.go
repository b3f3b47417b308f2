// Package jitterbuffer implements the audio and video de-jitter buffers:
// sequence-ordered playout queues that absorb network jitter, detect loss
// and duplication, and drive the jitter network analyser and media
// quality analyzer's event streams.
package jitterbuffer

import (
	"container/heap"
	"sync"
	"time"

	"github.com/ims-media/rtpcore/pkg/rtp"
)

// Params are the (init, min, max) depth bounds in frames, spec §4.5's
// defaults: 4/3/9 for most codecs, 6 for G.711.
type Params struct {
	Init       int
	Min        int
	Max        int
	MaxBundled int // largest number of codec frames one RTP packet may bundle
	FrameMs    int // frame interval, 20ms for AMR/EVS
}

// DefaultParams returns the spec default (4/3/9, 20ms frame, single-frame
// bundling).
func DefaultParams() Params {
	return Params{Init: 4, Min: 3, Max: 9, MaxBundled: 1, FrameMs: 20}
}

// G711Params returns the spec's G.711 override (init=min=max=6).
func G711Params() Params {
	return Params{Init: 6, Min: 6, Max: 6, MaxBundled: 1, FrameMs: 20}
}

// Entry is one buffered audio packet plus its arrival bookkeeping.
type Entry struct {
	Seq      uint16
	Size     int
	IsSID    bool
	Arrival  time.Time
	Packet   *rtp.Packet
	index    int
}

type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	return rtp.SeqDiff(h[i].Seq, h[j].Seq) < 0
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *entryHeap) Push(x interface{}) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Events is the hook set a Buffer calls into as state changes, mirroring
// spec §4.7's kCollectRxRtpStatus / kCollectJitterBufferSize event names.
type Events interface {
	RxStatus(seq uint16, status rtp.RxStatus, arrivalDelayMs int64)
	JitterBufferSize(curr, max int)
}

// SizeSource supplies the analyser-recommended playout depth, spec §4.5
// step 3 (the jitter network analyser of §4.6).
type SizeSource interface {
	RecommendedSize() int
}

// waitState is the Playout state machine's notion of whether the buffer
// is waiting to accumulate enough depth before emitting packets.
type waitState int

const (
	stateWaiting waitState = iota
	statePlaying
)

// Buffer is the audio de-jitter buffer (spec §4.5): sorted by modular
// sequence number, bounded capacity, guard-then-playout state machine.
type Buffer struct {
	mu sync.Mutex

	params Params
	events Events
	sizer  SizeSource

	heap entryHeap
	seen map[uint16]int // seq -> size, for (sequence,size) dedup

	started       bool
	state         waitState
	lastPlayedSeq uint16
	havePlayed    bool

	currSize       int
	currentPlayTS  uint32
	lastSizeRecalc time.Time
	guardTicks     int

	consecutiveSIDs int
}

// NewBuffer creates an audio jitter buffer. events and sizer may be nil
// in tests that don't need the callback/analyser wiring.
func NewBuffer(params Params, events Events, sizer SizeSource) *Buffer {
	b := &Buffer{
		params:   params,
		events:   events,
		sizer:    sizer,
		seen:     make(map[uint16]int),
		currSize: params.Init,
	}
	heap.Init(&b.heap)
	return b
}

func (b *Buffer) capacity() int {
	return b.params.Max + b.params.Min + b.params.MaxBundled - 1
}

// Add inserts one received packet, applying spec §4.5's ordering,
// late-drop, dedup, and capacity-eviction invariants.
func (b *Buffer) Add(seq uint16, size int, isSID bool, arrival time.Time, pkt *rtp.Packet) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started && rtp.SeqDiff(seq, b.lastPlayedSeq) <= 0 {
		b.emitRxStatus(seq, rtp.RxStatusLate, arrival)
		return
	}

	if existingSize, ok := b.seen[seq]; ok && existingSize == size {
		b.emitRxStatus(seq, rtp.RxStatusDuplicated, arrival)
		return
	}

	e := &Entry{Seq: seq, Size: size, IsSID: isSID, Arrival: arrival, Packet: pkt}
	heap.Push(&b.heap, e)
	b.seen[seq] = size

	if len(b.heap) > b.capacity() {
		oldest := heap.Pop(&b.heap).(*Entry)
		delete(b.seen, oldest.Seq)
		b.emitRxStatus(oldest.Seq, rtp.RxStatusLate, oldest.Arrival)
	}

	b.emitRxStatus(seq, rtp.RxStatusNormal, arrival)
	b.emitSize()
}

func (b *Buffer) emitRxStatus(seq uint16, status rtp.RxStatus, arrival time.Time) {
	if b.events == nil {
		return
	}
	delay := int64(0)
	if !arrival.IsZero() {
		delay = time.Since(arrival).Milliseconds()
	}
	b.events.RxStatus(seq, status, delay)
}

func (b *Buffer) emitSize() {
	if b.events == nil {
		return
	}
	b.events.JitterBufferSize(len(b.heap), b.capacity())
}

// Get returns the next packet to play, if any. It holds output for the
// first four calls, waits at start (and while a SID heads the queue in the
// waiting state) until the head has aged (queued packets−1)×20+10 ms,
// refreshes the target size, and drops one SID after four consecutive SIDs.
// It does not compare the head's timestamp with the current play
// timestamp: packets are released in sequence order without any
// force-to-play or skip-ahead.
func (b *Buffer) Get(now time.Time) (*Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.guardTicks < 4 {
		b.guardTicks++
		return nil, false
	}

	if len(b.heap) == 0 {
		return nil, false
	}

	head := b.heap[0]

	if !b.started || (b.state == stateWaiting && head.IsSID) {
		requiredAgeMs := int64((len(b.heap)-1)*20 + 10)
		if time.Since(head.Arrival).Milliseconds() < requiredAgeMs {
			b.state = stateWaiting
			return nil, false
		}
		b.state = statePlaying
	}

	b.maybeRecalcSize(now)

	if head.IsSID {
		b.consecutiveSIDs++
	} else {
		b.consecutiveSIDs = 0
	}
	if b.consecutiveSIDs >= 4 {
		// SID-rich region: drop the surplus to let the buffer shrink.
		dropped := heap.Pop(&b.heap).(*Entry)
		delete(b.seen, dropped.Seq)
		b.consecutiveSIDs = 0
		return nil, false
	}

	played := heap.Pop(&b.heap).(*Entry)
	delete(b.seen, played.Seq)
	b.started = true
	b.lastPlayedSeq = played.Seq
	b.havePlayed = true
	b.emitSize()
	return played, true
}

// maybeRecalcSize implements step 3: recompute currSize from the
// analyser on the first call and then at most once every 2 seconds.
func (b *Buffer) maybeRecalcSize(now time.Time) {
	if b.sizer == nil {
		return
	}
	if !b.lastSizeRecalc.IsZero() && now.Sub(b.lastSizeRecalc) < 2*time.Second {
		return
	}
	b.lastSizeRecalc = now

	next := b.sizer.RecommendedSize()
	if next < b.params.Min {
		next = b.params.Min
	}
	if next > b.params.Max {
		next = b.params.Max
	}
	if next != b.currSize {
		delta := next - b.currSize
		b.currentPlayTS += uint32(delta * b.params.FrameMs * 8) // assumes an 8 kHz RTP clock
		b.currSize = next
	}
}

// Len returns the number of packets currently queued.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.heap)
}

// CurrSize returns the buffer's current target playout depth in frames.
func (b *Buffer) CurrSize() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currSize
}
