// Package jitteranalyser implements the jitter network analyser (spec
// §4.6): a rolling window of transit-time deltas feeding a μ+zσ estimator
// and a NORMAL/GOOD/BAD state machine that recommends the next de-jitter
// buffer depth.
package jitteranalyser

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

const (
	stateNormal = "normal"
	stateGood   = "good"
	stateBad    = "bad"
)

// Config parameterizes the analyser. New uses the values as given; zero
// values are not replaced, so start from DefaultConfig (WindowSize must be
// positive).
type Config struct {
	WindowSize     int           // number of transit-time deltas retained
	Z              float64       // z-value multiplier, default 2.5
	IntervalMs     int64         // playout interval, 20ms for audio
	DwellDuration  time.Duration // GOOD dwell timer before shrink, default 20s
	StepSize       int           // shrink step in frames, default 2
	Min, Max       int
	GrowthPerSec   int // max growth events per second (rate limit)
}

// DefaultConfig returns spec §4.6's defaults.
func DefaultConfig(min, max int) Config {
	return Config{
		WindowSize:    64,
		Z:             2.5,
		IntervalMs:    20,
		DwellDuration: 20 * time.Second,
		StepSize:      2,
		Min:           min,
		Max:           max,
		GrowthPerSec:  1,
	}
}

// Analyser computes the recommended playout depth from a rolling window
// of RFC 3550-style transit-time deltas and exposes it through
// RecommendedSize, satisfying jitterbuffer.SizeSource.
type Analyser struct {
	mu sync.Mutex

	cfg Config

	window    []float64
	windowPos int
	windowLen int

	currSize int
	maxJitter float64

	fsm           *fsm.FSM
	dwellStart    time.Time
	lastGrowth    time.Time

	firstTransit int64
	haveFirst    bool
}

// New creates an analyser starting at currSize frames.
func New(cfg Config, currSize int) *Analyser {
	a := &Analyser{
		cfg:      cfg,
		window:   make([]float64, cfg.WindowSize),
		currSize: currSize,
	}
	a.fsm = fsm.NewFSM(
		stateNormal,
		fsm.Events{
			{Name: "bad", Src: []string{stateNormal, stateGood, stateBad}, Dst: stateBad},
			{Name: "good", Src: []string{stateNormal, stateBad, stateGood}, Dst: stateGood},
			{Name: "normal", Src: []string{stateNormal, stateGood, stateBad}, Dst: stateNormal},
		},
		fsm.Callbacks{
			"enter_" + stateGood: func(_ context.Context, e *fsm.Event) {
				a.dwellStart = time.Now()
			},
		},
	)
	return a
}

// Observe feeds one packet's arrival time (in milliseconds) and RTP
// timestamp (in clockRate units, converted to milliseconds here) to the
// rolling window, per RFC 3550 §A.8's transit-time formula:
// Dj = (Rj − R0) − (Tj − T0).
func (a *Analyser) Observe(arrivalTicks int64, rtpTimestamp uint32, clockRate uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	transit := arrivalTicks - int64(rtpTimestamp)*int64(time.Second/time.Millisecond)/int64(clockRate)
	if !a.haveFirst {
		a.firstTransit = transit
		a.haveFirst = true
	}
	delta := float64(transit - a.firstTransit)

	a.window[a.windowPos] = delta
	a.windowPos = (a.windowPos + 1) % len(a.window)
	if a.windowLen < len(a.window) {
		a.windowLen++
	}
	if abs := math.Abs(delta); abs > a.maxJitter {
		a.maxJitter = abs
	}

	a.evaluate(time.Now())
}

func (a *Analyser) stats() (mean, stddev float64) {
	if a.windowLen == 0 {
		return 0, 0
	}
	var sum float64
	for i := 0; i < a.windowLen; i++ {
		sum += a.window[i]
	}
	mean = sum / float64(a.windowLen)

	var variance float64
	for i := 0; i < a.windowLen; i++ {
		d := a.window[i] - mean
		variance += d * d
	}
	variance /= float64(a.windowLen)
	return mean, math.Sqrt(variance)
}

// evaluate implements spec §4.6's state machine and growth/shrink logic.
// Caller must hold a.mu.
func (a *Analyser) evaluate(now time.Time) {
	mean, stddev := a.stats()
	calc := mean + a.cfg.Z*stddev
	interval := float64(a.cfg.IntervalMs)

	badThreshold := float64(a.currSize) * interval
	goodThreshold := float64(a.currSize-1)*interval - 10

	switch {
	case calc >= badThreshold:
		_ = a.fsm.Event(context.Background(), "bad")
		a.grow(calc, badThreshold, now)
	case calc < goodThreshold && a.maxJitter < goodThreshold:
		_ = a.fsm.Event(context.Background(), "good")
		a.maybeShrink(now)
	default:
		_ = a.fsm.Event(context.Background(), "normal")
	}
}

func (a *Analyser) grow(calc, threshold float64, now time.Time) {
	minGap := time.Second
	if a.cfg.GrowthPerSec > 0 {
		minGap = time.Second / time.Duration(a.cfg.GrowthPerSec)
	}
	if !a.lastGrowth.IsZero() && now.Sub(a.lastGrowth) < minGap {
		return
	}
	excess := calc - threshold
	step := math.Ceil(excess / float64(a.cfg.IntervalMs))
	if excess > float64(a.cfg.IntervalMs)*2 {
		step *= 1.5
	}
	next := a.currSize + int(math.Ceil(step))
	if next > a.cfg.Max {
		next = a.cfg.Max
	}
	if next != a.currSize {
		a.currSize = next
		a.lastGrowth = now
	}
}

func (a *Analyser) maybeShrink(now time.Time) {
	if a.dwellStart.IsZero() || now.Sub(a.dwellStart) < a.cfg.DwellDuration {
		return
	}
	next := a.currSize - a.cfg.StepSize
	if next < a.cfg.Min {
		next = a.cfg.Min
	}
	a.currSize = next
	a.dwellStart = now
}

// RecommendedSize returns the analyser's current recommended playout
// depth in frames.
func (a *Analyser) RecommendedSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currSize
}

// State returns the analyser's current NORMAL/GOOD/BAD classification.
func (a *Analyser) State() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fsm.Current()
}

// MaxJitter returns the largest absolute transit-time delta observed since
// the analyser was created.
func (a *Analyser) MaxJitter() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxJitter
}
