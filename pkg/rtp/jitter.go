package rtp

// JitterEstimator computes the RFC 3550 §A.8 interarrival jitter estimate:
//
//	D = (Rj - Ri) - (Sj - Si)
//	J += (|D| - J) / 16
//
// where R is arrival time and S is the RTP timestamp, both expressed in
// the same clock-rate units. The session keeps one estimator for the
// current RX SSRC and resets it in place on SSRC change.
type JitterEstimator struct {
	clockRate   uint32
	haveLast    bool
	lastArrival int64  // Ri, in clock-rate ticks
	lastTS      uint32 // Si
	jitter      float64
}

// NewJitterEstimator creates an estimator for the given RTP clock rate.
func NewJitterEstimator(clockRate uint32) *JitterEstimator {
	return &JitterEstimator{clockRate: clockRate}
}

// Update feeds one packet's arrival time (in clock-rate ticks, e.g.
// wall-clock nanoseconds scaled to the session's sampling rate) and RTP
// timestamp, returning the updated jitter estimate J (in clock-rate
// ticks, matching the units RTCP report blocks expect).
func (j *JitterEstimator) Update(arrivalTicks int64, timestamp uint32) uint32 {
	if !j.haveLast {
		j.haveLast = true
		j.lastArrival = arrivalTicks
		j.lastTS = timestamp
		return uint32(j.jitter)
	}

	d := (arrivalTicks - j.lastArrival) - TimestampDiff(timestamp, j.lastTS)
	if d < 0 {
		d = -d
	}

	j.jitter += (float64(d) - j.jitter) / 16.0

	j.lastArrival = arrivalTicks
	j.lastTS = timestamp

	return uint32(j.jitter)
}

// Value returns the current jitter estimate without updating it.
func (j *JitterEstimator) Value() uint32 {
	return uint32(j.jitter)
}

// Reset clears accumulated state, used on RX SSRC change (spec §4.3).
func (j *JitterEstimator) Reset() {
	j.haveLast = false
	j.lastArrival = 0
	j.lastTS = 0
	j.jitter = 0
}
