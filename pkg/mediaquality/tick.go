package mediaquality

import "time"

// Tick implements spec §4.7's periodic 1s timer: advances call duration,
// checks RTP inactivity (with a hysteretic ladder), recomputes downlink
// quality every 5s, and checks the loss duration window. The jitter
// duration window is checked as RX packets arrive, in CollectPacketInfo.
func (a *Analyzer) Tick(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.quality.CallDurationSeconds++
	a.lastTick = now

	a.checkInactivity(now)

	if a.quality.CallDurationSeconds%5 == 0 {
		a.recomputeDownlinkQuality()
	}

	a.checkLossDurationWindow(now)
}

// checkInactivity implements the hysteretic RTP-inactivity ladder: the
// first threshold in the list fires once idle time crosses it; each
// subsequent threshold must be crossed to escalate further. A packet
// arrival snaps the ladder back to index 0, matching spec §8 scenario 5.
func (a *Analyzer) checkInactivity(now time.Time) {
	if len(a.threshold.RTPInactivityMillis) == 0 {
		return
	}

	var idleMs int64
	if a.haveRx {
		idleMs = time.Since(a.lastRxTime).Milliseconds()
	} else {
		idleMs = time.Since(a.started).Milliseconds()
	}

	if a.rtpInactivityLevel >= len(a.threshold.RTPInactivityMillis) {
		return
	}

	threshold := a.threshold.RTPInactivityMillis[a.rtpInactivityLevel]
	if idleMs >= threshold {
		a.quality.RTPInactivity = true
		status := Status{RTPInactivityTimeMillis: threshold}
		if a.sink != nil {
			a.sink.OnStatus(status)
		}
		a.rtpInactivityLevel++
	}
}

// NotifyRxActivity resets the inactivity ladder when a fresh RTP packet
// arrives, so the next idle period restarts from the first threshold.
func (a *Analyzer) NotifyRxActivity(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.haveRx = true
	a.lastRxTime = now
	a.rtpInactivityLevel = 0
	a.quality.RTPInactivity = false
}

func (a *Analyzer) recomputeDownlinkQuality() {
	total := a.quality.NumRtpPacketsReceived + a.quality.NumRtpPacketsNotReceived
	if total == 0 {
		return
	}
	pct := float64(a.quality.NumRtpPacketsNotReceived) / float64(total) * 100
	level := levelFromLossRate(pct)
	if level != a.quality.DownlinkQuality {
		a.quality.DownlinkQuality = level
		if a.metrics != nil {
			a.metrics.downlinkQuality.Set(float64(level))
		}
		if a.sink != nil {
			a.sink.OnCallQualityChanged(a.quality)
		}
	}
}

func (a *Analyzer) checkLossDurationWindow(now time.Time) {
	if a.threshold.PacketLossDurationMs == 0 {
		return
	}
	if a.lossWindowStart.IsZero() {
		a.lossWindowStart = now
		return
	}
	if now.Sub(a.lossWindowStart).Milliseconds() < a.threshold.PacketLossDurationMs {
		return
	}

	rx := a.quality.NumRtpPacketsReceived - a.lossWindowRx
	lost := a.quality.NumRtpPacketsNotReceived - a.lossWindowLost
	a.lossWindowRx = a.quality.NumRtpPacketsReceived
	a.lossWindowLost = a.quality.NumRtpPacketsNotReceived
	a.lossWindowStart = now

	total := rx + lost
	if total == 0 {
		return
	}
	pct := float64(lost) / float64(total) * 100
	if a.metrics != nil {
		a.metrics.lossRatePct.Set(pct)
	}

	for _, thresholdPct := range a.threshold.PacketLossRatePct {
		if pct >= thresholdPct {
			if a.sink != nil {
				a.sink.OnPacketLoss(pct)
			}
			break
		}
	}
}
