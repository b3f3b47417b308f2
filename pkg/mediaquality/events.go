package mediaquality

import (
	"time"

	"github.com/ims-media/rtpcore/pkg/rtp"
)

// StreamDirection classifies which of TX/RX/RTCP a packet-info event
// describes, spec §4.7's kStreamRtpTx|Rx|Rtcp.
type StreamDirection int

const (
	StreamTX StreamDirection = iota
	StreamRX
	StreamRTCP
)

// CollectPacketInfo implements kCollectPacketInfo: accumulate TX/RX packet
// counts and update running avg/max jitter (RX only). StreamRTCP events
// are accepted but not counted.
func (a *Analyzer) CollectPacketInfo(dir StreamDirection, dataType rtp.DataType, jitterSample uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch dir {
	case StreamTX:
		a.quality.NumRtpPacketsSent++
	case StreamRX:
		a.quality.NumRtpPacketsReceived++
		if dataType == rtp.DataTypeSID {
			a.quality.NumSIDPackets++
		}
		a.haveRx = true
		a.lastRxTime = time.Now()
		a.updateJitterStats(float64(jitterSample))
	}
}

func (a *Analyzer) updateJitterStats(jitterMs float64) {
	if a.quality.MaxJitterMillis == 0 || jitterMs > a.quality.MaxJitterMillis {
		a.quality.MaxJitterMillis = jitterMs
	}
	if a.quality.MinJitterMillis == 0 || jitterMs < a.quality.MinJitterMillis {
		a.quality.MinJitterMillis = jitterMs
	}
	// exponential smoothing, same shape as the RFC 3550 jitter estimator
	// the RTP session itself uses, seeded with the first RX sample.
	if a.quality.NumRtpPacketsReceived == 1 {
		a.quality.AverageRelativeJitter = jitterMs
	} else {
		a.quality.AverageRelativeJitter += (jitterMs - a.quality.AverageRelativeJitter) / 16
	}
	if a.metrics != nil {
		a.metrics.jitterMillis.Set(a.quality.AverageRelativeJitter)
	}

	if a.threshold.JitterDurationMs > 0 {
		if a.jitterWindowStart.IsZero() {
			a.jitterWindowStart = time.Now()
		} else if time.Since(a.jitterWindowStart).Milliseconds() >= a.threshold.JitterDurationMs {
			a.checkJitterThreshold()
			a.jitterWindowStart = time.Now()
		}
	}
}

func (a *Analyzer) checkJitterThreshold() {
	for _, thresholdMs := range a.threshold.RTPJitterMillis {
		if a.quality.AverageRelativeJitter >= thresholdMs {
			if a.sink != nil {
				a.sink.OnJitterNotify(a.quality.AverageRelativeJitter)
				a.sink.OnStatus(Status{RTPJitterMillis: a.quality.AverageRelativeJitter})
			}
			return
		}
	}
}

// CollectRxRtpStatus implements kCollectRxRtpStatus: updates voice/
// dropped/duplicate counters and feeds the RTCP-XR stacker's RX list.
func (a *Analyzer) CollectRxRtpStatus(seq uint16, status rtp.RxStatus, arrivalDelayMs int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch status {
	case rtp.RxStatusLost:
		a.quality.NumRtpPacketsNotReceived++
		a.lostList = appendCapped(a.lostList, lossEntry{seq: seq, at: time.Now()}, analyzerMaxListLen)
	case rtp.RxStatusDuplicated:
		a.quality.NumDuplicatePackets++
	case rtp.RxStatusDiscarded:
		a.quality.NumRtpPacketsDropped++
	}

	a.rxList = appendCapped(a.rxList, lossEntry{seq: seq, at: time.Now()}, analyzerMaxListLen)
	if !a.haveRange {
		a.beginSeq = seq
		a.haveRange = true
	}
	a.endSeq = seq
}

func appendCapped(list []lossEntry, e lossEntry, max int) []lossEntry {
	list = append(list, e)
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}

// OptionalInfoKind enumerates kCollectOptionalInfo's sub-events.
type OptionalInfoKind int

const (
	InfoPacketLossGap OptionalInfoKind = iota
	InfoRoundTripDelay
	InfoTimeToLive
)

// CollectOptionalInfo implements kCollectOptionalInfo: expands a loss gap
// into N lost slots, or feeds RTT into the running average.
func (a *Analyzer) CollectOptionalInfo(kind OptionalInfoKind, firstSeq uint16, count int, roundTripMillis float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch kind {
	case InfoPacketLossGap:
		a.quality.NumRtpPacketsNotReceived += uint64(count)
		for i := 0; i < count; i++ {
			seq := firstSeq + uint16(i)
			a.lostList = appendCapped(a.lostList, lossEntry{seq: seq, at: time.Now()}, analyzerMaxListLen)
		}
	case InfoRoundTripDelay:
		if a.quality.AverageRoundTripMillis == 0 {
			a.quality.AverageRoundTripMillis = roundTripMillis
		} else {
			a.quality.AverageRoundTripMillis += (roundTripMillis - a.quality.AverageRoundTripMillis) / 8
		}
	case InfoTimeToLive:
		// observational only; no running state kept beyond the log line
		// a production caller would emit.
	}
}

// CollectJitterBufferSize implements kCollectJitterBufferSize: forwarded
// to the XR encoder (tracked here for StatisticsSummary reporting).
func (a *Analyzer) CollectJitterBufferSize(curr, max int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastJitterBufferCurr = curr
	a.lastJitterBufferMax = max
}

// ResetForSSRCChange implements spec §4.7's "SSRC change triggers a full
// reset of all lists and a new XR epoch, preserving call-duration".
func (a *Analyzer) ResetForSSRCChange(newSSRC uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	preservedDuration := a.quality.CallDurationSeconds
	a.quality = CallQuality{CallDurationSeconds: preservedDuration}
	a.rxList = nil
	a.txList = nil
	a.lostList = nil
	a.haveRange = false
	a.currentSSRC = newSSRC
	a.haveRx = false
	a.rtpInactivityLevel = 0
}

// GetMediaQuality returns a snapshot of the current CallQuality. The
// downlink quality it carries is the value last computed by Tick.
func (a *Analyzer) GetMediaQuality() CallQuality {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.quality
}
