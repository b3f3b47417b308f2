package mediaquality

import (
	"github.com/pion/rtcp"

	"github.com/ims-media/rtpcore/pkg/rtp"
)

// GetXrReportBlock implements kGetRtcpXrReportBlock(mask): produces the
// requested XR block bodies covering [beginSeq, endSeq] from the stored
// RX/loss lists, then advances beginSeq = endSeq+1 and prunes the lists
// that range covered. Its signature matches rtp.SessionConfig.SupplyXRBlocks
// so an Analyzer can be wired straight into a Session.
func (a *Analyzer) GetXrReportBlock(mask rtp.XRBlockMask) []rtcp.ReportBlock {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.haveRange {
		return nil
	}

	var blocks []rtcp.ReportBlock

	if mask.Has(rtp.XRStatisticsSummary) {
		blocks = append(blocks, a.buildStatisticsSummary())
	}
	if mask.Has(rtp.XRVoIPMetrics) {
		blocks = append(blocks, a.buildVoIPMetrics())
	}
	if mask.Has(rtp.XRLossRLE) {
		blocks = append(blocks, a.buildLossRLE())
	}
	if mask.Has(rtp.XRDuplicateRLE) {
		blocks = append(blocks, a.buildDuplicateRLE())
	}

	a.pruneAndAdvance()
	return blocks
}

func (a *Analyzer) buildStatisticsSummary() *rtcp.StatisticsSummaryReportBlock {
	return &rtcp.StatisticsSummaryReportBlock{
		SSRC:                a.currentSSRC,
		BeginSeq:            a.beginSeq,
		EndSeq:              a.endSeq,
		LossReportFlag:      true,
		DuplicateReportFlag: true,
		JitterFlag:          true,
		LostPackets:         uint32(len(a.lostList)),
		DupPackets:          uint32(a.quality.NumDuplicatePackets),
		JitterMinimum:       uint32(a.quality.MinJitterMillis),
		JitterMaximum:       uint32(a.quality.MaxJitterMillis),
		JitterMean:          uint32(a.quality.AverageRelativeJitter),
	}
}

func (a *Analyzer) buildVoIPMetrics() *rtcp.VoIPMetricsReportBlock {
	lossRate := uint8(0)
	total := a.quality.NumRtpPacketsReceived + a.quality.NumRtpPacketsNotReceived
	if total > 0 {
		lossRate = uint8(float64(a.quality.NumRtpPacketsNotReceived) / float64(total) * 255)
	}
	return &rtcp.VoIPMetricsReportBlock{
		SSRC:      a.currentSSRC,
		LossRate:  lossRate,
		JBNominal: uint16(a.lastJitterBufferCurr) * 20,
		JBMaximum: uint16(a.lastJitterBufferMax) * 20,
	}
}

func (a *Analyzer) buildLossRLE() *rtcp.LossRLEReportBlock {
	return &rtcp.LossRLEReportBlock{
		SSRC:     a.currentSSRC,
		BeginSeq: a.beginSeq,
		EndSeq:   a.endSeq,
	}
}

func (a *Analyzer) buildDuplicateRLE() *rtcp.DuplicateRLEReportBlock {
	return &rtcp.DuplicateRLEReportBlock{
		SSRC:     a.currentSSRC,
		BeginSeq: a.beginSeq,
		EndSeq:   a.endSeq,
	}
}

func (a *Analyzer) pruneAndAdvance() {
	newBegin := a.endSeq + 1
	a.rxList = nil
	a.lostList = nil
	a.beginSeq = newBegin
	a.haveRange = false
}
