package mediaquality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ims-media/rtpcore/pkg/rtp"
)

type recordingSink struct {
	statuses []Status
	quality  []CallQuality
	losses   []float64
	jitters  []float64
}

func (s *recordingSink) OnStatus(st Status)                      { s.statuses = append(s.statuses, st) }
func (s *recordingSink) OnCallQualityChanged(cq CallQuality)      { s.quality = append(s.quality, cq) }
func (s *recordingSink) OnPacketLoss(ratePct float64)             { s.losses = append(s.losses, ratePct) }
func (s *recordingSink) OnJitterNotify(jitterMillis float64)      { s.jitters = append(s.jitters, jitterMillis) }

func TestLossRateClassifiesBadAboveTenPercent(t *testing.T) {
	sink := &recordingSink{}
	a := New(Threshold{}, sink, nil, "test")

	for seq := uint16(0); seq < 10; seq++ {
		if seq == 5 {
			continue
		}
		a.CollectRxRtpStatus(seq, rtp.RxStatusNormal, 0)
		a.CollectPacketInfo(StreamRX, rtp.DataTypeNormal, 0)
	}
	a.CollectOptionalInfo(InfoPacketLossGap, 5, 1, 0)

	a.Tick(time.Now())
	a.Tick(time.Now())
	a.Tick(time.Now())
	a.Tick(time.Now())
	a.Tick(time.Now())

	cq := a.GetMediaQuality()
	require.EqualValues(t, 9, cq.NumRtpPacketsReceived)
	require.EqualValues(t, 1, cq.NumRtpPacketsNotReceived)
	require.Equal(t, QualityBad, cq.DownlinkQuality)
}

func TestJitterThresholdFiresWithinWindow(t *testing.T) {
	sink := &recordingSink{}
	threshold := Threshold{
		HysteresisMs:     2000,
		JitterDurationMs: 1000,
		RTPJitterMillis:  []float64{10, 20},
	}
	a := New(threshold, sink, nil, "test")
	a.jitterWindowStart = time.Now().Add(-time.Duration(threshold.JitterDurationMs) * time.Millisecond)

	for i := 0; i < 20; i++ {
		a.CollectPacketInfo(StreamRX, rtp.DataTypeNormal, 20)
	}

	cq := a.GetMediaQuality()
	require.InDelta(t, 20, cq.AverageRelativeJitter, 0.5)
	require.Len(t, sink.statuses, 1)
	require.EqualValues(t, 20, sink.statuses[0].RTPJitterMillis)
}

func TestRTPInactivityHystereticLadder(t *testing.T) {
	sink := &recordingSink{}
	threshold := Threshold{RTPInactivityMillis: []int64{50, 100}}
	a := New(threshold, sink, nil, "test")
	a.started = time.Now().Add(-60 * time.Millisecond)

	a.Tick(time.Now())
	require.Len(t, sink.statuses, 1)
	require.EqualValues(t, 50, sink.statuses[0].RTPInactivityTimeMillis)

	a.started = time.Now().Add(-110 * time.Millisecond)
	a.Tick(time.Now())
	require.Len(t, sink.statuses, 2)
	require.EqualValues(t, 100, sink.statuses[1].RTPInactivityTimeMillis)

	a.NotifyRxActivity(time.Now())
	require.Equal(t, 0, a.rtpInactivityLevel)
	require.False(t, a.GetMediaQuality().RTPInactivity)
}

func TestGetXrReportBlockAdvancesRangeAndPrunesLists(t *testing.T) {
	a := New(Threshold{}, nil, nil, "test")
	for seq := uint16(0); seq < 5; seq++ {
		a.CollectRxRtpStatus(seq, rtp.RxStatusNormal, 0)
	}

	blocks := a.GetXrReportBlock(rtp.XRStatisticsSummary | rtp.XRVoIPMetrics)
	require.Len(t, blocks, 2)
	require.EqualValues(t, 5, a.beginSeq)
	require.Empty(t, a.rxList)

	require.Nil(t, a.GetXrReportBlock(rtp.XRStatisticsSummary))
}

func TestResetForSSRCChangePreservesDuration(t *testing.T) {
	a := New(Threshold{}, nil, nil, "test")
	a.quality.CallDurationSeconds = 42
	a.quality.NumRtpPacketsReceived = 10

	a.ResetForSSRCChange(0xABCD)

	cq := a.GetMediaQuality()
	require.EqualValues(t, 42, cq.CallDurationSeconds)
	require.EqualValues(t, 0, cq.NumRtpPacketsReceived)
	require.EqualValues(t, 0xABCD, a.currentSSRC)
}
