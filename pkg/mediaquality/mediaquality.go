// Package mediaquality implements the single-threaded media quality
// analyzer (spec §4.7): it consumes TX/RX/RTCP packet events and
// periodic timer ticks, maintains CallQuality and loss/jitter/inactivity
// state with hysteresis, and builds RTCP-XR report block bodies.
package mediaquality

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ims-media/rtpcore/pkg/rtp"
)

// QualityLevel is the spec §4.7 downlink/uplink quality classification
// derived from loss rate.
type QualityLevel int

const (
	QualityExcellent QualityLevel = iota
	QualityGood
	QualityFair
	QualityPoor
	QualityBad
)

func (q QualityLevel) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityFair:
		return "fair"
	case QualityPoor:
		return "poor"
	default:
		return "bad"
	}
}

// levelFromLossRate implements spec §4.7's thresholds: <1% Excellent,
// <3% Good, <5% Fair, <8% Poor, else Bad.
func levelFromLossRate(pct float64) QualityLevel {
	switch {
	case pct < 1:
		return QualityExcellent
	case pct < 3:
		return QualityGood
	case pct < 5:
		return QualityFair
	case pct < 8:
		return QualityPoor
	default:
		return QualityBad
	}
}

// CallQuality is the snapshot spec §3 names: counts, jitter stats,
// duration, and quality classification for one active session.
type CallQuality struct {
	NumRtpPacketsSent        uint64
	NumRtpPacketsReceived    uint64
	NumRtpPacketsNotReceived uint64
	NumRtpPacketsDropped     uint64
	NumSIDPackets            uint64
	NumDuplicatePackets      uint64

	MinJitterMillis     float64
	MaxJitterMillis     float64
	AverageRelativeJitter float64

	AverageRoundTripMillis float64

	CallDurationSeconds int64
	CodecType           string

	DownlinkQuality QualityLevel
	UplinkQuality   QualityLevel

	RTPInactivity bool
}

// Threshold mirrors spec §3 `MediaQualityThreshold`: hysteretic inactivity
// timers, loss/jitter duration + value lists.
type Threshold struct {
	RTPInactivityMillis  []int64 // hysteretic ladder, e.g. [2000, 4000]
	RTCPInactivityMillis []int64
	PacketLossDurationMs int64
	PacketLossRatePct    []float64
	JitterDurationMs     int64
	RTPJitterMillis      []float64
	HysteresisMs         int64
	NotifyCurrentStatus  bool
}

// Status is the event spec §3 `MediaQualityStatus` emits when a
// threshold crosses.
type Status struct {
	RTPInactivityTimeMillis  int64
	RTCPInactivityTimeMillis int64
	LossRatePct              float64
	RTPJitterMillis          float64
}

// Sink receives analyzer-emitted events; production wiring wraps a
// callback bus, tests assert directly.
type Sink interface {
	OnStatus(Status)
	OnCallQualityChanged(CallQuality)
	OnPacketLoss(ratePct float64)
	OnJitterNotify(jitterMillis float64)
}

type lossEntry struct {
	seq uint16
	at  time.Time
}

// Analyzer is the event-driven, single-threaded media quality analyzer.
// All mutation happens under mu, mirroring spec §5's "guarded by the
// analyzer mutex" rule; callers must not hold external locks across
// calls into it.
type Analyzer struct {
	mu sync.Mutex

	threshold Threshold
	sink      Sink

	quality CallQuality

	lastRxTime   time.Time
	haveRx       bool
	lastTick     time.Time
	started      time.Time

	rtpInactivityLevel int // index into threshold.RTPInactivityMillis ladder
	lossWindowStart    time.Time
	lossWindowRx       uint64
	lossWindowLost     uint64
	jitterWindowStart  time.Time

	rxList   []lossEntry
	txList   []lossEntry
	lostList []lossEntry

	beginSeq uint16
	endSeq   uint16
	haveRange bool

	currentSSRC uint32

	lastJitterBufferCurr int
	lastJitterBufferMax  int

	metrics *prometheusMetrics
}

const analyzerMaxListLen = 500

// prometheusMetrics groups the analyzer's exported gauges.
type prometheusMetrics struct {
	downlinkQuality prometheus.Gauge
	jitterMillis    prometheus.Gauge
	lossRatePct     prometheus.Gauge
}

func newPrometheusMetrics(reg prometheus.Registerer, sessionLabel string) *prometheusMetrics {
	m := &prometheusMetrics{
		downlinkQuality: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "rtpcore",
			Subsystem:   "media_quality",
			Name:        "downlink_quality_level",
			Help:        "Downlink call quality classification, 0=excellent..4=bad.",
			ConstLabels: prometheus.Labels{"session": sessionLabel},
		}),
		jitterMillis: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "rtpcore",
			Subsystem:   "media_quality",
			Name:        "average_jitter_millis",
			Help:        "Smoothed RTP interarrival jitter in milliseconds.",
			ConstLabels: prometheus.Labels{"session": sessionLabel},
		}),
		lossRatePct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "rtpcore",
			Subsystem:   "media_quality",
			Name:        "packet_loss_rate_pct",
			Help:        "RTP packet loss rate over the current loss window.",
			ConstLabels: prometheus.Labels{"session": sessionLabel},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.downlinkQuality, m.jitterMillis, m.lossRatePct)
	}
	return m
}

// New creates an analyzer. reg may be nil to skip Prometheus registration
// (e.g. in unit tests that construct multiple analyzers).
func New(threshold Threshold, sink Sink, reg prometheus.Registerer, sessionLabel string) *Analyzer {
	now := time.Now()
	return &Analyzer{
		threshold: threshold,
		sink:      sink,
		started:   now,
		lastTick:  now,
		metrics:   newPrometheusMetrics(reg, sessionLabel),
	}
}
