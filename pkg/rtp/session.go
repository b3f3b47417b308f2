package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/rtcp"
	pionrtp "github.com/pion/rtp"
)

// MediaType distinguishes the media flow a session carries, used as part
// of the registry key (spec §3/§4.3).
type MediaType int

const (
	MediaAudio MediaType = iota
	MediaVideo
	MediaText
)

// State is the RtpSession lifecycle state.
type State int

const (
	StateIdle State = iota
	StateActive
	StateClosed
)

// Endpoint identifies a local or peer transport address for registry
// keying; it deliberately carries no socket handle (§1: socket I/O is an
// external collaborator).
type Endpoint struct {
	Host string
	Port int
}

// Key identifies an RtpSession instance for the shared registry: spec §4.3
// keys sessions by (media-type, local-endpoint, peer-endpoint).
type Key struct {
	Media MediaType
	Local Endpoint
	Peer  Endpoint
}

// SessionConfig carries the construction parameters for NewSession.
type SessionConfig struct {
	Key          Key
	ClockRate    uint32 // sampling rate in Hz, <=48kHz (EVS negotiated rate)
	CNAME        CNAME
	RTCPInterval time.Duration // 0 disables periodic RTCP
	XRBlocks     XRBlockMask
	Logger       *slog.Logger

	// OnCompoundRTCP is invoked with a ready-to-send compound RTCP packet
	// each time the session's scheduler ticks. The session never touches
	// a socket directly.
	OnCompoundRTCP func(*Compound)
	// SupplyXRBlocks lets the media quality analyzer (§4.7) contribute
	// report block bodies for the current aggregation epoch.
	SupplyXRBlocks func(mask XRBlockMask) []rtcp.ReportBlock
}

// XRBlockMask is a bitmask of RTCP-XR block types the session is
// configured to emit (spec §4.3/§6).
type XRBlockMask uint8

const (
	XRLossRLE XRBlockMask = 1 << iota
	XRDuplicateRLE
	XRReceiptTimes
	XRReceiverReferenceTime
	XRDLRR
	XRStatisticsSummary
	XRVoIPMetrics
)

// Has reports whether mask includes block b.
func (mask XRBlockMask) Has(b XRBlockMask) bool { return mask&b != 0 }

// payloadTypeMap maps an RTP payload type byte to a caller-defined codec
// tag, one per TX and RX direction as spec §3 requires.
type payloadTypeMap map[uint8]string

// Session is one RtpSession per spec §3/§4.3: per-flow sequence/timestamp
// generation, SSRC + collision recovery, RX jitter/source tracking, RTCP
// scheduling, and reference-counted lifetime via the package registry.
type Session struct {
	mu sync.Mutex

	key    Key
	state  State
	logger *slog.Logger

	clockRate uint32
	cname     CNAME

	localSSRC  uint32
	remoteSSRC uint32
	haveRemote bool

	txSeq    uint16
	txTS     uint32
	haveTxTS bool

	txPayloadTypes payloadTypeMap
	rxPayloadTypes payloadTypeMap

	jitter *JitterEstimator

	rtcpInterval   time.Duration
	xrBlocks       XRBlockMask
	onCompoundRTCP func(*Compound)
	supplyXRBlocks func(mask XRBlockMask) []rtcp.ReportBlock
	stopRTCP       chan struct{}
	rtcpWG         sync.WaitGroup

	packetsSent     uint64
	octetsSent      uint64
	packetsReceived uint64
	octetsReceived  uint64

	refCount int
}

// newSession constructs a Session in StateIdle; used only by the registry
// so refcounting stays centralized.
func newSession(cfg SessionConfig) (*Session, error) {
	if cfg.ClockRate == 0 || cfg.ClockRate > 48000 {
		return nil, newError(ErrInvalidParam, "clock rate must be in (0, 48000]", nil)
	}

	ssrc, err := randomUint32()
	if err != nil {
		return nil, newError(ErrNoResources, "failed to generate SSRC", err)
	}
	seq, err := randomUint16()
	if err != nil {
		return nil, newError(ErrNoResources, "failed to generate initial sequence number", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		key:            cfg.Key,
		state:          StateIdle,
		logger:         logger,
		clockRate:      cfg.ClockRate,
		cname:          cfg.CNAME,
		localSSRC:      ssrc,
		txSeq:          seq,
		txPayloadTypes: make(payloadTypeMap),
		rxPayloadTypes: make(payloadTypeMap),
		jitter:         NewJitterEstimator(cfg.ClockRate),
		rtcpInterval:   cfg.RTCPInterval,
		xrBlocks:       cfg.XRBlocks,
		onCompoundRTCP: cfg.OnCompoundRTCP,
		supplyXRBlocks: cfg.SupplyXRBlocks,
		refCount:       1,
	}, nil
}

// SSRC returns the local synchronization source identifier.
func (s *Session) SSRC() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localSSRC
}

// SetTxPayloadType registers the payload type byte used for a codec tag on
// transmit.
func (s *Session) SetTxPayloadType(pt uint8, codec string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txPayloadTypes[pt] = codec
}

// SetRxPayloadType registers an accepted payload type on receive.
func (s *Session) SetRxPayloadType(pt uint8, codec string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxPayloadTypes[pt] = codec
}

// EnableRTCP starts the periodic RTCP transmit timer (spec §4.3). Each
// tick builds a compound SR-or-RR + SDES(CNAME) and hands it to
// OnCompoundRTCP; the caller (stream graph / socket adapter) writes it.
func (s *Session) EnableRTCP() {
	s.mu.Lock()
	if s.rtcpInterval <= 0 || s.stopRTCP != nil {
		s.mu.Unlock()
		return
	}
	s.stopRTCP = make(chan struct{})
	interval := s.rtcpInterval
	s.mu.Unlock()

	s.rtcpWG.Add(1)
	go func() {
		defer s.rtcpWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopRTCP:
				return
			case <-ticker.C:
				s.emitPeriodicRTCP()
			}
		}
	}()
}

// DisableRTCP stops the periodic RTCP timer, if running.
func (s *Session) DisableRTCP() {
	s.mu.Lock()
	stop := s.stopRTCP
	s.stopRTCP = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		s.rtcpWG.Wait()
	}
}

func (s *Session) emitPeriodicRTCP() {
	s.mu.Lock()
	if s.onCompoundRTCP == nil {
		s.mu.Unlock()
		return
	}
	ssrc := s.localSSRC
	cname := s.cname
	sent, octets := s.packetsSent, s.octetsSent
	xrBlocks := s.xrBlocks
	supply := s.supplyXRBlocks
	s.mu.Unlock()

	var head rtcp.Packet = &rtcp.ReceiverReport{SSRC: ssrc}
	if sent > 0 {
		head = &rtcp.SenderReport{
			SSRC:        ssrc,
			PacketCount: uint32(sent),
			OctetCount:  uint32(octets),
		}
	}
	packets := []rtcp.Packet{head, BuildSDES(ssrc, cname)}

	if xrBlocks != 0 && supply != nil {
		if blocks := supply(xrBlocks); len(blocks) > 0 {
			packets = append(packets, WrapXR(ssrc, blocks...))
		}
	}

	s.onCompoundRTCP(&Compound{Packets: packets})
}

// SendRTP builds and accounts for one outgoing RTP packet. tsDelta is the
// elapsed time since the previous packet expressed in sampling-rate ticks;
// a zero tsDelta reuses the previous timestamp, which lets a DTMF event
// packet continue the same timestamp across repeats (spec §4.3).
func (s *Session) SendRTP(payloadType uint8, marker bool, tsDelta uint32, payload []byte) (*Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil, newError(ErrNotReady, "session is closed", nil)
	}

	if tsDelta != 0 || !s.haveTxTS {
		s.txTS += tsDelta
		s.haveTxTS = true
	}

	header := pionrtp.Header{
		Version:        2,
		Marker:         marker,
		PayloadType:    payloadType,
		SequenceNumber: s.txSeq,
		Timestamp:      s.txTS,
		SSRC:           s.localSSRC,
	}

	s.txSeq++ // wraps naturally at 2^16

	s.packetsSent++
	s.octetsSent += uint64(len(payload))

	return NewPacket(header, payload), nil
}

// ReceiveRTP ingests a decoded packet, updating jitter and SSRC-change
// state (spec §4.3). It returns the jitter sample for this packet and
// whether this packet triggered an SSRC change (and thus an analyzer
// reset per spec §3).
func (s *Session) ReceiveRTP(pkt *Packet, arrivalTicks int64) (jitterSample uint32, ssrcChanged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haveRemote && pkt.SSRC != s.remoteSSRC {
		ssrcChanged = true
		s.jitter.Reset()
		s.logger.Info("rtp: remote SSRC changed", "old_ssrc", s.remoteSSRC, "new_ssrc", pkt.SSRC)
	}
	s.remoteSSRC = pkt.SSRC
	s.haveRemote = true

	jitterSample = s.jitter.Update(arrivalTicks, pkt.Timestamp)
	pkt.JitterSample = jitterSample

	s.packetsReceived++
	s.octetsReceived += uint64(len(pkt.Payload))

	return jitterSample, ssrcChanged
}

// Stats is a snapshot of per-direction packet/byte counters.
type Stats struct {
	PacketsSent     uint64
	OctetsSent      uint64
	PacketsReceived uint64
	OctetsReceived  uint64
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		PacketsSent:     s.packetsSent,
		OctetsSent:      s.octetsSent,
		PacketsReceived: s.packetsReceived,
		OctetsReceived:  s.octetsReceived,
	}
}

// Start transitions the session to active.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return newError(ErrNotReady, "cannot start a closed session", nil)
	}
	s.state = StateActive
	return nil
}

// Stop transitions the session to closed and halts RTCP scheduling.
func (s *Session) Stop() {
	s.DisableRTCP()
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func randomUint32() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func randomUint16() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}
