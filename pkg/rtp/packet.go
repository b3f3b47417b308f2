package rtp

import (
	"time"

	"github.com/pion/rtp"
)

// DataType classifies the decoded payload carried by an RtpPacket, per the
// data model in spec §3 (`RtpPacket.decoded metadata`).
type DataType int

const (
	DataTypeNormal DataType = iota
	DataTypeSID
	DataTypeNoData
)

func (t DataType) String() string {
	switch t {
	case DataTypeNormal:
		return "normal"
	case DataTypeSID:
		return "SID"
	case DataTypeNoData:
		return "no-data"
	default:
		return "unknown"
	}
}

// RxStatus classifies an incoming packet's arrival relative to the
// receiver's sequence/timing state (spec §3 `JitterSlot.classification`).
type RxStatus int

const (
	RxStatusNormal RxStatus = iota
	RxStatusLate
	RxStatusDiscarded
	RxStatusDuplicated
	RxStatusLost
)

func (s RxStatus) String() string {
	switch s {
	case RxStatusNormal:
		return "normal"
	case RxStatusLate:
		return "late"
	case RxStatusDiscarded:
		return "discarded"
	case RxStatusDuplicated:
		return "duplicated"
	case RxStatusLost:
		return "lost"
	default:
		return "unknown"
	}
}

// Packet is the RTP wire packet (github.com/pion/rtp.Packet, which already
// implements the RFC 3550 fixed header + CSRC list + RFC 8285 one-/two-byte
// extension form) augmented with the decode-time metadata spec §3 assigns
// to `RtpPacket`: arrival time, jitter sample, data-type classification,
// and RX status. TX-only packets leave the RX-only fields zero.
type Packet struct {
	*rtp.Packet

	DataType     DataType
	Arrival      time.Time
	JitterSample uint32
	RxStatus     RxStatus
}

// NewPacket wraps a freshly-built RTP wire packet for transmission.
func NewPacket(header rtp.Header, payload []byte) *Packet {
	return &Packet{Packet: &rtp.Packet{Header: header, Payload: payload}}
}

// Decode parses wire bytes into a Packet, validating version==2 per spec
// §3/§4.2. A non-version-2 or otherwise malformed buffer returns
// ErrDecodeError/ErrInvalidMsg and the packet must be dropped by the caller.
func Decode(data []byte, arrival time.Time) (*Packet, error) {
	if len(data) < 12 {
		return nil, newError(ErrInvalidMsg, "buffer shorter than fixed RTP header", nil)
	}
	if version := data[0] >> 6; version != 2 {
		return nil, newError(ErrInvalidMsg, "unsupported RTP version", nil)
	}

	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(data); err != nil {
		return nil, newError(ErrDecodeError, "RTP unmarshal failed", err)
	}

	return &Packet{Packet: pkt, Arrival: arrival}, nil
}

// Encode marshals the packet to wire bytes.
func (p *Packet) Encode() ([]byte, error) {
	b, err := p.Packet.Marshal()
	if err != nil {
		return nil, newError(ErrNoMemory, "RTP marshal failed", err)
	}
	return b, nil
}

// --- modular sequence / timestamp arithmetic (spec §3 invariants) ---

// SeqNewer reports whether a is strictly newer than b in the mod-2^16
// sequence space (RFC 1982 serial number arithmetic, half-space split).
func SeqNewer(a, b uint16) bool {
	return int16(a-b) > 0
}

// SeqDiff returns the signed forward distance from b to a in mod-2^16
// arithmetic: positive if a is newer than b.
func SeqDiff(a, b uint16) int32 {
	return int32(int16(a - b))
}

// tsRoundGuard disambiguates a 2^32 timestamp wraparound from a large
// forward step: a reverse delta larger than a quarter of the timestamp
// space is treated as wrap, matching spec's `TS_ROUND_QUARD`.
const tsRoundGuard = uint32(1) << 30

// TimestampNewer reports whether a is newer than b in the mod-2^32
// timestamp space, guarding against misreading a wrap as a huge step back.
func TimestampNewer(a, b uint32) bool {
	diff := a - b
	if diff == 0 {
		return false
	}
	return diff < tsRoundGuard
}

// TimestampDiff returns the signed forward distance from b to a in the
// mod-2^32 timestamp space, applying the same quarter-space wrap guard.
func TimestampDiff(a, b uint32) int64 {
	diff := a - b
	if diff < tsRoundGuard {
		return int64(diff)
	}
	return int64(diff) - (int64(1) << 32)
}
