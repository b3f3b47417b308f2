package rtp

import (
	"github.com/google/uuid"
	"github.com/pion/rtcp"
)

// CNAME is the minimal SourceDescription this session advertises; richer
// fields (NAME/EMAIL/PHONE/LOC/TOOL/NOTE) are left to the caller via
// BuildSDES's extra items parameter.
type CNAME string

// NewCNAME generates a RFC 7022-style opaque CNAME for callers that don't
// derive one from a user identity.
func NewCNAME() CNAME {
	return CNAME(uuid.New().String())
}

// BuildSDES assembles a Source Description packet for one SSRC.
func BuildSDES(ssrc uint32, cname CNAME, extra ...rtcp.SourceDescriptionItem) *rtcp.SourceDescription {
	items := append([]rtcp.SourceDescriptionItem{
		{Type: rtcp.SDESCNAME, Text: string(cname)},
	}, extra...)

	return &rtcp.SourceDescription{
		Chunks: []rtcp.SourceDescriptionChunk{
			{Source: ssrc, Items: items},
		},
	}
}

// BuildBye assembles a BYE packet for the given SSRCs, optionally carrying
// a human-readable reason (e.g. on SSRC collision per spec §4.3).
func BuildBye(reason string, ssrcs ...uint32) *rtcp.Goodbye {
	return &rtcp.Goodbye{Sources: ssrcs, Reason: reason}
}

// BuildPLI assembles a Picture Loss Indication (RFC 4585 PSFB, FMT=1).
func BuildPLI(senderSSRC, mediaSSRC uint32) *rtcp.PictureLossIndication {
	return &rtcp.PictureLossIndication{SenderSSRC: senderSSRC, MediaSSRC: mediaSSRC}
}

// BuildFIR assembles a Full Intra Request (RFC 5104 PSFB, FMT=4).
func BuildFIR(senderSSRC, mediaSSRC uint32, seqNo uint8) *rtcp.FullIntraRequest {
	return &rtcp.FullIntraRequest{
		SenderSSRC: senderSSRC,
		FIR: []rtcp.FIREntry{
			{SSRC: mediaSSRC, SequenceNumber: seqNo},
		},
	}
}

// BuildNACK assembles a Transport-Layer NACK (RFC 4585 RTPFB, FMT=1) for
// the given lost sequence numbers, packing them into PID+BLP pairs.
func BuildNACK(senderSSRC, mediaSSRC uint32, lostSeqs []uint16) *rtcp.TransportLayerNack {
	if len(lostSeqs) == 0 {
		return &rtcp.TransportLayerNack{SenderSSRC: senderSSRC, MediaSSRC: mediaSSRC}
	}

	pairs := make([]rtcp.NackPair, 0, len(lostSeqs))
	base := lostSeqs[0]
	blp := rtcp.PacketBitmap(0)
	for _, seq := range lostSeqs[1:] {
		delta := int32(seq) - int32(base)
		if delta >= 1 && delta <= 16 {
			blp |= 1 << uint(delta-1)
			continue
		}
		pairs = append(pairs, rtcp.NackPair{PacketID: base, LostPackets: blp})
		base = seq
		blp = 0
	}
	pairs = append(pairs, rtcp.NackPair{PacketID: base, LostPackets: blp})

	return &rtcp.TransportLayerNack{SenderSSRC: senderSSRC, MediaSSRC: mediaSSRC, Nacks: pairs}
}

// BuildTMMBR assembles a Temporary Maximum Media Bitrate Request (RFC 5104
// RTPFB, FMT=3). pion/rtcp has no dedicated TMMBR type, so the FCI is
// packed by hand per RFC 5104 §4.2.1.2 and carried in a rtcp.RawPacket —
// the same manual-binary-packing style the teacher uses throughout rtcp.go.
func BuildTMMBR(senderSSRC, mediaSSRC uint32, maxBitrateBps uint64, overheadBytes uint16) *rtcp.RawPacket {
	exp, mantissa := encodeTMMBRBitrate(maxBitrateBps)

	payload := make([]byte, 16)
	putUint32(payload[0:4], senderSSRC)
	putUint32(payload[4:8], 0) // media SSRC field is zero for RTPFB
	putUint32(payload[8:12], mediaSSRC)

	word := (uint32(exp&0x3F) << 26) | (uint32(mantissa&0x1FFFF) << 9) | uint32(overheadBytes&0x1FF)
	putUint32(payload[12:16], word)

	header := make([]byte, 4)
	header[0] = (2 << 6) | 3 // V=2, P=0, FMT=3
	header[1] = 205          // PT = RTPFB
	lengthWords := uint16(len(payload) / 4) // RTCP length: 32-bit words minus one
	header[2] = byte(lengthWords >> 8)
	header[3] = byte(lengthWords)

	raw := rtcp.RawPacket(append(header, payload...))
	return &raw
}

// encodeTMMBRBitrate splits a bps value into the RFC 5104 exp+mantissa
// pair: bitrate = mantissa << exp, choosing the smallest exp that fits
// mantissa in 17 bits.
func encodeTMMBRBitrate(bps uint64) (exp uint8, mantissa uint32) {
	for exp = 0; exp < 64; exp++ {
		if bps>>exp <= 0x1FFFF {
			return exp, uint32(bps >> exp)
		}
	}
	return 63, 0x1FFFF
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// WrapXR wraps analyzer-supplied report blocks in an RTCP-XR header (spec
// §4.3: the analyzer owns block bodies, the session owns the XR wrapper).
func WrapXR(ssrc uint32, blocks ...rtcp.ReportBlock) *rtcp.ExtendedReport {
	return &rtcp.ExtendedReport{
		SenderSSRC: ssrc,
		Reports:    blocks,
	}
}

// Compound is an ordered RTCP compound packet as it travels on the wire:
// spec §3 requires it open with SR/RR (or a valid FB) followed by at
// least one of SDES/BYE/APP/FB.
type Compound struct {
	Packets []rtcp.Packet
}

// Marshal encodes the compound packet back-to-back per RFC 3550 §6.1.
func (c *Compound) Marshal() ([]byte, error) {
	return rtcp.Marshal(c.Packets)
}

func isHeadPacket(p rtcp.Packet) bool {
	switch p.(type) {
	case *rtcp.SenderReport, *rtcp.ReceiverReport,
		*rtcp.PictureLossIndication, *rtcp.FullIntraRequest, *rtcp.TransportLayerNack:
		return true
	default:
		return false
	}
}

func isTailPacket(p rtcp.Packet) bool {
	switch p.(type) {
	case *rtcp.SourceDescription, *rtcp.Goodbye, *rtcp.RawPacket,
		*rtcp.PictureLossIndication, *rtcp.FullIntraRequest, *rtcp.TransportLayerNack:
		return true
	default:
		return false
	}
}

// DecodeCompound parses wire bytes into a validated compound RTCP packet.
// Per spec §3/§9's Open Question resolution, the first packet must be
// SR/RR/FB and it must be followed by at least one SDES/BYE/APP/FB packet;
// a violation returns an error so the caller drops the datagram.
func DecodeCompound(data []byte) (*Compound, error) {
	packets, err := rtcp.Unmarshal(data)
	if err != nil {
		return nil, newError(ErrDecodeError, "RTCP unmarshal failed", err)
	}
	if len(packets) == 0 {
		return nil, newError(ErrInvalidMsg, "empty RTCP compound packet", nil)
	}
	if !isHeadPacket(packets[0]) {
		return nil, newError(ErrInvalidMsg, "RTCP compound packet must open with SR, RR, or FB", nil)
	}

	haveRequired := isHeadPacket(packets[0])
	if !haveRequired {
		for _, p := range packets {
			if _, ok := p.(*rtcp.Goodbye); ok {
				haveRequired = true
				break
			}
		}
	}
	if !haveRequired {
		return nil, newError(ErrInvalidMsg, "RTCP compound packet missing SR/RR/FB/BYE", nil)
	}

	foundTail := false
	for _, p := range packets[1:] {
		if isTailPacket(p) {
			foundTail = true
			break
		}
	}
	if !foundTail {
		return nil, newError(ErrInvalidMsg, "RTCP compound packet missing SDES/BYE/APP/FB", nil)
	}

	return &Compound{Packets: packets}, nil
}
