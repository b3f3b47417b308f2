package evs

import (
	"errors"
	"fmt"

	"github.com/ims-media/rtpcore/internal/bitio"
)

var errEmptyPayload = errors.New("evs: empty payload")

// ChannelAwareOffset is one of the four RFC-defined partial-redundancy
// offsets for EVS channel-aware mode at 13.2 kbps (spec §4.4.2).
type ChannelAwareOffset uint8

const (
	ChAOffsetNone ChannelAwareOffset = 0
	ChAOffset2    ChannelAwareOffset = 2
	ChAOffset3    ChannelAwareOffset = 3
	ChAOffset5    ChannelAwareOffset = 5
	ChAOffset7    ChannelAwareOffset = 7
)

// IsChannelAware reports whether a 13.2 kbps frame carries a channel-aware
// offset (spec §4.4.2: bitrate 13.2 kbps with offset in {2,3,5,7}).
func IsChannelAware(bitrateBps int, offset ChannelAwareOffset) bool {
	if bitrateBps != 13200 {
		return false
	}
	switch offset {
	case ChAOffset2, ChAOffset3, ChAOffset5, ChAOffset7:
		return true
	default:
		return false
	}
}

// Frame is one decoded EVS speech/SID frame.
type Frame struct {
	Format    Format
	Mode      CodecMode
	BitrateBps int
	Bits      []byte
	NumBits   int
	Redundant bool // partial-redundancy copy carried alongside a primary frame
}

// Config parameterizes the (de)packetizer per spec §6 `evsParams`.
type Config struct {
	Mode           CodecMode
	ChannelAware   bool
	ChAOffset      ChannelAwareOffset
}

// Depacketizer decodes EVS RTP payloads, auto-detecting Compact vs
// Header-Full framing from payload size, and tracks CMR transitions.
type Depacketizer struct {
	cfg     Config
	lastCMR int
}

// NewDepacketizer creates a depacketizer for the given config.
func NewDepacketizer(cfg Config) *Depacketizer {
	return &Depacketizer{cfg: cfg, lastCMR: -1}
}

// DecodeResult is the outcome of depacketizing one EVS RTP payload.
type DecodeResult struct {
	Format     Format
	Mode       CodecMode
	CMR        int // -1 if the payload carried no CMR
	CMRChanged bool
	Frames     []Frame
}

// Decode implements spec §4.4.2: detect the framing format from payload
// size, then parse either the Compact single-frame body or the
// Header-Full ToC chain.
func (d *Depacketizer) Decode(payload []byte) (*DecodeResult, error) {
	format, mode, err := DetectFormat(payload)
	if err != nil {
		return nil, err
	}

	if format == FormatCompact {
		return d.decodeCompact(payload, mode)
	}
	return d.decodeHeaderFull(payload)
}

func (d *Depacketizer) decodeCompact(payload []byte, mode CodecMode) (*DecodeResult, error) {
	r := bitio.NewReader(payload)

	cmr := -1
	noRequest := false
	if mode == ModeAMRWBIO {
		c := int(r.Read(3))
		cmr = c
		noRequest = c == NoRequestCompactIO
	}

	remaining := r.BitsRemaining()
	bits := make([]byte, (remaining+7)/8)
	for i := 0; i < remaining; i++ {
		bit := r.Read(1)
		if bit != 0 {
			bits[i/8] |= 1 << uint(7-i%8)
		}
	}

	bitrate := 0
	if mode == ModePrimary {
		bitrate, _ = BitrateForCompactPrimary(len(payload))
	} else {
		bitrate, _ = BitrateForCompactAMRWBIO(len(payload))
	}

	changed := d.noteCMR(cmr, noRequest)

	return &DecodeResult{
		Format:     FormatCompact,
		Mode:       mode,
		CMR:        cmr,
		CMRChanged: changed,
		Frames: []Frame{
			{Format: FormatCompact, Mode: mode, BitrateBps: bitrate, Bits: bits, NumBits: remaining},
		},
	}, nil
}

type hfToc struct {
	isCMR bool
	cmrType uint8
	cmrDef  uint8
	ft      uint8
}

func (d *Depacketizer) decodeHeaderFull(payload []byte) (*DecodeResult, error) {
	r := bitio.NewReader(payload)

	var tocs []hfToc
	cmr := -1
	noRequest := false
	for {
		h := r.ReadBool()
		if h {
			t := uint8(r.Read(3))
			def := uint8(r.Read(4))
			cmr = int(t)<<4 | int(def)
			noRequest = t == NoRequestHeaderFullType && def == NoRequestHeaderFullDef
			tocs = append(tocs, hfToc{isCMR: true, cmrType: t, cmrDef: def})
			continue
		}
		f := r.ReadBool()
		ftb := uint8(r.Read(5)) // FT-M(1)+FT-Q? combined into a 4-bit rate idx per TS 26.445; modeled as 5 bits.
		tocs = append(tocs, hfToc{ft: ftb})
		if !f {
			break
		}
		if r.Overrun() {
			return nil, fmt.Errorf("evs: header-full ToC chain ran past end of payload")
		}
	}

	frames := make([]Frame, 0, len(tocs))
	for _, t := range tocs {
		if t.isCMR {
			continue
		}
		nbits := FrameBitsHeaderFullPrimary(t.ft & 0x0F)
		if nbits < 0 {
			return nil, fmt.Errorf("evs: undefined header-full frame rate index %d", t.ft)
		}
		r.AlignToByte()
		bits := make([]byte, (nbits+7)/8)
		for i := 0; i < nbits; i++ {
			bit := r.Read(1)
			if bit != 0 {
				bits[i/8] |= 1 << uint(7-i%8)
			}
		}
		frames = append(frames, Frame{Format: FormatHeaderFull, Mode: ModePrimary, NumBits: nbits, Bits: bits})
	}
	if r.Overrun() {
		return nil, fmt.Errorf("evs: header-full frame data ran past end of payload")
	}

	changed := d.noteCMR(cmr, noRequest)

	return &DecodeResult{Format: FormatHeaderFull, Mode: ModePrimary, CMR: cmr, CMRChanged: changed, Frames: frames}, nil
}

// noteCMR applies spec §4.4.1/§4.4.3's "emit once per change, never for
// no-request" rule uniformly across Compact and Header-Full framing.
func (d *Depacketizer) noteCMR(cmr int, noRequest bool) bool {
	if cmr < 0 {
		return false
	}
	changed := !noRequest && cmr != d.lastCMR
	if cmr != d.lastCMR {
		d.lastCMR = cmr
	} else {
		changed = false
	}
	return changed
}

// Packetizer assembles EVS frames into Compact or Header-Full RTP
// payloads.
type Packetizer struct {
	cfg Config
}

// NewPacketizer creates a packetizer for the given config.
func NewPacketizer(cfg Config) *Packetizer {
	return &Packetizer{cfg: cfg}
}

// EncodeCompact packs a single frame using Compact framing (spec §4.4.2):
// AMR-WB-IO carries a 3-bit CMR prefix, Primary carries none.
func (p *Packetizer) EncodeCompact(cmr uint8, frame Frame) ([]byte, error) {
	w := bitio.NewWriter()
	if p.cfg.Mode == ModeAMRWBIO {
		w.Write(uint32(cmr), 3)
	}
	for i := 0; i < frame.NumBits; i++ {
		bit := (frame.Bits[i/8] >> uint(7-i%8)) & 1
		w.Write(uint32(bit), 1)
	}
	return w.Bytes(), nil
}

// EncodeHeaderFull packs frames using Header-Full framing, optionally
// preceding the ToC chain with a CMR entry (H=1).
func (p *Packetizer) EncodeHeaderFull(cmrType, cmrDef uint8, includeCMR bool, ftbs []uint8, frames []Frame) ([]byte, error) {
	if len(frames) != len(ftbs) {
		return nil, fmt.Errorf("evs: ftbs/frames length mismatch")
	}

	w := bitio.NewWriter()
	if includeCMR {
		w.WriteBool(true)
		w.Write(uint32(cmrType), 3)
		w.Write(uint32(cmrDef), 4)
	}
	for i, ftb := range ftbs {
		w.WriteBool(false) // H
		w.WriteBool(i < len(ftbs)-1) // F
		w.Write(uint32(ftb), 5)
	}
	for _, f := range frames {
		w.PadToByte()
		for i := 0; i < f.NumBits; i++ {
			bit := (f.Bits[i/8] >> uint(7-i%8)) & 1
			w.Write(uint32(bit), 1)
		}
	}
	return w.Bytes(), nil
}

// primaryFTBByBitrate is the inverse of primaryFrameBits, keyed by the
// bit rate (bps) each FT-B index represents.
var primaryFTBByBitrate = map[int]uint8{
	2800:   1,
	7200:   2,
	8000:   3,
	9600:   4,
	13200:  5,
	16400:  6,
	24400:  7,
	32000:  8,
	48000:  9,
	64000:  10,
	96000:  11,
	128000: 12,
}

// EncodeCMRCodeFromBandwidth derives the Header-Full (type, definition)
// CMR pair from a negotiated bitrate/channel-aware offset, per spec
// §4.4.2's encoder description: type 2 marks WB-ChA/SWB-ChA at 13.2 kbps
// with an active offset, type 0 carries a plain Primary rate index, and
// the no-request sentinel restores the negotiated default.
func EncodeCMRCodeFromBandwidth(bitrateBps int, chAOffset ChannelAwareOffset) (cmrType, cmrDef uint8) {
	if IsChannelAware(bitrateBps, chAOffset) {
		return 2, uint8(chAOffset)
	}
	if ftb, ok := primaryFTBByBitrate[bitrateBps]; ok {
		return 0, ftb
	}
	return NoRequestHeaderFullType, NoRequestHeaderFullDef
}
