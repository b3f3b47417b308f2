// Package amr implements the AMR/AMR-WB RTP payload format (RFC 4867):
// bandwidth-efficient and octet-aligned framing, CMR extraction, and the
// bit-packing/unpacking of each ToC-declared speech frame.
package amr

import (
	"fmt"

	"github.com/ims-media/rtpcore/internal/bitio"
)

// Frame is one decoded AMR/AMR-WB speech (or SID) frame from a single RTP
// payload, still holding its raw codec bits.
type Frame struct {
	FT      uint8
	Quality bool // Q bit: 1 = good frame, 0 = damaged
	Bits    []byte
	NumBits int
}

// Config parameterizes the (de)packetizer per spec §6 `amrParams`.
type Config struct {
	Band              Band
	OctetAligned      bool
	MaxRedundancyMillis int // RFC 4867 redundancy window; not used by Decode or Encode, which never add or strip redundant frames
}

// Depacketizer turns one RTP payload into its constituent AMR frames and
// tracks CMR transitions so the caller can honour a mode-change request
// exactly once (spec §4.4.3 / §8 scenario 6).
type Depacketizer struct {
	cfg     Config
	lastCMR int // -1 until the first packet
}

// NewDepacketizer creates a depacketizer for the given config.
func NewDepacketizer(cfg Config) *Depacketizer {
	return &Depacketizer{cfg: cfg, lastCMR: -1}
}

// DecodeResult is the outcome of depacketizing one RTP payload.
type DecodeResult struct {
	CMR        uint8
	CMRChanged bool // true only the first time a new CMR value is observed
	Frames     []Frame
}

// Decode implements spec §4.4.1 steps 1-3: read the CMR (skipping the
// octet-aligned pad nibble), read the ToC chain until F=0, then read each
// frame's codec bits per the FrameBits table.
func (d *Depacketizer) Decode(payload []byte) (*DecodeResult, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("amr: empty payload")
	}

	r := bitio.NewReader(payload)

	cmr := uint8(r.Read(4))
	if d.cfg.OctetAligned {
		r.Read(4) // pad
	}

	type tocEntry struct {
		ft      uint8
		quality bool
	}
	var tocs []tocEntry
	for {
		f := r.ReadBool()
		ft := uint8(r.Read(4))
		q := r.ReadBool()
		if d.cfg.OctetAligned {
			r.Read(2) // pad
		}
		tocs = append(tocs, tocEntry{ft: ft, quality: q})
		if !f {
			break
		}
		if r.Overrun() {
			return nil, fmt.Errorf("amr: ToC chain ran past end of payload")
		}
	}

	frames := make([]Frame, 0, len(tocs))
	for _, t := range tocs {
		nbits := FrameBits(d.cfg.Band, t.ft)
		if nbits < 0 {
			return nil, fmt.Errorf("amr: undefined frame type %d", t.ft)
		}
		if d.cfg.OctetAligned {
			r.AlignToByte()
		}
		bits := make([]byte, (nbits+7)/8)
		for i := 0; i < nbits; i++ {
			bit := r.Read(1)
			if bit != 0 {
				bits[i/8] |= 1 << uint(7-i%8)
			}
		}
		if d.cfg.OctetAligned {
			r.AlignToByte()
		}
		frames = append(frames, Frame{FT: t.ft, Quality: t.quality, Bits: bits, NumBits: nbits})
	}
	if r.Overrun() {
		return nil, fmt.Errorf("amr: frame data ran past end of payload")
	}

	changed := cmr != NoRequestCMR && int(cmr) != d.lastCMR
	if cmr != uint8(d.lastCMR) {
		d.lastCMR = int(cmr)
	} else {
		changed = false
	}

	return &DecodeResult{CMR: cmr, CMRChanged: changed, Frames: frames}, nil
}

// Packetizer assembles one or more AMR frames (ptime/20ms each) into a
// single RTP payload, honouring a peer-requested CMR or NoRequestCMR.
type Packetizer struct {
	cfg Config
}

// NewPacketizer creates a packetizer for the given config.
func NewPacketizer(cfg Config) *Packetizer {
	return &Packetizer{cfg: cfg}
}

// Encode implements spec §4.4.1's encoder mirror: pack N frames behind one
// CMR nibble, writing F=1 between ToC entries and F=0 on the last.
func (p *Packetizer) Encode(cmr uint8, frames []Frame) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("amr: need at least one frame to encode")
	}

	w := bitio.NewWriter()
	w.Write(uint32(cmr), 4)
	if p.cfg.OctetAligned {
		w.Write(0, 4)
	}

	for i, f := range frames {
		w.WriteBool(i < len(frames)-1) // F
		w.Write(uint32(f.FT), 4)
		w.WriteBool(f.Quality)
		if p.cfg.OctetAligned {
			w.Write(0, 2)
		}
	}

	for _, f := range frames {
		if p.cfg.OctetAligned {
			w.PadToByte()
		}
		for i := 0; i < f.NumBits; i++ {
			bit := (f.Bits[i/8] >> uint(7-i%8)) & 1
			w.Write(uint32(bit), 1)
		}
		if p.cfg.OctetAligned {
			w.PadToByte()
		}
	}

	return w.Bytes(), nil
}

// FramesPerPacket returns N = ptime/20ms, the bundling factor spec
// §4.4.1's encoder uses.
func FramesPerPacket(ptimeMillis int) int {
	if ptimeMillis <= 0 {
		return 1
	}
	n := ptimeMillis / 20
	if n < 1 {
		return 1
	}
	return n
}
