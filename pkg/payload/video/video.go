// Package video implements H.264/H.265 RTP payload assembly (RFC 6184 /
// RFC 7798): single-NAL, FU-A/FU-B (H.264) and FU (H.265) fragmentation,
// parameter-set introspection, and the CVO one-byte header extension
// (urn:3gpp:video-orientation). Slice-level video decoding is out of
// scope; only enough of each NAL is parsed to drive IDR gating and
// dimension/profile reporting.
package video

import (
	"fmt"

	"github.com/ims-media/rtpcore/internal/bitio"
)

// Codec distinguishes H.264 from H.265 NAL unit header layouts.
type Codec uint8

const (
	CodecH264 Codec = iota
	CodecH265
)

// H.264 NAL unit types (RFC 6184 §5.4).
const (
	H264NALSliceNonIDR uint8 = 1
	H264NALSliceIDR    uint8 = 5
	H264NALSEI         uint8 = 6
	H264NALSPS         uint8 = 7
	H264NALPPS         uint8 = 8
	H264NALAUD         uint8 = 9
	H264NALFUA         uint8 = 28
	H264NALFUB         uint8 = 29
)

// H.265 NAL unit types (RFC 7798 §4.4).
const (
	H265NALTrailR uint8 = 1
	H265NALIDRWRadl uint8 = 19
	H265NALIDRNLP   uint8 = 20
	H265NALVPS      uint8 = 32
	H265NALSPS      uint8 = 33
	H265NALPPS      uint8 = 34
	H265NALFU       uint8 = 49
)

// StartCode is the Annex B byte sequence that precedes each NAL unit in a
// bytestream; CheckHeader validates it.
var StartCode = []byte{0x00, 0x00, 0x00, 0x01}

// CheckHeader validates that buf begins with the Annex B start code
// followed by a NAL unit whose type is one this codec defines (spec
// §4.8's per-frame-boundary header check).
func CheckHeader(codec Codec, buf []byte) error {
	if len(buf) < 5 {
		return fmt.Errorf("video: buffer too short for start code + NAL header")
	}
	for i, b := range StartCode {
		if buf[i] != b {
			return fmt.Errorf("video: missing Annex B start code")
		}
	}
	nalType := NALType(codec, buf[4:])
	if codec == CodecH264 {
		if nalType == 0 || nalType > 31 {
			return fmt.Errorf("video: NAL type %d out of range for H.264", nalType)
		}
	} else {
		if nalType > 63 {
			return fmt.Errorf("video: NAL type %d out of range for H.265", nalType)
		}
	}
	return nil
}

// NALType extracts the NAL unit type from a raw NAL (start code already
// stripped).
func NALType(codec Codec, nal []byte) uint8 {
	if len(nal) == 0 {
		return 0
	}
	if codec == CodecH264 {
		return nal[0] & 0x1F
	}
	return (nal[0] >> 1) & 0x3F
}

// IsKeyframeNAL reports whether nal (header byte first) begins an IDR
// access unit for codec.
func IsKeyframeNAL(codec Codec, nal []byte) bool {
	t := NALType(codec, nal)
	if codec == CodecH264 {
		return t == H264NALSliceIDR
	}
	return t == H265NALIDRWRadl || t == H265NALIDRNLP
}

// Assembler reassembles fragmented NAL units (FU-A/FU-B for H.264, FU for
// H.265) carried across multiple RTP packets of the same timestamp.
type Assembler struct {
	codec    Codec
	buf      []byte
	fuHeader uint8
	active   bool
}

// NewAssembler creates a fragmentation reassembler for codec.
func NewAssembler(codec Codec) *Assembler {
	return &Assembler{codec: codec}
}

// Push feeds one RTP payload's NAL (no Annex B start code) into the
// assembler. It returns a complete NAL unit (start-code prefixed) once a
// fragmentation end bit is seen, or nil while more fragments are needed.
func (a *Assembler) Push(payload []byte, marker bool) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("video: empty RTP payload")
	}

	nalType := NALType(a.codec, payload)
	isFU := (a.codec == CodecH264 && (nalType == H264NALFUA || nalType == H264NALFUB)) ||
		(a.codec == CodecH265 && nalType == H265NALFU)

	if !isFU {
		return append(append([]byte{}, StartCode...), payload...), nil
	}

	return a.pushFragment(payload)
}

func (a *Assembler) pushFragment(payload []byte) ([]byte, error) {
	if a.codec == CodecH264 {
		return a.pushH264FUA(payload)
	}
	return a.pushH265FU(payload)
}

func (a *Assembler) pushH264FUA(payload []byte) ([]byte, error) {
	if len(payload) < 2 {
		return nil, fmt.Errorf("video: FU-A payload too short")
	}
	indicator := payload[0]
	fuHeader := payload[1]
	start := fuHeader&0x80 != 0
	end := fuHeader&0x40 != 0
	nalType := fuHeader & 0x1F

	// A starting FU-B fragment carries a 16-bit DON after the FU header.
	body := payload[2:]
	if start && indicator&0x1F == H264NALFUB {
		if len(payload) < 4 {
			return nil, fmt.Errorf("video: FU-B payload too short")
		}
		body = payload[4:]
	}

	if start {
		reconstructed := (indicator & 0xE0) | nalType
		a.buf = append([]byte{}, reconstructed)
		a.active = true
	}
	if !a.active {
		return nil, fmt.Errorf("video: FU-A continuation without a start fragment")
	}
	a.buf = append(a.buf, body...)

	if end {
		out := append(append([]byte{}, StartCode...), a.buf...)
		a.buf = nil
		a.active = false
		return out, nil
	}
	return nil, nil
}

func (a *Assembler) pushH265FU(payload []byte) ([]byte, error) {
	if len(payload) < 3 {
		return nil, fmt.Errorf("video: H.265 FU payload too short")
	}
	layerHdr := payload[0:2]
	fuHeader := payload[2]
	start := fuHeader&0x80 != 0
	end := fuHeader&0x40 != 0
	nalType := fuHeader & 0x3F

	if start {
		reconstructed := []byte{
			(layerHdr[0] & 0x81) | (nalType << 1),
			layerHdr[1],
		}
		a.buf = append([]byte{}, reconstructed...)
		a.active = true
	}
	if !a.active {
		return nil, fmt.Errorf("video: H.265 FU continuation without a start fragment")
	}
	a.buf = append(a.buf, payload[3:]...)

	if end {
		out := append(append([]byte{}, StartCode...), a.buf...)
		a.buf = nil
		a.active = false
		return out, nil
	}
	return nil, nil
}

// ParameterSetInfo is the small set of fields CheckHeader-adjacent
// introspection extracts from an SPS/VPS without a full slice decoder.
type ParameterSetInfo struct {
	ProfileIDC uint8
	LevelIDC   uint8
	Width      int
	Height     int
}

// ParseH264SPS extracts profile/level and picture dimensions from a raw
// H.264 SPS NAL (header byte included), enough for capability negotiation
// logging — not a full SPS decode.
func ParseH264SPS(nal []byte) (*ParameterSetInfo, error) {
	if len(nal) < 4 || NALType(CodecH264, nal) != H264NALSPS {
		return nil, fmt.Errorf("video: not an SPS NAL")
	}
	info := &ParameterSetInfo{ProfileIDC: nal[1], LevelIDC: nal[3]}

	r := bitio.NewReader(nal[4:])
	r.ReadUE() // seq_parameter_set_id
	if info.ProfileIDC == 100 || info.ProfileIDC == 110 || info.ProfileIDC == 122 || info.ProfileIDC == 244 {
		chromaFormatIDC := r.ReadUE()
		if chromaFormatIDC == 3 {
			r.Read(1)
		}
		r.ReadUE()
		r.ReadUE()
		r.Read(1)
		if r.ReadBool() { // seq_scaling_matrix_present_flag
			return info, nil // scaling list parsing not needed for our purposes
		}
	}
	r.ReadUE() // log2_max_frame_num_minus4
	picOrderCntType := r.ReadUE()
	if picOrderCntType == 0 {
		r.ReadUE()
	} else if picOrderCntType == 1 {
		r.Read(1)
		r.ReadUE()
		r.ReadUE()
	}
	r.ReadUE() // max_num_ref_frames
	r.Read(1)  // gaps_in_frame_num_value_allowed_flag
	picWidthInMbsMinus1 := r.ReadUE()
	picHeightInMapUnitsMinus1 := r.ReadUE()
	info.Width = int(picWidthInMbsMinus1+1) * 16
	info.Height = int(picHeightInMapUnitsMinus1+1) * 16
	return info, nil
}

// CVOOrientation is the decoded value of the RFC 3GPP coordination of
// video orientation header extension (urn:3gpp:video-orientation).
type CVOOrientation struct {
	CameraBack bool // C
	Flipped    bool // F
	Rotation   uint8 // R1 R0 combined: 0,90,180,270 degrees index
}

// DecodeCVO parses the one-byte CVO extension payload: bits C F R1 R0.
func DecodeCVO(b byte) CVOOrientation {
	return CVOOrientation{
		CameraBack: b&0x08 != 0,
		Flipped:    b&0x04 != 0,
		Rotation:   b & 0x03,
	}
}

// EncodeCVO packs a CVOOrientation back into its one-byte wire form.
func EncodeCVO(o CVOOrientation) byte {
	var b byte
	if o.CameraBack {
		b |= 0x08
	}
	if o.Flipped {
		b |= 0x04
	}
	b |= o.Rotation & 0x03
	return b
}

// RotationDegrees converts the 2-bit CVO rotation field to degrees.
func (o CVOOrientation) RotationDegrees() int {
	return int(o.Rotation) * 90
}
