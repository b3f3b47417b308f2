// Package evs implements the EVS RTP payload format (3GPP TS 26.445
// Annex A): Compact and Header-Full framing for both Primary and
// AMR-WB-IO codec modes, CMR handling, and payload-size-based format
// auto-detection.
package evs

// Format is the on-wire EVS payload framing.
type Format uint8

const (
	FormatCompact Format = iota
	FormatHeaderFull
)

func (f Format) String() string {
	if f == FormatHeaderFull {
		return "header-full"
	}
	return "compact"
}

// CodecMode distinguishes EVS Primary from the AMR-WB interoperable mode.
type CodecMode uint8

const (
	ModePrimary CodecMode = iota
	ModeAMRWBIO
)

func (m CodecMode) String() string {
	if m == ModeAMRWBIO {
		return "amr-wb-io"
	}
	return "primary"
}

// NoRequestCompactIO and NoRequestHeaderFull are the "no mode request"
// sentinels for the two CMR encodings (spec §4.4.3).
const (
	NoRequestCompactIO  = 7
	NoRequestHeaderFullType = 7
	NoRequestHeaderFullDef  = 15
)

// compactPrimaryLengths is the Compact Primary payload size table (bytes),
// 3GPP TS 26.445 Table A.1: NO_DATA plus the 12 Primary bit rates.
var compactPrimaryLengths = map[int]int{
	0:   0,  // NO_DATA
	6:   2800,
	18:  7200,
	20:  8000,
	24:  9600,
	33:  13200,
	41:  16400,
	61:  24400,
	80:  32000,
	120: 48000,
	160: 64000,
	240: 96000,
	320: 128000,
}

// compactAMRWBIOLengths is the Compact AMR-WB-IO payload size table
// (bytes): 3-bit CMR prefix plus the AMR-WB speech bit length, rounded up
// to a whole byte, for modes 0-8 plus the 40-bit SID.
var compactAMRWBIOLengths = map[int]int{
	17: 6600,
	23: 8850,
	32: 12650,
	36: 14250,
	40: 15850,
	46: 18250,
	50: 19850,
	58: 23050,
	60: 23850,
	6:  0, // SID: (3+40 bits) -> 6 bytes
}

// BitrateForCompactPrimary returns the bit rate (bps) a Compact Primary
// payload of the given byte length encodes, and whether the length is a
// recognised Compact Primary size.
func BitrateForCompactPrimary(payloadLen int) (int, bool) {
	v, ok := compactPrimaryLengths[payloadLen]
	return v, ok
}

// BitrateForCompactAMRWBIO returns the bit rate (bps) a Compact AMR-WB-IO
// payload of the given byte length encodes, and whether the length is
// recognised.
func BitrateForCompactAMRWBIO(payloadLen int) (int, bool) {
	v, ok := compactAMRWBIOLengths[payloadLen]
	return v, ok
}

// primaryFrameBits maps a Header-Full Primary ToC "FT-B" bit-rate index to
// the frame's codec bit length, 3GPP TS 26.445 Table A.2 (abridged to the
// rates this implementation frames).
var primaryFrameBits = map[uint8]int{
	0:  0,    // NO_DATA
	1:  56,   // 2.8 kbps (AMR-WB-IO SID shares this slot in HF)
	2:  144,  // 7.2 kbps
	3:  160,  // 8.0 kbps
	4:  192,  // 9.6 kbps
	5:  264,  // 13.2 kbps
	6:  328,  // 16.4 kbps
	7:  488,  // 24.4 kbps
	8:  640,  // 32.0 kbps
	9:  960,  // 48.0 kbps
	10: 1280, // 64.0 kbps
	11: 1920, // 96.0 kbps
	12: 2560, // 128.0 kbps
}

// FrameBitsHeaderFullPrimary returns the codec bit length for a Header-Full
// Primary ToC entry's FT-B field, or -1 if undefined.
func FrameBitsHeaderFullPrimary(ftb uint8) int {
	if n, ok := primaryFrameBits[ftb]; ok {
		return n
	}
	return -1
}

// DetectFormat implements spec §4.4.2's payload-size auto-detection: a
// Compact Primary length match wins outright; a Compact AMR-WB-IO length
// match is accepted unless the payload is the ambiguous 6-byte case, which
// is resolved by inspecting the first bit (0 => Compact Primary 2.8 kbps,
// 1 => Header-Full AMR-WB-IO SID-with-CMR).
func DetectFormat(payload []byte) (Format, CodecMode, error) {
	if len(payload) == 0 {
		return 0, 0, errEmptyPayload
	}
	n := len(payload)

	if n == 6 {
		if payload[0]&0x80 == 0 {
			return FormatCompact, ModePrimary, nil
		}
		return FormatHeaderFull, ModeAMRWBIO, nil
	}

	if _, ok := compactPrimaryLengths[n]; ok {
		return FormatCompact, ModePrimary, nil
	}
	if _, ok := compactAMRWBIOLengths[n]; ok {
		return FormatCompact, ModeAMRWBIO, nil
	}
	return FormatHeaderFull, ModePrimary, nil
}
