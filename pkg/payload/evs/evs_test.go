package evs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func allOnesFrame(nbits int) Frame {
	bits := make([]byte, (nbits+7)/8)
	for i := range bits {
		bits[i] = 0xFF
	}
	return Frame{NumBits: nbits, Bits: bits}
}

func TestDetectFormatCompactPrimary(t *testing.T) {
	format, mode, err := DetectFormat(make([]byte, 61))
	require.NoError(t, err)
	require.Equal(t, FormatCompact, format)
	require.Equal(t, ModePrimary, mode)
}

func TestDetectFormatCompactAMRWBIO(t *testing.T) {
	format, mode, err := DetectFormat(make([]byte, 32))
	require.NoError(t, err)
	require.Equal(t, FormatCompact, format)
	require.Equal(t, ModeAMRWBIO, mode)
}

func TestDetectFormatSixByteAmbiguityResolvedByFirstBit(t *testing.T) {
	primary := make([]byte, 6)
	primary[0] = 0x00
	format, mode, err := DetectFormat(primary)
	require.NoError(t, err)
	require.Equal(t, FormatCompact, format)
	require.Equal(t, ModePrimary, mode)

	amrwbio := make([]byte, 6)
	amrwbio[0] = 0x80
	format, mode, err = DetectFormat(amrwbio)
	require.NoError(t, err)
	require.Equal(t, FormatHeaderFull, format)
	require.Equal(t, ModeAMRWBIO, mode)
}

func TestDetectFormatFallsBackToHeaderFull(t *testing.T) {
	format, _, err := DetectFormat(make([]byte, 200))
	require.NoError(t, err)
	require.Equal(t, FormatHeaderFull, format)
}

// TestCompactAMRWBIOCMRChangeFiresOnce covers the 32-byte Compact
// AMR-WB-IO 12.65 kbps vector: CMR=2 must fire an internal mode-change
// event exactly once, not on a repeated packet with the same CMR.
func TestCompactAMRWBIOCMRChangeFiresOnce(t *testing.T) {
	cfg := Config{Mode: ModeAMRWBIO}
	pk := NewPacketizer(cfg)
	dp := NewDepacketizer(cfg)

	frame := allOnesFrame(253)
	payload, err := pk.EncodeCompact(2, frame)
	require.NoError(t, err)

	first, err := dp.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, ModeAMRWBIO, first.Mode)
	require.Equal(t, 2, first.CMR)
	require.True(t, first.CMRChanged)

	second, err := dp.Decode(payload)
	require.NoError(t, err)
	require.False(t, second.CMRChanged, "repeated CMR must not re-fire the mode-change event")
}

func TestCompactAMRWBIONoRequestCMRNeverFires(t *testing.T) {
	cfg := Config{Mode: ModeAMRWBIO}
	pk := NewPacketizer(cfg)
	dp := NewDepacketizer(cfg)

	payload, err := pk.EncodeCompact(NoRequestCompactIO, allOnesFrame(177))
	require.NoError(t, err)

	result, err := dp.Decode(payload)
	require.NoError(t, err)
	require.False(t, result.CMRChanged)
}

func TestCompactPrimaryCarriesNoCMR(t *testing.T) {
	cfg := Config{Mode: ModePrimary}
	dp := NewDepacketizer(cfg)

	result, err := dp.Decode(make([]byte, 61))
	require.NoError(t, err)
	require.Equal(t, -1, result.CMR)
	require.False(t, result.CMRChanged)
	require.Len(t, result.Frames, 1)
}

func TestIsChannelAware(t *testing.T) {
	require.True(t, IsChannelAware(13200, ChAOffset2))
	require.True(t, IsChannelAware(13200, ChAOffset7))
	require.False(t, IsChannelAware(13200, ChAOffsetNone))
	require.False(t, IsChannelAware(9600, ChAOffset2))
}

func TestEncodeCMRCodeFromBandwidth(t *testing.T) {
	ty, def := EncodeCMRCodeFromBandwidth(13200, ChAOffset2)
	require.Equal(t, uint8(2), ty)
	require.Equal(t, uint8(ChAOffset2), def)

	ty, def = EncodeCMRCodeFromBandwidth(24400, ChAOffsetNone)
	require.Equal(t, uint8(0), ty)
	require.Equal(t, uint8(7), def)

	ty, def = EncodeCMRCodeFromBandwidth(999999, ChAOffsetNone)
	require.Equal(t, uint8(NoRequestHeaderFullType), ty)
	require.Equal(t, uint8(NoRequestHeaderFullDef), def)
}

func TestHeaderFullRoundTripSingleFrame(t *testing.T) {
	cfg := Config{Mode: ModePrimary}
	pk := NewPacketizer(cfg)
	dp := NewDepacketizer(cfg)

	frame := allOnesFrame(488) // 24.4 kbps, FT-B=7
	payload, err := pk.EncodeHeaderFull(0, 0, false, []uint8{7}, []Frame{frame})
	require.NoError(t, err)

	result, err := dp.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, FormatHeaderFull, result.Format)
	require.Len(t, result.Frames, 1)
	require.Equal(t, 488, result.Frames[0].NumBits)
}
