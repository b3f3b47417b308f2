package video

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckHeaderAcceptsValidIDR(t *testing.T) {
	nal := append(append([]byte{}, StartCode...), 0x65, 0x88, 0x84, 0x00)
	require.NoError(t, CheckHeader(CodecH264, nal))
}

func TestCheckHeaderRejectsMissingStartCode(t *testing.T) {
	nal := []byte{0x00, 0x00, 0x01, 0x65, 0x00}
	require.Error(t, CheckHeader(CodecH264, nal))
}

func TestIsKeyframeNAL(t *testing.T) {
	require.True(t, IsKeyframeNAL(CodecH264, []byte{0x65}))
	require.False(t, IsKeyframeNAL(CodecH264, []byte{0x41}))
	require.True(t, IsKeyframeNAL(CodecH265, []byte{19 << 1}))
}

func TestAssemblerSingleNALPassthrough(t *testing.T) {
	a := NewAssembler(CodecH264)
	nal := []byte{0x67, 0x42, 0xC0, 0x0C}
	out, err := a.Push(nal, true)
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, StartCode...), nal...), out)
}

func TestAssemblerReassemblesFUA(t *testing.T) {
	a := NewAssembler(CodecH264)

	indicator := byte(0x7C) // F=0 NRI=11 type=28 (FU-A)
	startHeader := byte(0x85) // S=1 E=0 R=0 type=5 (IDR)
	midHeader := byte(0x05)
	endHeader := byte(0x45) // E=1 type=5

	out, err := a.Push([]byte{indicator, startHeader, 0xAA, 0xBB}, false)
	require.NoError(t, err)
	require.Nil(t, out)

	out, err = a.Push([]byte{indicator, midHeader, 0xCC}, false)
	require.NoError(t, err)
	require.Nil(t, out)

	out, err = a.Push([]byte{indicator, endHeader, 0xDD}, true)
	require.NoError(t, err)
	require.NotNil(t, out)

	expectedReconstructed := []byte{0x65, 0xAA, 0xBB, 0xCC, 0xDD}
	require.Equal(t, append(append([]byte{}, StartCode...), expectedReconstructed...), out)
}

func TestAssemblerRejectsContinuationWithoutStart(t *testing.T) {
	a := NewAssembler(CodecH264)
	_, err := a.Push([]byte{0x3C, 0x45, 0xDD}, true)
	require.Error(t, err)
}

func TestCVORoundTrip(t *testing.T) {
	o := CVOOrientation{CameraBack: true, Flipped: false, Rotation: 2}
	b := EncodeCVO(o)
	got := DecodeCVO(b)
	require.Equal(t, o, got)
	require.Equal(t, 180, got.RotationDegrees())
}

func TestParseH264SPSBaseline(t *testing.T) {
	// Minimal baseline-profile SPS: profile_idc=66 (no chroma-format extras).
	nal := []byte{0x67, 0x42, 0x00, 0x0A}
	r := []byte{0x00, 0x80, 0x00, 0x00} // filler bits for the UE fields; only profile and level are checked
	nal = append(nal, r...)

	info, err := ParseH264SPS(nal)
	require.NoError(t, err)
	require.Equal(t, uint8(66), info.ProfileIDC)
	require.Equal(t, uint8(10), info.LevelIDC)
}
