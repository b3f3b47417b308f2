package text140

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTripNoRedundancy(t *testing.T) {
	pk := NewPacketizer(98, 100, 2)
	payload := pk.Encode(Block{Timestamp: 1000, Text: []byte("hi")})

	dp := NewDepacketizer(98)
	blocks, err := dp.Decode(payload, 1000)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	require.Equal(t, []byte("hi"), blocks[0].Text)
	require.Equal(t, uint32(1000), blocks[0].Timestamp)
}

func TestEncodeDecodeRoundTripWithRedundancy(t *testing.T) {
	pk := NewPacketizer(98, 100, 2)
	_ = pk.Encode(Block{Timestamp: 1000, Text: []byte("a")})
	_ = pk.Encode(Block{Timestamp: 1300, Text: []byte("b")})
	payload := pk.Encode(Block{Timestamp: 1600, Text: []byte("c")})

	dp := NewDepacketizer(98)
	blocks, err := dp.Decode(payload, 1600)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	require.Equal(t, []byte("a"), blocks[0].Text)
	require.Equal(t, []byte("b"), blocks[1].Text)
	require.Equal(t, []byte("c"), blocks[2].Text)
	require.Equal(t, uint32(1000), blocks[0].Timestamp)
	require.Equal(t, uint32(1300), blocks[1].Timestamp)
}

func TestPacketizerCapsHistoryAtMaxRedundancy(t *testing.T) {
	pk := NewPacketizer(98, 100, 1)
	_ = pk.Encode(Block{Timestamp: 1000, Text: []byte("a")})
	_ = pk.Encode(Block{Timestamp: 1300, Text: []byte("b")})
	payload := pk.Encode(Block{Timestamp: 1600, Text: []byte("c")})

	dp := NewDepacketizer(98)
	blocks, err := dp.Decode(payload, 1600)
	require.NoError(t, err)
	require.Len(t, blocks, 2, "history capped at maxRedundancy+1 generations")
	require.Equal(t, []byte("b"), blocks[0].Text)
	require.Equal(t, []byte("c"), blocks[1].Text)
}
