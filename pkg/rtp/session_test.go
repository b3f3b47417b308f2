package rtp

import (
	"testing"

	pionrtp "github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, port int) SessionConfig {
	t.Helper()
	return SessionConfig{
		Key: Key{
			Media: MediaAudio,
			Local: Endpoint{Host: "127.0.0.1", Port: port},
			Peer:  Endpoint{Host: "127.0.0.1", Port: port + 1},
		},
		ClockRate: 8000,
		CNAME:     "test@example.com",
	}
}

func TestSendRTPIncrementsSequenceAndTimestamp(t *testing.T) {
	session, err := newSession(testConfig(t, 10000))
	require.NoError(t, err)
	require.NoError(t, session.Start())

	pkt1, err := session.SendRTP(8, false, 0, make([]byte, 160))
	require.NoError(t, err)
	pkt2, err := session.SendRTP(8, false, 160, make([]byte, 160))
	require.NoError(t, err)

	require.Equal(t, pkt1.SequenceNumber+1, pkt2.SequenceNumber)
	require.Equal(t, pkt1.Timestamp+160, pkt2.Timestamp)
}

func TestSendRTPZeroDeltaReusesTimestamp(t *testing.T) {
	session, err := newSession(testConfig(t, 10010))
	require.NoError(t, err)
	require.NoError(t, session.Start())

	pkt1, err := session.SendRTP(101, false, 160, []byte{0})
	require.NoError(t, err)
	pkt2, err := session.SendRTP(101, false, 0, []byte{0})
	require.NoError(t, err)

	require.Equal(t, pkt1.Timestamp, pkt2.Timestamp)
}

func TestReceiveRTPDetectsSSRCChange(t *testing.T) {
	session, err := newSession(testConfig(t, 10020))
	require.NoError(t, err)

	header := func(ssrc uint32, ts uint32) *Packet {
		return NewPacket(pionrtp.Header{Version: 2, SSRC: ssrc, Timestamp: ts}, []byte{1, 2, 3})
	}

	_, changed := session.ReceiveRTP(header(100, 0), 0)
	require.False(t, changed)

	_, changed = session.ReceiveRTP(header(100, 160), 160)
	require.False(t, changed)

	_, changed = session.ReceiveRTP(header(200, 320), 320)
	require.True(t, changed)
}

func TestRegistryRefcounting(t *testing.T) {
	before := Count()

	cfg := testConfig(t, 10030)
	s1, err := GetInstance(cfg)
	require.NoError(t, err)
	s2, err := GetInstance(cfg)
	require.NoError(t, err)
	require.Same(t, s1, s2)

	require.Equal(t, before+1, Count())

	Release(s1)
	require.Equal(t, before+1, Count(), "first release must not destroy a shared session")

	Release(s2)
	require.Equal(t, before, Count(), "last release must remove the session")
}

func TestHandleLocalCollisionRotatesSSRCAndSendsBye(t *testing.T) {
	session, err := newSession(testConfig(t, 10040))
	require.NoError(t, err)

	oldSSRC := session.SSRC()
	compound, err := session.HandleLocalCollision()
	require.NoError(t, err)
	require.NotEqual(t, oldSSRC, session.SSRC())
	require.Len(t, compound.Packets, 1)
}

