package dtmf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ev := Event{Digit: Digit5, VolumeNegDBm0: 10, End: true, DurationUnits: 1600}
	payload := Encode(ev)
	require.Len(t, payload, 4)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	require.Equal(t, Digit5, decoded.Digit)
	require.True(t, decoded.End)
	require.EqualValues(t, 10, decoded.VolumeNegDBm0)
	require.EqualValues(t, 1600, decoded.DurationUnits)
}

func TestDecodeRejectsShortPayload(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestDigitString(t *testing.T) {
	require.Equal(t, "5", Digit5.String())
	require.Equal(t, "*", DigitStar.String())
	require.Equal(t, "#", DigitPound.String())
	require.Equal(t, "A", DigitA.String())
}

func TestDurationUnitsConvertsWallClock(t *testing.T) {
	require.EqualValues(t, 8000, DurationUnits(time.Second, 8000))
	require.EqualValues(t, 0xFFFF, DurationUnits(time.Hour, 8000))
}

func TestBuildEventFramesRepeatsFinalThreeTimes(t *testing.T) {
	s := NewSender(8000)
	frames := s.BuildEventFrames(DigitStar, 5, []uint16{800, 1600}, 2400)

	require.Len(t, frames, 1+2+3)
	require.True(t, frames[0].Marker)
	for _, f := range frames[1:] {
		require.False(t, f.Marker)
	}

	last3 := frames[len(frames)-3:]
	for _, f := range last3 {
		ev, err := Decode(f.Payload)
		require.NoError(t, err)
		require.True(t, ev.End)
		require.EqualValues(t, 2400, ev.DurationUnits)
	}
}

func TestReceiverFiresOnceOnStartAndEnd(t *testing.T) {
	var starts, ends []Digit
	r := NewReceiver(
		func(d Digit) { starts = append(starts, d) },
		func(d Digit) { ends = append(ends, d) },
	)

	start := Encode(Event{Digit: Digit7, DurationUnits: 0})
	update := Encode(Event{Digit: Digit7, DurationUnits: 800})
	end := Encode(Event{Digit: Digit7, End: true, DurationUnits: 1600})

	require.NoError(t, r.Process(start, 1000))
	require.NoError(t, r.Process(update, 1000))
	require.NoError(t, r.Process(end, 1000))
	require.NoError(t, r.Process(end, 1000))
	require.NoError(t, r.Process(end, 1000))

	require.Equal(t, []Digit{Digit7}, starts)
	require.Equal(t, []Digit{Digit7}, ends)
}

func TestReceiverDistinguishesTonesByTimestamp(t *testing.T) {
	var starts []Digit
	r := NewReceiver(func(d Digit) { starts = append(starts, d) }, nil)

	require.NoError(t, r.Process(Encode(Event{Digit: Digit1}), 1000))
	require.NoError(t, r.Process(Encode(Event{Digit: Digit2}), 2000))

	require.Equal(t, []Digit{Digit1, Digit2}, starts)
}
