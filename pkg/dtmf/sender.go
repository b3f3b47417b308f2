package dtmf

// repeatCount is the number of times the final (End-flagged) packet of an
// event is sent, for loss resilience per RFC 4733 §2.5.1.3.
const repeatCount = 3

// Sender tracks per-event duration growth and repetition so a caller can
// drive pkg/rtp.Session.SendRTP with correctly shaped telephone-event
// payloads without re-deriving the repetition rules each time.
type Sender struct {
	clockRate uint32
}

// NewSender builds a Sender for a session running at clockRate (8000 for
// narrowband, 16000 for AMR-WB, the EVS negotiated rate otherwise).
func NewSender(clockRate uint32) *Sender {
	return &Sender{clockRate: clockRate}
}

// Frame is one RTP payload to transmit, paired with the marker bit the
// caller should set on the RTP header.
type Frame struct {
	Payload []byte
	Marker  bool
}

// BuildEventFrames returns the full frame sequence for one tone: one marked
// frame establishing the event, one update frame per updateOffsets entry,
// and repeatCount final frames with the End bit set carrying finalUnits.
// Each updateOffsets entry and finalUnits are durations in clock-rate units
// since the tone's onset, matching how a caller would resample duration
// while the key is held.
func (s *Sender) BuildEventFrames(digit Digit, volume uint8, updateOffsets []uint16, finalUnits uint16) []Frame {
	frames := make([]Frame, 0, 1+len(updateOffsets)+repeatCount)

	frames = append(frames, Frame{
		Payload: Encode(Event{Digit: digit, VolumeNegDBm0: volume, DurationUnits: 0}),
		Marker:  true,
	})
	for _, offset := range updateOffsets {
		frames = append(frames, Frame{
			Payload: Encode(Event{Digit: digit, VolumeNegDBm0: volume, DurationUnits: offset}),
		})
	}

	end := Encode(Event{Digit: digit, VolumeNegDBm0: volume, End: true, DurationUnits: finalUnits})
	for i := 0; i < repeatCount; i++ {
		frames = append(frames, Frame{Payload: end})
	}
	return frames
}
