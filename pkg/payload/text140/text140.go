// Package text140 implements T.140 real-time text RTP payload framing with
// RFC 4103 redundancy: each packet may carry the current text block plus
// up to N prior blocks as redundant copies, guarding against isolated
// packet loss on best-effort networks.
package text140

import (
	"encoding/binary"
	"fmt"
)

// Block is one T.140 text block as it travels on the wire, tagged with
// the RTP timestamp it was originally sent at.
type Block struct {
	Timestamp uint32
	Text      []byte
}

// Packetizer assembles the primary block plus up to MaxRedundancy prior
// blocks into one RTP payload per RFC 4103 §4.2.
type Packetizer struct {
	redundantPT   uint8
	primaryPT     uint8
	maxRedundancy int
	history       []Block
}

// NewPacketizer creates a packetizer carrying up to maxRedundancy
// generations of redundancy, using redundantPT as the RFC 2198 wrapper
// payload type and primaryPT as the T.140 payload type it references.
func NewPacketizer(primaryPT, redundantPT uint8, maxRedundancy int) *Packetizer {
	return &Packetizer{primaryPT: primaryPT, redundantPT: redundantPT, maxRedundancy: maxRedundancy}
}

// Encode builds one redundant RTP payload: a chain of RFC 2198 redundancy
// headers for each historical block (oldest first) followed by the
// primary block's header and all block bodies in the same order.
func (p *Packetizer) Encode(block Block) []byte {
	p.history = append(p.history, block)
	if len(p.history) > p.maxRedundancy+1 {
		p.history = p.history[len(p.history)-(p.maxRedundancy+1):]
	}

	var headers []byte
	for i := 0; i < len(p.history)-1; i++ {
		h := p.history[i]
		age := block.Timestamp - h.Timestamp
		hdr := make([]byte, 4)
		hdr[0] = p.primaryPT | 0x80 // F=1: another block follows
		binary.BigEndian.PutUint16(hdr[1:3], uint16(age)<<2)
		hdr[2] |= byte(len(h.Text) >> 8)
		hdr[3] = byte(len(h.Text))
		headers = append(headers, hdr...)
	}
	headers = append(headers, p.primaryPT&0x7F) // F=0 terminator for the primary block

	var body []byte
	for _, h := range p.history {
		body = append(body, h.Text...)
	}

	return append(headers, body...)
}

// Depacketizer decodes redundant T.140 RTP payloads back into their
// constituent blocks, oldest redundant copy first, primary last.
type Depacketizer struct {
	primaryPT uint8
}

// NewDepacketizer creates a depacketizer expecting primaryPT as the
// T.140 payload type referenced by each redundancy header.
func NewDepacketizer(primaryPT uint8) *Depacketizer {
	return &Depacketizer{primaryPT: primaryPT}
}

type redundancyHeader struct {
	age    uint16
	length int
}

// Decode splits payload into its redundant + primary Blocks given the
// packet's own RTP timestamp (the primary block's implicit timestamp).
func (d *Depacketizer) Decode(payload []byte, rtpTimestamp uint32) ([]Block, error) {
	var headers []redundancyHeader
	pos := 0
	for {
		if pos >= len(payload) {
			return nil, fmt.Errorf("text140: payload truncated in redundancy header chain")
		}
		follows := payload[pos]&0x80 != 0
		if !follows {
			pos++
			break
		}
		if pos+4 > len(payload) {
			return nil, fmt.Errorf("text140: truncated redundancy header")
		}
		ageAndLen := binary.BigEndian.Uint16(payload[pos+1 : pos+3])
		age := ageAndLen >> 2
		length := int(ageAndLen&0x3)<<8 | int(payload[pos+3])
		headers = append(headers, redundancyHeader{age: age, length: length})
		pos += 4
	}

	blocks := make([]Block, 0, len(headers)+1)
	for _, h := range headers {
		if pos+h.length > len(payload) {
			return nil, fmt.Errorf("text140: redundant block exceeds payload bounds")
		}
		blocks = append(blocks, Block{
			Timestamp: rtpTimestamp - uint32(h.age),
			Text:      append([]byte{}, payload[pos:pos+h.length]...),
		})
		pos += h.length
	}

	blocks = append(blocks, Block{Timestamp: rtpTimestamp, Text: append([]byte{}, payload[pos:]...)})
	return blocks, nil
}
