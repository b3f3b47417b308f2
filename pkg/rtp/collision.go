package rtp

import "github.com/pion/rtcp"

// HandleLocalCollision implements spec §4.3/§7: if an ingress packet
// carries the session's own local SSRC (a collision), the session sends a
// BYE for the old SSRC, generates a fresh one, and keeps running — it is
// never torn down for a collision.
func (s *Session) HandleLocalCollision() (*Compound, error) {
	s.mu.Lock()
	oldSSRC := s.localSSRC
	s.mu.Unlock()

	newSSRC, err := randomUint32()
	if err != nil {
		return nil, newError(ErrNoResources, "failed to generate replacement SSRC after collision", err)
	}

	bye := BuildBye("SSRC collision", oldSSRC)

	s.mu.Lock()
	s.localSSRC = newSSRC
	s.mu.Unlock()

	s.logger.Warn("rtp: local SSRC collision, rotating SSRC", "old_ssrc", oldSSRC, "new_ssrc", newSSRC)

	return &Compound{Packets: []rtcp.Packet{bye}}, nil
}
