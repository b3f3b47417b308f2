// Package rtp implements the RTP/RTCP session core of the IMS media
// engine: fixed+extension header parsing/forming (via github.com/pion/rtp),
// sequence/timestamp/SSRC bookkeeping, RFC 3550 interarrival jitter,
// RTCP SR/RR/SDES/BYE/APP/FB/XR encode and transmit scheduling (via
// github.com/pion/rtcp), and a session registry keyed by media type and
// local/peer endpoints.
//
// Socket I/O, codec encode/decode, and signalling are external
// collaborators (pkg/collab); this package only produces and consumes
// wire bytes and in-memory packet/report structures.
package rtp
