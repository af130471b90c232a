package link

import (
	"time"

	"firestige.xyz/satlink/internal/packet"
)

// Side is one attachment point on the link: Send transmits on the side's
// own direction and Recv reads the reverse direction. The two sides satisfy
// the station layer's Port interface.
type Side struct {
	send func(*packet.Packet)
	recv func(time.Duration) (*packet.Packet, bool)
}

// SatSide returns the satellite's attachment: downlink out, uplink in.
func (l *Link) SatSide() *Side {
	return &Side{send: l.SendSatToGround, recv: l.RecvGroundToSat}
}

// GroundSide returns the ground station's attachment: uplink out, downlink in.
func (l *Link) GroundSide() *Side {
	return &Side{send: l.SendGroundToSat, recv: l.RecvSatToGround}
}

// Send transmits a frame on this side's outbound direction. The calling
// goroutine sleeps for the sampled latency.
func (s *Side) Send(p *packet.Packet) {
	s.send(p)
}

// Recv reads the oldest frame on this side's inbound direction.
func (s *Side) Recv(timeout time.Duration) (*packet.Packet, bool) {
	return s.recv(timeout)
}
