// Package packet defines the satlink wire frame and its binary codec.
//
// Wire layout (big-endian, 13 + payload bytes total):
//
//	offset  size  field
//	0       2     version
//	2       1     type
//	3       4     seq
//	7       4     payload_size
//	11      N     payload
//	11+N    2     crc16
//
// The CRC-16/CCITT-FALSE footer covers the 11-byte header plus payload.
package packet

import "firestige.xyz/satlink/internal/crc"

// Version is the only protocol version understood by this revision.
const Version uint16 = 1

// HeaderSize is the fixed header length: version(2) + type(1) + seq(4) + payload_size(4).
const HeaderSize = 11

// FooterSize is the CRC-16 footer length.
const FooterSize = 2

// Type tags a frame. Unknown tags survive decoding; the station layer
// decides whether to reject them.
type Type uint8

const (
	TypeTelemetry Type = 1
	TypeCommand   Type = 2
	TypeAck       Type = 3
	TypeNak       Type = 4
)

// String returns the human-readable name of the frame type.
func (t Type) String() string {
	switch t {
	case TypeTelemetry:
		return "Telemetry"
	case TypeCommand:
		return "Command"
	case TypeAck:
		return "ACK"
	case TypeNak:
		return "NAK"
	default:
		return "Unknown"
	}
}

// Packet is a single frame exchanged between the satellite and the ground
// station. PayloadSize is carried explicitly and covered by the CRC; New and
// Decode both leave it equal to len(Payload).
type Packet struct {
	Version     uint16
	Type        Type
	Seq         uint32
	PayloadSize uint32
	Payload     []byte
	CRC16       uint16
}

// New builds a data frame of the given type with the payload attached and
// the CRC stamped. ACK and NAK frames carry an empty payload.
func New(t Type, seq uint32, payload []byte) *Packet {
	p := &Packet{
		Version:     Version,
		Type:        t,
		Seq:         seq,
		PayloadSize: uint32(len(payload)),
		Payload:     payload,
	}
	p.StampCRC()
	return p
}

// NewAck builds an ACK frame for seq.
func NewAck(seq uint32) *Packet { return New(TypeAck, seq, nil) }

// NewNak builds a NAK frame for seq.
func NewNak(seq uint32) *Packet { return New(TypeNak, seq, nil) }

// headerBytes serializes the 11-byte header from the current field values.
func (p *Packet) headerBytes() []byte {
	h := make([]byte, HeaderSize)
	h[0] = byte(p.Version >> 8)
	h[1] = byte(p.Version)
	h[2] = byte(p.Type)
	h[3] = byte(p.Seq >> 24)
	h[4] = byte(p.Seq >> 16)
	h[5] = byte(p.Seq >> 8)
	h[6] = byte(p.Seq)
	h[7] = byte(p.PayloadSize >> 24)
	h[8] = byte(p.PayloadSize >> 16)
	h[9] = byte(p.PayloadSize >> 8)
	h[10] = byte(p.PayloadSize)
	return h
}

// StampCRC recomputes the CRC over header and payload and stores it in CRC16.
func (p *Packet) StampCRC() {
	p.CRC16 = crc.Checksum16(append(p.headerBytes(), p.Payload...))
}

// VerifyCRC recomputes the CRC over the re-serialized header and payload and
// compares it against the CRC16 field. A frame mutated after decoding without
// restamping fails verification; that is the contract the receive path relies on.
func (p *Packet) VerifyCRC() bool {
	return crc.Checksum16(append(p.headerBytes(), p.Payload...)) == p.CRC16
}
