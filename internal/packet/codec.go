package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sentinel decode errors.
var (
	ErrFrameTooShort    = errors.New("satlink: frame shorter than minimum length")
	ErrPayloadTruncated = errors.New("satlink: payload_size exceeds frame length")
	ErrTrailingBytes    = errors.New("satlink: trailing bytes after frame")
)

// Encode serializes the frame for transmission. The payload is copied
// verbatim and the stored CRC16 is appended; callers are expected to have
// stamped the CRC (New does this).
func Encode(p *Packet) []byte {
	buf := make([]byte, 0, HeaderSize+len(p.Payload)+FooterSize)
	buf = append(buf, p.headerBytes()...)
	buf = append(buf, p.Payload...)
	buf = binary.BigEndian.AppendUint16(buf, p.CRC16)
	return buf
}

// Decode parses a frame from data. It fails on frames shorter than
// header+footer, on a payload_size that does not fit the buffer, and on
// excess trailing bytes. CRC validity is not checked here; call VerifyCRC
// on the result.
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrFrameTooShort, len(data))
	}

	p := &Packet{
		Version:     binary.BigEndian.Uint16(data[0:2]),
		Type:        Type(data[2]),
		Seq:         binary.BigEndian.Uint32(data[3:7]),
		PayloadSize: binary.BigEndian.Uint32(data[7:11]),
	}

	total := uint64(HeaderSize) + uint64(p.PayloadSize) + FooterSize
	if uint64(len(data)) < total {
		return nil, fmt.Errorf("%w: payload_size=%d, frame=%d bytes", ErrPayloadTruncated, p.PayloadSize, len(data))
	}
	if uint64(len(data)) > total {
		return nil, fmt.Errorf("%w: frame=%d bytes, expected %d", ErrTrailingBytes, len(data), total)
	}

	if p.PayloadSize > 0 {
		p.Payload = make([]byte, p.PayloadSize)
		copy(p.Payload, data[HeaderSize:HeaderSize+p.PayloadSize])
	}
	p.CRC16 = binary.BigEndian.Uint16(data[HeaderSize+p.PayloadSize:])

	return p, nil
}
