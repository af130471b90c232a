package packet

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := New(TypeTelemetry, 12345, []byte("test payload data"))

	frame := Encode(p)
	assert.Equal(t, HeaderSize+17+FooterSize, len(frame), "30-byte frame expected")

	got, err := Decode(frame)
	assert.NoError(t, err)
	assert.Equal(t, p.Version, got.Version)
	assert.Equal(t, p.Type, got.Type)
	assert.Equal(t, p.Seq, got.Seq)
	assert.Equal(t, p.PayloadSize, got.PayloadSize)
	assert.True(t, bytes.Equal(p.Payload, got.Payload))
	assert.Equal(t, p.CRC16, got.CRC16)
	assert.True(t, got.VerifyCRC())
}

func TestEncodeDecodeEmptyPayload(t *testing.T) {
	p := NewAck(7)

	got, err := Decode(Encode(p))
	assert.NoError(t, err)
	assert.Equal(t, TypeAck, got.Type)
	assert.Equal(t, uint32(7), got.Seq)
	assert.Equal(t, uint32(0), got.PayloadSize)
	assert.Empty(t, got.Payload)
	assert.True(t, got.VerifyCRC())
}

func TestRoundTripPropertyAcrossPayloadSizes(t *testing.T) {
	for size := 0; size <= 512; size += 37 {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i * 7)
		}
		p := New(TypeCommand, uint32(size), payload)

		got, err := Decode(Encode(p))
		if err != nil {
			t.Fatalf("size %d: decode failed: %v", size, err)
		}
		gc, pc := got.clone(), p.clone()
		if gc.Version != pc.Version || gc.Type != pc.Type || gc.Seq != pc.Seq ||
			gc.PayloadSize != pc.PayloadSize || gc.CRC16 != pc.CRC16 ||
			!bytes.Equal(got.Payload, p.Payload) {
			t.Fatalf("size %d: round trip mismatch", size)
		}
		if !got.VerifyCRC() {
			t.Fatalf("size %d: CRC failed after round trip", size)
		}
	}
}

// clone strips the payload slice so the struct becomes comparable.
func (p *Packet) clone() *Packet {
	c := *p
	c.Payload = nil
	return &c
}

func TestDecodeTooShort(t *testing.T) {
	_, err := Decode(make([]byte, 12))
	assert.ErrorIs(t, err, ErrFrameTooShort)
}

func TestDecodePayloadSizeExceedsBuffer(t *testing.T) {
	p := New(TypeTelemetry, 1, []byte("abcdef"))
	frame := Encode(p)
	// Claim more payload than the frame carries.
	frame[7], frame[8], frame[9], frame[10] = 0, 0, 0, 200
	_, err := Decode(frame)
	assert.ErrorIs(t, err, ErrPayloadTruncated)
}

func TestDecodeTrailingBytes(t *testing.T) {
	frame := Encode(New(TypeTelemetry, 1, []byte("abc")))
	_, err := Decode(append(frame, 0x00))
	assert.ErrorIs(t, err, ErrTrailingBytes)
}

func TestDecodeUnknownTypeTolerated(t *testing.T) {
	p := New(Type(99), 3, []byte("x"))
	got, err := Decode(Encode(p))
	assert.NoError(t, err)
	assert.Equal(t, Type(99), got.Type)
	assert.Equal(t, "Unknown", got.Type.String())
	assert.True(t, got.VerifyCRC())
}

func TestVerifyCRCDetectsFieldMutation(t *testing.T) {
	mutations := []struct {
		name   string
		mutate func(*Packet)
	}{
		{"version", func(p *Packet) { p.Version++ }},
		{"type", func(p *Packet) { p.Type = TypeCommand }},
		{"seq", func(p *Packet) { p.Seq ^= 1 }},
		{"payload_size", func(p *Packet) { p.PayloadSize++ }},
		{"payload", func(p *Packet) { p.Payload[0] ^= 0xFF }},
		{"crc", func(p *Packet) { p.CRC16 ^= 0x0001 }},
	}
	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			p := New(TypeTelemetry, 42, []byte("payload under test"))
			assert.True(t, p.VerifyCRC(), "fresh packet must verify")
			m.mutate(p)
			assert.False(t, p.VerifyCRC(), "mutated %s must fail verification", m.name)
		})
	}
}

func TestDecodeErrorsAreSentinels(t *testing.T) {
	_, err := Decode(nil)
	if !errors.Is(err, ErrFrameTooShort) {
		t.Errorf("expected ErrFrameTooShort, got %v", err)
	}
}
