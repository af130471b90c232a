package arq

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/satlink/internal/link"
	"firestige.xyz/satlink/internal/packet"
)

// fakePort gives a test direct control over both directions of a station's
// attachment: frames the station sends land on out, frames pushed to in are
// what the station receives.
type fakePort struct {
	in  chan *packet.Packet
	out chan *packet.Packet
}

func newFakePort() *fakePort {
	return &fakePort{
		in:  make(chan *packet.Packet, 64),
		out: make(chan *packet.Packet, 64),
	}
}

func (f *fakePort) Send(p *packet.Packet) { f.out <- p }

func (f *fakePort) Recv(timeout time.Duration) (*packet.Packet, bool) {
	if timeout <= 0 {
		select {
		case p := <-f.in:
			return p, true
		default:
			return nil, false
		}
	}
	select {
	case p := <-f.in:
		return p, true
	case <-time.After(timeout):
		return nil, false
	}
}

// takeSent waits for the next frame the station put on the wire.
func (f *fakePort) takeSent(t *testing.T, timeout time.Duration) *packet.Packet {
	t.Helper()
	select {
	case p := <-f.out:
		return p
	case <-time.After(timeout):
		t.Fatal("station sent nothing within the deadline")
		return nil
	}
}

// stubApp queues outbound payloads and records deliveries.
type stubApp struct {
	mu        sync.Mutex
	outbound  [][]byte
	outType   packet.Type
	delivered [][]byte
	fail      error // returned by HandleData when set
}

func (a *stubApp) Tick(time.Duration) {}

func (a *stubApp) Outbound() (packet.Type, []byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.outbound) == 0 {
		return 0, nil, false
	}
	p := a.outbound[0]
	a.outbound = a.outbound[1:]
	return a.outType, p, true
}

func (a *stubApp) HandleData(payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	a.delivered = append(a.delivered, append([]byte(nil), payload...))
	return nil
}

func (a *stubApp) deliveredCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.delivered)
}

func (a *stubApp) enqueue(payload []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outbound = append(a.outbound, payload)
}

func testConfig(name string) Config {
	return Config{
		Name:       name,
		DataType:   packet.TypeTelemetry,
		AckTimeout: 50 * time.Millisecond,
		MaxRetries: 3,
		Tick:       2 * time.Millisecond,
	}
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStartStopIdempotent(t *testing.T) {
	s := NewStation(testConfig("t"), newFakePort(), &stubApp{})

	s.Start()
	s.Start() // no second worker
	s.Stop()
	s.Stop() // no panic, no deadlock

	// A stopped station can be started again.
	s.Start()
	s.Stop()
}

func TestSendAckedFirstAttempt(t *testing.T) {
	port := newFakePort()
	app := &stubApp{outType: packet.TypeTelemetry}
	app.enqueue([]byte("frame zero"))

	s := NewStation(testConfig("t"), port, app)
	s.Start()
	defer s.Stop()

	sent := port.takeSent(t, time.Second)
	assert.Equal(t, packet.TypeTelemetry, sent.Type)
	assert.Equal(t, uint32(0), sent.Seq)
	assert.True(t, sent.VerifyCRC())

	port.in <- packet.NewAck(sent.Seq)

	eventually(t, time.Second, func() bool { return s.Stats().DataSent == 1 }, "send never acknowledged")
	assert.Equal(t, uint64(0), s.Stats().Retries)
}

func TestRetryAfterLostAck(t *testing.T) {
	port := newFakePort()
	app := &stubApp{outType: packet.TypeTelemetry}
	app.enqueue([]byte("needs a retry"))

	s := NewStation(testConfig("t"), port, app)
	s.Start()
	defer s.Stop()

	// First attempt: swallow the frame, send no ACK.
	first := port.takeSent(t, time.Second)
	assert.Equal(t, uint32(0), first.Seq)

	// Second attempt arrives after the ACK timeout; acknowledge it.
	second := port.takeSent(t, time.Second)
	assert.Equal(t, first.Seq, second.Seq, "retry must reuse the sequence number")
	port.in <- packet.NewAck(second.Seq)

	eventually(t, time.Second, func() bool { return s.Stats().DataSent == 1 }, "retry never succeeded")
	assert.Equal(t, uint64(1), s.Stats().Retries)
	assert.Equal(t, uint64(0), s.Stats().SendFailures)
}

func TestGiveUpAfterMaxRetries(t *testing.T) {
	port := newFakePort()
	app := &stubApp{outType: packet.TypeTelemetry}
	app.enqueue([]byte("doomed"))

	cfg := testConfig("t")
	cfg.MaxRetries = 2
	s := NewStation(cfg, port, app)
	s.Start()
	defer s.Stop()

	for i := 0; i < 3; i++ { // initial + 2 retries
		port.takeSent(t, time.Second)
	}

	eventually(t, time.Second, func() bool { return s.Stats().SendFailures == 1 }, "station never gave up")
	assert.Equal(t, uint64(2), s.Stats().Retries)
	assert.Equal(t, uint64(0), s.Stats().DataSent)
}

func TestNakCountsAsFailedAttempt(t *testing.T) {
	port := newFakePort()
	app := &stubApp{outType: packet.TypeTelemetry}
	app.enqueue([]byte("nak then ack"))

	s := NewStation(testConfig("t"), port, app)
	s.Start()
	defer s.Stop()

	first := port.takeSent(t, time.Second)
	port.in <- packet.NewNak(first.Seq)

	second := port.takeSent(t, time.Second)
	port.in <- packet.NewAck(second.Seq)

	eventually(t, time.Second, func() bool { return s.Stats().DataSent == 1 }, "send never succeeded after NAK")
	assert.Equal(t, uint64(1), s.Stats().Retries)
	assert.Equal(t, uint64(1), s.Stats().NaksReceived)
}

func TestInboundDeliveredAndAcked(t *testing.T) {
	port := newFakePort()
	app := &stubApp{}

	s := NewStation(testConfig("t"), port, app)
	s.Start()
	defer s.Stop()

	port.in <- packet.New(packet.TypeTelemetry, 0, []byte("hello"))

	ack := port.takeSent(t, time.Second)
	assert.Equal(t, packet.TypeAck, ack.Type)
	assert.Equal(t, uint32(0), ack.Seq)
	assert.Equal(t, uint32(0), ack.PayloadSize)

	assert.Equal(t, 1, app.deliveredCount())
	assert.Equal(t, uint64(1), s.Stats().DataReceived)
}

func TestDuplicateSuppression(t *testing.T) {
	port := newFakePort()
	app := &stubApp{}

	s := NewStation(testConfig("t"), port, app)
	s.Start()
	defer s.Stop()

	frame := packet.New(packet.TypeTelemetry, 5, []byte("only once"))
	port.in <- frame

	ack1 := port.takeSent(t, time.Second)
	assert.Equal(t, packet.TypeAck, ack1.Type)
	assert.Equal(t, uint32(5), ack1.Seq)

	// Redeliver the very same frame: re-ACKed, not re-delivered.
	port.in <- frame

	ack2 := port.takeSent(t, time.Second)
	assert.Equal(t, packet.TypeAck, ack2.Type)
	assert.Equal(t, uint32(5), ack2.Seq)

	assert.Equal(t, 1, app.deliveredCount(), "handler must run exactly once")
	assert.Equal(t, uint64(1), s.Stats().DataReceived)
	assert.Equal(t, uint64(1), s.Stats().Duplicates)
}

func TestFutureSeqTreatedFresh(t *testing.T) {
	port := newFakePort()
	app := &stubApp{}

	s := NewStation(testConfig("t"), port, app)
	s.Start()
	defer s.Stop()

	port.in <- packet.New(packet.TypeTelemetry, 3, []byte("gap jump"))
	port.takeSent(t, time.Second) // ACK 3

	// The skipped seq 1 arrives late: now a duplicate.
	port.in <- packet.New(packet.TypeTelemetry, 1, []byte("late"))
	ack := port.takeSent(t, time.Second)
	assert.Equal(t, packet.TypeAck, ack.Type)
	assert.Equal(t, uint32(1), ack.Seq)

	assert.Equal(t, 1, app.deliveredCount(), "late frame below expectation must not deliver")
	assert.Equal(t, uint64(1), s.Stats().Duplicates)
}

func TestCorruptFrameNaked(t *testing.T) {
	port := newFakePort()
	app := &stubApp{}

	s := NewStation(testConfig("t"), port, app)
	s.Start()
	defer s.Stop()

	bad := packet.New(packet.TypeTelemetry, 2, []byte("to be damaged"))
	bad.Payload[0] ^= 0xFF // flip one byte without restamping

	port.in <- bad

	nak := port.takeSent(t, time.Second)
	assert.Equal(t, packet.TypeNak, nak.Type)
	assert.Equal(t, uint32(2), nak.Seq)

	assert.Equal(t, 0, app.deliveredCount(), "corrupt frame must not reach the handler")
	assert.Equal(t, uint64(1), s.Stats().NaksSent)
	assert.Equal(t, uint64(0), s.Stats().DataReceived)
}

func TestPayloadParseFailureNaked(t *testing.T) {
	port := newFakePort()
	app := &stubApp{fail: errors.New("unparseable")}

	s := NewStation(testConfig("t"), port, app)
	s.Start()
	defer s.Stop()

	port.in <- packet.New(packet.TypeTelemetry, 0, []byte("garbage"))

	nak := port.takeSent(t, time.Second)
	assert.Equal(t, packet.TypeNak, nak.Type)
	assert.Equal(t, uint32(0), nak.Seq)
	assert.Equal(t, uint64(1), s.Stats().NaksSent)
}

func TestUnknownFrameTypeNaked(t *testing.T) {
	port := newFakePort()
	app := &stubApp{}

	s := NewStation(testConfig("t"), port, app)
	s.Start()
	defer s.Stop()

	port.in <- packet.New(packet.Type(0x7F), 4, []byte("???"))

	nak := port.takeSent(t, time.Second)
	assert.Equal(t, packet.TypeNak, nak.Type)
	assert.Equal(t, uint32(4), nak.Seq)
	assert.Equal(t, 0, app.deliveredCount())
}

func TestStrayAckDiscardedSilently(t *testing.T) {
	port := newFakePort()
	app := &stubApp{}

	s := NewStation(testConfig("t"), port, app)
	s.Start()
	defer s.Stop()

	// An ACK outside any ACK wait: dropped without a reply.
	port.in <- packet.NewAck(9)

	select {
	case p := <-port.out:
		t.Fatalf("station replied %s to a stray ACK", p.Type)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, uint64(0), s.Stats().NaksSent)
}

// TestLosslessEndToEnd runs two stations over a real link with loss
// disabled: one telemetry frame crosses, is delivered once and ACKed
// within a round trip.
func TestLosslessEndToEnd(t *testing.T) {
	l := link.New(link.Config{LatencyMS: 5, JitterMS: 0, LossProb: 0, Seed: 42})

	satApp := &stubApp{outType: packet.TypeTelemetry}
	satApp.enqueue([]byte("ts=1|temp=50.00"))
	satStation := NewStation(Config{
		Name:       "satellite",
		DataType:   packet.TypeCommand,
		AckTimeout: 200 * time.Millisecond,
		MaxRetries: 3,
		Tick:       2 * time.Millisecond,
	}, l.SatSide(), satApp)

	groundApp := &stubApp{}
	groundStation := NewStation(Config{
		Name:       "ground",
		DataType:   packet.TypeTelemetry,
		AckTimeout: 200 * time.Millisecond,
		MaxRetries: 3,
		Tick:       2 * time.Millisecond,
	}, l.GroundSide(), groundApp)

	satStation.Start()
	groundStation.Start()
	defer satStation.Stop()
	defer groundStation.Stop()

	eventually(t, 2*time.Second, func() bool {
		return satStation.Stats().DataSent == 1 && groundStation.Stats().DataReceived == 1
	}, "telemetry frame never completed the ACK round trip")

	assert.Equal(t, 1, groundApp.deliveredCount())
	assert.Equal(t, uint64(0), satStation.Stats().Retries)
	assert.Equal(t, uint64(0), groundStation.Stats().NaksSent)
}

var _ Port = (*fakePort)(nil)
var _ App = (*stubApp)(nil)
