// Package arq implements the stop-and-wait ARQ endpoint shared by the
// satellite and the ground station. A station owns one worker goroutine
// that interleaves the application tick, outbound transmission and inbound
// processing; at most one unacknowledged data frame is in flight per station.
package arq

import (
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/satlink/internal/log"
	"firestige.xyz/satlink/internal/metrics"
	"firestige.xyz/satlink/internal/packet"
)

// DefaultTick is the cooperative loop period.
const DefaultTick = 10 * time.Millisecond

// Port is the station's attachment to the link: Send transmits on the
// station's outbound direction, Recv reads the reverse direction. A zero
// timeout on Recv is a non-blocking poll.
type Port interface {
	Send(p *packet.Packet)
	Recv(timeout time.Duration) (*packet.Packet, bool)
}

// App is the application layer driven by the station loop.
type App interface {
	// Tick advances application state by dt. Called once per loop iteration.
	Tick(dt time.Duration)
	// Outbound returns the next payload to transmit, or ok=false when the
	// application has nothing to send this tick.
	Outbound() (t packet.Type, payload []byte, ok bool)
	// HandleData consumes the payload of a fresh in-order data frame.
	// A non-nil error routes to a NAK on the reverse direction.
	HandleData(payload []byte) error
}

// Config parameterizes a station.
type Config struct {
	// Name labels log lines and metrics ("satellite", "ground").
	Name string
	// DataType is the only frame type accepted as inbound data.
	DataType packet.Type
	// AckTimeout is the per-attempt ACK deadline.
	AckTimeout time.Duration
	// MaxRetries is the number of additional attempts after the first send.
	MaxRetries int
	// Tick overrides the loop period; zero selects DefaultTick.
	Tick time.Duration
}

// Stats is a snapshot of the station counters.
type Stats struct {
	DataSent     uint64 // acknowledged outbound data frames
	DataReceived uint64 // delivered fresh inbound data frames
	Duplicates   uint64 // suppressed duplicate data frames
	Retries      uint64 // retransmission attempts
	SendFailures uint64 // sends abandoned after max retries
	NaksSent     uint64
	NaksReceived uint64
}

// Station is one ARQ peer. Sequence numbers are touched only by the worker
// goroutine; the counters are atomics readable from any goroutine.
type Station struct {
	cfg  Config
	port Port
	app  App
	log  log.Logger

	running atomic.Bool
	wg      sync.WaitGroup

	txSeq      uint32
	rxExpected uint32

	dataSent     atomic.Uint64
	dataReceived atomic.Uint64
	duplicates   atomic.Uint64
	retries      atomic.Uint64
	sendFailures atomic.Uint64
	naksSent     atomic.Uint64
	naksReceived atomic.Uint64
}

// NewStation wires an application to a link port.
func NewStation(cfg Config, port Port, app App) *Station {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	return &Station{
		cfg:  cfg,
		port: port,
		app:  app,
		log:  log.GetLogger().WithField("station", cfg.Name),
	}
}

// Start spawns the worker goroutine. Idempotent.
func (s *Station) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go s.run()
}

// Stop signals the worker and joins it. Idempotent. The worker observes the
// flag within one tick plus any in-flight blocking call, so shutdown latency
// is bounded by the tick, the ACK timeout and the longest link sleep.
func (s *Station) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	s.wg.Wait()
}

// Stats returns a snapshot of the counters.
func (s *Station) Stats() Stats {
	return Stats{
		DataSent:     s.dataSent.Load(),
		DataReceived: s.dataReceived.Load(),
		Duplicates:   s.duplicates.Load(),
		Retries:      s.retries.Load(),
		SendFailures: s.sendFailures.Load(),
		NaksSent:     s.naksSent.Load(),
		NaksReceived: s.naksReceived.Load(),
	}
}

func (s *Station) run() {
	defer s.wg.Done()

	last := time.Now()
	for s.running.Load() {
		now := time.Now()
		s.app.Tick(now.Sub(last))
		last = now

		if t, payload, ok := s.app.Outbound(); ok {
			s.transmit(t, payload)
		}

		s.drainInbound()

		time.Sleep(s.cfg.Tick)
	}
}

// transmit runs the stop-and-wait send machine for one payload: send, wait
// for the matching ACK, retry on timeout or NAK, give up after MaxRetries
// additional attempts. Failure is counted, never fatal.
func (s *Station) transmit(t packet.Type, payload []byte) bool {
	p := packet.New(t, s.txSeq, payload)
	s.txSeq++

	for attempt := 0; attempt <= s.cfg.MaxRetries && s.running.Load(); attempt++ {
		if attempt > 0 {
			s.retries.Add(1)
			metrics.ArqRetriesTotal.WithLabelValues(s.cfg.Name).Inc()
			s.log.Warnf("missed ACK for %s seq=%d, retry %d/%d", p.Type, p.Seq, attempt, s.cfg.MaxRetries)
		}

		s.port.Send(p)

		if s.waitForAck(p.Seq) {
			s.dataSent.Add(1)
			metrics.DataFramesTotal.WithLabelValues(s.cfg.Name, p.Type.String(), "tx").Inc()
			return true
		}
	}

	if s.running.Load() {
		s.sendFailures.Add(1)
		metrics.ArqSendFailuresTotal.WithLabelValues(s.cfg.Name).Inc()
		s.log.Errorf("failed to send %s seq=%d after %d retries", p.Type, p.Seq, s.cfg.MaxRetries)
	}
	return false
}

// waitForAck blocks until a frame bearing seq resolves the attempt or the
// deadline passes. Frames that are neither the matching ACK nor the matching
// NAK are consumed and discarded; the waiter shares the receive queue with
// the drain loop.
func (s *Station) waitForAck(seq uint32) bool {
	deadline := time.Now().Add(s.cfg.AckTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		p, ok := s.port.Recv(remaining)
		if !ok {
			return false
		}

		switch {
		case p.Type == packet.TypeAck && p.Seq == seq:
			return true
		case p.Type == packet.TypeNak && p.Seq == seq:
			s.naksReceived.Add(1)
			metrics.ArqNaksTotal.WithLabelValues(s.cfg.Name, "received").Inc()
			return false
		default:
			// Consumed and discarded: the waiter cannot requeue without
			// reordering, so stray data frames are sacrificed here and the
			// peer retransmits them.
		}
	}
}

// drainInbound processes every frame currently queued without blocking.
func (s *Station) drainInbound() {
	for s.running.Load() {
		p, ok := s.port.Recv(0)
		if !ok {
			return
		}
		s.processInbound(p)
	}
}

func (s *Station) processInbound(p *packet.Packet) {
	if !p.VerifyCRC() {
		s.log.Warnf("bad CRC on %s seq=%d, NAK", p.Type, p.Seq)
		s.sendNak(p.Seq)
		return
	}

	switch p.Type {
	case s.cfg.DataType:
		s.processData(p)
	case packet.TypeAck, packet.TypeNak:
		// Unexpected outside an ACK wait; dropped without reply.
	default:
		s.log.Warnf("unknown frame type 0x%02X seq=%d, NAK", uint8(p.Type), p.Seq)
		s.sendNak(p.Seq)
	}
}

// processData applies duplicate suppression, delivers the payload and
// acknowledges. A frame with seq below the expectation is a retransmission
// of something already delivered: it is re-ACKed but not re-delivered. A
// frame above the expectation is treated as fresh; gaps are not repaired
// here because the lower retry layer already covers lost frames.
func (s *Station) processData(p *packet.Packet) {
	if p.Seq < s.rxExpected {
		s.duplicates.Add(1)
		metrics.ArqDuplicatesTotal.WithLabelValues(s.cfg.Name).Inc()
		s.log.Debugf("duplicate %s seq=%d, ACK only", p.Type, p.Seq)
		s.sendAck(p.Seq)
		return
	}

	s.rxExpected = p.Seq + 1

	if err := s.app.HandleData(p.Payload); err != nil {
		s.log.WithError(err).Warnf("payload rejected for %s seq=%d, NAK", p.Type, p.Seq)
		s.sendNak(p.Seq)
		return
	}

	s.dataReceived.Add(1)
	metrics.DataFramesTotal.WithLabelValues(s.cfg.Name, p.Type.String(), "rx").Inc()
	s.sendAck(p.Seq)
}

func (s *Station) sendAck(seq uint32) {
	s.port.Send(packet.NewAck(seq))
}

func (s *Station) sendNak(seq uint32) {
	s.naksSent.Add(1)
	metrics.ArqNaksTotal.WithLabelValues(s.cfg.Name, "sent").Inc()
	s.port.Send(packet.NewNak(seq))
}
