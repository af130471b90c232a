// Package link simulates the bidirectional radio link between the satellite
// and the ground station. It injects seeded, reproducible impairments:
// Bernoulli packet loss and Gaussian latency jitter.
package link

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"firestige.xyz/satlink/internal/metrics"
	"firestige.xyz/satlink/internal/packet"
)

// Direction names one side of the bidirectional link.
type Direction string

const (
	SatToGround Direction = "sat_to_ground"
	GroundToSat Direction = "ground_to_sat"
)

// Config controls the impairment model.
type Config struct {
	// LatencyMS is the mean one-way latency in milliseconds.
	LatencyMS int `mapstructure:"latency_ms"`
	// JitterMS is the standard deviation of the Gaussian jitter around the mean.
	JitterMS int `mapstructure:"jitter_ms"`
	// LossProb is the per-frame drop probability in [0,1].
	LossProb float64 `mapstructure:"loss_prob"`
	// Seed drives the shared RNG. The same seed with the same submission
	// order reproduces the same loss and delay decisions.
	Seed uint64 `mapstructure:"seed"`
	// QueueDepth bounds each directional FIFO; 0 selects the default.
	QueueDepth int `mapstructure:"queue_depth"`
}

// Link is the impairment channel. Both directions share one seeded RNG
// guarded by a mutex; every draw happens under the lock so a fixed
// submission order yields a fixed decision sequence.
type Link struct {
	cfg Config

	rngMu sync.Mutex
	rng   *rand.Rand

	satToGround *Queue
	groundToSat *Queue

	sent      atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// New creates a link with the given impairment config.
func New(cfg Config) *Link {
	return &Link{
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(int64(cfg.Seed))),
		satToGround: NewQueue(cfg.QueueDepth),
		groundToSat: NewQueue(cfg.QueueDepth),
	}
}

// SendSatToGround submits a frame on the downlink. The caller's goroutine
// absorbs the latency sleep before the frame becomes visible to the receiver.
func (l *Link) SendSatToGround(p *packet.Packet) {
	l.impairAndDeliver(p, l.satToGround, SatToGround)
}

// RecvSatToGround receives the oldest downlink frame, waiting up to timeout.
// A zero timeout is a non-blocking poll.
func (l *Link) RecvSatToGround(timeout time.Duration) (*packet.Packet, bool) {
	return l.satToGround.Pop(timeout)
}

// SendGroundToSat submits a frame on the uplink.
func (l *Link) SendGroundToSat(p *packet.Packet) {
	l.impairAndDeliver(p, l.groundToSat, GroundToSat)
}

// RecvGroundToSat receives the oldest uplink frame, waiting up to timeout.
func (l *Link) RecvGroundToSat(timeout time.Duration) (*packet.Packet, bool) {
	return l.groundToSat.Pop(timeout)
}

// impairAndDeliver applies the loss and latency model, then enqueues the
// frame. Frames are delivered in the order their sleeps expire, not the
// order they were submitted; upper layers tolerate this via sequence numbers.
func (l *Link) impairAndDeliver(p *packet.Packet, q *Queue, dir Direction) {
	l.sent.Add(1)
	metrics.LinkFramesTotal.WithLabelValues(string(dir)).Inc()

	lost, delay := l.draw()
	if lost {
		l.dropped.Add(1)
		metrics.LinkDropsTotal.WithLabelValues(string(dir)).Inc()
		return
	}

	if delay > 0 {
		time.Sleep(delay)
	}
	q.Push(p)
	l.delivered.Add(1)
	metrics.LinkDeliveredTotal.WithLabelValues(string(dir)).Inc()
}

// draw samples the loss decision and, for surviving frames, the delay.
// Both samples come from the shared RNG under the lock.
func (l *Link) draw() (lost bool, delay time.Duration) {
	l.rngMu.Lock()
	defer l.rngMu.Unlock()

	if l.rng.Float64() < l.cfg.LossProb {
		return true, 0
	}

	d := float64(l.cfg.LatencyMS) + l.rng.NormFloat64()*float64(l.cfg.JitterMS)
	if d < 0 {
		d = 0
	}
	return false, time.Duration(d * float64(time.Millisecond))
}

// FramesSent reports frames submitted on either direction, dropped or not.
func (l *Link) FramesSent() uint64 { return l.sent.Load() }

// FramesDropped reports frames lost to the Bernoulli drop model.
func (l *Link) FramesDropped() uint64 { return l.dropped.Load() }

// FramesDelivered reports frames that reached a directional FIFO.
func (l *Link) FramesDelivered() uint64 { return l.delivered.Load() }
