// Package ground implements the ground-station application: a schedule-driven
// command uplink and a CSV telemetry recorder.
package ground

import (
	"math/rand"
	"time"

	"firestige.xyz/satlink/internal/command"
	"firestige.xyz/satlink/internal/log"
	"firestige.xyz/satlink/internal/packet"
	"firestige.xyz/satlink/internal/telemetry"
)

// Config parameterizes the ground-station application.
type Config struct {
	// TelemetryCSV is the path of the telemetry log.
	TelemetryCSV string `mapstructure:"telemetry_csv"`
	// ScheduleFile optionally replaces the default command schedule.
	ScheduleFile string `mapstructure:"schedule_file"`
	// Seed drives randomized schedule parameters.
	Seed uint64 `mapstructure:"seed"`
}

// Ground is the application layer behind the ground station's ARQ station.
// State is touched only by the station worker goroutine.
type Ground struct {
	rng      *rand.Rand
	log      log.Logger
	recorder *Recorder

	schedule  []Entry
	lastFired []float64
	started   time.Time

	pending []command.Command
}

// New wires the recorder and schedule. The rng is offset from the session
// seed so satellite and ground draw independent streams.
func New(cfg Config, schedule []Entry, recorder *Recorder) *Ground {
	g := &Ground{
		rng:       rand.New(rand.NewSource(int64(cfg.Seed) + 1000)),
		log:       log.GetLogger().WithField("station", "ground"),
		recorder:  recorder,
		schedule:  schedule,
		lastFired: make([]float64, len(schedule)),
	}
	return g
}

// Tick walks the schedule and queues commands whose window and period are due.
func (g *Ground) Tick(time.Duration) {
	now := time.Now()
	if g.started.IsZero() {
		g.started = now
	}
	elapsed := now.Sub(g.started).Seconds()

	for i, e := range g.schedule {
		if elapsed < e.AtSec || elapsed >= e.UntilSec {
			continue
		}
		if elapsed-g.lastFired[i] < e.EverySec {
			continue
		}
		g.lastFired[i] = elapsed

		cmd, err := buildCommand(e, g.rng)
		if err != nil {
			// LoadSchedule validated the entry; reaching this is a bug.
			g.log.WithError(err).Errorf("unbuildable schedule entry %d", i)
			continue
		}
		g.pending = append(g.pending, cmd)
	}
}

// Outbound hands the oldest queued command to the station.
func (g *Ground) Outbound() (packet.Type, []byte, bool) {
	if len(g.pending) == 0 {
		return 0, nil, false
	}
	cmd := g.pending[0]
	g.pending = g.pending[1:]

	g.log.Infof("TX command %s", cmd.Kind)
	return packet.TypeCommand, cmd.Encode(), true
}

// HandleData records one telemetry frame. Parse errors propagate so the
// station answers with a NAK.
func (g *Ground) HandleData(payload []byte) error {
	t, err := telemetry.Decode(payload)
	if err != nil {
		return err
	}

	g.log.Debugf("RX telemetry temp=%.1fC batt=%.1f%% alt=%.1fkm", t.TemperatureC, t.BatteryPct, t.AltitudeKM)

	if g.recorder != nil {
		if err := g.recorder.Record(t); err != nil {
			// Recording is best-effort; the frame was still delivered, so
			// the satellite must not see a NAK for a full local disk.
			g.log.WithError(err).Error("failed to record telemetry")
		}
	}
	return nil
}
