// Package sat implements the satellite application: physical-state
// simulation, periodic telemetry emission and command execution.
package sat

import (
	"math/rand"
	"time"

	"firestige.xyz/satlink/internal/command"
	"firestige.xyz/satlink/internal/log"
	"firestige.xyz/satlink/internal/packet"
	"firestige.xyz/satlink/internal/telemetry"
)

// Config parameterizes the satellite application.
type Config struct {
	// TelemetryRateHz is the emission rate; the period is 1000/rate ms.
	TelemetryRateHz float64 `mapstructure:"telemetry_rate_hz"`
	// Seed drives the physical-state random walk.
	Seed uint64 `mapstructure:"seed"`
}

// Thresholds that force safe mode.
const (
	maxTemperatureC = 85.0
	minBatteryPct   = 10.0
)

// Satellite is the application layer behind the satellite's ARQ station.
// All state is touched only by the station worker goroutine.
type Satellite struct {
	cfg    Config
	rng    *rand.Rand
	log    log.Logger
	period time.Duration

	lastEmit time.Time
	safeMode bool

	temperatureC float64
	batteryPct   float64
	altitudeKM   float64
	pitchDeg     float64
	yawDeg       float64
	rollDeg      float64
}

// New creates a satellite in its initial orbit.
func New(cfg Config) *Satellite {
	return &Satellite{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(int64(cfg.Seed))),
		log:    log.GetLogger().WithField("station", "satellite"),
		period: time.Duration(1000.0/cfg.TelemetryRateHz) * time.Millisecond,

		temperatureC: 50.0,
		batteryPct:   90.0,
		altitudeKM:   400.0,
	}
}

// Tick advances the physical state by dt and checks for anomalies.
func (s *Satellite) Tick(dt time.Duration) {
	s.updateState(dt.Seconds())
	s.checkAnomalies()
}

// Outbound emits one telemetry frame per period.
func (s *Satellite) Outbound() (packet.Type, []byte, bool) {
	now := time.Now()
	if s.lastEmit.IsZero() {
		s.lastEmit = now
	}
	if now.Sub(s.lastEmit) < s.period {
		return 0, nil, false
	}
	s.lastEmit = now

	t := telemetry.Telemetry{
		TimestampNS:  now.UnixNano(),
		TemperatureC: s.temperatureC,
		BatteryPct:   s.batteryPct,
		AltitudeKM:   s.altitudeKM,
		PitchDeg:     s.pitchDeg,
		YawDeg:       s.yawDeg,
		RollDeg:      s.rollDeg,
	}
	s.log.Debugf("TX telemetry temp=%.1fC batt=%.1f%% alt=%.1fkm euler=(%.1f,%.1f,%.1f)%s",
		s.temperatureC, s.batteryPct, s.altitudeKM, s.pitchDeg, s.yawDeg, s.rollDeg, s.safeModeTag())

	return packet.TypeTelemetry, t.Encode(), true
}

// HandleData executes one uplinked command. Parse errors propagate so the
// station answers with a NAK.
func (s *Satellite) HandleData(payload []byte) error {
	cmd, err := command.Decode(payload)
	if err != nil {
		return err
	}
	s.execute(cmd)
	return nil
}

func (s *Satellite) execute(cmd command.Command) {
	switch cmd.Kind {
	case command.AdjustOrientation:
		s.pitchDeg += cmd.DPitch
		s.yawDeg += cmd.DYaw
		s.rollDeg += cmd.DRoll
		s.log.Infof("CMD %s d=(%.1f,%.1f,%.1f) applied", cmd.Kind, cmd.DPitch, cmd.DYaw, cmd.DRoll)

	case command.ThrustBurn:
		if s.safeMode {
			s.log.Warnf("CMD %s blocked by safe mode", cmd.Kind)
			return
		}
		s.altitudeKM += cmd.BurnSeconds * 0.5
		s.batteryPct -= cmd.BurnSeconds * 2.0
		s.log.Infof("CMD %s t=%.1fs applied", cmd.Kind, cmd.BurnSeconds)

	case command.EnterSafeMode:
		s.safeMode = true
		s.log.Warnf("CMD %s: safe mode enabled", cmd.Kind)

	case command.Reboot:
		// The bus stalls while systems restart; safe mode clears.
		time.Sleep(100 * time.Millisecond)
		s.safeMode = false
		s.log.Infof("CMD %s complete", cmd.Kind)
	}
}

// updateState applies temperature drift, battery drain, orbital decay and
// attitude drift for dt seconds. Out-of-range dt is discarded so a stalled
// worker does not jump the state.
func (s *Satellite) updateState(dt float64) {
	if dt <= 0 || dt > 1.0 {
		return
	}

	s.temperatureC += (s.rng.Float64() - 0.5) * dt

	drain := 0.1
	if s.safeMode {
		drain = 0.2
	}
	s.batteryPct -= drain * dt
	if s.batteryPct < 0 {
		s.batteryPct = 0
	}

	s.altitudeKM -= 0.001 * dt

	s.pitchDeg += (s.rng.Float64() - 0.5) * 0.1 * dt
	s.yawDeg += (s.rng.Float64() - 0.5) * 0.1 * dt
	s.rollDeg += (s.rng.Float64() - 0.5) * 0.1 * dt
}

func (s *Satellite) checkAnomalies() {
	if s.safeMode {
		return
	}
	if s.temperatureC > maxTemperatureC {
		s.safeMode = true
		s.log.Warn("entering safe mode: high temperature")
	} else if s.batteryPct < minBatteryPct {
		s.safeMode = true
		s.log.Warn("entering safe mode: low battery")
	}
}

func (s *Satellite) safeModeTag() string {
	if s.safeMode {
		return " [SAFE MODE]"
	}
	return ""
}

// State is a snapshot of the physical state, for reporting after Stop.
type State struct {
	SafeMode     bool
	TemperatureC float64
	BatteryPct   float64
	AltitudeKM   float64
	PitchDeg     float64
	YawDeg       float64
	RollDeg      float64
}

// State reads the current physical state. Only safe once the owning station
// has stopped.
func (s *Satellite) State() State {
	return State{
		SafeMode:     s.safeMode,
		TemperatureC: s.temperatureC,
		BatteryPct:   s.batteryPct,
		AltitudeKM:   s.altitudeKM,
		PitchDeg:     s.pitchDeg,
		YawDeg:       s.yawDeg,
		RollDeg:      s.rollDeg,
	}
}
