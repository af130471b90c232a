// Package sim assembles the link and both stations and runs one session.
package sim

import (
	"context"
	"fmt"
	"time"

	"firestige.xyz/satlink/internal/arq"
	"firestige.xyz/satlink/internal/config"
	"firestige.xyz/satlink/internal/ground"
	"firestige.xyz/satlink/internal/link"
	"firestige.xyz/satlink/internal/log"
	"firestige.xyz/satlink/internal/metrics"
	"firestige.xyz/satlink/internal/packet"
	"firestige.xyz/satlink/internal/sat"
)

// Report collects the counters of one finished session.
type Report struct {
	Satellite arq.Stats
	Ground    arq.Stats

	LinkSent      uint64
	LinkDropped   uint64
	LinkDelivered uint64

	SatelliteState sat.State
}

// Run executes one simulation session: build everything, start both
// stations, sleep for the configured duration, stop, report.
func Run(cfg *config.Config) (*Report, error) {
	logger := log.GetLogger()

	var server *metrics.Server
	if cfg.Metrics.Enabled {
		server = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := server.Start(); err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Stop(ctx)
		}()
	}

	l := link.New(cfg.Link)

	schedule := ground.DefaultSchedule()
	if cfg.Ground.ScheduleFile != "" {
		var err error
		if schedule, err = ground.LoadSchedule(cfg.Ground.ScheduleFile); err != nil {
			return nil, err
		}
	}

	recorder, err := ground.NewRecorder(cfg.Ground.TelemetryCSV)
	if err != nil {
		return nil, err
	}
	defer recorder.Close()

	ackTimeout := time.Duration(cfg.ARQ.AckTimeoutMS) * time.Millisecond

	satApp := sat.New(cfg.Satellite)
	satStation := arq.NewStation(arq.Config{
		Name:       "satellite",
		DataType:   packet.TypeCommand,
		AckTimeout: ackTimeout,
		MaxRetries: cfg.ARQ.MaxRetries,
	}, l.SatSide(), satApp)

	groundApp := ground.New(cfg.Ground, schedule, recorder)
	groundStation := arq.NewStation(arq.Config{
		Name:       "ground",
		DataType:   packet.TypeTelemetry,
		AckTimeout: ackTimeout,
		MaxRetries: cfg.ARQ.MaxRetries,
	}, l.GroundSide(), groundApp)

	logger.WithFields(map[string]interface{}{
		"duration": cfg.Duration.String(),
		"loss":     cfg.Link.LossProb,
		"latency":  fmt.Sprintf("%dms±%dms", cfg.Link.LatencyMS, cfg.Link.JitterMS),
		"seed":     cfg.Seed,
	}).Info("starting session")

	satStation.Start()
	groundStation.Start()

	time.Sleep(cfg.Duration)

	logger.Info("stopping session")
	satStation.Stop()
	groundStation.Stop()

	report := &Report{
		Satellite:      satStation.Stats(),
		Ground:         groundStation.Stats(),
		LinkSent:       l.FramesSent(),
		LinkDropped:    l.FramesDropped(),
		LinkDelivered:  l.FramesDelivered(),
		SatelliteState: satApp.State(),
	}
	logReport(logger, report)

	return report, nil
}

func logReport(logger log.Logger, r *Report) {
	logger.WithFields(map[string]interface{}{
		"telemetry_sent":    r.Satellite.DataSent,
		"commands_received": r.Satellite.DataReceived,
		"retries":           r.Satellite.Retries,
		"naks_received":     r.Satellite.NaksReceived,
		"safe_mode":         r.SatelliteState.SafeMode,
	}).Info("satellite session totals")

	logger.WithFields(map[string]interface{}{
		"telemetry_received": r.Ground.DataReceived,
		"commands_sent":      r.Ground.DataSent,
		"retries":            r.Ground.Retries,
		"naks_sent":          r.Ground.NaksSent,
		"duplicates":         r.Ground.Duplicates,
	}).Info("ground session totals")

	dropRate := 0.0
	if r.LinkSent > 0 {
		dropRate = 100.0 * float64(r.LinkDropped) / float64(r.LinkSent)
	}
	logger.WithFields(map[string]interface{}{
		"frames_sent":      r.LinkSent,
		"frames_dropped":   r.LinkDropped,
		"frames_delivered": r.LinkDelivered,
		"drop_rate_pct":    fmt.Sprintf("%.2f", dropRate),
	}).Info("link session totals")
}
