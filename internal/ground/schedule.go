package ground

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"firestige.xyz/satlink/internal/command"
)

// Entry is one timed rule in the command schedule: while the session clock
// is inside [at_sec, until_sec), emit the command every every_sec seconds.
type Entry struct {
	Command  string         `yaml:"command"`
	AtSec    float64        `yaml:"at_sec"`
	UntilSec float64        `yaml:"until_sec"`
	EverySec float64        `yaml:"every_sec"`
	Params   map[string]any `yaml:"params"`
}

type scheduleFile struct {
	Schedule []Entry `yaml:"schedule"`
}

// orientationParams parameterize ADJUST_ORIENTATION entries. Fixed deltas
// and a random range are mutually exclusive in spirit; when the range is
// set, it wins.
type orientationParams struct {
	RandomAngleRange float64 `mapstructure:"random_angle_range"`
	DPitch           float64 `mapstructure:"d_pitch"`
	DYaw             float64 `mapstructure:"d_yaw"`
	DRoll            float64 `mapstructure:"d_roll"`
}

type burnParams struct {
	BurnSeconds float64 `mapstructure:"burn_seconds"`
}

// LoadSchedule reads a YAML command schedule.
func LoadSchedule(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file %s: %w", path, err)
	}

	var f scheduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse schedule file %s: %w", path, err)
	}
	if len(f.Schedule) == 0 {
		return nil, fmt.Errorf("schedule file %s contains no entries", path)
	}

	// Validate eagerly so a bad entry fails the run, not tick 400.
	rng := rand.New(rand.NewSource(0))
	for i, e := range f.Schedule {
		if _, err := buildCommand(e, rng); err != nil {
			return nil, fmt.Errorf("schedule entry %d: %w", i, err)
		}
		if e.EverySec <= 0 {
			return nil, fmt.Errorf("schedule entry %d: every_sec must be > 0", i)
		}
	}

	return f.Schedule, nil
}

// DefaultSchedule reproduces the stock mission profile: random orientation
// trims during the first eight seconds, then two-second thrust burns from
// eight to twelve seconds, one command every four seconds.
func DefaultSchedule() []Entry {
	return []Entry{
		{
			Command:  "ADJUST_ORIENTATION",
			AtSec:    0,
			UntilSec: 8,
			EverySec: 4,
			Params:   map[string]any{"random_angle_range": 2.0},
		},
		{
			Command:  "THRUST_BURN",
			AtSec:    8,
			UntilSec: 12,
			EverySec: 4,
			Params:   map[string]any{"burn_seconds": 2.0},
		},
	}
}

// buildCommand materializes a schedule entry into a concrete command,
// sampling any randomized parameters from rng.
func buildCommand(e Entry, rng *rand.Rand) (command.Command, error) {
	switch e.Command {
	case command.AdjustOrientation.String():
		var p orientationParams
		if err := mapstructure.Decode(e.Params, &p); err != nil {
			return command.Command{}, fmt.Errorf("bad params for %s: %w", e.Command, err)
		}
		cmd := command.Command{Kind: command.AdjustOrientation, DPitch: p.DPitch, DYaw: p.DYaw, DRoll: p.DRoll}
		if p.RandomAngleRange > 0 {
			cmd.DPitch = (rng.Float64()*2 - 1) * p.RandomAngleRange
			cmd.DYaw = (rng.Float64()*2 - 1) * p.RandomAngleRange
			cmd.DRoll = (rng.Float64()*2 - 1) * p.RandomAngleRange
		}
		return cmd, nil

	case command.ThrustBurn.String():
		var p burnParams
		if err := mapstructure.Decode(e.Params, &p); err != nil {
			return command.Command{}, fmt.Errorf("bad params for %s: %w", e.Command, err)
		}
		if p.BurnSeconds <= 0 {
			return command.Command{}, fmt.Errorf("%s needs burn_seconds > 0", e.Command)
		}
		return command.Command{Kind: command.ThrustBurn, BurnSeconds: p.BurnSeconds}, nil

	case command.EnterSafeMode.String():
		return command.Command{Kind: command.EnterSafeMode}, nil

	case command.Reboot.String():
		return command.Command{Kind: command.Reboot}, nil

	default:
		return command.Command{}, fmt.Errorf("unknown command %q", e.Command)
	}
}
