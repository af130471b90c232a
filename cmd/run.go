package cmd

import (
	"github.com/spf13/cobra"

	"firestige.xyz/satlink/internal/config"
	"firestige.xyz/satlink/internal/log"
	"firestige.xyz/satlink/internal/sim"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one simulation session",
	Long: `Run one simulation session and print the session totals.

Examples:
  satlink run                          # built-in defaults, 20s session
  satlink run -c config.yaml           # explicit config
  satlink run --duration 1m --loss 0.2 # flag overrides
  satlink run --seed 7 --verbose`,
	Run: func(cmd *cobra.Command, args []string) {
		runSession(cmd)
	},
}

func init() {
	runCmd.Flags().Duration("duration", 0, "session duration (overrides config)")
	runCmd.Flags().Uint64("seed", 0, "RNG seed (overrides config)")
	runCmd.Flags().Float64("loss", -1, "packet loss probability 0..1 (overrides config)")
	runCmd.Flags().Int("latency-ms", -1, "mean link latency in ms (overrides config)")
	runCmd.Flags().Int("jitter-ms", -1, "latency jitter in ms (overrides config)")
	runCmd.Flags().Bool("verbose", false, "log at debug level")
	rootCmd.AddCommand(runCmd)
}

func runSession(cmd *cobra.Command) {
	cfg, err := config.Load(configFile)
	if err != nil {
		exitWithError("invalid configuration", err)
	}
	applyOverrides(cmd, cfg)

	if err := log.Init(cfg.Log); err != nil {
		exitWithError("invalid log configuration", err)
	}

	if _, err := sim.Run(cfg); err != nil {
		exitWithError("session failed", err)
	}
}

// applyOverrides folds explicitly-set flags over the loaded config and
// re-validates, so flag values face the same checks as file values.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("duration") {
		d, _ := cmd.Flags().GetDuration("duration")
		cfg.Duration = d
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	if cmd.Flags().Changed("loss") {
		cfg.Link.LossProb, _ = cmd.Flags().GetFloat64("loss")
	}
	if cmd.Flags().Changed("latency-ms") {
		cfg.Link.LatencyMS, _ = cmd.Flags().GetInt("latency-ms")
	}
	if cmd.Flags().Changed("jitter-ms") {
		cfg.Link.JitterMS, _ = cmd.Flags().GetInt("jitter-ms")
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		cfg.Log.Level = "debug"
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		exitWithError("invalid configuration", err)
	}
}
