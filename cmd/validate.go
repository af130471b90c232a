package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/satlink/internal/config"
	"firestige.xyz/satlink/internal/ground"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file (and its command schedule, if one is
referenced) without running a session.

Examples:
  satlink validate -c config.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		runValidateCommand()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidateCommand() {
	cfg, err := config.Load(configFile)
	if err != nil {
		exitWithError("INVALID", err)
	}

	entries := len(ground.DefaultSchedule())
	if cfg.Ground.ScheduleFile != "" {
		schedule, err := ground.LoadSchedule(cfg.Ground.ScheduleFile)
		if err != nil {
			exitWithError("INVALID", err)
		}
		entries = len(schedule)
	}

	fmt.Printf("VALID: %s session, loss=%.2f latency=%dms±%dms, %d schedule entries\n",
		cfg.Duration, cfg.Link.LossProb, cfg.Link.LatencyMS, cfg.Link.JitterMS, entries)
}
