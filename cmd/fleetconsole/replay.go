package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fleetconsole/internal/flightlog"
	"fleetconsole/internal/logging"
)

var (
	replayInput string
	replaySpeed float64
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a flight log file",
	Long:  "replay feeds flight log rows from a JSONL file back into GreptimeDB or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		writer, cleanup, err := newWriters(false, "", logging.New())
		if err != nil {
			return err
		}
		defer cleanup()
		return flightlog.ReplayLogFile(replayInput, writer, replaySpeed)
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to flight log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.MarkFlagRequired("input")
}
