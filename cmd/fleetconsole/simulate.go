package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fleetconsole/internal/config"
	"fleetconsole/internal/fleet"
	"fleetconsole/internal/logging"
	"fleetconsole/internal/mission"
	"fleetconsole/internal/tracker"
)

var (
	simMissionPath string
	simName        string
	simTick        time.Duration
	simTicks       int
	simLogFile     string
)

// demoRoute is flown when no mission file is given.
var demoRoute = []mission.Point{
	{Lat: 48.2082, Lng: 16.3738, Label: "Launch pad"},
	{Lat: 48.2190, Lng: 16.3900},
	{Lat: 48.2255, Lng: 16.3750},
	{Lat: 48.2082, Lng: 16.3738, Label: "Launch pad"},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Fly one simulated mission and print its flight record",
	Long:  "simulate runs a single simulated flight headlessly, emitting telemetry until the mission completes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New()

		points := demoRoute
		if simMissionPath != "" {
			parsed, err := mission.ParseFile(simMissionPath)
			if err != nil {
				return err
			}
			points = parsed
		}

		cfg := config.Default()
		cfg.Tracking.TickInterval = config.Duration(simTick)
		if simTicks > 0 {
			cfg.Tracking.TicksPerSegment = simTicks
		}

		writer, cleanup, err := newWriters(false, simLogFile, log)
		if err != nil {
			return err
		}
		defer cleanup()

		session := tracker.New(cfg, nil, writer, log)
		defer session.Close()

		done := make(chan struct{}, 1)
		session.OnUpdate(func(snap fleet.Snapshot) {
			if snap.MissionComplete {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		})

		snap, err := session.Attach(tracker.AttachSpec{
			Name:   simName,
			Source: "simulate:" + simName,
			Mode:   fleet.ModeSimulated,
			Points: points,
		})
		if err != nil {
			return err
		}
		if len(snap.Mission) == 0 {
			return fmt.Errorf("mission has fewer than two valid waypoints, nothing to fly")
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-done:
		case <-sigs:
			log.Info("interrupted, reporting partial flight")
		}

		rec, err := session.Report(snap.ID)
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simMissionPath, "mission", "", "Path to mission file (JSON or YAML waypoints)")
	simulateCmd.Flags().StringVar(&simName, "name", "Demo Flight", "Display name of the simulated drone")
	simulateCmd.Flags().DurationVar(&simTick, "tick", 250*time.Millisecond, "Telemetry tick interval (e.g. 500ms, 2s)")
	simulateCmd.Flags().IntVar(&simTicks, "ticks-per-segment", 0, "Ticks per mission segment (0 uses the default)")
	simulateCmd.Flags().StringVar(&simLogFile, "log-file", "", "Path to export flight logs (JSONL)")
}
