package main

import (
	"log/slog"
	"os"

	"fleetconsole/internal/flightlog"
)

// newWriters picks the flight log sinks from env vars and flags. quiet drops
// the stdout fallback so JSON lines never bleed into the TUI's screen.
func newWriters(quiet bool, logFile string, log *slog.Logger) (flightlog.TelemetryWriter, func(), error) {
	cleanup := func() {}

	var writers []flightlog.TelemetryWriter
	if endpoint := os.Getenv("GREPTIMEDB_ENDPOINT"); endpoint != "" {
		table := os.Getenv("GREPTIMEDB_TABLE")
		gw, err := flightlog.NewGreptimeDBWriter(endpoint, "public", table, log)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, gw)
	} else if !quiet {
		writers = append(writers, flightlog.NewJSONStdoutWriter())
	}

	if logFile != "" {
		fw, err := flightlog.NewFileWriter(logFile)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { fw.Close() }
		writers = append(writers, fw)
	}

	switch len(writers) {
	case 0:
		return nil, cleanup, nil
	case 1:
		return writers[0], cleanup, nil
	default:
		return flightlog.NewMultiWriter(writers...), cleanup, nil
	}
}
