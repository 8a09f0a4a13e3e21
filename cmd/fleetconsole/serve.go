package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fleetconsole/internal/config"
	"fleetconsole/internal/console"
	"fleetconsole/internal/logging"
	"fleetconsole/internal/server"
	"fleetconsole/internal/store"
	"fleetconsole/internal/tracker"
)

var (
	serveConfigPath string
	serveSchemaPath string
	serveAddr       string
	serveTUI        bool
	serveLogFile    string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fleet console",
	Long:  "serve starts the drone registry API, the tracking session, and optionally the operator TUI.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New()

		cfg := config.Default()
		if serveConfigPath != "" {
			schema := config.LocateSchema(serveConfigPath, serveSchemaPath)
			if schema == "" && serveSchemaPath != "" {
				log.Warn("schema file not found, skipping config validation", "schema", serveSchemaPath)
			}
			loaded, err := config.Load(serveConfigPath, schema)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		if serveAddr != "" {
			cfg.Server.ListenAddr = serveAddr
		}

		st, err := store.Open(cfg.Storage.RegistryDB)
		if err != nil {
			return err
		}

		logFile := serveLogFile
		if logFile == "" {
			logFile = cfg.Storage.LogFile
		}
		writer, cleanup, err := newWriters(serveTUI, logFile, log)
		if err != nil {
			return err
		}
		defer cleanup()

		session := tracker.New(cfg, nil, writer, log)
		defer session.Close()

		srv := server.New(st, session, log)
		go func() {
			if err := srv.Listen(cfg.Server.ListenAddr); err != nil {
				log.Error("http server failed", "error", err)
				if proc, perr := os.FindProcess(os.Getpid()); perr == nil {
					_ = proc.Signal(os.Interrupt)
				}
			}
		}()

		var tui *console.Console
		if serveTUI {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("--tui needs an interactive terminal")
			}
			tui = console.New(session)
		}

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		if tui != nil {
			_ = tui.Close()
		}
		_ = srv.Shutdown()
		log.Info("fleet console stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to console configuration YAML")
	serveCmd.Flags().StringVar(&serveSchemaPath, "schema", "schemas/console.cue", "Path to CUE schema file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveTUI, "tui", false, "Render the operator TUI")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Path to export flight logs (JSONL)")
}
