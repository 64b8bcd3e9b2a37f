package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aadityasamani/FlightMode/internal/config"
	"github.com/aadityasamani/FlightMode/internal/connectivity"
	"github.com/aadityasamani/FlightMode/internal/identity"
	"github.com/aadityasamani/FlightMode/internal/remote"
	"github.com/aadityasamani/FlightMode/internal/store"
	"github.com/aadityasamani/FlightMode/internal/syncer"
)

var rootCmd = &cobra.Command{
	Use:   "fm",
	Short: "Offline-first focus session tracker",
	Long: `FlightMode tracks focus sessions locally and backs them up to a
remote document store when connectivity allows.

All writes land in the local store first and always succeed, online or
not. Completed sessions are pushed to the remote store by the sync
engine, which runs on demand (fm sync), on a schedule (fm daemon), or
whenever connectivity comes back.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "session", Title: "Session Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
}

// loadConfig resolves configuration or exits.
func loadConfig() *config.Config {
	cfg, err := config.Load(viper.New())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger returns a prefixed logger, routed through a rotating log
// file when one is configured.
func newLogger(cfg *config.Config, prefix string) *log.Logger {
	if cfg.LogFile == "" {
		return log.New(os.Stderr, prefix, log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
	}, prefix, log.LstdFlags)
}

// openStore opens the local store under the configured data directory.
func openStore(cfg *config.Config) store.Store {
	return store.Open(cfg.DataDir, newLogger(cfg, "[store] "))
}

// requireUserID resolves the acting user from the flag or config.
func requireUserID(cfg *config.Config, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg.UserID != "" {
		return cfg.UserID
	}
	fmt.Fprintf(os.Stderr, "Error: no user configured (set user.id or pass --user)\n")
	os.Exit(1)
	return ""
}

// buildEngine assembles the sync engine and its started connectivity
// monitor. The caller owns both and must Stop/Close them.
func buildEngine(cfg *config.Config, st store.Store, opts ...syncer.Option) (*syncer.Engine, *connectivity.ProbeMonitor) {
	if cfg.RemoteBaseURL == "" {
		fmt.Fprintf(os.Stderr, "Error: remote.base_url not configured, sync is disabled\n")
		os.Exit(1)
	}

	mon := connectivity.NewProbeMonitor(cfg.ProbeURL, cfg.ProbeInterval, newLogger(cfg, "[connectivity] "))
	if err := mon.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting connectivity monitor: %v\n", err)
		os.Exit(1)
	}

	rc := remote.NewHTTPClient(cfg.RemoteBaseURL, cfg.RemoteToken)
	idp := identity.Static{UserID: cfg.UserID}

	opts = append([]syncer.Option{syncer.WithLogger(newLogger(cfg, "[sync] "))}, opts...)
	return syncer.New(st, rc, mon, idp, opts...), mon
}
