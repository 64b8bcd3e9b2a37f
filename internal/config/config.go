// Package config loads the persistence layer's settings from a config
// file, environment variables, and defaults, in that order of priority
// reversed (env overrides file, file overrides defaults).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// keyReplacer maps config keys like sync.interval to env names like
// FLIGHTMODE_SYNC_INTERVAL.
var keyReplacer = strings.NewReplacer(".", "_")

const (
	configName = "config"
	configType = "yaml"
	configDir  = ".flightmode"
	envPrefix  = "FLIGHTMODE"

	dataDirKey         = "data.dir"
	remoteBaseURLKey   = "remote.base_url"
	remoteTokenKey     = "remote.token"
	userIDKey          = "user.id"
	syncIntervalKey    = "sync.interval"
	probeURLKey        = "sync.probe_url"
	probeIntervalKey   = "sync.probe_interval"
	dashboardPortKey   = "dashboard.port"
	logFileKey         = "log.file"
	logMaxSizeMBKey    = "log.max_size_mb"
	logMaxBackupsKey   = "log.max_backups"
	logMaxAgeDaysKey   = "log.max_age_days"
	defaultProbeURL    = "https://www.google.com/generate_204"
	defaultPort        = 8484
	defaultMaxSizeMB   = 10
	defaultMaxBackups  = 3
	defaultMaxAgeDays  = 28
	defaultSyncEvery   = 5 * time.Minute
	defaultProbeEvery  = 30 * time.Second
)

// Config is the resolved application configuration.
type Config struct {
	// DataDir holds the local store files.
	DataDir string

	// RemoteBaseURL is the document store endpoint; empty disables sync.
	RemoteBaseURL string

	// RemoteToken is the bearer token for the document store, if any.
	RemoteToken string

	// UserID is the configured identity for sync runs.
	UserID string

	// SyncInterval is the periodic sync cadence.
	SyncInterval time.Duration

	// ProbeURL and ProbeInterval drive the connectivity monitor.
	ProbeURL      string
	ProbeInterval time.Duration

	// DashboardPort is where the WebSocket dashboard listens.
	DashboardPort int

	// LogFile enables rotating file logs when set; empty logs to stderr.
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

// Load resolves the configuration. A missing config file is fine; a
// malformed one is not.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	defaultDataDir := filepath.Join(homeDir, configDir)

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(defaultDataDir)
	v.AddConfigPath(".")

	v.SetDefault(dataDirKey, defaultDataDir)
	v.SetDefault(remoteBaseURLKey, "")
	v.SetDefault(remoteTokenKey, "")
	v.SetDefault(userIDKey, "")
	v.SetDefault(syncIntervalKey, defaultSyncEvery)
	v.SetDefault(probeURLKey, defaultProbeURL)
	v.SetDefault(probeIntervalKey, defaultProbeEvery)
	v.SetDefault(dashboardPortKey, defaultPort)
	v.SetDefault(logFileKey, "")
	v.SetDefault(logMaxSizeMBKey, defaultMaxSizeMB)
	v.SetDefault(logMaxBackupsKey, defaultMaxBackups)
	v.SetDefault(logMaxAgeDaysKey, defaultMaxAgeDays)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(keyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		DataDir:       v.GetString(dataDirKey),
		RemoteBaseURL: v.GetString(remoteBaseURLKey),
		RemoteToken:   v.GetString(remoteTokenKey),
		UserID:        v.GetString(userIDKey),
		SyncInterval:  v.GetDuration(syncIntervalKey),
		ProbeURL:      v.GetString(probeURLKey),
		ProbeInterval: v.GetDuration(probeIntervalKey),
		DashboardPort: v.GetInt(dashboardPortKey),
		LogFile:       v.GetString(logFileKey),
		LogMaxSizeMB:  v.GetInt(logMaxSizeMBKey),
		LogMaxBackups: v.GetInt(logMaxBackupsKey),
		LogMaxAgeDays: v.GetInt(logMaxAgeDaysKey),
	}

	if cfg.DataDir == "" {
		return nil, errors.New("data dir is empty")
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = defaultSyncEvery
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeEvery
	}

	return cfg, nil
}
