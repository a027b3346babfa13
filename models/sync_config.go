package models

import (
	"os"
	"strconv"
	"time"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Sync Configuration
//
// Loads sync settings from environment variables. When NOTEKEEP_SYNC_ENABLED
// is true, the app wires up the sync engine and the network watcher that
// triggers a cycle whenever connectivity returns.
// ============================================================================

// SyncConfig holds the configuration for the sync engine.
// All values are loaded from environment variables to keep
// deployment configuration external to the binary.
type SyncConfig struct {
	Enabled        bool          // Whether sync is active (NOTEKEEP_SYNC_ENABLED)
	HubURL         string        // Base URL of the hub (NOTEKEEP_SYNC_HUB_URL)
	Username       string        // Authentication username (NOTEKEEP_SYNC_USERNAME)
	Password       string        // Authentication password (NOTEKEEP_SYNC_PASSWORD)
	OfflineEnabled bool          // Advertise offline availability on pushed notes (NOTEKEEP_SYNC_OFFLINE)
	ProbeInterval  time.Duration // Connectivity probe interval (NOTEKEEP_SYNC_PROBE_INTERVAL)
	ResyncDelay    time.Duration // Settle time before syncing after connectivity returns (NOTEKEEP_SYNC_RESYNC_DELAY)
}

// Defaults when the corresponding variables are not set. Ten seconds of
// probing notices a restored link quickly without meaningful overhead; the
// two second delay lets flapping links settle before we burn a cycle.
const (
	defaultProbeInterval = 10 * time.Second
	defaultResyncDelay   = 2 * time.Second
)

// LoadSyncConfig reads sync configuration from environment variables.
// Returns a config even when sync is disabled so callers can inspect
// the state without nil checks.
func LoadSyncConfig() (*SyncConfig, error) {
	cfg := &SyncConfig{
		OfflineEnabled: true,
		ProbeInterval:  defaultProbeInterval,
		ResyncDelay:    defaultResyncDelay,
	}

	// Parse enabled flag — defaults to false (opt-in design)
	if enabledStr := os.Getenv("NOTEKEEP_SYNC_ENABLED"); enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return nil, serr.Wrap(err, "invalid NOTEKEEP_SYNC_ENABLED value, expected true/false")
		}
		cfg.Enabled = enabled
	}

	cfg.HubURL = os.Getenv("NOTEKEEP_SYNC_HUB_URL")
	cfg.Username = os.Getenv("NOTEKEEP_SYNC_USERNAME")
	cfg.Password = os.Getenv("NOTEKEEP_SYNC_PASSWORD")

	if offlineStr := os.Getenv("NOTEKEEP_SYNC_OFFLINE"); offlineStr != "" {
		offline, err := strconv.ParseBool(offlineStr)
		if err != nil {
			return nil, serr.Wrap(err, "invalid NOTEKEEP_SYNC_OFFLINE value, expected true/false")
		}
		cfg.OfflineEnabled = offline
	}

	if probeStr := os.Getenv("NOTEKEEP_SYNC_PROBE_INTERVAL"); probeStr != "" {
		probe, err := time.ParseDuration(probeStr)
		if err != nil {
			return nil, serr.Wrap(err, "invalid NOTEKEEP_SYNC_PROBE_INTERVAL value, expected duration like '10s'")
		}
		cfg.ProbeInterval = probe
	}

	if delayStr := os.Getenv("NOTEKEEP_SYNC_RESYNC_DELAY"); delayStr != "" {
		delay, err := time.ParseDuration(delayStr)
		if err != nil {
			return nil, serr.Wrap(err, "invalid NOTEKEEP_SYNC_RESYNC_DELAY value, expected duration like '2s'")
		}
		cfg.ResyncDelay = delay
	}

	return cfg, nil
}

// Validate checks that all required fields are present when sync is enabled.
// Called before starting the sync engine to fail fast on misconfiguration
// rather than discovering missing credentials mid-cycle.
func (c *SyncConfig) Validate() error {
	if !c.Enabled {
		return nil // Nothing to validate when sync is disabled
	}

	if c.HubURL == "" {
		return serr.New("NOTEKEEP_SYNC_HUB_URL is required when sync is enabled")
	}
	if c.Username == "" {
		return serr.New("NOTEKEEP_SYNC_USERNAME is required when sync is enabled")
	}
	if c.Password == "" {
		return serr.New("NOTEKEEP_SYNC_PASSWORD is required when sync is enabled")
	}
	if c.ProbeInterval < time.Second {
		return serr.New("NOTEKEEP_SYNC_PROBE_INTERVAL must be at least 1s")
	}

	return nil
}
