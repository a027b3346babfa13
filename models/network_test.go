package models_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"notekeep/models"
)

// TestNetworkWatcherSyncsOnReconnect verifies the offline→online transition
// triggers a cycle after the settle delay.
func TestNetworkWatcherSyncsOnReconnect(t *testing.T) {
	cleanup := setupEngineTestDB(t, "network_reconnect")
	defer cleanup()

	ft := &fakeTransport{}
	engine := newTestEngine(t, ft, nil)

	var online atomic.Bool
	probe := func(ctx context.Context) bool { return online.Load() }

	cfg := &models.SyncConfig{
		Enabled:        true,
		HubURL:         "http://hub.test",
		Username:       "tester",
		Password:       "secret",
		OfflineEnabled: true,
		ProbeInterval:  10 * time.Millisecond,
		ResyncDelay:    time.Millisecond,
	}
	watcher := models.NewNetworkWatcher(engine, probe, cfg)
	watcher.Start(context.Background())
	defer watcher.Stop()

	// Give the watcher a few probe intervals while offline
	time.Sleep(50 * time.Millisecond)
	if watcher.IsOnline() {
		t.Error("expected watcher to report offline")
	}
	if _, pulls := ft.calls(); pulls != 0 {
		t.Fatalf("expected no cycles while offline, got %d pulls", pulls)
	}

	online.Store(true)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, pulls := ft.calls(); pulls > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expected a sync cycle after reconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !watcher.IsOnline() {
		t.Error("expected watcher to report online after reconnect")
	}

	// The pull was observed mid-cycle; wait for the cycle to finish before
	// the deferred cleanup closes the store out from under it.
	deadline = time.Now().Add(2 * time.Second)
	for engine.GetStatus().InProgress {
		if time.Now().After(deadline) {
			t.Fatal("sync cycle did not finish before teardown")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
