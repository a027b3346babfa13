package models

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rohanthewiz/logger"
)

// ============================================================================
// Network Watcher
//
// Polls a connectivity probe on a ticker and triggers a sync cycle shortly
// after an offline→online transition. The small resync delay lets a flapping
// link settle before we spend a cycle on it.
// ============================================================================

// ConnectivityProbe reports whether the hub is currently reachable.
type ConnectivityProbe func(ctx context.Context) bool

// NetworkWatcher drives the sync engine from connectivity transitions.
type NetworkWatcher struct {
	engine     *SyncEngine
	probe      ConnectivityProbe
	interval   time.Duration
	delay      time.Duration
	online     atomic.Bool
	cancelFunc context.CancelFunc
}

func NewNetworkWatcher(engine *SyncEngine, probe ConnectivityProbe, config *SyncConfig) *NetworkWatcher {
	return &NetworkWatcher{
		engine:   engine,
		probe:    probe,
		interval: config.ProbeInterval,
		delay:    config.ResyncDelay,
	}
}

// IsOnline returns the last probed connectivity state.
func (nw *NetworkWatcher) IsOnline() bool {
	return nw.online.Load()
}

// Start launches the watch loop. The first probe runs immediately so an
// app launched online syncs right away.
func (nw *NetworkWatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	nw.cancelFunc = cancel

	go nw.watchLoop(ctx)
	logger.Info("Network watcher started", "interval", nw.interval.String())
}

// Stop shuts down the watch loop.
func (nw *NetworkWatcher) Stop() {
	if nw.cancelFunc != nil {
		nw.cancelFunc()
	}
	logger.Info("Network watcher stopped")
}

func (nw *NetworkWatcher) watchLoop(ctx context.Context) {
	nw.check(ctx, true)

	ticker := time.NewTicker(nw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			nw.check(ctx, false)
		}
	}
}

// check probes once and syncs on an offline→online transition. The initial
// probe counts as a transition when it lands online, so startup syncs too.
func (nw *NetworkWatcher) check(ctx context.Context, initial bool) {
	nowOnline := nw.probe(ctx)
	wasOnline := nw.online.Swap(nowOnline)

	if !nowOnline {
		if wasOnline {
			logger.Info("Connectivity lost; sync paused")
		}
		return
	}
	if wasOnline && !initial {
		return // Still online, nothing to do
	}

	logger.Info("Connectivity restored; scheduling sync", "delay", nw.delay.String())

	select {
	case <-ctx.Done():
		return
	case <-time.After(nw.delay):
	}

	// Re-probe after the settle delay — a flap may have dropped again.
	if !nw.probe(ctx) {
		nw.online.Store(false)
		return
	}

	if err := nw.engine.Sync(ctx); err != nil {
		logger.LogErr(err, "sync after reconnect failed")
	}
}
