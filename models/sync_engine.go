package models

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Sync Engine
//
// The engine drives one full cycle: push pending local changes, then pull
// remote ones. Push runs first so this device's edits are accepted-or-
// conflicted against the hub before the hub's state lands locally.
//
// Design decisions:
//   - Single mutex, TryLock: the network watcher, the control API's
//     "sync now", and resolve-with-local can all request a cycle; whoever
//     loses the TryLock returns nil immediately rather than queueing.
//   - Offline is not an error: a cycle requested while unreachable is a
//     silent no-op. The network watcher retries when connectivity returns.
//   - Package-level singleton follows the var db / var cacheDB pattern.
// ============================================================================

// engineInstance is the package-level singleton for the sync engine.
var engineInstance *SyncEngine

// SyncEngine coordinates push/pull cycles against the hub.
type SyncEngine struct {
	config    *SyncConfig
	transport SyncTransport
	events    *EventBus
	online    func(ctx context.Context) bool

	syncMu     sync.Mutex  // Prevents concurrent sync cycles
	inProgress atomic.Bool // True while a cycle is running

	mu        sync.Mutex // Guards lastSync / lastError
	lastSync  time.Time
	lastError error
}

// SyncEngineStatus exposes sync state to callers without leaking internals.
type SyncEngineStatus struct {
	Enabled    bool       `json:"enabled"`
	InProgress bool       `json:"in_progress"`
	LastSync   *time.Time `json:"last_sync"` // nil if never synced
	LastError  string     `json:"last_error,omitempty"`
	Pending    int        `json:"pending"`
	Conflicts  int        `json:"conflicts"`
}

// NewSyncEngine builds an engine. The online probe decides whether a cycle
// attempts the network at all; pass nil to always attempt (tests do this).
func NewSyncEngine(config *SyncConfig, transport SyncTransport, events *EventBus, online func(ctx context.Context) bool) (*SyncEngine, error) {
	if err := config.Validate(); err != nil {
		return nil, serr.Wrap(err, "invalid sync config")
	}
	if events == nil {
		events = NewEventBus()
	}

	engine := &SyncEngine{
		config:    config,
		transport: transport,
		events:    events,
		online:    online,
	}

	engineInstance = engine
	return engine, nil
}

// GetSyncEngine returns the package-level engine instance.
// Returns nil if sync is not configured — callers must nil-check.
func GetSyncEngine() *SyncEngine {
	return engineInstance
}

// SetSyncEngine installs the package-level instance (used by tests).
func SetSyncEngine(engine *SyncEngine) {
	engineInstance = engine
}

// Events returns the engine's event bus for subscription.
func (se *SyncEngine) Events() *EventBus {
	return se.events
}

// Sync runs one push-then-pull cycle. Concurrent calls collapse: if a cycle
// is already running the call returns nil without doing anything. Offline is
// likewise a silent no-op. A real transport or storage failure is recorded,
// emitted as sync_error, and returned.
func (se *SyncEngine) Sync(ctx context.Context) error {
	if !se.syncMu.TryLock() {
		return nil // Another cycle is running; skip this one
	}
	defer se.syncMu.Unlock()

	if se.online != nil && !se.online(ctx) {
		return nil // Unreachable; the network watcher will retry
	}

	se.inProgress.Store(true)
	defer se.inProgress.Store(false)

	startedAt := time.Now().UTC()
	se.events.Emit(SyncEvent{Kind: EventSyncStart})

	pushed, pulled, err := se.runCycle(ctx)

	se.mu.Lock()
	se.lastSync = time.Now()
	se.lastError = err
	se.mu.Unlock()

	se.recordSyncCycle(startedAt, pushed, pulled, err)

	if err != nil {
		logger.LogErr(err, "sync cycle failed")
		se.events.Emit(SyncEvent{Kind: EventSyncError, Err: err})
		return err
	}

	logger.Info("Sync cycle completed", "pushed", pushed, "pulled", pulled)
	se.events.Emit(SyncEvent{Kind: EventSyncComplete})
	return nil
}

// runCycle does the actual work: push strictly before pull.
func (se *SyncEngine) runCycle(ctx context.Context) (pushed, pulled int, err error) {
	pushed, err = se.pushPending(ctx)
	if err != nil {
		return pushed, 0, serr.Wrap(err, "push failed")
	}

	pulled, err = se.pullChanges(ctx)
	if err != nil {
		return pushed, pulled, serr.Wrap(err, "pull failed")
	}

	return pushed, pulled, nil
}

// recordSyncCycle appends a row to the sync_cycles diagnostics table.
// Failures here are logged, never surfaced — diagnostics must not fail a sync.
func (se *SyncEngine) recordSyncCycle(startedAt time.Time, pushed, pulled int, cycleErr error) {
	status := "ok"
	errMsg := ""
	if cycleErr != nil {
		status = "error"
		errMsg = cycleErr.Error()
	}

	dt, err := BeginDualTx()
	if err != nil {
		logger.LogErr(err, "failed to record sync cycle")
		return
	}
	defer dt.Rollback()

	id, err := dt.NextID("sync_cycles_id_seq")
	if err != nil {
		logger.LogErr(err, "failed to allocate sync cycle id")
		return
	}
	err = dt.Exec(
		`INSERT INTO sync_cycles (id, started_at, finished_at, pushed, pulled, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, startedAt, time.Now().UTC(), pushed, pulled, status, errMsg)
	if err != nil {
		logger.LogErr(err, "failed to record sync cycle")
		return
	}
	if err := dt.Commit(); err != nil {
		logger.LogErr(err, "failed to record sync cycle")
	}
}

// GetStatus returns the current sync state for display.
func (se *SyncEngine) GetStatus() *SyncEngineStatus {
	se.mu.Lock()
	lastSync := se.lastSync
	lastError := se.lastError
	se.mu.Unlock()

	status := &SyncEngineStatus{
		Enabled:    se.config.Enabled,
		InProgress: se.inProgress.Load(),
	}
	if !lastSync.IsZero() {
		status.LastSync = &lastSync
	}
	if lastError != nil {
		status.LastError = lastError.Error()
	}

	if pending, err := CountSyncQueueItems(); err == nil {
		status.Pending = pending
	}
	if conflicted, err := GetConflictedNotes(); err == nil {
		status.Conflicts = len(conflicted)
	}
	return status
}

// MarkNoteForSync flags a note pending and logs the intent, without running
// a cycle. Used when an edit path bypasses UpdateNote (imports, restores).
func MarkNoteForSync(localID string) error {
	note, err := GetNoteByLocalID(localID)
	if err != nil {
		return err
	}
	if note == nil {
		return serr.New("note not found", "local_id", localID)
	}

	dt, err := BeginDualTx()
	if err != nil {
		return err
	}
	defer dt.Rollback()

	err = dt.Exec(`UPDATE notes SET sync_status = ? WHERE local_id = ?`, StatusPending, localID)
	if err != nil {
		return serr.Wrap(err, "failed to mark note for sync")
	}

	action := ActionUpdate
	if !note.ServerID.Valid {
		action = ActionCreate
	}
	if err := enqueueSyncItemTx(dt, EntityNote, localID, action); err != nil {
		return err
	}

	return dt.Commit()
}

// ResolveConflictWithServer accepts the hub's version of a conflicted note:
// the local copy is simply marked synced so the next pull's overwrite rule
// applies (a synced note always yields to the server).
func (se *SyncEngine) ResolveConflictWithServer(localID string) error {
	note, err := GetNoteByLocalID(localID)
	if err != nil {
		return err
	}
	if note == nil {
		return serr.New("note not found", "local_id", localID)
	}
	if note.SyncStatus != StatusConflict {
		return serr.New("note is not in conflict", "local_id", localID)
	}

	err = WriteThrough(`UPDATE notes SET sync_status = ? WHERE local_id = ?`, StatusSynced, localID)
	if err != nil {
		return serr.Wrap(err, "failed to resolve conflict with server version")
	}

	logger.Info("Conflict resolved with server version", "local_id", localID)
	return nil
}

// ResolveConflictWithLocal keeps the local version of a conflicted note:
// it goes back to pending with a fresh edit timestamp and a new cycle runs
// immediately so the forced version reaches the hub.
func (se *SyncEngine) ResolveConflictWithLocal(ctx context.Context, localID string) error {
	note, err := GetNoteByLocalID(localID)
	if err != nil {
		return err
	}
	if note == nil {
		return serr.New("note not found", "local_id", localID)
	}
	if note.SyncStatus != StatusConflict {
		return serr.New("note is not in conflict", "local_id", localID)
	}

	dt, err := BeginDualTx()
	if err != nil {
		return err
	}
	defer dt.Rollback()

	// Stamp a fresh updated_at so the forced push carries a newer version
	// than whatever the hub has.
	err = dt.Exec(`UPDATE notes SET sync_status = ?, updated_at = ? WHERE local_id = ?`,
		StatusPending, time.Now().UTC(), localID)
	if err != nil {
		return serr.Wrap(err, "failed to resolve conflict with local version")
	}

	action := ActionUpdate
	if !note.ServerID.Valid {
		action = ActionCreate
	}
	if err := enqueueSyncItemTx(dt, EntityNote, localID, action); err != nil {
		return err
	}

	if err := dt.Commit(); err != nil {
		return err
	}

	logger.Info("Conflict resolved with local version", "local_id", localID)
	return se.Sync(ctx)
}
