package api

import (
	"context"
	"encoding/json"
	"net/http"

	"notekeep/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Sync Control API Handlers
//
// These endpoints power the UI controls for sync: a status indicator, a
// "Sync Now" button, the conflict list, and per-conflict resolution.
// ============================================================================

// SyncControlStatus handles GET /api/v1/sync/control/status
// Returns the engine's current state for the UI status indicator.
// If sync is not configured, returns a disabled state rather than an error
// so the UI can render gracefully.
func SyncControlStatus(ctx rweb.Context) error {
	engine := models.GetSyncEngine()
	if engine == nil {
		return writeSuccess(ctx, http.StatusOK, models.SyncEngineStatus{Enabled: false})
	}
	return writeSuccess(ctx, http.StatusOK, engine.GetStatus())
}

// SyncControlNow handles POST /api/v1/sync/control/sync-now
// Triggers an immediate sync cycle. A cycle already in flight is not an
// error — the engine collapses the call and we report current status.
func SyncControlNow(ctx rweb.Context) error {
	engine := models.GetSyncEngine()
	if engine == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "sync is not configured")
	}

	if err := engine.Sync(context.Background()); err != nil {
		return writeError(ctx, http.StatusBadGateway, serr.Wrap(err, "sync failed").Error())
	}

	return writeSuccess(ctx, http.StatusOK, engine.GetStatus())
}

// SyncControlConflicts handles GET /api/v1/sync/control/conflicts
// Lists notes stuck in conflict awaiting a user decision.
func SyncControlConflicts(ctx rweb.Context) error {
	notes, err := models.GetConflictedNotes()
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to list conflicts"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "database error")
	}
	return writeSuccess(ctx, http.StatusOK, notes)
}

// SyncControlResolve handles POST /api/v1/sync/control/conflicts/:id/resolve
// Request body: {"resolution": "server"} or {"resolution": "local"}.
func SyncControlResolve(ctx rweb.Context) error {
	engine := models.GetSyncEngine()
	if engine == nil {
		return writeError(ctx, http.StatusServiceUnavailable, "sync is not configured")
	}

	localID := ctx.Request().Param("id")
	if localID == "" {
		return writeError(ctx, http.StatusBadRequest, "invalid note id")
	}

	var req struct {
		Resolution string `json:"resolution"`
	}
	if err := json.Unmarshal(ctx.Request().Body(), &req); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	var err error
	switch req.Resolution {
	case "server":
		err = engine.ResolveConflictWithServer(localID)
	case "local":
		err = engine.ResolveConflictWithLocal(context.Background(), localID)
	default:
		return writeError(ctx, http.StatusBadRequest, "resolution must be 'server' or 'local'")
	}
	if err != nil {
		logger.LogErr(err, "conflict resolution failed", "local_id", localID)
		return writeError(ctx, http.StatusInternalServerError, "failed to resolve conflict")
	}

	return writeSuccess(ctx, http.StatusOK, map[string]string{"resolved": localID, "resolution": req.Resolution})
}

// SyncControlQueue handles GET /api/v1/sync/control/queue
// Exposes the pending intent log for diagnostics.
func SyncControlQueue(ctx rweb.Context) error {
	items, err := models.GetSyncQueueItems()
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to list sync queue"), "database error")
		return writeError(ctx, http.StatusInternalServerError, "database error")
	}
	return writeSuccess(ctx, http.StatusOK, items)
}
