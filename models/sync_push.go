package models

import (
	"context"
	"time"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Push Pipeline
//
// Gathers every pending note (edits and tombstones alike), sends them to the
// hub in one batch, and applies the hub's verdicts in a single transaction:
// accepted notes are bound to their server identity and rebaselined,
// conflicted notes flip to conflict status, and the intent queue is cleared
// wholesale. Nothing is cleared when the transport fails — pending state
// survives untouched for the next cycle.
// ============================================================================

// pushPending runs the push half of a cycle. Returns the number of notes
// sent. With nothing pending it returns without touching the network.
func (se *SyncEngine) pushPending(ctx context.Context) (int, error) {
	pending, err := GetPendingNotes()
	if err != nil {
		return 0, serr.Wrap(err, "failed to load pending notes")
	}
	if len(pending) == 0 {
		return 0, nil
	}

	deviceID, err := GetOrCreateDeviceID()
	if err != nil {
		return 0, err
	}

	req := &PushRequest{DeviceID: deviceID, Notes: make([]PushNoteRecord, 0, len(pending))}
	// Local edit times keyed by local id, for the conflict events emitted
	// after commit.
	clientVersions := make(map[string]time.Time, len(pending))

	for _, n := range pending {
		tags, err := GetNoteTagNames(n.LocalID)
		if err != nil {
			return 0, err
		}

		rec := PushNoteRecord{
			Title:          n.Title,
			Content:        n.Body.String,
			ContentPlain:   n.BodyPlain.String,
			Tags:           tags,
			IsPinned:       n.IsPinned,
			OfflineEnabled: se.config.OfflineEnabled,
			IsNew:          !n.ServerID.Valid,
			LocalID:        n.LocalID,
			IsDeleted:      n.DeletedAt.Valid,
		}
		if n.ServerID.Valid {
			sid := n.ServerID.Int64
			rec.ServerID = &sid
		}
		if n.FolderID.Valid {
			fid := n.FolderID.Int64
			rec.FolderID = &fid
		}
		if n.BaseUpdatedAt.Valid {
			base := n.BaseUpdatedAt.Time
			rec.BaseUpdatedAt = &base
		}

		req.Notes = append(req.Notes, rec)
		clientVersions[n.LocalID] = n.UpdatedAt
	}

	resp, err := se.transport.Push(ctx, req)
	if err != nil {
		return 0, serr.Wrap(err, "push transport failed")
	}

	if err := applyPushResults(&resp.Results); err != nil {
		return 0, err
	}

	logger.Info("Push applied",
		"sent", len(req.Notes),
		"accepted", len(resp.Results.Notes),
		"conflicts", len(resp.Results.Conflicts),
	)

	// Emit conflict events only after the statuses are durably committed,
	// so a listener reading the store sees what the event describes.
	for _, c := range resp.Results.Conflicts {
		se.events.Emit(SyncEvent{
			Kind:          EventConflict,
			NoteID:        c.NoteID,
			ServerVersion: c.ServerVersion,
			ClientVersion: clientVersions[c.NoteID],
		})
	}

	return len(req.Notes), nil
}

// applyPushResults records the hub's verdicts and clears the intent queue in
// one transaction.
func applyPushResults(results *PushResults) error {
	dt, err := BeginDualTx()
	if err != nil {
		return err
	}
	defer dt.Rollback()

	for _, r := range results.Notes {
		// Accepted: bind server identity, rebaseline to the server's clock.
		// updated_at takes the server stamp too so both replicas agree on
		// the note's version after the round trip.
		err = dt.Exec(
			`UPDATE notes
			 SET server_id = ?, sync_status = ?, updated_at = ?, base_updated_at = ?
			 WHERE local_id = ?`,
			r.Server.ID, StatusSynced, r.Server.UpdatedAt, r.Server.UpdatedAt, r.LocalID)
		if err != nil {
			return serr.Wrap(err, "failed to apply push result", "local_id", r.LocalID)
		}
	}

	for _, c := range results.Conflicts {
		// Conflicted: flag only. Content stays local until the user picks a
		// side, and the stale base_updated_at is kept as evidence.
		err = dt.Exec(
			`UPDATE notes SET sync_status = ? WHERE local_id = ?`,
			StatusConflict, c.NoteID)
		if err != nil {
			return serr.Wrap(err, "failed to flag push conflict", "local_id", c.NoteID)
		}
	}

	// The queue is an intent log, not the retry driver: clear it wholesale
	// now that the attempt has been answered. Conflicted notes stay visible
	// through their sync_status, not through queue rows.
	if err := clearSyncQueueTx(dt); err != nil {
		return err
	}

	return dt.Commit()
}
