package models

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/google/uuid"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Pull Pipeline
//
// Fetches everything the hub recorded after our cursor and applies it in a
// single transaction, cursor advance included — so a crash mid-apply leaves
// the old cursor and the next pull simply replays the batch. Application is
// last-write-wins with one guard: a note carrying unpushed local edits is
// never overwritten unless the server copy is strictly newer.
// ============================================================================

// pullChanges runs the pull half of a cycle. Returns the number of incoming
// note records (applied or not).
func (se *SyncEngine) pullChanges(ctx context.Context) (int, error) {
	deviceID, err := GetOrCreateDeviceID()
	if err != nil {
		return 0, err
	}
	since, err := LastPulledAt()
	if err != nil {
		return 0, err
	}

	resp, err := se.transport.Pull(ctx, since, deviceID)
	if err != nil {
		return 0, serr.Wrap(err, "pull transport failed")
	}

	dt, err := BeginDualTx()
	if err != nil {
		return 0, err
	}
	defer dt.Rollback()

	// Folders and tags land first so incoming notes can reference them.
	for _, f := range resp.Folders {
		if err := upsertFolderTx(dt, f); err != nil {
			return 0, err
		}
	}
	for _, t := range resp.Tags {
		if err := upsertTagTx(dt, t.ID, t.Name); err != nil {
			return 0, err
		}
	}

	applied := 0
	for _, pn := range resp.Notes {
		ok, err := applyPulledNoteTx(dt, pn)
		if err != nil {
			return 0, err
		}
		if ok {
			applied++
		}
	}

	for _, d := range resp.Deletions {
		if err := applyDeletionTx(dt, d); err != nil {
			return 0, err
		}
	}

	// Cursor advances in the same transaction as the data it covers.
	if err := setLastPulledAtTx(dt, resp.ServerTime); err != nil {
		return 0, err
	}

	if err := dt.Commit(); err != nil {
		return 0, err
	}

	logger.Info("Pull applied",
		"notes", len(resp.Notes),
		"overwritten", applied,
		"folders", len(resp.Folders),
		"tags", len(resp.Tags),
		"deletions", len(resp.Deletions),
	)
	return len(resp.Notes), nil
}

// applyPulledNoteTx writes one incoming note, honoring the local-edit guard.
// Returns true when the note was inserted or overwritten, false when the
// local copy won and the incoming record was dropped.
func applyPulledNoteTx(dt *DualTx, pn PullNote) (bool, error) {
	local, err := getNoteByServerIDTx(dt, pn.ID)
	if err != nil {
		return false, err
	}

	if local == nil {
		// New to this device. It materializes already synced, with the
		// server's clock as both version and baseline.
		localID := uuid.New().String()
		err = dt.Exec(
			`INSERT INTO notes (local_id, server_id, title, body, body_plain, folder_id,
			                    is_pinned, sync_status, created_at, updated_at, base_updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			localID, pn.ID, pn.Title, pn.Content, pn.ContentPlain, nullableInt64(pn.FolderID),
			pn.IsPinned, StatusSynced, pn.CreatedAt, pn.UpdatedAt, pn.UpdatedAt)
		if err != nil {
			return false, serr.Wrap(err, "failed to insert pulled note", "server_id", strconv.FormatInt(pn.ID, 10))
		}
		if err := replaceNoteTagsTx(dt, localID, pn.Tags); err != nil {
			return false, err
		}
		return true, nil
	}

	// The guard: local unpushed edits (pending or conflict) survive unless
	// the server copy is strictly newer. Equal timestamps keep local.
	if local.SyncStatus != StatusSynced && !pn.UpdatedAt.After(local.UpdatedAt) {
		return false, nil
	}

	err = dt.Exec(
		`UPDATE notes
		 SET title = ?, body = ?, body_plain = ?, folder_id = ?, is_pinned = ?,
		     sync_status = ?, updated_at = ?, base_updated_at = ?, deleted_at = NULL
		 WHERE local_id = ?`,
		pn.Title, pn.Content, pn.ContentPlain, nullableInt64(pn.FolderID), pn.IsPinned,
		StatusSynced, pn.UpdatedAt, pn.UpdatedAt, local.LocalID)
	if err != nil {
		return false, serr.Wrap(err, "failed to overwrite note from pull", "server_id", strconv.FormatInt(pn.ID, 10))
	}
	if err := replaceNoteTagsTx(dt, local.LocalID, pn.Tags); err != nil {
		return false, err
	}
	return true, nil
}

// applyDeletionTx applies one remote deletion. Notes tombstone (and stay
// queryable for sync bookkeeping); folders are removed outright with their
// note references nulled.
func applyDeletionTx(dt *DualTx, d PullDeletion) error {
	switch d.EntityType {
	case EntityNote:
		err := dt.Exec(
			`UPDATE notes SET deleted_at = ?, sync_status = ?, updated_at = ? WHERE server_id = ?`,
			d.DeletedAt, StatusSynced, d.DeletedAt, d.EntityID)
		if err != nil {
			return serr.Wrap(err, "failed to apply remote note deletion", "server_id", strconv.FormatInt(d.EntityID, 10))
		}
		return nil
	case "folder":
		return deleteFolderTx(dt, d.EntityID)
	default:
		// Unrecognized entity types are skipped, not fatal — a newer hub
		// may sync kinds this build doesn't know about.
		logger.Info("Skipping deletion for unknown entity type", "entity_type", d.EntityType)
		return nil
	}
}

// getNoteByServerIDTx reads a note inside the pull transaction so the guard
// sees any row touched earlier in the same batch.
func getNoteByServerIDTx(dt *DualTx, serverID int64) (*Note, error) {
	note := &Note{}
	row := dt.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE server_id = ?`, serverID)
	err := row.Scan(&note.LocalID, &note.ServerID, &note.Title, &note.Body, &note.BodyPlain,
		&note.FolderID, &note.IsPinned, &note.SyncStatus, &note.CreatedAt, &note.UpdatedAt,
		&note.BaseUpdatedAt, &note.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to query note by server id")
	}
	return note, nil
}

func nullableInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
