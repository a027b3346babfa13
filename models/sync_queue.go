package models

import (
	"time"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Sync Queue
//
// A durable, append-only log of mutation intents. It is an audit trail, not
// the state of record: sync_status and base_updated_at on the note itself
// are what drive retry. The queue is cleared wholesale after every push
// attempt regardless of what the attempt contained.
// ============================================================================

// Queue actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Entity types recorded in the queue.
const (
	EntityNote = "note"
)

// SyncQueueItem is one recorded intent.
type SyncQueueItem struct {
	ID         int64     `db:"id" json:"id"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   string    `db:"entity_id" json:"entity_id"`
	Action     string    `db:"action" json:"action"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// enqueueSyncItemTx appends one intent inside the caller's transaction so
// the intent commits atomically with the mutation it describes.
func enqueueSyncItemTx(dt *DualTx, entityType, entityID, action string) error {
	id, err := dt.NextID("sync_queue_id_seq")
	if err != nil {
		return err
	}
	err = dt.Exec(
		`INSERT INTO sync_queue (id, entity_type, entity_id, action, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, entityType, entityID, action, time.Now().UTC())
	if err != nil {
		return serr.Wrap(err, "failed to append sync queue item")
	}
	return nil
}

// clearSyncQueueTx empties the queue inside the caller's transaction.
func clearSyncQueueTx(dt *DualTx) error {
	if err := dt.Exec(`DELETE FROM sync_queue`); err != nil {
		return serr.Wrap(err, "failed to clear sync queue")
	}
	return nil
}

// GetSyncQueueItems returns the full intent log, oldest first.
func GetSyncQueueItems() ([]SyncQueueItem, error) {
	rows, err := ReadFromCache(
		`SELECT id, entity_type, entity_id, action, created_at
		 FROM sync_queue ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query sync queue")
	}
	defer rows.Close()

	var items []SyncQueueItem
	for rows.Next() {
		var item SyncQueueItem
		if err := rows.Scan(&item.ID, &item.EntityType, &item.EntityID, &item.Action, &item.CreatedAt); err != nil {
			return nil, serr.Wrap(err, "failed to scan sync queue item")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "error iterating sync queue")
	}
	return items, nil
}

// CountSyncQueueItems returns the number of logged intents.
func CountSyncQueueItems() (int, error) {
	var count int
	err := QueryRowFromCache(`SELECT COUNT(*) FROM sync_queue`).Scan(&count)
	if err != nil {
		return 0, serr.Wrap(err, "failed to count sync queue items")
	}
	return count, nil
}
