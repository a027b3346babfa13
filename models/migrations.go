package models

import (
	"database/sql"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// migrateDB bootstraps the replica schema on a single database.
// Run against both the disk store and the memory cache at startup.
func migrateDB(d *sql.DB) error {
	// Sequences for auto-incrementing ids in DuckDB
	sequences := []string{
		"CREATE SEQUENCE IF NOT EXISTS tags_id_seq START 1",
		"CREATE SEQUENCE IF NOT EXISTS sync_queue_id_seq START 1",
		"CREATE SEQUENCE IF NOT EXISTS sync_cycles_id_seq START 1",
	}

	for _, seqSQL := range sequences {
		if _, err := d.Exec(seqSQL); err != nil {
			logger.LogErr(err, "failed to create sequence", "sql", seqSQL)
			// Continue even if sequence exists
		}
	}

	// Notes: the local replica rows. local_id is the immutable identity on
	// this device; server_id arrives with the first successful push.
	// base_updated_at is the optimistic-concurrency token — the server
	// updated_at this replica last observed for the record.
	notesTableSQL := `
	CREATE TABLE IF NOT EXISTS notes (
		local_id VARCHAR(40) PRIMARY KEY,
		server_id BIGINT UNIQUE,
		title VARCHAR(255) NOT NULL,
		body TEXT,
		body_plain TEXT,
		folder_id BIGINT,
		is_pinned BOOLEAN DEFAULT false,
		sync_status VARCHAR(10) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		base_updated_at TIMESTAMP,
		deleted_at TIMESTAMP NULL
	)`

	if _, err := d.Exec(notesTableSQL); err != nil {
		return serr.Wrap(err, "failed to create notes table")
	}

	// Folders are server-owned: no tombstones, deletions apply in place
	foldersTableSQL := `
	CREATE TABLE IF NOT EXISTS folders (
		server_id BIGINT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		parent_id BIGINT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := d.Exec(foldersTableSQL); err != nil {
		return serr.Wrap(err, "failed to create folders table")
	}

	// Tags carry a local id so find-or-create by name can run before the
	// server has ever assigned an id for the name
	tagsTableSQL := `
	CREATE TABLE IF NOT EXISTS tags (
		id BIGINT PRIMARY KEY DEFAULT nextval('tags_id_seq'),
		server_id BIGINT UNIQUE,
		name VARCHAR(255) NOT NULL
	)`

	if _, err := d.Exec(tagsTableSQL); err != nil {
		return serr.Wrap(err, "failed to create tags table")
	}

	// The current tag set of a note is always the full set of join rows
	noteTagsTableSQL := `
	CREATE TABLE IF NOT EXISTS note_tags (
		note_local_id VARCHAR(40) NOT NULL,
		tag_id BIGINT NOT NULL,
		PRIMARY KEY (note_local_id, tag_id)
	)`

	if _, err := d.Exec(noteTagsTableSQL); err != nil {
		return serr.Wrap(err, "failed to create note_tags table")
	}

	// Append-only intent log; cleared wholesale after each push attempt
	syncQueueTableSQL := `
	CREATE TABLE IF NOT EXISTS sync_queue (
		id BIGINT PRIMARY KEY DEFAULT nextval('sync_queue_id_seq'),
		entity_type VARCHAR(20) NOT NULL,
		entity_id VARCHAR(40) NOT NULL,
		action VARCHAR(10) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := d.Exec(syncQueueTableSQL); err != nil {
		return serr.Wrap(err, "failed to create sync_queue table")
	}

	// Typed key-value state: device identity, pull cursor, cached hub token
	kvStateTableSQL := `
	CREATE TABLE IF NOT EXISTS kv_state (
		key VARCHAR(64) PRIMARY KEY,
		value BLOB,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := d.Exec(kvStateTableSQL); err != nil {
		return serr.Wrap(err, "failed to create kv_state table")
	}

	// One row per sync cycle for diagnostics
	syncCyclesTableSQL := `
	CREATE TABLE IF NOT EXISTS sync_cycles (
		id BIGINT PRIMARY KEY DEFAULT nextval('sync_cycles_id_seq'),
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		pushed INTEGER DEFAULT 0,
		pulled INTEGER DEFAULT 0,
		status VARCHAR(20) NOT NULL,
		error VARCHAR
	)`

	if _, err := d.Exec(syncCyclesTableSQL); err != nil {
		return serr.Wrap(err, "failed to create sync_cycles table")
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_notes_sync_status ON notes(sync_status)",
		"CREATE INDEX IF NOT EXISTS idx_notes_server_id ON notes(server_id)",
		"CREATE INDEX IF NOT EXISTS idx_notes_updated ON notes(updated_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name)",
		"CREATE INDEX IF NOT EXISTS idx_note_tags_note ON note_tags(note_local_id)",
		"CREATE INDEX IF NOT EXISTS idx_sync_queue_created ON sync_queue(created_at)",
	}

	for _, indexSQL := range indexes {
		if _, err := d.Exec(indexSQL); err != nil {
			logger.LogErr(err, "failed to create index", "sql", indexSQL)
			// Continue with other indexes even if one fails
		}
	}

	return nil
}
