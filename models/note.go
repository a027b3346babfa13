package models

import (
	"database/sql"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/serr"
)

// Sync status values for a note. A note is pending whenever a local write
// has advanced updated_at past base_updated_at without a server ack.
const (
	StatusSynced   = "synced"
	StatusPending  = "pending"
	StatusConflict = "conflict"
)

// Note is one replica row. LocalID is immutable and assigned on this
// device; ServerID arrives with the first successful push. DeletedAt is a
// tombstone — the row persists locally until the deletion has propagated.
type Note struct {
	LocalID       string         `db:"local_id" json:"local_id"`
	ServerID      sql.NullInt64  `db:"server_id" json:"server_id,omitempty"`
	Title         string         `db:"title" json:"title"`
	Body          sql.NullString `db:"body" json:"body,omitempty"`
	BodyPlain     sql.NullString `db:"body_plain" json:"body_plain,omitempty"`
	FolderID      sql.NullInt64  `db:"folder_id" json:"folder_id,omitempty"`
	IsPinned      bool           `db:"is_pinned" json:"is_pinned"`
	SyncStatus    string         `db:"sync_status" json:"sync_status"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
	BaseUpdatedAt sql.NullTime   `db:"base_updated_at" json:"base_updated_at,omitempty"`
	DeletedAt     sql.NullTime   `db:"deleted_at" json:"deleted_at,omitempty"`
}

// NoteInput carries the caller-editable fields of a note.
type NoteInput struct {
	Title    string   `json:"title"`
	Body     *string  `json:"body,omitempty"`
	FolderID *int64   `json:"folder_id,omitempty"`
	IsPinned bool     `json:"is_pinned"`
	Tags     []string `json:"tags,omitempty"`
}

const noteColumns = `local_id, server_id, title, body, body_plain, folder_id,
	is_pinned, sync_status, created_at, updated_at, base_updated_at, deleted_at`

// CreateNote inserts a new note as pending and records a create intent in
// the sync queue, all in one transaction.
func CreateNote(input NoteInput) (*Note, error) {
	now := time.Now().UTC()
	note := &Note{
		LocalID:    uuid.New().String(),
		Title:      input.Title,
		IsPinned:   input.IsPinned,
		SyncStatus: StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if input.Body != nil {
		note.Body = sql.NullString{String: *input.Body, Valid: true}
		note.BodyPlain = sql.NullString{String: plainText(*input.Body), Valid: true}
	}
	if input.FolderID != nil {
		note.FolderID = sql.NullInt64{Int64: *input.FolderID, Valid: true}
	}

	dt, err := BeginDualTx()
	if err != nil {
		return nil, serr.Wrap(err, "failed to begin transaction")
	}
	defer dt.Rollback()

	err = dt.Exec(`
		INSERT INTO notes (local_id, title, body, body_plain, folder_id, is_pinned,
		                   sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		note.LocalID, note.Title, note.Body, note.BodyPlain, note.FolderID,
		note.IsPinned, note.SyncStatus, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return nil, serr.Wrap(err, "failed to insert note")
	}

	if err := replaceNoteTagsTx(dt, note.LocalID, input.Tags); err != nil {
		return nil, serr.Wrap(err, "failed to set note tags")
	}

	if err := enqueueSyncItemTx(dt, EntityNote, note.LocalID, ActionCreate); err != nil {
		return nil, serr.Wrap(err, "failed to enqueue create intent")
	}

	if err := dt.Commit(); err != nil {
		return nil, err
	}

	return note, nil
}

// UpdateNote applies a local edit: fields are replaced, the note goes
// pending, and one queue entry is appended — atomically.
func UpdateNote(localID string, input NoteInput) (*Note, error) {
	existing, err := GetNoteByLocalID(localID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, serr.New("note not found: " + localID)
	}

	now := time.Now().UTC()
	var body, bodyPlain sql.NullString
	if input.Body != nil {
		body = sql.NullString{String: *input.Body, Valid: true}
		bodyPlain = sql.NullString{String: plainText(*input.Body), Valid: true}
	}
	var folderID sql.NullInt64
	if input.FolderID != nil {
		folderID = sql.NullInt64{Int64: *input.FolderID, Valid: true}
	}

	dt, err := BeginDualTx()
	if err != nil {
		return nil, serr.Wrap(err, "failed to begin transaction")
	}
	defer dt.Rollback()

	err = dt.Exec(`
		UPDATE notes
		SET title = ?, body = ?, body_plain = ?, folder_id = ?, is_pinned = ?,
		    sync_status = ?, updated_at = ?
		WHERE local_id = ?`,
		input.Title, body, bodyPlain, folderID, input.IsPinned,
		StatusPending, now, localID,
	)
	if err != nil {
		return nil, serr.Wrap(err, "failed to update note")
	}

	if err := replaceNoteTagsTx(dt, localID, input.Tags); err != nil {
		return nil, serr.Wrap(err, "failed to replace note tags")
	}

	// A note the server has never seen still needs a create, not an update
	action := ActionUpdate
	if !existing.ServerID.Valid {
		action = ActionCreate
	}
	if err := enqueueSyncItemTx(dt, EntityNote, localID, action); err != nil {
		return nil, serr.Wrap(err, "failed to enqueue update intent")
	}

	if err := dt.Commit(); err != nil {
		return nil, err
	}

	return GetNoteByLocalID(localID)
}

// DeleteNote tombstones a note. The row stays in place so the deletion
// itself can be pushed; garbage collection of acknowledged tombstones is
// outside the engine.
func DeleteNote(localID string) error {
	existing, err := GetNoteByLocalID(localID)
	if err != nil {
		return err
	}
	if existing == nil {
		return serr.New("note not found: " + localID)
	}

	now := time.Now().UTC()

	dt, err := BeginDualTx()
	if err != nil {
		return serr.Wrap(err, "failed to begin transaction")
	}
	defer dt.Rollback()

	err = dt.Exec(`
		UPDATE notes SET deleted_at = ?, sync_status = ?, updated_at = ?
		WHERE local_id = ?`,
		now, StatusPending, now, localID,
	)
	if err != nil {
		return serr.Wrap(err, "failed to tombstone note")
	}

	if err := enqueueSyncItemTx(dt, EntityNote, localID, ActionDelete); err != nil {
		return serr.Wrap(err, "failed to enqueue delete intent")
	}

	return dt.Commit()
}

// GetNoteByLocalID returns the note or nil when absent.
func GetNoteByLocalID(localID string) (*Note, error) {
	row := QueryRowFromCache(
		`SELECT `+noteColumns+` FROM notes WHERE local_id = ?`, localID)
	return scanNoteRow(row)
}

// GetNoteByServerID returns the note carrying the given server id, or nil.
func GetNoteByServerID(serverID int64) (*Note, error) {
	row := QueryRowFromCache(
		`SELECT `+noteColumns+` FROM notes WHERE server_id = ?`, serverID)
	return scanNoteRow(row)
}

// GetPendingNotes returns every note awaiting push, oldest edit first.
// Tombstoned notes stay in the result — their deletion is the pending work.
func GetPendingNotes() ([]Note, error) {
	rows, err := ReadFromCache(
		`SELECT `+noteColumns+` FROM notes WHERE sync_status = ? ORDER BY updated_at ASC`,
		StatusPending)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query pending notes")
	}
	defer rows.Close()

	return scanNotes(rows)
}

// GetConflictedNotes returns notes awaiting an explicit resolve decision.
func GetConflictedNotes() ([]Note, error) {
	rows, err := ReadFromCache(
		`SELECT `+noteColumns+` FROM notes WHERE sync_status = ? ORDER BY updated_at DESC`,
		StatusConflict)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query conflicted notes")
	}
	defer rows.Close()

	return scanNotes(rows)
}

// ListNotes returns non-deleted notes, most recently updated first.
func ListNotes(limit, offset int) ([]Note, error) {
	rows, err := ReadFromCache(
		`SELECT `+noteColumns+` FROM notes
		 WHERE deleted_at IS NULL
		 ORDER BY is_pinned DESC, updated_at DESC
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, serr.Wrap(err, "failed to list notes")
	}
	defer rows.Close()

	return scanNotes(rows)
}

func scanNoteRow(row *sql.Row) (*Note, error) {
	note := &Note{}
	err := row.Scan(&note.LocalID, &note.ServerID, &note.Title, &note.Body,
		&note.BodyPlain, &note.FolderID, &note.IsPinned, &note.SyncStatus,
		&note.CreatedAt, &note.UpdatedAt, &note.BaseUpdatedAt, &note.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to scan note")
	}
	return note, nil
}

func scanNotes(rows *sql.Rows) ([]Note, error) {
	var notes []Note
	for rows.Next() {
		var note Note
		err := rows.Scan(&note.LocalID, &note.ServerID, &note.Title, &note.Body,
			&note.BodyPlain, &note.FolderID, &note.IsPinned, &note.SyncStatus,
			&note.CreatedAt, &note.UpdatedAt, &note.BaseUpdatedAt, &note.DeletedAt)
		if err != nil {
			return nil, serr.Wrap(err, "failed to scan note row")
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "error iterating notes")
	}
	return notes, nil
}

// plainText derives the searchable plain form of rich note content:
// tags stripped, entities decoded, whitespace collapsed.
func plainText(rich string) string {
	var b strings.Builder
	inTag := false
	for _, r := range rich {
		switch {
		case r == '<':
			inTag = true
			b.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(b.String())), " ")
}
