package models

import (
	"database/sql"

	"github.com/rohanthewiz/serr"
)

// Tag is reconciled by exact, case-sensitive name match during pull.
// The local id exists so find-or-create can run before the server has
// assigned an id for the name.
type Tag struct {
	ID       int64         `db:"id" json:"id"`
	ServerID sql.NullInt64 `db:"server_id" json:"server_id,omitempty"`
	Name     string        `db:"name" json:"name"`
}

// GetNoteTagNames resolves a note's current tag set through the join table.
func GetNoteTagNames(noteLocalID string) ([]string, error) {
	rows, err := ReadFromCache(
		`SELECT t.name FROM tags t
		 JOIN note_tags nt ON nt.tag_id = t.id
		 WHERE nt.note_local_id = ?
		 ORDER BY t.name ASC`, noteLocalID)
	if err != nil {
		return nil, serr.Wrap(err, "failed to query note tags")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, serr.Wrap(err, "failed to scan tag name")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "error iterating note tags")
	}
	return names, nil
}

// ListTags returns all known tags ordered by name.
func ListTags() ([]Tag, error) {
	rows, err := ReadFromCache(`SELECT id, server_id, name FROM tags ORDER BY name ASC`)
	if err != nil {
		return nil, serr.Wrap(err, "failed to list tags")
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.ServerID, &t.Name); err != nil {
			return nil, serr.Wrap(err, "failed to scan tag row")
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "error iterating tags")
	}
	return tags, nil
}

// findOrCreateTagTx locates a tag by exact name or creates one.
// Name matching is case-sensitive here regardless of any case-folding
// merge policy applied elsewhere in the application.
func findOrCreateTagTx(dt *DualTx, name string) (int64, error) {
	var id int64
	err := dt.QueryRow(`SELECT id FROM tags WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, serr.Wrap(err, "failed to look up tag", "name", name)
	}

	id, err = dt.NextID("tags_id_seq")
	if err != nil {
		return 0, err
	}
	if err := dt.Exec(`INSERT INTO tags (id, name) VALUES (?, ?)`, id, name); err != nil {
		return 0, serr.Wrap(err, "failed to insert tag", "name", name)
	}
	return id, nil
}

// upsertTagTx matches by server id: rename if found, else create
// (adopting an existing same-named local tag when one exists).
func upsertTagTx(dt *DualTx, serverID int64, name string) error {
	var id int64
	err := dt.QueryRow(`SELECT id FROM tags WHERE server_id = ?`, serverID).Scan(&id)
	if err == nil {
		if err := dt.Exec(`UPDATE tags SET name = ? WHERE id = ?`, name, id); err != nil {
			return serr.Wrap(err, "failed to update tag")
		}
		return nil
	}
	if err != sql.ErrNoRows {
		return serr.Wrap(err, "failed to look up tag by server id")
	}

	// A locally created tag with this exact name now has a server identity
	err = dt.QueryRow(`SELECT id FROM tags WHERE name = ? AND server_id IS NULL`, name).Scan(&id)
	if err == nil {
		if err := dt.Exec(`UPDATE tags SET server_id = ? WHERE id = ?`, serverID, id); err != nil {
			return serr.Wrap(err, "failed to bind tag server id")
		}
		return nil
	}
	if err != sql.ErrNoRows {
		return serr.Wrap(err, "failed to look up tag by name")
	}

	id, err = dt.NextID("tags_id_seq")
	if err != nil {
		return err
	}
	if err := dt.Exec(`INSERT INTO tags (id, server_id, name) VALUES (?, ?, ?)`, id, serverID, name); err != nil {
		return serr.Wrap(err, "failed to insert tag")
	}
	return nil
}

// replaceNoteTagsTx is a full destructive replace of a note's join rows:
// delete everything, then find-or-create each incoming name and insert a
// fresh row. Repeated application of the same set is idempotent.
func replaceNoteTagsTx(dt *DualTx, noteLocalID string, names []string) error {
	if err := dt.Exec(`DELETE FROM note_tags WHERE note_local_id = ?`, noteLocalID); err != nil {
		return serr.Wrap(err, "failed to clear note tag rows")
	}

	for _, name := range names {
		tagID, err := findOrCreateTagTx(dt, name)
		if err != nil {
			return err
		}
		err = dt.Exec(`INSERT INTO note_tags (note_local_id, tag_id) VALUES (?, ?)`,
			noteLocalID, tagID)
		if err != nil {
			return serr.Wrap(err, "failed to insert note tag row", "tag", name)
		}
	}

	return nil
}
