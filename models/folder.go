package models

import (
	"database/sql"
	"time"

	"github.com/rohanthewiz/serr"
)

// Folder is a server-owned grouping. Unlike notes, folders carry no
// tombstone — a deletion applies immediately and irreversibly.
type Folder struct {
	ServerID  int64         `db:"server_id" json:"server_id"`
	Name      string        `db:"name" json:"name"`
	ParentID  sql.NullInt64 `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// GetFolderByServerID returns the folder or nil when absent.
func GetFolderByServerID(serverID int64) (*Folder, error) {
	folder := &Folder{}
	err := QueryRowFromCache(
		`SELECT server_id, name, parent_id, created_at, updated_at
		 FROM folders WHERE server_id = ?`, serverID,
	).Scan(&folder.ServerID, &folder.Name, &folder.ParentID, &folder.CreatedAt, &folder.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, serr.Wrap(err, "failed to get folder")
	}
	return folder, nil
}

// ListFolders returns all folders ordered by name.
func ListFolders() ([]Folder, error) {
	rows, err := ReadFromCache(
		`SELECT server_id, name, parent_id, created_at, updated_at
		 FROM folders ORDER BY name ASC`)
	if err != nil {
		return nil, serr.Wrap(err, "failed to list folders")
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		var f Folder
		if err := rows.Scan(&f.ServerID, &f.Name, &f.ParentID, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, serr.Wrap(err, "failed to scan folder row")
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, serr.Wrap(err, "error iterating folders")
	}
	return folders, nil
}

// upsertFolderTx matches by server id: update if found, else create.
func upsertFolderTx(dt *DualTx, f PullFolder) error {
	var parentID sql.NullInt64
	if f.ParentID != nil {
		parentID = sql.NullInt64{Int64: *f.ParentID, Valid: true}
	}

	var exists int
	err := dt.QueryRow(`SELECT COUNT(*) FROM folders WHERE server_id = ?`, f.ID).Scan(&exists)
	if err != nil {
		return serr.Wrap(err, "failed to check existing folder")
	}

	if exists > 0 {
		err = dt.Exec(
			`UPDATE folders SET name = ?, parent_id = ?, updated_at = ? WHERE server_id = ?`,
			f.Name, parentID, f.UpdatedAt, f.ID)
		if err != nil {
			return serr.Wrap(err, "failed to update folder")
		}
		return nil
	}

	err = dt.Exec(
		`INSERT INTO folders (server_id, name, parent_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		f.ID, f.Name, parentID, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return serr.Wrap(err, "failed to insert folder")
	}
	return nil
}

// deleteFolderTx removes a folder outright and clears references so no
// note points at a folder that no longer exists.
func deleteFolderTx(dt *DualTx, serverID int64) error {
	if err := dt.Exec(`UPDATE notes SET folder_id = NULL WHERE folder_id = ?`, serverID); err != nil {
		return serr.Wrap(err, "failed to clear folder references")
	}
	if err := dt.Exec(`DELETE FROM folders WHERE server_id = ?`, serverID); err != nil {
		return serr.Wrap(err, "failed to delete folder")
	}
	return nil
}
