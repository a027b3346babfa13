package models

import "time"

// ============================================================================
// Sync Wire Types
//
// The JSON shapes exchanged with the hub. Field names are fixed protocol;
// changing one desyncs every peer, so treat this file as a wire contract.
// ============================================================================

// PushNoteRecord is one note as sent to the hub.
type PushNoteRecord struct {
	ServerID       *int64     `json:"server_id,omitempty"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	ContentPlain   string     `json:"content_plain"`
	FolderID       *int64     `json:"folder_id,omitempty"`
	Tags           []string   `json:"tags"`
	IsPinned       bool       `json:"is_pinned"`
	OfflineEnabled bool       `json:"offline_enabled"`
	IsNew          bool       `json:"is_new"`
	LocalID        string     `json:"local_id"`
	IsDeleted      bool       `json:"is_deleted"`
	BaseUpdatedAt  *time.Time `json:"base_updated_at,omitempty"`
}

// PushRequest is the push endpoint body.
type PushRequest struct {
	DeviceID string           `json:"device_id"`
	Notes    []PushNoteRecord `json:"notes"`
}

// ServerStamp is the hub's identity and version for an accepted note.
type ServerStamp struct {
	ID        int64     `json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PushNoteResult maps a pushed note (by its local id) to its server stamp.
type PushNoteResult struct {
	LocalID string      `json:"local_id"`
	Server  ServerStamp `json:"server"`
}

// PushConflict reports a note the hub rejected because another device
// changed it first. NoteID is the local id the record was pushed with.
type PushConflict struct {
	NoteID        string    `json:"note_id"`
	ServerVersion time.Time `json:"server_version"`
}

// PushResults carries per-note outcomes of a push.
type PushResults struct {
	Notes     []PushNoteResult `json:"notes"`
	Conflicts []PushConflict   `json:"conflicts"`
}

// PushResponse is the push endpoint reply payload.
type PushResponse struct {
	Results PushResults `json:"results"`
}

// PullNote is one note as received from the hub.
type PullNote struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	ContentPlain string    `json:"content_plain"`
	FolderID     *int64    `json:"folder_id,omitempty"`
	Tags         []string  `json:"tags"`
	IsPinned     bool      `json:"is_pinned"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PullFolder is one folder as received from the hub.
type PullFolder struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PullTag is one tag as received from the hub.
type PullTag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PullDeletion records an entity deleted on another device.
type PullDeletion struct {
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	DeletedAt  time.Time `json:"deleted_at"`
}

// PullResponse is the pull endpoint reply payload. ServerTime is the hub's
// clock at response time and becomes the next pull cursor.
type PullResponse struct {
	Notes      []PullNote     `json:"notes"`
	Folders    []PullFolder   `json:"folders"`
	Tags       []PullTag      `json:"tags"`
	Deletions  []PullDeletion `json:"deletions"`
	ServerTime time.Time      `json:"server_time"`
}
