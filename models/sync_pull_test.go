package models_test

import (
	"context"
	"testing"
	"time"

	"notekeep/models"
)

// pullOnly builds an engine whose pushes are acknowledged without effect,
// so tests can drive the pull side in isolation.
func pullOnly(t *testing.T, resp *models.PullResponse) (*models.SyncEngine, *fakeTransport) {
	t.Helper()

	ft := &fakeTransport{
		pullFn: func(since time.Time, deviceID string) (*models.PullResponse, error) {
			return resp, nil
		},
	}
	return newTestEngine(t, ft, nil), ft
}

// TestPullInsertsNewNote verifies a note first seen via pull lands synced
// with the server's clock as both version and baseline.
func TestPullInsertsNewNote(t *testing.T) {
	cleanup := setupEngineTestDB(t, "pull_insert")
	defer cleanup()

	created := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	folderID := int64(3)

	engine, _ := pullOnly(t, &models.PullResponse{
		Folders: []models.PullFolder{
			{ID: 3, Name: "Projects", CreatedAt: created, UpdatedAt: created},
		},
		Notes: []models.PullNote{
			{ID: 9, Title: "From elsewhere", Content: "<p>hi</p>", ContentPlain: "hi",
				FolderID: &folderID, Tags: []string{"remote"}, IsPinned: true,
				CreatedAt: created, UpdatedAt: updated},
		},
		ServerTime: updated.Add(time.Minute),
	})

	if err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	note, err := models.GetNoteByServerID(9)
	if err != nil {
		t.Fatalf("failed to load pulled note: %v", err)
	}
	if note == nil {
		t.Fatal("expected pulled note to exist")
	}
	if note.SyncStatus != models.StatusSynced {
		t.Errorf("expected synced, got %q", note.SyncStatus)
	}
	if !note.UpdatedAt.Equal(updated) || !note.BaseUpdatedAt.Time.Equal(updated) {
		t.Errorf("expected version and baseline %v, got %v / %v", updated, note.UpdatedAt, note.BaseUpdatedAt.Time)
	}
	if !note.FolderID.Valid || note.FolderID.Int64 != 3 {
		t.Errorf("expected folder 3, got %+v", note.FolderID)
	}
	if !note.IsPinned {
		t.Error("expected pinned flag carried over")
	}

	tags, _ := models.GetNoteTagNames(note.LocalID)
	if len(tags) != 1 || tags[0] != "remote" {
		t.Errorf("unexpected tags: %v", tags)
	}

	folder, err := models.GetFolderByServerID(3)
	if err != nil || folder == nil {
		t.Fatalf("expected folder upserted, got %v (err %v)", folder, err)
	}
	if folder.Name != "Projects" {
		t.Errorf("unexpected folder name %q", folder.Name)
	}
}

// TestPullKeepsLocalEdits verifies the overwrite guard: a pending note
// survives an incoming copy that is not strictly newer.
func TestPullKeepsLocalEdits(t *testing.T) {
	cleanup := setupEngineTestDB(t, "pull_guard")
	defer cleanup()

	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	// Seed a synced note via pull
	engine, _ := pullOnly(t, &models.PullResponse{
		Notes:      []models.PullNote{{ID: 5, Title: "shared", CreatedAt: base, UpdatedAt: base}},
		ServerTime: base,
	})
	if err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}

	seeded, _ := models.GetNoteByServerID(5)
	if seeded == nil {
		t.Fatal("expected seeded note")
	}

	// Edit locally — note goes pending with a fresh timestamp
	if _, err := models.UpdateNote(seeded.LocalID, models.NoteInput{Title: "local edit"}); err != nil {
		t.Fatalf("local edit failed: %v", err)
	}
	edited, _ := models.GetNoteByLocalID(seeded.LocalID)

	// An incoming copy stamped at or before the local edit must lose
	engine, _ = pullOnly(t, &models.PullResponse{
		Notes:      []models.PullNote{{ID: 5, Title: "stale server copy", CreatedAt: base, UpdatedAt: edited.UpdatedAt}},
		ServerTime: edited.UpdatedAt,
	})
	if err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("guard sync failed: %v", err)
	}

	got, _ := models.GetNoteByLocalID(seeded.LocalID)
	if got.Title != "local edit" {
		t.Errorf("expected local edit kept, got %q", got.Title)
	}
	if got.SyncStatus != models.StatusPending {
		t.Errorf("expected note still pending, got %q", got.SyncStatus)
	}

	// A strictly newer server copy wins even over local edits
	newer := edited.UpdatedAt.Add(time.Hour)
	engine, _ = pullOnly(t, &models.PullResponse{
		Notes:      []models.PullNote{{ID: 5, Title: "newer server copy", CreatedAt: base, UpdatedAt: newer}},
		ServerTime: newer,
	})
	if err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("overwrite sync failed: %v", err)
	}

	got, _ = models.GetNoteByLocalID(seeded.LocalID)
	if got.Title != "newer server copy" {
		t.Errorf("expected overwrite, got %q", got.Title)
	}
	if got.SyncStatus != models.StatusSynced {
		t.Errorf("expected synced after overwrite, got %q", got.SyncStatus)
	}
	if !got.BaseUpdatedAt.Time.Equal(newer) {
		t.Errorf("expected baseline rebased to %v, got %v", newer, got.BaseUpdatedAt.Time)
	}
}

// TestPullTagReplaceIsIdempotent verifies pulling the same tag set twice
// leaves one join row per tag.
func TestPullTagReplaceIsIdempotent(t *testing.T) {
	cleanup := setupEngineTestDB(t, "pull_tags")
	defer cleanup()

	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		stamp := base.Add(time.Duration(i+1) * time.Hour)
		engine, _ := pullOnly(t, &models.PullResponse{
			Notes:      []models.PullNote{{ID: 11, Title: "tagged", Tags: []string{"a", "b"}, CreatedAt: base, UpdatedAt: stamp}},
			ServerTime: stamp,
		})
		if err := engine.Sync(context.Background()); err != nil {
			t.Fatalf("sync %d failed: %v", i, err)
		}
	}

	note, _ := models.GetNoteByServerID(11)
	tags, err := models.GetNoteTagNames(note.LocalID)
	if err != nil {
		t.Fatalf("failed to get tags: %v", err)
	}
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Errorf("expected exactly [a b], got %v", tags)
	}
}

// TestPullDeletions verifies remote note deletions tombstone and folder
// deletions cascade to note references.
func TestPullDeletions(t *testing.T) {
	cleanup := setupEngineTestDB(t, "pull_delete")
	defer cleanup()

	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	folderID := int64(4)

	engine, _ := pullOnly(t, &models.PullResponse{
		Folders:    []models.PullFolder{{ID: 4, Name: "Temp", CreatedAt: base, UpdatedAt: base}},
		Notes:      []models.PullNote{{ID: 20, Title: "filed", FolderID: &folderID, CreatedAt: base, UpdatedAt: base}},
		ServerTime: base,
	})
	if err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}

	deletedAt := base.Add(time.Hour)
	engine, _ = pullOnly(t, &models.PullResponse{
		Deletions: []models.PullDeletion{
			{EntityType: "note", EntityID: 20, DeletedAt: deletedAt},
			{EntityType: "folder", EntityID: 4, DeletedAt: deletedAt},
		},
		ServerTime: deletedAt,
	})
	if err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("deletion sync failed: %v", err)
	}

	note, _ := models.GetNoteByServerID(20)
	if note == nil {
		t.Fatal("expected tombstoned note row to remain")
	}
	if !note.DeletedAt.Valid || !note.DeletedAt.Time.Equal(deletedAt) {
		t.Errorf("expected tombstone at %v, got %+v", deletedAt, note.DeletedAt)
	}
	if note.SyncStatus != models.StatusSynced {
		t.Errorf("expected remote deletion to land synced, got %q", note.SyncStatus)
	}
	if note.FolderID.Valid {
		t.Errorf("expected folder reference cleared, got %+v", note.FolderID)
	}

	folder, err := models.GetFolderByServerID(4)
	if err != nil {
		t.Fatalf("failed to check folder: %v", err)
	}
	if folder != nil {
		t.Error("expected folder removed outright")
	}
}

// TestPullErrorLeavesCursor verifies a failed pull does not advance the
// cursor, so the next cycle replays the window.
func TestPullErrorLeavesCursor(t *testing.T) {
	cleanup := setupEngineTestDB(t, "pull_cursor")
	defer cleanup()

	first := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	engine, _ := pullOnly(t, &models.PullResponse{ServerTime: first})
	if err := engine.Sync(context.Background()); err != nil {
		t.Fatalf("first sync failed: %v", err)
	}

	ft := &fakeTransport{
		pullFn: func(since time.Time, deviceID string) (*models.PullResponse, error) {
			if !since.Equal(first) {
				t.Errorf("expected cursor %v sent, got %v", first, since)
			}
			return nil, context.DeadlineExceeded
		},
	}
	engine = newTestEngine(t, ft, nil)

	if err := engine.Sync(context.Background()); err == nil {
		t.Fatal("expected sync to surface the pull error")
	}

	cursor, err := models.LastPulledAt()
	if err != nil {
		t.Fatalf("failed to read cursor: %v", err)
	}
	if !cursor.Equal(first) {
		t.Errorf("expected cursor unchanged at %v, got %v", first, cursor)
	}
}
