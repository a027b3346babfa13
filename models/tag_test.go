package models_test

import (
	"os"
	"testing"

	"notekeep/models"
)

func setupTagTestDB(t *testing.T) func() {
	t.Helper()

	os.Remove("./test_tag.ddb")
	os.Remove("./test_tag.ddb.wal")

	if err := models.InitTestDB("./test_tag.ddb"); err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}

	return func() {
		models.CloseDB()
		os.Remove("./test_tag.ddb")
		os.Remove("./test_tag.ddb.wal")
	}
}

// TestTagReuseAcrossNotes verifies the same name maps to one tag row
func TestTagReuseAcrossNotes(t *testing.T) {
	cleanup := setupTagTestDB(t)
	defer cleanup()

	if _, err := models.CreateNote(models.NoteInput{Title: "one", Tags: []string{"shared", "solo-a"}}); err != nil {
		t.Fatalf("failed to create note: %v", err)
	}
	if _, err := models.CreateNote(models.NoteInput{Title: "two", Tags: []string{"shared", "solo-b"}}); err != nil {
		t.Fatalf("failed to create note: %v", err)
	}

	tags, err := models.ListTags()
	if err != nil {
		t.Fatalf("failed to list tags: %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("expected 3 distinct tags, got %d", len(tags))
	}
}

// TestTagMatchIsCaseSensitive verifies "Work" and "work" are distinct tags
func TestTagMatchIsCaseSensitive(t *testing.T) {
	cleanup := setupTagTestDB(t)
	defer cleanup()

	if _, err := models.CreateNote(models.NoteInput{Title: "n", Tags: []string{"Work", "work"}}); err != nil {
		t.Fatalf("failed to create note: %v", err)
	}

	tags, err := models.ListTags()
	if err != nil {
		t.Fatalf("failed to list tags: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected case-sensitive tags to stay distinct, got %d", len(tags))
	}
}

// TestReplaceTagsIsDestructive verifies an update drops tags absent from the new set
func TestReplaceTagsIsDestructive(t *testing.T) {
	cleanup := setupTagTestDB(t)
	defer cleanup()

	note, err := models.CreateNote(models.NoteInput{Title: "n", Tags: []string{"keep", "drop"}})
	if err != nil {
		t.Fatalf("failed to create note: %v", err)
	}

	if _, err := models.UpdateNote(note.LocalID, models.NoteInput{Title: "n", Tags: []string{"keep", "added"}}); err != nil {
		t.Fatalf("failed to update note: %v", err)
	}

	names, err := models.GetNoteTagNames(note.LocalID)
	if err != nil {
		t.Fatalf("failed to get tag names: %v", err)
	}
	if len(names) != 2 || names[0] != "added" || names[1] != "keep" {
		t.Errorf("unexpected tag set: %v", names)
	}
}

// TestReplaceTagsWithEmptySet verifies clearing every tag from a note
func TestReplaceTagsWithEmptySet(t *testing.T) {
	cleanup := setupTagTestDB(t)
	defer cleanup()

	note, err := models.CreateNote(models.NoteInput{Title: "n", Tags: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("failed to create note: %v", err)
	}

	if _, err := models.UpdateNote(note.LocalID, models.NoteInput{Title: "n", Tags: nil}); err != nil {
		t.Fatalf("failed to update note: %v", err)
	}

	names, err := models.GetNoteTagNames(note.LocalID)
	if err != nil {
		t.Fatalf("failed to get tag names: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no tags, got %v", names)
	}
}
