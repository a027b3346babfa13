package models_test

import (
	"os"
	"testing"
	"time"

	"notekeep/models"
)

func setupDBTestDB(t *testing.T) func() {
	t.Helper()

	os.Remove("./test_db.ddb")
	os.Remove("./test_db.ddb.wal")

	if err := models.InitTestDB("./test_db.ddb"); err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}

	return func() {
		models.CloseDB()
		os.Remove("./test_db.ddb")
		os.Remove("./test_db.ddb.wal")
	}
}

// TestWriteThroughVisibleInCache verifies a dual write is immediately
// readable from the memory side.
func TestWriteThroughVisibleInCache(t *testing.T) {
	cleanup := setupDBTestDB(t)
	defer cleanup()

	err := models.WriteThrough(
		`INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?)`,
		"probe", []byte("payload"), time.Now().UTC())
	if err != nil {
		t.Fatalf("write-through failed: %v", err)
	}

	var value []byte
	err = models.QueryRowFromCache(`SELECT value FROM kv_state WHERE key = ?`, "probe").Scan(&value)
	if err != nil {
		t.Fatalf("cache read failed: %v", err)
	}
	if string(value) != "payload" {
		t.Errorf("unexpected cached value: %q", value)
	}
}

// TestDualTxRollback verifies a rolled-back transaction leaves no trace
// in either database.
func TestDualTxRollback(t *testing.T) {
	cleanup := setupDBTestDB(t)
	defer cleanup()

	dt, err := models.BeginDualTx()
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	err = dt.Exec(
		`INSERT INTO notes (local_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"tx-victim", "doomed", time.Now().UTC(), time.Now().UTC())
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}

	if err := dt.Rollback(); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	note, err := models.GetNoteByLocalID("tx-victim")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if note != nil {
		t.Error("expected rolled-back row to be absent")
	}
}

// TestOnCommitNotification verifies table subscribers fire once per commit
// touching their table, and not for rollbacks.
func TestOnCommitNotification(t *testing.T) {
	cleanup := setupDBTestDB(t)
	defer cleanup()

	fired := 0
	id := models.OnCommit("notes", func() { fired++ })
	defer models.OffCommit(id)

	dt, err := models.BeginDualTx()
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	err = dt.Exec(
		`INSERT INTO notes (local_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"commit-probe", "kept", time.Now().UTC(), time.Now().UTC())
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if err := dt.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if fired != 1 {
		t.Errorf("expected 1 notification after commit, got %d", fired)
	}

	// A rollback must not notify
	dt, _ = models.BeginDualTx()
	_ = dt.Exec(
		`INSERT INTO notes (local_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"rollback-probe", "gone", time.Now().UTC(), time.Now().UTC())
	_ = dt.Rollback()

	if fired != 1 {
		t.Errorf("expected no notification after rollback, got %d", fired)
	}

	// Commits against other tables stay quiet too
	err = models.WriteThrough(
		`INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?)`,
		"quiet", []byte("x"), time.Now().UTC())
	if err != nil {
		t.Fatalf("write-through failed: %v", err)
	}
	if fired != 1 {
		t.Errorf("expected notes subscriber untouched by kv writes, got %d", fired)
	}
}
