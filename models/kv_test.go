package models_test

import (
	"os"
	"testing"

	"notekeep/models"
)

func setupKVTestDB(t *testing.T) func() {
	t.Helper()

	os.Remove("./test_kv.ddb")
	os.Remove("./test_kv.ddb.wal")

	if err := models.InitTestDB("./test_kv.ddb"); err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}

	return func() {
		models.CloseDB()
		os.Remove("./test_kv.ddb")
		os.Remove("./test_kv.ddb.wal")
	}
}

// TestDeviceIDStable verifies the device id is generated once and then reused
func TestDeviceIDStable(t *testing.T) {
	cleanup := setupKVTestDB(t)
	defer cleanup()

	first, err := models.GetOrCreateDeviceID()
	if err != nil {
		t.Fatalf("failed to get device id: %v", err)
	}
	if first == "" {
		t.Fatal("expected a generated device id")
	}

	second, err := models.GetOrCreateDeviceID()
	if err != nil {
		t.Fatalf("failed to get device id again: %v", err)
	}
	if second != first {
		t.Errorf("device id changed between calls: %q vs %q", first, second)
	}
}

// TestLastPulledAtDefaultsToZero verifies the cursor starts at the zero time
func TestLastPulledAtDefaultsToZero(t *testing.T) {
	cleanup := setupKVTestDB(t)
	defer cleanup()

	cursor, err := models.LastPulledAt()
	if err != nil {
		t.Fatalf("failed to read cursor: %v", err)
	}
	if !cursor.IsZero() {
		t.Errorf("expected zero cursor before first pull, got %v", cursor)
	}
}

// TestAuthTokenRoundTrip verifies token persistence
func TestAuthTokenRoundTrip(t *testing.T) {
	cleanup := setupKVTestDB(t)
	defer cleanup()

	token, err := models.GetAuthToken()
	if err != nil {
		t.Fatalf("failed to read token: %v", err)
	}
	if token != "" {
		t.Errorf("expected empty token initially, got %q", token)
	}

	if err := models.SetAuthToken("abc.def.ghi"); err != nil {
		t.Fatalf("failed to store token: %v", err)
	}

	token, err = models.GetAuthToken()
	if err != nil {
		t.Fatalf("failed to re-read token: %v", err)
	}
	if token != "abc.def.ghi" {
		t.Errorf("unexpected token: %q", token)
	}
}
