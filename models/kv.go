package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/serr"
	"github.com/vmihailenco/msgpack/v5"
)

// ============================================================================
// Key/Value State
//
// Small durable state that is not a row of a synced entity: the device id,
// the pull cursor, the hub auth token. Values are msgpack-encoded so typed
// values (times in particular) round-trip without string formatting rules.
// Every write is dual-written, so reads can always come from the cache.
// ============================================================================

const (
	kvKeyDeviceID     = "device_id"
	kvKeyLastPulledAt = "last_pulled_at"
	kvKeyAuthToken    = "hub_auth_token"
)

func kvPut(key string, value interface{}) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return serr.Wrap(err, "failed to encode kv value", "key", key)
	}
	err = WriteThrough(
		`INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, data, time.Now().UTC())
	if err != nil {
		return serr.Wrap(err, "failed to store kv value", "key", key)
	}
	return nil
}

// kvPutTx writes a key inside the caller's transaction, for state that must
// commit atomically with entity rows (the pull cursor).
func kvPutTx(dt *DualTx, key string, value interface{}) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return serr.Wrap(err, "failed to encode kv value", "key", key)
	}
	err = dt.Exec(
		`INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, data, time.Now().UTC())
	if err != nil {
		return serr.Wrap(err, "failed to store kv value", "key", key)
	}
	return nil
}

// kvGet decodes a key into out. Returns found=false when the key is absent.
func kvGet(key string, out interface{}) (found bool, err error) {
	var data []byte
	err = QueryRowFromCache(`SELECT value FROM kv_state WHERE key = ?`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, serr.Wrap(err, "failed to read kv value", "key", key)
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		return false, serr.Wrap(err, "failed to decode kv value", "key", key)
	}
	return true, nil
}

// GetOrCreateDeviceID returns this installation's stable identifier,
// generating and persisting one on first call.
func GetOrCreateDeviceID() (string, error) {
	var id string
	found, err := kvGet(kvKeyDeviceID, &id)
	if err != nil {
		return "", err
	}
	if found && id != "" {
		return id, nil
	}
	id = uuid.New().String()
	if err := kvPut(kvKeyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

// LastPulledAt returns the pull cursor, or the zero time when no pull has
// completed yet (the hub treats a zero cursor as "send everything").
func LastPulledAt() (time.Time, error) {
	var t time.Time
	found, err := kvGet(kvKeyLastPulledAt, &t)
	if err != nil {
		return time.Time{}, err
	}
	if !found {
		return time.Time{}, nil
	}
	return t, nil
}

// setLastPulledAtTx advances the pull cursor inside the transaction that
// applies the pulled changes, so the cursor can never run ahead of the data.
func setLastPulledAtTx(dt *DualTx, t time.Time) error {
	return kvPutTx(dt, kvKeyLastPulledAt, t.UTC())
}

// GetAuthToken returns the cached hub JWT, or "" when none is stored.
func GetAuthToken() (string, error) {
	var token string
	found, err := kvGet(kvKeyAuthToken, &token)
	if err != nil {
		return "", err
	}
	if !found {
		return "", nil
	}
	return token, nil
}

func SetAuthToken(token string) error {
	return kvPut(kvKeyAuthToken, token)
}
