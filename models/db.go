package models

import (
	"database/sql"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Local Store
//
// The local replica lives in two DuckDB databases: a durable on-disk file
// (the state of record) and an in-memory copy used as a fast read cache.
// Writes go through both — disk first for durability, then memory — either
// as single statements (WriteThrough) or as an atomic multi-statement
// transaction (DualTx). Reads hit the memory cache and fall back to disk.
//
// Transactions never nest: BeginDualTx takes the package write lock, so a
// transactional helper called from inside another transaction's body will
// deadlock by construction. Callers must sequence transactional operations
// strictly after any enclosing transaction completes.
// ============================================================================

var (
	db      *sql.DB      // Persistent on-disk store (state of record)
	cacheDB *sql.DB      // In-memory cache for fast reads
	dbMu    sync.RWMutex // Serializes writes across both databases
)

// InitDB opens the disk and memory databases at the given path and runs
// the schema bootstrap on both.
func InitDB(path string) error {
	var err error

	db, err = sql.Open("duckdb", path)
	if err != nil {
		return serr.Wrap(err, "failed to open disk database")
	}

	// Empty DSN gives an in-memory DuckDB instance
	cacheDB, err = sql.Open("duckdb", "")
	if err != nil {
		return serr.Wrap(err, "failed to open memory database")
	}

	if err := migrateDB(db); err != nil {
		return serr.Wrap(err, "disk migration failed")
	}
	if err := migrateDB(cacheDB); err != nil {
		return serr.Wrap(err, "memory migration failed")
	}

	if err := loadDiskToCache(); err != nil {
		return serr.Wrap(err, "failed to load disk data into cache")
	}

	return nil
}

// InitTestDB initializes the store against a throwaway database file.
// Identical to InitDB; the separate name keeps test intent obvious.
func InitTestDB(path string) error {
	return InitDB(path)
}

// CloseDB closes both database connections.
func CloseDB() {
	if cacheDB != nil {
		cacheDB.Close()
		cacheDB = nil
	}
	if db != nil {
		db.Close()
		db = nil
	}
}

// syncedTables are the tables mirrored between disk and cache, ordered so
// referenced tables load before the rows that point at them.
var syncedTables = []string{"folders", "tags", "notes", "note_tags", "sync_queue", "kv_state", "sync_cycles"}

// loadDiskToCache copies all rows from the disk store into the memory cache
// at startup, one table at a time.
func loadDiskToCache() error {
	for _, table := range syncedTables {
		rows, err := db.Query("SELECT * FROM " + table)
		if err != nil {
			return serr.Wrap(err, "failed to read table from disk", "table", table)
		}

		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return serr.Wrap(err, "failed to get columns", "table", table)
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
		stmt, err := cacheDB.Prepare("INSERT INTO " + table + " VALUES (" + placeholders + ")")
		if err != nil {
			rows.Close()
			return serr.Wrap(err, "failed to prepare cache insert", "table", table)
		}

		values := make([]interface{}, len(cols))
		valuePtrs := make([]interface{}, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		for rows.Next() {
			if err := rows.Scan(valuePtrs...); err != nil {
				logger.LogErr(err, "failed to scan row during cache load", "table", table)
				continue
			}
			if _, err := stmt.Exec(values...); err != nil {
				logger.LogErr(err, "failed to insert row into cache", "table", table)
			}
		}

		stmt.Close()
		rows.Close()
	}

	return nil
}

// WriteThrough executes a single statement against disk then memory.
// Disk failure aborts; a cache failure is logged but does not fail the
// write since the durable copy succeeded.
func WriteThrough(query string, args ...interface{}) error {
	dbMu.Lock()

	if _, err := db.Exec(query, args...); err != nil {
		dbMu.Unlock()
		return serr.Wrap(err, "failed to write to disk")
	}

	if _, err := cacheDB.Exec(query, args...); err != nil {
		logger.LogErr(err, "failed to update memory cache")
	}

	dbMu.Unlock()
	notifyCommitted([]string{tableOfStatement(query)})
	return nil
}

// ReadFromCache performs fast reads from memory, falling back to disk.
func ReadFromCache(query string, args ...interface{}) (*sql.Rows, error) {
	dbMu.RLock()
	defer dbMu.RUnlock()

	rows, err := cacheDB.Query(query, args...)
	if err != nil {
		logger.LogErr(err, "cache read failed, falling back to disk")
		return db.Query(query, args...)
	}

	return rows, nil
}

// QueryRowFromCache performs a single-row read from the memory cache.
func QueryRowFromCache(query string, args ...interface{}) *sql.Row {
	dbMu.RLock()
	defer dbMu.RUnlock()

	return cacheDB.QueryRow(query, args...)
}

// DualTx is an atomic transaction spanning the disk and memory databases.
// Commit is all-or-nothing on disk; the cache mirrors the disk outcome.
type DualTx struct {
	diskTx    *sql.Tx
	memTx     *sql.Tx
	touched   map[string]bool
	committed bool // Commit releases the lock; Rollback must not release twice
}

// BeginDualTx starts a transaction on both databases.
// Holds the package write lock until Commit or Rollback.
func BeginDualTx() (*DualTx, error) {
	dbMu.Lock()

	diskTx, err := db.Begin()
	if err != nil {
		dbMu.Unlock()
		return nil, serr.Wrap(err, "failed to begin disk transaction")
	}

	memTx, err := cacheDB.Begin()
	if err != nil {
		diskTx.Rollback()
		dbMu.Unlock()
		return nil, serr.Wrap(err, "failed to begin memory transaction")
	}

	return &DualTx{
		diskTx:  diskTx,
		memTx:   memTx,
		touched: map[string]bool{},
	}, nil
}

// Exec executes the statement on both transactions.
// A disk failure aborts; a memory failure is logged only.
func (dt *DualTx) Exec(query string, args ...interface{}) error {
	if _, err := dt.diskTx.Exec(query, args...); err != nil {
		return err
	}

	if _, err := dt.memTx.Exec(query, args...); err != nil {
		logger.LogErr(err, "memory tx exec failed")
	}

	dt.touched[tableOfStatement(query)] = true
	return nil
}

// QueryRow reads a single row through the disk transaction, so statements
// earlier in the same transaction are visible.
func (dt *DualTx) QueryRow(query string, args ...interface{}) *sql.Row {
	return dt.diskTx.QueryRow(query, args...)
}

// Query reads rows through the disk transaction.
func (dt *DualTx) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return dt.diskTx.Query(query, args...)
}

// NextID draws the next value from a sequence so inserts can carry an
// explicit id into both databases.
func (dt *DualTx) NextID(sequence string) (int64, error) {
	var id int64
	err := dt.diskTx.QueryRow("SELECT nextval('" + sequence + "')").Scan(&id)
	if err != nil {
		return 0, serr.Wrap(err, "failed to get next sequence value", "sequence", sequence)
	}
	// Keep the cache sequence in step so a fallback insert cannot collide
	if _, err := dt.memTx.Exec("SELECT nextval('" + sequence + "')"); err != nil {
		logger.LogErr(err, "failed to advance cache sequence", "sequence", sequence)
	}
	return id, nil
}

// Commit commits disk first, then memory, then fires commit notifications.
func (dt *DualTx) Commit() error {
	if err := dt.diskTx.Commit(); err != nil {
		dt.memTx.Rollback()
		dt.committed = true
		dbMu.Unlock()
		return serr.Wrap(err, "failed to commit disk transaction")
	}

	if err := dt.memTx.Commit(); err != nil {
		logger.LogErr(err, "failed to commit memory transaction")
	}

	tables := make([]string, 0, len(dt.touched))
	for t := range dt.touched {
		tables = append(tables, t)
	}

	dt.committed = true
	dbMu.Unlock()

	// Notify with the lock released so subscribers can read the store.
	notifyCommitted(tables)

	return nil
}

// Rollback discards both transactions. Safe to defer after Commit.
func (dt *DualTx) Rollback() error {
	if dt.committed {
		return nil
	}
	defer dbMu.Unlock()

	dt.diskTx.Rollback()
	dt.memTx.Rollback()

	return nil
}

// tableOfStatement extracts the target table name from an INSERT, UPDATE,
// or DELETE statement. Good enough for the fixed statements this package
// issues; returns "" for anything it cannot recognize.
func tableOfStatement(query string) string {
	fields := strings.Fields(strings.ToLower(query))
	for i, f := range fields {
		if i+1 >= len(fields) {
			break
		}
		switch f {
		case "into", "update":
			return strings.Trim(fields[i+1], `"(`)
		case "from":
			if i > 0 && fields[i-1] == "delete" {
				return strings.Trim(fields[i+1], `"(`)
			}
		}
	}
	return ""
}

// ============================================================================
// Commit notifications
//
// Observer-style live queries are an external concern: a subscriber registers
// interest in a table and re-evaluates its own query whenever a transaction
// touching that table commits. The store knows nothing beyond the table key.
// ============================================================================

type storeSubscription struct {
	id     int
	table  string
	notify func()
}

var (
	subMu     sync.Mutex
	subNextID int
	storeSubs []storeSubscription
)

// OnCommit registers fn to run after any committed write touching table.
// Returns a subscription id for OffCommit.
func OnCommit(table string, fn func()) int {
	subMu.Lock()
	defer subMu.Unlock()

	subNextID++
	storeSubs = append(storeSubs, storeSubscription{id: subNextID, table: table, notify: fn})
	return subNextID
}

// OffCommit removes a commit subscription by id.
func OffCommit(id int) {
	subMu.Lock()
	defer subMu.Unlock()

	for i, s := range storeSubs {
		if s.id == id {
			storeSubs = append(storeSubs[:i], storeSubs[i+1:]...)
			return
		}
	}
}

// notifyCommitted invokes subscribers for each touched table, in
// registration order. A panicking subscriber is isolated and logged.
func notifyCommitted(tables []string) {
	subMu.Lock()
	subs := make([]storeSubscription, len(storeSubs))
	copy(subs, storeSubs)
	subMu.Unlock()

	for _, s := range subs {
		for _, t := range tables {
			if s.table != t {
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Info("commit subscriber panicked", "table", s.table, "panic", r)
					}
				}()
				s.notify()
			}()
		}
	}
}
