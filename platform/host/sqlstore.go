//go:build !tinygo

// Package host provides simulated board hardware for running the firmware
// lifecycle on a workstation: a SQLite-backed store, file-backed flash
// partitions, a websocket stand-in for the BLE peripheral and scripted
// sensors.
package host

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"einkcode-go/services/store"
)

const sqliteDriverName = "sqlite"

const schemaKV = `
CREATE TABLE IF NOT EXISTS kv (
    ns    TEXT NOT NULL,
    key   TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (ns, key)
);
`

const (
	qGet    = `SELECT value FROM kv WHERE ns = ? AND key = ?`
	qPut    = `INSERT INTO kv (ns, key, value) VALUES (?, ?, ?) ON CONFLICT (ns, key) DO UPDATE SET value = excluded.value`
	qDelete = `DELETE FROM kv WHERE ns = ? AND key = ?`
)

// SQLiteStore is a store.Backend over one table. It stands in for the NVS
// partition and survives simulated reboots.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database file and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA busy_timeout: %w", err)
	}
	if _, err := db.Exec(schemaKV); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an already prepared database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore { return &SQLiteStore{db: db} }

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Open(ns string, readOnly bool) (store.Handle, error) {
	if ns == "" {
		return nil, errors.New("empty namespace")
	}
	return &sqlHandle{db: s.db, ns: ns, ro: readOnly, staged: map[string]*string{}}, nil
}

// sqlHandle stages writes in memory; Commit applies them in one
// transaction. A nil staged value is a removal.
type sqlHandle struct {
	db     *sql.DB
	ns     string
	ro     bool
	closed bool
	staged map[string]*string
	order  []string
}

func (h *sqlHandle) Get(key string) (string, bool) {
	if v, ok := h.staged[key]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	var v string
	if err := h.db.QueryRow(qGet, h.ns, key).Scan(&v); err != nil {
		return "", false
	}
	return v, true
}

func (h *sqlHandle) stage(key string, v *string) error {
	switch {
	case h.closed:
		return store.ErrClosed
	case h.ro:
		return store.ErrReadOnly
	}
	if _, seen := h.staged[key]; !seen {
		h.order = append(h.order, key)
	}
	h.staged[key] = v
	return nil
}

func (h *sqlHandle) Put(key, value string) error { return h.stage(key, &value) }
func (h *sqlHandle) Remove(key string) error     { return h.stage(key, nil) }

func (h *sqlHandle) Commit() (err error) {
	if h.closed {
		return store.ErrClosed
	}
	if h.ro || len(h.order) == 0 {
		return nil
	}
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, k := range h.order {
		if v := h.staged[k]; v != nil {
			_, err = tx.Exec(qPut, h.ns, k, *v)
		} else {
			_, err = tx.Exec(qDelete, h.ns, k)
		}
		if err != nil {
			return fmt.Errorf("write %s/%s: %w", h.ns, k, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	h.staged = map[string]*string{}
	h.order = nil
	return nil
}

func (h *sqlHandle) Close() error {
	h.closed = true
	h.staged = nil
	return nil
}
