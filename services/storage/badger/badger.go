// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package badger wraps BadgerDB with a small context-aware transaction API.
//
// BadgerDB is embedded storage: no network call, no availability dependency.
// That makes it the right home for service-local state like saved dashboards,
// which are small, read-mostly, and must survive restarts without dragging in
// an external database.
package badger

import (
	"context"
	"fmt"
	"log/slog"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// Config controls how the DB is opened.
type Config struct {
	// Path is the storage directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps all data in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every write. Off by default; dashboard state can
	// afford to lose the last few seconds on a crash.
	SyncWrites bool
}

// DefaultConfig returns the standard on-disk configuration. The caller sets
// Path before opening.
func DefaultConfig() Config {
	return Config{}
}

// InMemoryConfig returns a configuration for an ephemeral in-memory DB.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// DB is an opened BadgerDB handle.
//
// # Thread Safety
//
// Safe for concurrent use. Transactions are per-goroutine.
type DB struct {
	inner *dgbadger.DB
}

// OpenDB opens a BadgerDB with the given configuration.
//
// # Description
//
// Badger's own chatty logger is silenced; open/close events are logged
// through slog instead.
//
// # Inputs
//   - cfg: Open configuration. Path must be non-empty unless InMemory.
//
// # Outputs
//   - *DB: The opened handle. The caller owns its lifecycle and must Close it.
//   - error: Non-nil when the directory cannot be opened or is locked.
func OpenDB(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("OpenDB: path must not be empty")
	}

	opts := dgbadger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	inner, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("OpenDB: opening badger at %q: %w", cfg.Path, err)
	}

	slog.Debug("BadgerDB opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory),
	)
	return &DB{inner: inner}, nil
}

// WithTxn runs fn inside a read-write transaction, committing on nil return.
//
// The context is checked before the transaction starts; Badger itself does
// not support mid-transaction cancellation.
func (db *DB) WithTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.inner.Update(fn)
}

// WithReadTxn runs fn inside a read-only transaction.
func (db *DB) WithReadTxn(ctx context.Context, fn func(txn *dgbadger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.inner.View(fn)
}

// Close flushes and closes the DB. Safe to call once; the handle is unusable
// afterwards.
func (db *DB) Close() error {
	if err := db.inner.Close(); err != nil {
		return fmt.Errorf("closing badger: %w", err)
	}
	slog.Debug("BadgerDB closed")
	return nil
}
