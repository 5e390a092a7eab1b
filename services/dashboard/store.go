// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dashboard

// =============================================================================
// Dashboard Registry Persistence
// =============================================================================
//
// Dashboards are service-local state: small (a few KB each), read-mostly,
// and required to survive restarts. They live in an embedded BadgerDB rather
// than an external database — no network call, no availability dependency.
//
// Storage layout:
//
//	dashboard/v1/{uuid}  →  JSON-encoded Dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	dgbadger "github.com/dgraph-io/badger/v4"

	badgerstore "github.com/AleutianAI/genieverse/services/storage/badger"
)

// dashboardKeyPrefix is prepended to the dashboard ID to form the BadgerDB
// key. Versioned (v1) to allow future format changes without collision.
const dashboardKeyPrefix = "dashboard/v1/"

// Store persists dashboard definitions.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save writes or overwrites a dashboard.
	Save(ctx context.Context, dash *Dashboard) error

	// Get returns a dashboard by ID, ErrDashboardNotFound when absent.
	Get(ctx context.Context, id string) (*Dashboard, error)

	// List returns every stored dashboard in unspecified order.
	List(ctx context.Context) ([]*Dashboard, error)

	// Delete removes a dashboard by ID, ErrDashboardNotFound when absent.
	Delete(ctx context.Context, id string) error

	// DeleteAll removes every stored dashboard.
	DeleteAll(ctx context.Context) error
}

// BadgerStore implements Store backed by a BadgerDB instance. The DB is
// opened by the caller (typically main) and shared; this store does not own
// its lifecycle.
//
// # Thread Safety
//
// Safe for concurrent use. BadgerDB transactions are per-goroutine.
type BadgerStore struct {
	db     *badgerstore.DB
	logger *slog.Logger
}

// NewBadgerStore creates a BadgerStore on an opened DB.
func NewBadgerStore(db *badgerstore.DB, logger *slog.Logger) *BadgerStore {
	if db == nil {
		panic("NewBadgerStore: db must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStore{db: db, logger: logger}
}

// Save writes a dashboard under dashboard/v1/{id}.
func (s *BadgerStore) Save(ctx context.Context, dash *Dashboard) error {
	if dash == nil || dash.ID == "" {
		return fmt.Errorf("Save: dashboard must have an ID")
	}
	raw, err := json.Marshal(dash)
	if err != nil {
		return fmt.Errorf("encoding dashboard %s: %w", dash.ID, err)
	}
	err = s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		return txn.Set(dashboardKey(dash.ID), raw)
	})
	if err != nil {
		return fmt.Errorf("storing dashboard %s: %w", dash.ID, err)
	}
	return nil
}

// Get loads one dashboard by ID.
func (s *BadgerStore) Get(ctx context.Context, id string) (*Dashboard, error) {
	var raw []byte
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(dashboardKey(id))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return ErrDashboardNotFound
		}
		if err != nil {
			return fmt.Errorf("get dashboard key: %w", err)
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrDashboardNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDashboardNotFound, id)
		}
		return nil, fmt.Errorf("loading dashboard %s: %w", id, err)
	}

	var dash Dashboard
	if err := json.Unmarshal(raw, &dash); err != nil {
		return nil, fmt.Errorf("decoding dashboard %s: %w", id, err)
	}
	return &dash, nil
}

// List iterates the dashboard/v1/ prefix and decodes every entry.
func (s *BadgerStore) List(ctx context.Context) ([]*Dashboard, error) {
	var dashboards []*Dashboard
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = []byte(dashboardKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("copy value: %w", err)
			}
			var dash Dashboard
			if err := json.Unmarshal(raw, &dash); err != nil {
				// A corrupt entry should not hide the rest of the registry.
				s.logger.Warn("Skipping undecodable dashboard entry",
					slog.String("key", string(it.Item().Key())),
					slog.String("error", err.Error()),
				)
				continue
			}
			dashboards = append(dashboards, &dash)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing dashboards: %w", err)
	}
	return dashboards, nil
}

// Delete removes one dashboard, reporting ErrDashboardNotFound for unknown
// IDs so callers can distinguish a no-op from a removal.
func (s *BadgerStore) Delete(ctx context.Context, id string) error {
	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		if _, err := txn.Get(dashboardKey(id)); errors.Is(err, dgbadger.ErrKeyNotFound) {
			return ErrDashboardNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(dashboardKey(id))
	})
	if errors.Is(err, ErrDashboardNotFound) {
		return fmt.Errorf("%w: %s", ErrDashboardNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("deleting dashboard %s: %w", id, err)
	}
	return nil
}

// DeleteAll removes every dashboard entry under the prefix.
func (s *BadgerStore) DeleteAll(ctx context.Context) error {
	// Collect keys under a read txn first; deleting while iterating the
	// same txn invalidates the iterator.
	var keys [][]byte
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = []byte(dashboardKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("collecting dashboard keys: %w", err)
	}

	err = s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing dashboards: %w", err)
	}
	return nil
}

func dashboardKey(id string) []byte {
	return []byte(dashboardKeyPrefix + id)
}
