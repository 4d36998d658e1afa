/*
Copyright © contributors to CloudNativePG, established as
CloudNativePG a Series of LF Projects, LLC.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.

SPDX-License-Identifier: Apache-2.0
*/

// Package sqlstore implements a store keeping histories in a PostgreSQL
// table, one row per sample.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cloudnative-pg/machinery/pkg/log"
	// the pgx driver is registered as "pgx"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"github.com/cloudnative-pg/disk-forecast/pkg/sample"
	"github.com/cloudnative-pg/disk-forecast/pkg/store"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "disk_forecast_samples"

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db    *sql.DB
	table string
}

// Open connects to the database identified by the DSN.
func Open(dsn, table string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("while opening history database: %w", err)
	}
	return New(db, table), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, table string) *Store {
	if table == "" {
		table = DefaultTable
	}
	return &Store{
		db:    db,
		table: pq.QuoteIdentifier(table),
	}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the history table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			mount_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			ts BIGINT NOT NULL,
			used_kb BIGINT NOT NULL,
			total_kb BIGINT NOT NULL,
			PRIMARY KEY (mount_id, position)
		)`, s.table))
	if err != nil {
		return fmt.Errorf("while creating history table %s: %w", s.table, err)
	}
	return nil
}

// Load implements store.Store. Rows holding negative values are reported
// as a corrupt record.
func (s *Store) Load(ctx context.Context, id store.MountID) (sample.History, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT ts, used_kb, total_kb FROM %s WHERE mount_id = $1 ORDER BY position`, s.table),
		string(id))
	if err != nil {
		return nil, fmt.Errorf("while reading history of %s: %w", id.MountPath(), err)
	}
	defer func() {
		_ = rows.Close()
	}()

	history := sample.History{}
	for rows.Next() {
		var smp sample.Sample
		if err := rows.Scan(&smp.Timestamp, &smp.UsedKB, &smp.TotalKB); err != nil {
			return nil, fmt.Errorf("while reading history of %s: %w", id.MountPath(), err)
		}
		if smp.Timestamp < 0 || smp.UsedKB < 0 || smp.TotalKB < 0 {
			return sample.History{}, fmt.Errorf("%w for %s: negative value in %s",
				store.ErrCorruptRecord, id.MountPath(), smp)
		}
		history = append(history, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("while reading history of %s: %w", id.MountPath(), err)
	}

	return history, nil
}

// Save implements store.Store, replacing the rows of the mount point in
// a single transaction.
func (s *Store) Save(ctx context.Context, id store.MountID, history sample.History) (err error) {
	contextLogger := log.FromContext(ctx).WithValues("mountID", id, "table", s.table)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("while starting history transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				contextLogger.Error(rollbackErr, "while rolling back history transaction")
			}
		}
	}()

	if _, err = tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE mount_id = $1`, s.table),
		string(id)); err != nil {
		return fmt.Errorf("while replacing history of %s: %w", id.MountPath(), err)
	}

	insert := fmt.Sprintf(
		`INSERT INTO %s (mount_id, position, ts, used_kb, total_kb) VALUES ($1, $2, $3, $4, $5)`,
		s.table)
	for position, smp := range history {
		if _, err = tx.ExecContext(ctx, insert,
			string(id), position, smp.Timestamp, smp.UsedKB, smp.TotalKB); err != nil {
			return fmt.Errorf("while replacing history of %s: %w", id.MountPath(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("while committing history of %s: %w", id.MountPath(), err)
	}

	contextLogger.Trace("history saved", "samples", len(history))
	return nil
}

// List implements store.Lister.
func (s *Store) List(ctx context.Context) ([]store.MountID, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT DISTINCT mount_id FROM %s ORDER BY mount_id`, s.table))
	if err != nil {
		return nil, fmt.Errorf("while listing histories: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []store.MountID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := store.ParseMountID(raw)
		if err != nil {
			log.FromContext(ctx).Warning("skipping invalid mount identifier", "mountID", raw)
			continue
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
