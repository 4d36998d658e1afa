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

// Package filestore implements a store keeping one plain text file per
// mount point inside a data directory.
//
//	/tmp/check_disk_forecast/
//	  _.history
//	  _var_lib_postgresql.history
//
// Each file holds one "timestamp,used_kb,total_kb" line per sample,
// oldest first.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/cloudnative-pg/machinery/pkg/log"

	"github.com/cloudnative-pg/disk-forecast/pkg/sample"
	"github.com/cloudnative-pg/disk-forecast/pkg/store"
)

const recordSuffix = ".history"

// recordFileRegex matches history record file names, skipping the
// temporary files used while writing
var recordFileRegex = regexp.MustCompile(`^([^.].*)\.history$`)

// Store is a file-backed store.Store.
type Store struct {
	dir string
}

// New creates a store rooted at dir. The directory is created on the
// first Save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the data directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) recordPath(id store.MountID) string {
	return filepath.Join(s.dir, string(id)+recordSuffix)
}

// Load implements store.Store. A missing record is an empty history. A
// record that cannot be decoded is returned as an empty history together
// with an error wrapping store.ErrCorruptRecord.
func (s *Store) Load(_ context.Context, id store.MountID) (sample.History, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return sample.History{}, nil
		}
		return nil, fmt.Errorf("while reading history of %s: %w", id.MountPath(), err)
	}

	history, err := sample.Decode(bytes.NewReader(data))
	if err != nil {
		return sample.History{}, fmt.Errorf("%w %s: %w", store.ErrCorruptRecord, s.recordPath(id), err)
	}

	return history, nil
}

// Save implements store.Store. The record is written to a temporary file
// and renamed over the previous one, so readers never see a partial
// record.
func (s *Store) Save(ctx context.Context, id store.MountID, history sample.History) error {
	contextLogger := log.FromContext(ctx).WithValues("path", s.recordPath(id))

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("while creating data directory %s: %w", s.dir, err)
	}

	var buf bytes.Buffer
	if err := history.Encode(&buf); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+string(id)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("while creating temporary record for %s: %w", id.MountPath(), err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("while writing history of %s: %w", id.MountPath(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("while closing history of %s: %w", id.MountPath(), err)
	}
	if err := os.Rename(tmpName, s.recordPath(id)); err != nil {
		return fmt.Errorf("while replacing history of %s: %w", id.MountPath(), err)
	}
	success = true

	contextLogger.Trace("history saved", "samples", len(history))
	return nil
}

// List implements store.Lister, returning the stored mount identifiers
// in key order. A missing data directory has no records.
func (s *Store) List(_ context.Context) ([]store.MountID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var ids []store.MountID
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := recordFileRegex.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		id, err := store.ParseMountID(match[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids, nil
}
