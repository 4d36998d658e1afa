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

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cloudnative-pg/disk-forecast/pkg/sample"
)

// MemoryStore keeps histories in memory. It is used by tests and by
// callers that do not need persistence across runs.
type MemoryStore struct {
	mu        sync.Mutex
	histories map[MountID]sample.History
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		histories: make(map[MountID]sample.History),
	}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id MountID) (sample.History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.histories[id].Clone(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, id MountID, history sample.History) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.histories[id] = history.Clone()
	return nil
}

// List implements Lister.
func (m *MemoryStore) List(_ context.Context) ([]MountID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]MountID, 0, len(m.histories))
	for id := range m.histories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
