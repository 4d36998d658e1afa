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

// Package store defines where the per mount point history is persisted
// between check runs and how mount points are turned into storage keys.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudnative-pg/disk-forecast/pkg/sample"
)

// ErrCorruptRecord is returned by Load together with an empty history
// when the stored record for a mount point cannot be decoded.
var ErrCorruptRecord = errors.New("corrupt history record")

// ErrInvalidMountID is returned when parsing a string that was not
// produced by NewMountID.
var ErrInvalidMountID = errors.New("invalid mount identifier")

// Store persists the history of each mount point. Saving replaces the
// previous record of the same mount point entirely.
type Store interface {
	// Load returns the stored history, or an empty one if the mount
	// point has no record yet.
	Load(ctx context.Context, id MountID) (sample.History, error)
	// Save replaces the stored history of the mount point.
	Save(ctx context.Context, id MountID, history sample.History) error
}

// Lister is implemented by stores able to enumerate their records.
type Lister interface {
	List(ctx context.Context) ([]MountID, error)
}

// MountID is a filesystem-safe storage key derived from a mount point
// path. Path separators become underscores, and literal underscores and
// percent signs are escaped, which keeps the mapping reversible: the
// root path is "_" and /var/lib is "_var_lib".
type MountID string

var (
	mountIDEncoder = strings.NewReplacer("%", "%25", "_", "%5F", "/", "_")
	mountIDDecoder = strings.NewReplacer("%25", "%", "%5F", "_", "_", "/")
)

// NewMountID derives the storage key of a mount point.
func NewMountID(mountPath string) MountID {
	return MountID(mountIDEncoder.Replace(mountPath))
}

// ParseMountID validates a storage key read back from a store.
func ParseMountID(raw string) (MountID, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidMountID)
	}
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '/':
			return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidMountID, raw)
		case '%':
			if !strings.HasPrefix(raw[i:], "%25") && !strings.HasPrefix(raw[i:], "%5F") {
				return "", fmt.Errorf("%w: %q contains an invalid escape", ErrInvalidMountID, raw)
			}
		}
	}
	return MountID(raw), nil
}

// MountPath returns the mount point path the key was derived from.
func (id MountID) MountPath() string {
	return mountIDDecoder.Replace(string(id))
}

// String implements fmt.Stringer.
func (id MountID) String() string {
	return string(id)
}
