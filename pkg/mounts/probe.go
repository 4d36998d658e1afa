//go:build linux || darwin

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

package mounts

import (
	"fmt"
	"syscall"

	"github.com/cloudnative-pg/machinery/pkg/log"
)

// StatfsFunc is the function signature for statfs system calls.
// This is exposed for testing purposes to allow mocking.
type StatfsFunc func(path string, stat *syscall.Statfs_t) error

// defaultStatfs is the production statfs implementation.
func defaultStatfs(path string, stat *syscall.Statfs_t) error {
	return syscall.Statfs(path, stat)
}

// Probe measures filesystem capacity using statfs.
type Probe struct {
	statfsFunc StatfsFunc
}

// NewProbe creates a new Probe with the default statfs syscall.
func NewProbe() *Probe {
	return &Probe{
		statfsFunc: defaultStatfs,
	}
}

// NewProbeWithStatfs creates a new Probe with a custom statfs function.
// This is intended for testing.
func NewProbeWithStatfs(fn StatfsFunc) *Probe {
	return &Probe{
		statfsFunc: fn,
	}
}

// GetCapacity probes the filesystem mounted at the given path. Used space
// is computed as total minus free blocks, like df does.
func (p *Probe) GetCapacity(mountPath string) (*Capacity, error) {
	contextLogger := log.WithValues("mountPath", mountPath)

	var stat syscall.Statfs_t
	if err := p.statfsFunc(mountPath, &stat); err != nil {
		return nil, fmt.Errorf("statfs failed for path %s: %w", mountPath, err)
	}

	blockSize := uint64(stat.Bsize)
	totalBytes := stat.Blocks * blockSize
	freeBytes := stat.Bfree * blockSize
	availableBytes := stat.Bavail * blockSize

	capacity := &Capacity{
		TotalKB:     int64(totalBytes / kilobyte),
		UsedKB:      int64((totalBytes - freeBytes) / kilobyte),
		AvailableKB: int64(availableBytes / kilobyte),
	}

	contextLogger.Trace("disk probe completed",
		"totalKB", capacity.TotalKB,
		"usedKB", capacity.UsedKB,
		"availableKB", capacity.AvailableKB,
	)

	return capacity, nil
}
