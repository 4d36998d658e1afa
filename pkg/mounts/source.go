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

// Package mounts enumerates the mounted filesystems and measures their
// capacity. Measuring is supported on Linux and macOS; elsewhere every
// probe fails and no filesystem is reported.
package mounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudnative-pg/machinery/pkg/log"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/thoas/go-funk"
)

// DefaultExcludedFSTypes lists the pseudo filesystems skipped unless
// configured otherwise, in the pipe-delimited command line form.
const DefaultExcludedFSTypes = "tmpfs|devtmpfs|devfs|proc|sysfs|cgroup|cgroup2|devpts|mqueue|debugfs|" +
	"tracefs|securityfs|pstore|bpf|autofs|fusectl|configfs|hugetlbfs|nsfs|ramfs|efivarfs|" +
	"binfmt_misc|rpc_pipefs|overlay|squashfs|iso9660|nullfs"

// ErrUnsupportedPlatform is returned by probes on systems without statfs
// support.
var ErrUnsupportedPlatform = errors.New("filesystem probing is not supported on this platform")

// kilobyte is the block size usage is reported in
const kilobyte = 1024

// Capacity is the usage of a filesystem, in kilobytes.
type Capacity struct {
	// TotalKB is the size of the filesystem.
	TotalKB int64 `json:"totalKB"`
	// UsedKB is the space in use, including blocks reserved to root.
	UsedKB int64 `json:"usedKB"`
	// AvailableKB is the space available to unprivileged users.
	AvailableKB int64 `json:"availableKB"`
}

// Usage is the capacity of one mounted filesystem at enumeration time.
type Usage struct {
	// Path is the mount point.
	Path string `json:"path"`
	// FSType is the filesystem type.
	FSType string `json:"fsType"`
	// UsedKB is the used capacity in kilobytes.
	UsedKB int64 `json:"usedKB"`
	// TotalKB is the total capacity in kilobytes.
	TotalKB int64 `json:"totalKB"`
}

// Source reports the usage of every filesystem to be checked.
type Source interface {
	Mounts(ctx context.Context) ([]Usage, error)
}

// PartitionsFunc lists mounted partitions. It matches the gopsutil
// signature and is exposed to allow mocking.
type PartitionsFunc func(ctx context.Context, all bool) ([]disk.PartitionStat, error)

// SystemSource enumerates the mounted filesystems of the local host.
type SystemSource struct {
	excluded   []string
	partitions PartitionsFunc
	probe      *Probe
}

// NewSystemSource creates a source skipping the given filesystem types.
func NewSystemSource(excludedFSTypes []string) *SystemSource {
	return &SystemSource{
		excluded:   excludedFSTypes,
		partitions: disk.PartitionsWithContext,
		probe:      NewProbe(),
	}
}

// NewSystemSourceWith creates a source using custom partition listing and
// probing. This is intended for testing.
func NewSystemSourceWith(excludedFSTypes []string, partitions PartitionsFunc, probe *Probe) *SystemSource {
	return &SystemSource{
		excluded:   excludedFSTypes,
		partitions: partitions,
		probe:      probe,
	}
}

// Mounts implements Source. Mount points are reported once, in the order
// the system lists them. A filesystem that cannot be probed is skipped.
func (s *SystemSource) Mounts(ctx context.Context) ([]Usage, error) {
	contextLogger := log.FromContext(ctx).WithName("mounts")

	partitions, err := s.partitions(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("while listing mounted filesystems: %w", err)
	}

	seen := make(map[string]struct{}, len(partitions))
	usages := make([]Usage, 0, len(partitions))
	for _, partition := range partitions {
		if funk.ContainsString(s.excluded, partition.Fstype) {
			continue
		}
		if _, ok := seen[partition.Mountpoint]; ok {
			continue
		}
		seen[partition.Mountpoint] = struct{}{}

		capacity, err := s.probe.GetCapacity(partition.Mountpoint)
		if err != nil {
			contextLogger.Warning("skipping filesystem that cannot be probed",
				"mountPath", partition.Mountpoint,
				"fsType", partition.Fstype,
				"error", err)
			continue
		}
		if capacity.TotalKB == 0 {
			contextLogger.Debug("skipping filesystem with no capacity",
				"mountPath", partition.Mountpoint,
				"fsType", partition.Fstype)
			continue
		}

		usages = append(usages, Usage{
			Path:    partition.Mountpoint,
			FSType:  partition.Fstype,
			UsedKB:  capacity.UsedKB,
			TotalKB: capacity.TotalKB,
		})
	}

	return usages, nil
}

// ParseFSTypes splits a pipe-delimited filesystem type list, dropping
// blanks and duplicates.
func ParseFSTypes(list string) []string {
	var types []string
	for _, fsType := range strings.Split(list, "|") {
		fsType = strings.TrimSpace(fsType)
		if fsType == "" || funk.ContainsString(types, fsType) {
			continue
		}
		types = append(types, fsType)
	}
	return types
}

// StaticSource always reports the same usages.
type StaticSource []Usage

// Mounts implements Source.
func (s StaticSource) Mounts(_ context.Context) ([]Usage, error) {
	return append([]Usage(nil), s...), nil
}
