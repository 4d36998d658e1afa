//go:build !linux && !darwin

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
	"runtime"
)

// Probe measures filesystem capacity. On this platform it always fails.
type Probe struct{}

// NewProbe creates a new Probe.
func NewProbe() *Probe {
	return &Probe{}
}

// GetCapacity always returns ErrUnsupportedPlatform.
func (p *Probe) GetCapacity(mountPath string) (*Capacity, error) {
	return nil, fmt.Errorf("%w (%s): %s", ErrUnsupportedPlatform, runtime.GOOS, mountPath)
}
