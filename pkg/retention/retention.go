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

// Package retention bounds the history kept for every mount point to a
// rolling time window.
package retention

import (
	"time"

	"github.com/cloudnative-pg/disk-forecast/pkg/sample"
)

// Window is the age after which a sample is discarded.
const Window = 7 * 24 * time.Hour

// IsExpired returns true if the sample is at least Window old at the
// given time.
func IsExpired(s sample.Sample, now time.Time) bool {
	return s.Timestamp+int64(Window/time.Second) <= now.Unix()
}

// Prune removes every sample with timestamp + Window <= now.
// The relative order of the surviving samples is preserved and the
// input history is not modified.
func Prune(history sample.History, now time.Time) sample.History {
	valid := make(sample.History, 0, len(history))
	for _, s := range history {
		if !IsExpired(s, now) {
			valid = append(valid, s)
		}
	}

	return valid
}
