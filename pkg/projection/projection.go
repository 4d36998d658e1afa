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

// Package projection estimates when a filesystem will run out of space
// by extrapolating the usage trend between the oldest and the newest
// sample of its history.
package projection

import (
	"time"

	"github.com/cloudnative-pg/disk-forecast/pkg/sample"
)

// Kind is the outcome of a projection.
type Kind string

const (
	// KindInsufficientData means the history has fewer than two samples.
	KindInsufficientData Kind = "InsufficientData"
	// KindInsufficientTimeSpan means the first and last samples share
	// the same timestamp.
	KindInsufficientTimeSpan Kind = "InsufficientTimeSpan"
	// KindNoSignificantChange means the usage moved less than the
	// fluctuation threshold, in either direction.
	KindNoSignificantChange Kind = "NoSignificantChange"
	// KindNoGrowth means usage is stable or shrinking.
	KindNoGrowth Kind = "NoGrowth"
	// KindProjectedFull means the filesystem is projected to be full at
	// Result.FullAt.
	KindProjectedFull Kind = "ProjectedFull"
)

// Result is the outcome of Project.
type Result struct {
	Kind Kind `json:"kind"`

	// FullAt is the epoch second at which the filesystem reaches its
	// total capacity. Only meaningful for KindProjectedFull. It may be
	// in the past when the newest sample already reports no free space.
	FullAt float64 `json:"fullAt,omitempty"`

	// RateKBPerSecond is the growth rate between the two endpoints, set
	// whenever it could be computed.
	RateKBPerSecond float64 `json:"rateKBPerSecond,omitempty"`
}

// HasProjection returns true when the result carries a full time.
func (r Result) HasProjection() bool {
	return r.Kind == KindProjectedFull
}

// Until returns the time left from now until the projected full time.
// The boolean is false when the result carries no projection.
func (r Result) Until(now time.Time) (time.Duration, bool) {
	if !r.HasProjection() {
		return 0, false
	}
	seconds := r.SecondsUntil(now)
	if seconds > maxDurationSeconds {
		return time.Duration(1<<63 - 1), true
	}
	if seconds < -maxDurationSeconds {
		return time.Duration(-1 << 63), true
	}
	return time.Duration(seconds * float64(time.Second)), true
}

// SecondsUntil returns FullAt - now in seconds.
func (r Result) SecondsUntil(now time.Time) float64 {
	return r.FullAt - float64(now.Unix())
}

const maxDurationSeconds = float64(1<<63-1) / float64(time.Second)

// Project computes the linear trend between the chronological endpoints
// of the history (not its minimum and maximum) and extrapolates the time
// at which the newest sample's free space is exhausted.
//
// fluctuationKB is the minimum absolute usage change considered a trend;
// smaller changes, growth or shrinkage alike, are measurement noise.
func Project(history sample.History, fluctuationKB int64) Result {
	if len(history) < 2 {
		return Result{Kind: KindInsufficientData}
	}

	first, last := history[0], history[len(history)-1]
	if first.Timestamp == last.Timestamp {
		return Result{Kind: KindInsufficientTimeSpan}
	}

	usageDelta := last.UsedKB - first.UsedKB
	timeDelta := last.Timestamp - first.Timestamp

	if abs(usageDelta) < fluctuationKB {
		return Result{Kind: KindNoSignificantChange}
	}

	rate := float64(usageDelta) / float64(timeDelta)
	if rate <= 0 {
		return Result{Kind: KindNoGrowth, RateKBPerSecond: rate}
	}

	remaining := float64(last.TotalKB - last.UsedKB)
	secondsUntilFull := remaining / rate

	return Result{
		Kind:            KindProjectedFull,
		FullAt:          float64(last.Timestamp) + secondsUntilFull,
		RateKBPerSecond: rate,
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
