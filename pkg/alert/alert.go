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

// Package alert classifies trend projections into monitoring verdicts.
package alert

import (
	"fmt"
	"math"
	"time"

	"github.com/cloudnative-pg/disk-forecast/pkg/projection"
)

// Status is the three-state monitoring classification.
type Status string

const (
	// StatusOK means no action is needed.
	StatusOK Status = "OK"
	// StatusCritical means a filesystem is projected to fill up within
	// the threshold.
	StatusCritical Status = "CRITICAL"
	// StatusUnknown means the state could not be determined.
	StatusUnknown Status = "UNKNOWN"
)

// ExitCode maps the status to the monitoring plugin exit code.
func (s Status) ExitCode() int {
	switch s {
	case StatusOK:
		return 0
	case StatusCritical:
		return 2
	default:
		return 3
	}
}

// severity orders statuses for aggregation: CRITICAL wins over UNKNOWN,
// which wins over OK.
func (s Status) severity() int {
	switch s {
	case StatusOK:
		return 0
	case StatusUnknown:
		return 1
	case StatusCritical:
		return 2
	default:
		return 1
	}
}

// Worst returns the most severe of the given statuses, StatusOK when
// none is given.
func Worst(statuses ...Status) Status {
	worst := StatusOK
	for _, s := range statuses {
		if s.severity() > worst.severity() {
			worst = s
		}
	}
	return worst
}

// Verdict is the classification of a single mount point.
type Verdict struct {
	// Mount is the mount point path.
	Mount string `json:"mount"`
	// Status is the classification.
	Status Status `json:"status"`
	// Reason is a human readable explanation.
	Reason string `json:"reason"`
	// HoursUntilFull is the projected time left, NaN when no projection
	// could be computed.
	HoursUntilFull float64 `json:"-"`
}

// HasProjection returns true if the verdict carries an hours value.
func (v Verdict) HasProjection() bool {
	return !math.IsNaN(v.HoursUntilFull)
}

// Evaluate compares a projection with the alerting threshold.
func Evaluate(mount string, result projection.Result, now time.Time, threshold time.Duration) Verdict {
	verdict := Verdict{
		Mount:          mount,
		Status:         StatusOK,
		HoursUntilFull: math.NaN(),
	}

	switch result.Kind {
	case projection.KindInsufficientData:
		verdict.Reason = fmt.Sprintf("%s: not enough data to predict", mount)
	case projection.KindInsufficientTimeSpan:
		verdict.Reason = fmt.Sprintf("%s: samples too close in time to predict", mount)
	case projection.KindNoSignificantChange:
		verdict.Reason = fmt.Sprintf("%s: no significant change in usage", mount)
	case projection.KindNoGrowth:
		verdict.Reason = fmt.Sprintf("%s: usage is not growing", mount)
	case projection.KindProjectedFull:
		secondsUntilFull := result.SecondsUntil(now)
		verdict.HoursUntilFull = secondsUntilFull / 3600
		if secondsUntilFull < threshold.Seconds() {
			verdict.Status = StatusCritical
			verdict.Reason = fmt.Sprintf("%s: full in %.2f hours (threshold %s hours)",
				mount, verdict.HoursUntilFull, formatHours(threshold))
		} else {
			verdict.Reason = fmt.Sprintf("%s: full in %.2f hours", mount, verdict.HoursUntilFull)
		}
	default:
		return Unknown(mount, fmt.Errorf("unexpected projection kind %q", result.Kind))
	}

	return verdict
}

// Unknown builds the verdict of a mount whose state could not be
// determined.
func Unknown(mount string, err error) Verdict {
	return Verdict{
		Mount:          mount,
		Status:         StatusUnknown,
		Reason:         fmt.Sprintf("%s: %v", mount, err),
		HoursUntilFull: math.NaN(),
	}
}

func formatHours(d time.Duration) string {
	hours := d.Hours()
	if hours == math.Trunc(hours) {
		return fmt.Sprintf("%.0f", hours)
	}
	return fmt.Sprintf("%.2f", hours)
}
