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

// Package check runs the disk exhaustion forecast over a set of mount
// points and renders the outcome as a single monitoring status line.
package check

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloudnative-pg/disk-forecast/pkg/alert"
	"github.com/cloudnative-pg/disk-forecast/pkg/mounts"
)

// MountResult is the outcome of the check of a single mount point.
type MountResult struct {
	// Verdict is the classification of the mount point.
	Verdict alert.Verdict
	// Usage is the sample taken during this run.
	Usage mounts.Usage
	// Samples is the number of retained samples, zero when the history
	// could not be loaded.
	Samples int
}

// Report collects the results of a check run in the order the mount
// points were checked.
type Report struct {
	Status  alert.Status
	Time    time.Time
	Results []MountResult
}

func newReport(now time.Time, results []MountResult) *Report {
	statuses := make([]alert.Status, len(results))
	for i := range results {
		statuses[i] = results[i].Verdict.Status
	}
	return &Report{
		Status:  alert.Worst(statuses...),
		Time:    now,
		Results: results,
	}
}

// Verdicts returns the per mount point verdicts.
func (r *Report) Verdicts() []alert.Verdict {
	verdicts := make([]alert.Verdict, len(r.Results))
	for i := range r.Results {
		verdicts[i] = r.Results[i].Verdict
	}
	return verdicts
}

// ExitCode is the process exit code matching the overall status.
func (r *Report) ExitCode() int {
	return r.Status.ExitCode()
}

// String renders the status line:
//
//	<STATUS>: <reason>; <reason> | <perf>; <perf>
func (r *Report) String() string {
	if len(r.Results) == 0 {
		return fmt.Sprintf("%s: no filesystems to check", r.Status)
	}

	reasons := make([]string, len(r.Results))
	perf := make([]string, len(r.Results))
	for i, result := range r.Results {
		reasons[i] = result.Verdict.Reason
		perf[i] = PerfData(result.Verdict)
	}

	return fmt.Sprintf("%s: %s | %s", r.Status, strings.Join(reasons, "; "), strings.Join(perf, "; "))
}

// PerfData renders the performance data fragment of a verdict.
func PerfData(v alert.Verdict) string {
	if !v.HasProjection() {
		return v.Mount + "=NaN"
	}
	return fmt.Sprintf("%s=%.2f hours", v.Mount, v.HoursUntilFull)
}
