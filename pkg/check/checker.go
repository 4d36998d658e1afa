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

package check

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudnative-pg/machinery/pkg/log"

	"github.com/cloudnative-pg/disk-forecast/pkg/alert"
	"github.com/cloudnative-pg/disk-forecast/pkg/mounts"
	"github.com/cloudnative-pg/disk-forecast/pkg/projection"
	"github.com/cloudnative-pg/disk-forecast/pkg/retention"
	"github.com/cloudnative-pg/disk-forecast/pkg/sample"
	"github.com/cloudnative-pg/disk-forecast/pkg/store"
)

// Checker updates the history of each mount point and classifies its
// growth trend.
type Checker struct {
	store         store.Store
	threshold     time.Duration
	fluctuationKB int64
	metrics       *Metrics
}

// NewChecker creates a checker persisting histories in st. Mount points
// projected to be full sooner than threshold are critical, and usage
// changes smaller than fluctuationKB are ignored.
func NewChecker(st store.Store, threshold time.Duration, fluctuationKB int64) *Checker {
	return &Checker{
		store:         st,
		threshold:     threshold,
		fluctuationKB: fluctuationKB,
	}
}

// WithMetrics makes the checker publish every report to m.
func (c *Checker) WithMetrics(m *Metrics) *Checker {
	c.metrics = m
	return c
}

// Run checks every mount point, in the given order, using now as the
// sample time.
func (c *Checker) Run(ctx context.Context, usages []mounts.Usage, now time.Time) *Report {
	contextLogger := log.FromContext(ctx).WithName("check")

	results := make([]MountResult, 0, len(usages))
	for _, usage := range usages {
		results = append(results, c.checkMount(log.IntoContext(ctx, contextLogger), usage, now))
	}

	report := newReport(now, results)
	contextLogger.Debug("check completed", "status", report.Status, "mountpoints", len(results))

	if c.metrics != nil {
		c.metrics.SetReport(report)
	}

	return report
}

func (c *Checker) checkMount(ctx context.Context, usage mounts.Usage, now time.Time) MountResult {
	contextLogger := log.FromContext(ctx).WithValues("mountpoint", usage.Path)
	result := MountResult{Usage: usage}

	id := store.NewMountID(usage.Path)
	history, err := c.store.Load(ctx, id)
	switch {
	case errors.Is(err, store.ErrCorruptRecord):
		contextLogger.Warning("discarding corrupt history", "error", err.Error())
		history = sample.History{}
	case err != nil:
		contextLogger.Error(err, "while loading history")
		result.Verdict = alert.Unknown(usage.Path, fmt.Errorf("cannot load history: %w", err))
		return result
	}

	history = history.Append(sample.New(now, usage.UsedKB, usage.TotalKB))
	history = retention.Prune(history, now)

	if err := c.store.Save(ctx, id, history); err != nil {
		contextLogger.Error(err, "while saving history")
		result.Verdict = alert.Unknown(usage.Path, fmt.Errorf("cannot save history: %w", err))
		return result
	}
	result.Samples = len(history)

	projected := projection.Project(history, c.fluctuationKB)
	result.Verdict = alert.Evaluate(usage.Path, projected, now, c.threshold)

	contextLogger.Debug("mount point evaluated",
		"samples", len(history),
		"projection", projected.Kind,
		"rateKBPerSecond", projected.RateKBPerSecond,
		"status", result.Verdict.Status)

	return result
}
