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

package forecast

import (
	"context"
	"fmt"

	"github.com/cloudnative-pg/machinery/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/utils/clock"

	"github.com/cloudnative-pg/disk-forecast/internal/configuration"
	"github.com/cloudnative-pg/disk-forecast/pkg/check"
	"github.com/cloudnative-pg/disk-forecast/pkg/mounts"
	"github.com/cloudnative-pg/disk-forecast/pkg/store"
	"github.com/cloudnative-pg/disk-forecast/pkg/store/filestore"
	"github.com/cloudnative-pg/disk-forecast/pkg/store/sqlstore"
)

// runner holds everything a check run needs, built once from the
// settings and reused by every run of the watch command.
type runner struct {
	settings *configuration.Data
	store    store.Store
	closer   func() error
	source   mounts.Source
	clock    clock.PassiveClock
	checker  *check.Checker
	registry *prometheus.Registry
}

func openStore(ctx context.Context, settings *configuration.Data) (store.Store, func() error, error) {
	switch settings.Store {
	case configuration.StoreKindPostgres:
		sqlStore, err := sqlstore.Open(settings.StoreDSN, settings.StoreTable)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlStore.EnsureSchema(ctx); err != nil {
			_ = sqlStore.Close()
			return nil, nil, err
		}
		return sqlStore, sqlStore.Close, nil

	default:
		return filestore.New(settings.DataDir), func() error { return nil }, nil
	}
}

func newRunner(ctx context.Context, settings *configuration.Data, deps dependencies) (*runner, error) {
	st, closer, err := openStore(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("while opening history store: %w", err)
	}

	r := &runner{
		settings: settings,
		store:    st,
		closer:   closer,
		source:   deps.sources(settings),
		clock:    deps.clock,
		checker:  check.NewChecker(st, settings.Threshold(), settings.FluctuationThresholdKB()),
	}

	if settings.MetricsFile != "" {
		metrics := check.NewMetrics()
		r.registry = prometheus.NewRegistry()
		if err := metrics.Register(r.registry); err != nil {
			_ = closer()
			return nil, fmt.Errorf("while registering metrics: %w", err)
		}
		r.checker.WithMetrics(metrics)
	}

	return r, nil
}

// run takes one sample of every filesystem and evaluates it.
func (r *runner) run(ctx context.Context) (*check.Report, error) {
	contextLogger := log.FromContext(ctx)

	usages, err := r.source.Mounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("while listing filesystems: %w", err)
	}

	report := r.checker.Run(ctx, usages, r.clock.Now())

	if r.registry != nil {
		if err := check.WriteTextfile(r.settings.MetricsFile, r.registry); err != nil {
			contextLogger.Error(err, "while exporting metrics")
		}
	}

	return report, nil
}

func (r *runner) close(ctx context.Context) {
	if err := r.closer(); err != nil {
		log.FromContext(ctx).Warning("while closing history store", "error", err.Error())
	}
}
