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
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const namespace = "disk_forecast"

const mountpointLabel = "mountpoint"

// Metrics exposes the outcome of the last check run.
type Metrics struct {
	HoursUntilFull *prometheus.GaugeVec
	UsedKilobytes  *prometheus.GaugeVec
	TotalKilobytes *prometheus.GaugeVec
	HistorySamples *prometheus.GaugeVec
	Status         *prometheus.GaugeVec
	LastRun        prometheus.Gauge
}

// NewMetrics creates the check metrics
func NewMetrics() *Metrics {
	labels := []string{mountpointLabel}

	return &Metrics{
		HoursUntilFull: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "hours_until_full",
				Help:      "Projected hours until the filesystem is full, absent when no growth trend was found",
			},
			labels,
		),
		UsedKilobytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "used_kilobytes",
				Help:      "Used space on the filesystem in kilobytes",
			},
			labels,
		),
		TotalKilobytes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "total_kilobytes",
				Help:      "Total capacity of the filesystem in kilobytes",
			},
			labels,
		),
		HistorySamples: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "history_samples",
				Help:      "Number of usage samples retained for the filesystem",
			},
			labels,
		),
		Status: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "status",
				Help:      "Check status of the filesystem: 0 OK, 2 CRITICAL, 3 UNKNOWN",
			},
			labels,
		),
		LastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Time of the last check run in seconds since the epoch",
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.HoursUntilFull,
		m.UsedKilobytes,
		m.TotalKilobytes,
		m.HistorySamples,
		m.Status,
		m.LastRun,
	}
}

// Register registers all metrics with the provided registry
func (m *Metrics) Register(registry prometheus.Registerer) error {
	var err error
	for _, c := range m.collectors() {
		err = multierr.Append(err, registry.Register(c))
	}
	return err
}

// SetReport replaces the published values with the ones of report.
// Mount points that are no longer checked disappear.
func (m *Metrics) SetReport(report *Report) {
	for _, vec := range []*prometheus.GaugeVec{
		m.HoursUntilFull, m.UsedKilobytes, m.TotalKilobytes, m.HistorySamples, m.Status,
	} {
		vec.Reset()
	}

	for _, result := range report.Results {
		mountpoint := result.Verdict.Mount
		if result.Verdict.HasProjection() {
			m.HoursUntilFull.WithLabelValues(mountpoint).Set(result.Verdict.HoursUntilFull)
		}
		m.UsedKilobytes.WithLabelValues(mountpoint).Set(float64(result.Usage.UsedKB))
		m.TotalKilobytes.WithLabelValues(mountpoint).Set(float64(result.Usage.TotalKB))
		m.HistorySamples.WithLabelValues(mountpoint).Set(float64(result.Samples))
		m.Status.WithLabelValues(mountpoint).Set(float64(result.Verdict.Status.ExitCode()))
	}

	m.LastRun.Set(float64(report.Time.Unix()))
}

// WriteTextfile writes the metrics gathered from g in the format read by
// the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("while writing metrics to %s: %w", path, err)
	}
	return nil
}
