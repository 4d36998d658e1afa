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

// Package configuration contains the settings of a disk-forecast run and
// the rules used to populate them from defaults, a YAML file and the
// command line.
package configuration

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.yaml.in/yaml/v3"
	"k8s.io/utils/ptr"

	"github.com/cloudnative-pg/disk-forecast/pkg/mounts"
)

const (
	// DefaultThresholdHours is the default time-to-full below which a
	// mount point is critical.
	DefaultThresholdHours = 12

	// DefaultDataDir is the default directory of the file store.
	DefaultDataDir = "/tmp/check_disk_forecast"

	// DefaultFluctuationThresholdMB is the default minimum usage change
	// considered a trend.
	DefaultFluctuationThresholdMB = 1

	// DefaultSchedule is the default watch schedule, every five minutes.
	DefaultSchedule = "0 */5 * * * *"
)

// StoreKind selects the history store implementation.
type StoreKind string

const (
	// StoreKindFile keeps one file per mount point in the data directory.
	StoreKindFile StoreKind = "file"
	// StoreKindPostgres keeps histories in a PostgreSQL table.
	StoreKindPostgres StoreKind = "postgres"
)

// Flag names, shared by the commands and the config file merge.
const (
	FlagConfig               = "config"
	FlagTime                 = "time"
	FlagExclude              = "exclude"
	FlagDataDir              = "data-dir"
	FlagFluctuationThreshold = "fluctuation-threshold"
	FlagStore                = "store"
	FlagStoreDSN             = "store-dsn"
	FlagStoreTable           = "store-table"
	FlagMetricsFile          = "metrics-file"
	FlagSchedule             = "schedule"
)

// Data holds the settings of a run.
type Data struct {
	// ConfigFile is the optional YAML file the settings were read from.
	ConfigFile string `yaml:"-"`

	// ThresholdHours is the time-to-full below which a mount is critical.
	ThresholdHours float64 `yaml:"thresholdHours"`

	// Exclude is the pipe-delimited list of filesystem types to skip.
	Exclude string `yaml:"exclude"`

	// DataDir is the directory of the file store.
	DataDir string `yaml:"dataDir"`

	// FluctuationThresholdMB is the minimum usage change, in megabytes,
	// that is considered a trend rather than noise.
	FluctuationThresholdMB float64 `yaml:"fluctuationThresholdMB"`

	// Store selects the history store.
	Store StoreKind `yaml:"store"`

	// StoreDSN is the connection string of the postgres store.
	StoreDSN string `yaml:"storeDSN"`

	// StoreTable is the table of the postgres store.
	StoreTable string `yaml:"storeTable"`

	// MetricsFile is where Prometheus metrics are written, if set.
	MetricsFile string `yaml:"metricsFile"`

	// Schedule is the cron schedule used by the watch command.
	Schedule string `yaml:"schedule"`
}

// fileData is the YAML representation; unset fields keep their current
// value.
type fileData struct {
	ThresholdHours         *float64 `yaml:"thresholdHours"`
	Exclude                *string  `yaml:"exclude"`
	DataDir                *string  `yaml:"dataDir"`
	FluctuationThresholdMB *float64 `yaml:"fluctuationThresholdMB"`
	Store                  *string  `yaml:"store"`
	StoreDSN               *string  `yaml:"storeDSN"`
	StoreTable             *string  `yaml:"storeTable"`
	MetricsFile            *string  `yaml:"metricsFile"`
	Schedule               *string  `yaml:"schedule"`
}

// NewDefault returns the default settings.
func NewDefault() *Data {
	return &Data{
		ThresholdHours:         DefaultThresholdHours,
		Exclude:                mounts.DefaultExcludedFSTypes,
		DataDir:                DefaultDataDir,
		FluctuationThresholdMB: DefaultFluctuationThresholdMB,
		Store:                  StoreKindFile,
		Schedule:               DefaultSchedule,
	}
}

// AddFlags binds the check settings to a flag set.
func (d *Data) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&d.ConfigFile, FlagConfig, d.ConfigFile,
		"YAML file with default settings, overridden by command line flags")
	flags.Float64VarP(&d.ThresholdHours, FlagTime, "t", d.ThresholdHours,
		"Raise a critical alert when a filesystem is projected to be full within this many hours")
	flags.StringVarP(&d.Exclude, FlagExclude, "x", d.Exclude,
		"Pipe-delimited list of filesystem types to skip")
	flags.StringVar(&d.DataDir, FlagDataDir, d.DataDir,
		"Directory where the usage history of each filesystem is kept")
	flags.Float64Var(&d.FluctuationThresholdMB, FlagFluctuationThreshold, d.FluctuationThresholdMB,
		"Minimum usage change, in MB, considered a trend rather than noise")
	flags.StringVar((*string)(&d.Store), FlagStore, string(d.Store),
		"History store. One of file|postgres")
	flags.StringVar(&d.StoreDSN, FlagStoreDSN, d.StoreDSN,
		"Connection string of the postgres history store")
	flags.StringVar(&d.StoreTable, FlagStoreTable, d.StoreTable,
		"Table of the postgres history store")
	flags.StringVar(&d.MetricsFile, FlagMetricsFile, d.MetricsFile,
		"Write Prometheus metrics in the textfile collector format to this file")
}

// LoadFile reads the YAML file at path. Settings whose flag was set on
// the command line are left untouched.
func (d *Data) LoadFile(path string, flags *pflag.FlagSet) error {
	content, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return NewArgumentError("while reading configuration file: %w", err)
	}

	var file fileData
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return NewArgumentError("while parsing configuration file %s: %w", path, err)
	}

	changed := func(name string) bool {
		return flags != nil && flags.Changed(name)
	}

	if !changed(FlagTime) {
		d.ThresholdHours = ptr.Deref(file.ThresholdHours, d.ThresholdHours)
	}
	if !changed(FlagExclude) {
		d.Exclude = ptr.Deref(file.Exclude, d.Exclude)
	}
	if !changed(FlagDataDir) {
		d.DataDir = ptr.Deref(file.DataDir, d.DataDir)
	}
	if !changed(FlagFluctuationThreshold) {
		d.FluctuationThresholdMB = ptr.Deref(file.FluctuationThresholdMB, d.FluctuationThresholdMB)
	}
	if !changed(FlagStore) {
		d.Store = StoreKind(ptr.Deref(file.Store, string(d.Store)))
	}
	if !changed(FlagStoreDSN) {
		d.StoreDSN = ptr.Deref(file.StoreDSN, d.StoreDSN)
	}
	if !changed(FlagStoreTable) {
		d.StoreTable = ptr.Deref(file.StoreTable, d.StoreTable)
	}
	if !changed(FlagMetricsFile) {
		d.MetricsFile = ptr.Deref(file.MetricsFile, d.MetricsFile)
	}
	if !changed(FlagSchedule) {
		d.Schedule = ptr.Deref(file.Schedule, d.Schedule)
	}

	return nil
}

// Complete loads the configuration file, if one was given, and validates
// the result.
func (d *Data) Complete(flags *pflag.FlagSet) error {
	if d.ConfigFile != "" {
		if err := d.LoadFile(d.ConfigFile, flags); err != nil {
			return err
		}
	}
	return d.Validate()
}

// Validate checks the settings for consistency.
func (d *Data) Validate() error {
	if !isFinite(d.ThresholdHours) || d.ThresholdHours <= 0 {
		return NewArgumentError("--%s must be a positive number, got %v", FlagTime, d.ThresholdHours)
	}
	if d.ThresholdHours > maxThresholdHours {
		return NewArgumentError("--%s must not exceed %.0f hours, got %v",
			FlagTime, maxThresholdHours, d.ThresholdHours)
	}
	if !isFinite(d.FluctuationThresholdMB) || d.FluctuationThresholdMB < 0 {
		return NewArgumentError("--%s must be a non-negative number, got %v",
			FlagFluctuationThreshold, d.FluctuationThresholdMB)
	}
	if d.FluctuationThresholdMB > maxFluctuationThresholdMB {
		return NewArgumentError("--%s must not exceed %.0f MB, got %v",
			FlagFluctuationThreshold, maxFluctuationThresholdMB, d.FluctuationThresholdMB)
	}

	switch d.Store {
	case StoreKindFile:
		if d.DataDir == "" {
			return NewArgumentError("--%s must not be empty", FlagDataDir)
		}
	case StoreKindPostgres:
		if d.StoreDSN == "" {
			return NewArgumentError("--%s is required with --%s=%s", FlagStoreDSN, FlagStore, StoreKindPostgres)
		}
	default:
		return NewArgumentError("unknown --%s %q, expected %s or %s",
			FlagStore, d.Store, StoreKindFile, StoreKindPostgres)
	}

	return nil
}

// Largest values whose conversion to a time.Duration and to kilobytes
// does not overflow int64.
var (
	maxThresholdHours         = math.Floor(math.MaxInt64 / float64(time.Hour))
	maxFluctuationThresholdMB = math.Floor(math.MaxInt64 / 1024 / 1024)
)

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Threshold returns the alerting threshold.
func (d *Data) Threshold() time.Duration {
	return time.Duration(d.ThresholdHours * float64(time.Hour))
}

// FluctuationThresholdKB returns the noise floor in kilobytes.
func (d *Data) FluctuationThresholdKB() int64 {
	return int64(d.FluctuationThresholdMB * 1024)
}

// ExcludedFSTypes returns the filesystem types to skip.
func (d *Data) ExcludedFSTypes() []string {
	return mounts.ParseFSTypes(d.Exclude)
}

// String renders the settings for logging, without the DSN.
func (d *Data) String() string {
	return fmt.Sprintf("threshold=%vh exclude=%q store=%s dataDir=%q fluctuation=%vMB",
		d.ThresholdHours, d.Exclude, d.Store, d.DataDir, d.FluctuationThresholdMB)
}
