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
	"time"

	"github.com/cloudnative-pg/machinery/pkg/log"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
	"go.uber.org/atomic"
	"k8s.io/utils/clock"

	"github.com/cloudnative-pg/disk-forecast/internal/configuration"
	"github.com/cloudnative-pg/disk-forecast/pkg/check"
)

// scheduleParser accepts the 6-field cron format (second, minute, hour,
// day of month, month, day of week) and descriptors such as @every 5m.
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses a watch schedule.
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, configuration.NewArgumentError("invalid --%s %q: %w", configuration.FlagSchedule, spec, err)
	}
	return schedule, nil
}

// newWatchCmd creates the "watch" subcommand
func newWatchCmd(settings *configuration.Data, deps dependencies) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the check on a schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			schedule, err := ParseSchedule(settings.Schedule)
			if err != nil {
				return err
			}

			r, err := newRunner(ctx, settings, deps)
			if err != nil {
				return err
			}
			defer r.close(ctx)

			return newWatcher(r.run, deps.clock).watch(ctx, schedule)
		},
	}

	watchCmd.Flags().StringVar(&settings.Schedule, configuration.FlagSchedule, settings.Schedule,
		"Cron schedule of the checks, with seconds, or a descriptor such as @every 5m")

	return watchCmd
}

// drainPollInterval is how often drain checks for a running check.
const drainPollInterval = 50 * time.Millisecond

type runFunc func(ctx context.Context) (*check.Report, error)

// watcher runs checks on ticks, skipping a tick while the previous run
// is still in progress.
type watcher struct {
	run     runFunc
	clock   clock.PassiveClock
	running atomic.Bool
}

func newWatcher(run runFunc, clk clock.PassiveClock) *watcher {
	return &watcher{run: run, clock: clk}
}

// tick runs one check unless one is already running, and reports
// whether it ran.
func (w *watcher) tick(ctx context.Context) bool {
	contextLogger := log.FromContext(ctx).WithName("watch")

	if !w.running.CompareAndSwap(false, true) {
		contextLogger.Info("previous check still running, skipping this one")
		return false
	}
	defer w.running.Store(false)

	report, err := w.run(ctx)
	if err != nil {
		contextLogger.Error(err, "check failed")
		return true
	}

	contextLogger.Info("check completed",
		"status", report.Status,
		"result", report.String())
	return true
}

// drain waits for the running check, if any, to finish. No check runs
// after drain returns.
func (w *watcher) drain() {
	for !w.running.CompareAndSwap(false, true) {
		time.Sleep(drainPollInterval)
	}
}

// watch runs a check immediately and then on every tick of schedule,
// until ctx is done. It returns once no check is running.
func (w *watcher) watch(ctx context.Context, schedule cron.Schedule) error {
	contextLogger := log.FromContext(ctx).WithName("watch")

	w.tick(ctx)

	scheduler := cron.New()
	scheduler.Schedule(schedule, cron.FuncJob(func() {
		w.tick(ctx)
	}))
	scheduler.Start()
	contextLogger.Info("watching filesystems", "next", schedule.Next(w.clock.Now()))

	<-ctx.Done()
	scheduler.Stop()
	w.drain()
	contextLogger.Info("stopped watching filesystems")

	return nil
}
