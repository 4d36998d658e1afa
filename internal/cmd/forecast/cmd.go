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

// Package forecast contains the disk-forecast command line.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudnative-pg/machinery/pkg/log"
	"github.com/spf13/cobra"
	"k8s.io/utils/clock"

	"github.com/cloudnative-pg/disk-forecast/internal/configuration"
	"github.com/cloudnative-pg/disk-forecast/pkg/alert"
	"github.com/cloudnative-pg/disk-forecast/pkg/mounts"
)

// SourceFactory builds the filesystem enumeration source of a run.
type SourceFactory func(settings *configuration.Data) mounts.Source

// statusError carries a non-OK check outcome up to the exit code.
type statusError struct {
	status alert.Status
}

func (e *statusError) Error() string {
	return fmt.Sprintf("check status %s", e.status)
}

type dependencies struct {
	sources SourceFactory
	clock   clock.PassiveClock
}

func systemSource(settings *configuration.Data) mounts.Source {
	return mounts.NewSystemSource(settings.ExcludedFSTypes())
}

// NewCmd creates the disk-forecast root command
func NewCmd() *cobra.Command {
	return newRootCmd(dependencies{
		sources: systemSource,
		clock:   clock.RealClock{},
	})
}

func newRootCmd(deps dependencies) *cobra.Command {
	settings := configuration.NewDefault()
	logFlags := &log.Flags{}

	rootCmd := &cobra.Command{
		Use:   "disk-forecast",
		Short: "Predict when filesystems will run out of space",
		Long: "Samples the usage of every mounted filesystem, keeps a week of history and " +
			"raises a critical alert when a filesystem is projected to be full within the threshold.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logFlags.ConfigureLogging()
			if err := settings.Complete(cmd.Flags()); err != nil {
				return err
			}
			log.FromContext(cmd.Context()).Debug("settings loaded", "settings", settings.String())
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), settings, deps)
		},
	}

	settings.AddFlags(rootCmd.PersistentFlags())
	logFlags.AddFlags(rootCmd.PersistentFlags())
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return configuration.NewArgumentError("%w", err)
	})

	rootCmd.AddCommand(
		newHistoryCmd(settings, deps),
		newWatchCmd(settings, deps),
	)

	return rootCmd
}

// Execute runs the command line with args and returns the process exit
// code. Failures that prevent a check from completing are reported as
// UNKNOWN on out.
func Execute(ctx context.Context, args []string, out io.Writer) int {
	return execute(ctx, NewCmd(), args, out)
}

func execute(ctx context.Context, rootCmd *cobra.Command, args []string, out io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return alert.StatusOK.ExitCode()
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.status.ExitCode()
	}

	_, _ = fmt.Fprintf(out, "%s: %v\n", alert.StatusUnknown, err)
	return alert.StatusUnknown.ExitCode()
}

func runCheck(ctx context.Context, out io.Writer, settings *configuration.Data, deps dependencies) error {
	r, err := newRunner(ctx, settings, deps)
	if err != nil {
		return err
	}
	defer r.close(ctx)

	report, err := r.run(ctx)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintln(out, report.String()); err != nil {
		return err
	}

	if report.Status != alert.StatusOK {
		return &statusError{status: report.Status}
	}
	return nil
}
