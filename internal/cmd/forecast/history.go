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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cheynewallace/tabby"
	"github.com/logrusorgru/aurora/v4"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/cloudnative-pg/disk-forecast/internal/configuration"
	"github.com/cloudnative-pg/disk-forecast/pkg/alert"
	"github.com/cloudnative-pg/disk-forecast/pkg/projection"
	"github.com/cloudnative-pg/disk-forecast/pkg/retention"
	"github.com/cloudnative-pg/disk-forecast/pkg/sample"
	"github.com/cloudnative-pg/disk-forecast/pkg/store"
)

// OutputFormat is the output format of the history command
type OutputFormat string

const (
	// OutputFormatText is the human readable output
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is the machine readable output
	OutputFormatJSON OutputFormat = "json"
)

// ColorMode controls the colors of the text output
type ColorMode string

const (
	// ColorModeAuto colors the output only when it is a terminal
	ColorModeAuto ColorMode = "auto"
	// ColorModeAlways always colors the output
	ColorModeAlways ColorMode = "always"
	// ColorModeNever never colors the output
	ColorModeNever ColorMode = "never"
)

// newAurora returns the colorizer to use when writing to out.
func newAurora(out io.Writer, mode ColorMode) (*aurora.Aurora, error) {
	switch mode {
	case ColorModeAlways:
		return aurora.New(aurora.WithColors(true)), nil
	case ColorModeNever:
		return aurora.New(aurora.WithColors(false)), nil
	case ColorModeAuto:
		f, ok := out.(*os.File)
		return aurora.New(aurora.WithColors(ok && term.IsTerminal(int(f.Fd())))), nil
	default:
		return nil, configuration.NewArgumentError("unknown color mode %q, expected auto, always or never", mode)
	}
}

// MountHistory is the stored history of a mount point together with
// the verdict it currently yields.
type MountHistory struct {
	Mount          string         `json:"mount"`
	Verdict        alert.Verdict  `json:"verdict"`
	HoursUntilFull *float64       `json:"hoursUntilFull,omitempty"`
	Samples        sample.History `json:"samples"`
}

// newHistoryCmd creates the "history" subcommand
func newHistoryCmd(settings *configuration.Data, deps dependencies) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history [MOUNTPOINT...]",
		Short: "Show the stored usage history of filesystems",
		Long: "Prints the usage samples kept for the given mount points, or for every " +
			"mount point in the store when none is given, with the forecast they yield.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cmd.Flags().GetString("output")
			if err != nil {
				return err
			}
			format := OutputFormat(output)
			if format != OutputFormatText && format != OutputFormatJSON {
				return configuration.NewArgumentError("unknown output format %q, expected text or json", output)
			}
			color, err := cmd.Flags().GetString("color")
			if err != nil {
				return err
			}
			au, err := newAurora(cmd.OutOrStdout(), ColorMode(color))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, closer, err := openStore(ctx, settings)
			if err != nil {
				return fmt.Errorf("while opening history store: %w", err)
			}
			defer func() {
				_ = closer()
			}()

			histories, err := History(ctx, st, args, deps.clock.Now(), settings)
			if err != nil {
				return err
			}

			switch format {
			case OutputFormatJSON:
				return printJSON(cmd.OutOrStdout(), histories)
			default:
				return printText(cmd.OutOrStdout(), au, histories)
			}
		},
	}

	historyCmd.Flags().StringP(
		"output", "o", string(OutputFormatText), "Output format. One of text|json")
	historyCmd.Flags().String(
		"color", string(ColorModeAuto), "Colorize the text output. One of auto|always|never")

	return historyCmd
}

// History loads the stored history of the given mount points, all the
// stored ones when mountpoints is empty, and evaluates each of them as
// of now. Nothing is written back to the store.
func History(
	ctx context.Context,
	st store.Store,
	mountpoints []string,
	now time.Time,
	settings *configuration.Data,
) ([]MountHistory, error) {
	ids := make([]store.MountID, 0, len(mountpoints))
	for _, mountpoint := range mountpoints {
		ids = append(ids, store.NewMountID(mountpoint))
	}

	if len(ids) == 0 {
		lister, ok := st.(store.Lister)
		if !ok {
			return nil, fmt.Errorf("the history store cannot list its mount points")
		}
		var err error
		if ids, err = lister.List(ctx); err != nil {
			return nil, fmt.Errorf("while listing stored mount points: %w", err)
		}
	}

	result := make([]MountHistory, 0, len(ids))
	for _, id := range ids {
		mountpoint := id.MountPath()
		entry := MountHistory{Mount: mountpoint}

		history, err := st.Load(ctx, id)
		if err != nil {
			entry.Verdict = alert.Unknown(mountpoint, err)
			entry.Samples = sample.History{}
			result = append(result, entry)
			continue
		}

		entry.Samples = retention.Prune(history, now)
		entry.Verdict = alert.Evaluate(
			mountpoint,
			projection.Project(entry.Samples, settings.FluctuationThresholdKB()),
			now,
			settings.Threshold(),
		)
		if entry.Verdict.HasProjection() {
			hours := entry.Verdict.HoursUntilFull
			entry.HoursUntilFull = &hours
		}
		result = append(result, entry)
	}

	return result, nil
}

func printJSON(out io.Writer, histories []MountHistory) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(histories)
}

func printText(out io.Writer, au *aurora.Aurora, histories []MountHistory) error {
	if len(histories) == 0 {
		_, err := fmt.Fprintln(out, au.Yellow("No stored history found"))
		return err
	}

	for _, entry := range histories {
		_, _ = fmt.Fprintf(out, "Mount point: %s\n", au.Bold(entry.Mount))
		_, _ = fmt.Fprintf(out, "Status:      %s\n", colorStatus(au, entry.Verdict.Status))
		_, _ = fmt.Fprintf(out, "Forecast:    %s\n\n", entry.Verdict.Reason)

		if len(entry.Samples) == 0 {
			_, _ = fmt.Fprintf(out, "%s\n\n", au.Yellow("No samples retained"))
			continue
		}

		t := tabby.NewCustom(tabwriter.NewWriter(out, 0, 0, 2, ' ', 0))
		t.AddHeader("TIME", "USED", "TOTAL", "USED%")
		for _, s := range entry.Samples {
			t.AddLine(
				s.Time().UTC().Format(time.RFC3339),
				formatKB(s.UsedKB),
				formatKB(s.TotalKB),
				fmt.Sprintf("%.1f%%", s.PercentUsed()),
			)
		}
		t.Print()
		_, _ = fmt.Fprintln(out)
	}

	return nil
}

func colorStatus(au *aurora.Aurora, status alert.Status) string {
	switch status {
	case alert.StatusOK:
		return au.Green(status).String()
	case alert.StatusCritical:
		return au.Red(status).String()
	default:
		return au.Yellow(status).String()
	}
}

// formatKB renders a size in kilobytes with binary suffixes.
func formatKB(kb int64) string {
	return resource.NewQuantity(kb*1024, resource.BinarySI).String()
}
