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

// Package sample contains the disk usage observations kept for every
// monitored mount point and their on-disk line format.
package sample

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedLine is returned when a stored sample line cannot be parsed.
var ErrMalformedLine = errors.New("malformed sample line")

// Sample is a single usage observation of a mount point.
type Sample struct {
	// Timestamp is the observation time, in seconds since the epoch.
	Timestamp int64 `json:"timestamp"`
	// UsedKB is the used capacity in kilobytes.
	UsedKB int64 `json:"usedKB"`
	// TotalKB is the total capacity in kilobytes.
	TotalKB int64 `json:"totalKB"`
}

// New creates a sample observed at the given time.
func New(at time.Time, usedKB, totalKB int64) Sample {
	return Sample{
		Timestamp: at.Unix(),
		UsedKB:    usedKB,
		TotalKB:   totalKB,
	}
}

// Time returns the observation time.
func (s Sample) Time() time.Time {
	return time.Unix(s.Timestamp, 0)
}

// FreeKB returns the capacity left before the filesystem is full.
func (s Sample) FreeKB() int64 {
	return s.TotalKB - s.UsedKB
}

// PercentUsed returns the used capacity as a percentage (0-100).
func (s Sample) PercentUsed() float64 {
	if s.TotalKB <= 0 {
		return 0
	}
	return float64(s.UsedKB) / float64(s.TotalKB) * 100
}

// String renders the sample in its storage form: "timestamp,used_kb,total_kb".
func (s Sample) String() string {
	return fmt.Sprintf("%d,%d,%d", s.Timestamp, s.UsedKB, s.TotalKB)
}

// Parse parses a sample from its storage form.
func Parse(line string) (Sample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 3 {
		return Sample{}, fmt.Errorf("%w: expected 3 fields, got %d: %q", ErrMalformedLine, len(fields), line)
	}

	values := make([]int64, len(fields))
	for i, field := range fields {
		value, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return Sample{}, fmt.Errorf("%w: %q: %w", ErrMalformedLine, line, err)
		}
		if value < 0 {
			return Sample{}, fmt.Errorf("%w: negative value in %q", ErrMalformedLine, line)
		}
		values[i] = value
	}

	return Sample{
		Timestamp: values[0],
		UsedKB:    values[1],
		TotalKB:   values[2],
	}, nil
}

// History is the ordered list of samples of one mount point, oldest first.
// New samples are always appended at the end and the slice is never
// re-sorted.
type History []Sample

// Append returns a copy of the history with the sample added at the end.
func (h History) Append(s Sample) History {
	result := make(History, 0, len(h)+1)
	result = append(result, h...)
	return append(result, s)
}

// First returns the oldest sample.
func (h History) First() (Sample, bool) {
	if len(h) == 0 {
		return Sample{}, false
	}
	return h[0], true
}

// Last returns the newest sample.
func (h History) Last() (Sample, bool) {
	if len(h) == 0 {
		return Sample{}, false
	}
	return h[len(h)-1], true
}

// Clone returns an independent copy of the history.
func (h History) Clone() History {
	if h == nil {
		return History{}
	}
	result := make(History, len(h))
	copy(result, h)
	return result
}

// Encode writes the history one sample per line, oldest first.
func (h History) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, s := range h {
		if _, err := fmt.Fprintln(bw, s.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decode reads a history written by Encode. Blank lines are ignored;
// any malformed line fails the whole decode.
func Decode(r io.Reader) (History, error) {
	history := History{}

	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		s, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNumber, err)
		}
		history = append(history, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return history, nil
}
