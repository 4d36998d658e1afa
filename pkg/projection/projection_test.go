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

package projection

import (
	"math"
	"time"

	"github.com/cloudnative-pg/disk-forecast/pkg/sample"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const (
	t0         = int64(1_700_000_000)
	oneMBInKB  = int64(1024)
	noiseFloor = oneMBInKB
)

var _ = Describe("Project", func() {
	Context("with fewer than two samples", func() {
		It("returns InsufficientData for an empty history", func() {
			Expect(Project(sample.History{}, noiseFloor).Kind).To(Equal(KindInsufficientData))
			Expect(Project(nil, noiseFloor).Kind).To(Equal(KindInsufficientData))
		})

		It("returns InsufficientData for a single sample", func() {
			history := sample.History{{Timestamp: t0, UsedKB: 9000, TotalKB: 10000}}
			Expect(Project(history, noiseFloor).Kind).To(Equal(KindInsufficientData))
		})
	})

	It("returns InsufficientTimeSpan when the endpoints share a timestamp", func() {
		history := sample.History{
			{Timestamp: t0, UsedKB: 1000, TotalKB: 10000},
			{Timestamp: t0 + 10, UsedKB: 5000, TotalKB: 10000},
			{Timestamp: t0, UsedKB: 9000, TotalKB: 10000},
		}
		Expect(Project(history, noiseFloor).Kind).To(Equal(KindInsufficientTimeSpan))
	})

	DescribeTable("filters changes below the fluctuation threshold regardless of sign",
		func(firstUsed, lastUsed int64) {
			history := sample.History{
				{Timestamp: t0, UsedKB: firstUsed, TotalKB: 10000},
				{Timestamp: t0 + 3600, UsedKB: lastUsed, TotalKB: 10000},
			}
			Expect(Project(history, noiseFloor).Kind).To(Equal(KindNoSignificantChange))
		},
		Entry("sub-threshold growth", int64(1000), int64(1500)),
		Entry("sub-threshold shrinkage", int64(1500), int64(1000)),
		Entry("no change", int64(4000), int64(4000)),
		Entry("one below the threshold", int64(1000), int64(1000+noiseFloor-1)),
	)

	It("treats a change equal to the threshold as significant", func() {
		history := sample.History{
			{Timestamp: t0, UsedKB: 1000, TotalKB: 10000},
			{Timestamp: t0 + 3600, UsedKB: 1000 + noiseFloor, TotalKB: 10000},
		}
		Expect(Project(history, noiseFloor).Kind).To(Equal(KindProjectedFull))
	})

	It("returns NoGrowth when usage shrinks significantly", func() {
		history := sample.History{
			{Timestamp: t0, UsedKB: 5000, TotalKB: 10000},
			{Timestamp: t0 + 3600, UsedKB: 4000, TotalKB: 10000},
		}
		result := Project(history, 0)
		Expect(result.Kind).To(Equal(KindNoGrowth))
		Expect(result.HasProjection()).To(BeFalse())
	})

	It("returns NoGrowth for a flat history when no noise floor is set", func() {
		history := sample.History{
			{Timestamp: t0, UsedKB: 5000, TotalKB: 10000},
			{Timestamp: t0 + 3600, UsedKB: 5000, TotalKB: 10000},
		}
		Expect(Project(history, 0).Kind).To(Equal(KindNoGrowth))
	})

	It("projects the full time from the chronological endpoints", func() {
		history := sample.History{
			{Timestamp: t0, UsedKB: 1000, TotalKB: 10000},
			{Timestamp: t0 + 3600, UsedKB: 3000, TotalKB: 10000},
		}
		result := Project(history, noiseFloor)
		Expect(result.Kind).To(Equal(KindProjectedFull))
		// 2000 KB in 3600s, 7000 KB left: 12600s after the last sample
		Expect(result.RateKBPerSecond).To(BeNumerically("~", 2000.0/3600.0, 1e-9))
		Expect(result.FullAt).To(BeNumerically("~", float64(t0+3600+12600), 1e-6))
	})

	It("ignores intermediate samples, including extremes", func() {
		history := sample.History{
			{Timestamp: t0, UsedKB: 1000, TotalKB: 10000},
			{Timestamp: t0 + 1000, UsedKB: 9900, TotalKB: 10000},
			{Timestamp: t0 + 2000, UsedKB: 0, TotalKB: 10000},
			{Timestamp: t0 + 3600, UsedKB: 3000, TotalKB: 10000},
		}
		result := Project(history, noiseFloor)
		Expect(result.FullAt).To(BeNumerically("~", float64(t0+3600+12600), 1e-6))
	})

	It("does not truncate slow growth rates to zero", func() {
		// 2048 KB over a week is well below 1 KB/s
		history := sample.History{
			{Timestamp: t0, UsedKB: 1000, TotalKB: 1_000_000},
			{Timestamp: t0 + 7*24*3600, UsedKB: 3048, TotalKB: 1_000_000},
		}
		result := Project(history, noiseFloor)
		Expect(result.Kind).To(Equal(KindProjectedFull))
		Expect(result.FullAt).To(BeNumerically(">", float64(t0+7*24*3600)))
	})

	It("uses the capacity of the newest sample", func() {
		history := sample.History{
			{Timestamp: t0, UsedKB: 1000, TotalKB: 5000},
			{Timestamp: t0 + 100, UsedKB: 2000, TotalKB: 12000},
		}
		result := Project(history, 0)
		// 10 KB/s, 10000 KB left
		Expect(result.FullAt).To(BeNumerically("~", float64(t0+100+1000), 1e-6))
	})

	Describe("Until", func() {
		It("returns the remaining duration", func() {
			result := Result{Kind: KindProjectedFull, FullAt: float64(t0 + 7200)}
			until, ok := result.Until(time.Unix(t0, 0))
			Expect(ok).To(BeTrue())
			Expect(until).To(Equal(2 * time.Hour))
			Expect(result.SecondsUntil(time.Unix(t0, 0))).To(BeNumerically("~", 7200, 1e-9))
		})

		It("saturates instead of overflowing", func() {
			result := Result{Kind: KindProjectedFull, FullAt: math.MaxFloat64}
			until, ok := result.Until(time.Unix(t0, 0))
			Expect(ok).To(BeTrue())
			Expect(until).To(Equal(time.Duration(math.MaxInt64)))
		})

		It("reports no projection for other kinds", func() {
			_, ok := Result{Kind: KindNoGrowth}.Until(time.Unix(t0, 0))
			Expect(ok).To(BeFalse())
		})
	})
})
