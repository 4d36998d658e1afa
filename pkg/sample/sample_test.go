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

package sample

import (
	"bytes"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Sample", func() {
	Describe("Parse", func() {
		It("parses the storage form", func() {
			s, err := Parse("1700000000,1500,10000")
			Expect(err).ToNot(HaveOccurred())
			Expect(s).To(Equal(Sample{Timestamp: 1700000000, UsedKB: 1500, TotalKB: 10000}))
		})

		It("tolerates surrounding whitespace", func() {
			s, err := Parse(" 10, 20 ,30\r")
			Expect(err).ToNot(HaveOccurred())
			Expect(s).To(Equal(Sample{Timestamp: 10, UsedKB: 20, TotalKB: 30}))
		})

		DescribeTable("rejects malformed lines",
			func(line string) {
				_, err := Parse(line)
				Expect(err).To(MatchError(ErrMalformedLine))
			},
			Entry("too few fields", "1,2"),
			Entry("too many fields", "1,2,3,4"),
			Entry("non numeric field", "1,abc,3"),
			Entry("negative value", "1,-2,3"),
			Entry("empty line", ""),
		)
	})

	It("renders back to the storage form", func() {
		s := New(time.Unix(1700000000, 0), 1500, 10000)
		Expect(s.String()).To(Equal("1700000000,1500,10000"))
	})

	It("computes free space and percentage", func() {
		s := Sample{UsedKB: 2500, TotalKB: 10000}
		Expect(s.FreeKB()).To(Equal(int64(7500)))
		Expect(s.PercentUsed()).To(BeNumerically("~", 25.0, 0.001))
		Expect(Sample{}.PercentUsed()).To(BeZero())
	})
})

var _ = Describe("History", func() {
	It("appends without touching the original", func() {
		original := History{{Timestamp: 1}}
		updated := original.Append(Sample{Timestamp: 2})

		Expect(original).To(HaveLen(1))
		Expect(updated).To(Equal(History{{Timestamp: 1}, {Timestamp: 2}}))
	})

	It("returns chronological endpoints", func() {
		h := History{{Timestamp: 5}, {Timestamp: 1}, {Timestamp: 9}}
		first, ok := h.First()
		Expect(ok).To(BeTrue())
		Expect(first.Timestamp).To(Equal(int64(5)))
		last, ok := h.Last()
		Expect(ok).To(BeTrue())
		Expect(last.Timestamp).To(Equal(int64(9)))

		_, ok = History{}.First()
		Expect(ok).To(BeFalse())
	})

	It("survives an encode/decode round trip", func() {
		h := History{
			{Timestamp: 100, UsedKB: 1000, TotalKB: 10000},
			{Timestamp: 200, UsedKB: 3000, TotalKB: 10000},
		}

		var buf bytes.Buffer
		Expect(h.Encode(&buf)).To(Succeed())
		Expect(buf.String()).To(Equal("100,1000,10000\n200,3000,10000\n"))

		decoded, err := Decode(&buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded).To(Equal(h))
	})

	It("decodes an empty input as an empty history", func() {
		decoded, err := Decode(strings.NewReader(""))
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded).ToNot(BeNil())
		Expect(decoded).To(BeEmpty())
	})

	It("reports the offending line number", func() {
		_, err := Decode(strings.NewReader("1,2,3\n\nbroken\n"))
		Expect(err).To(MatchError(ErrMalformedLine))
		Expect(err.Error()).To(ContainSubstring("line 3"))
	})
})
