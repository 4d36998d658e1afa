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

package configuration

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Configuration", func() {
	var (
		data  *Data
		flags *pflag.FlagSet
	)

	BeforeEach(func() {
		data = NewDefault()
		flags = pflag.NewFlagSet("test", pflag.ContinueOnError)
		data.AddFlags(flags)
	})

	writeConfig := func(content string) string {
		path := filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o600)).To(Succeed())
		return path
	}

	It("has the documented defaults", func() {
		Expect(flags.Parse(nil)).To(Succeed())
		Expect(data.Complete(flags)).To(Succeed())
		Expect(data.Threshold()).To(Equal(12 * time.Hour))
		Expect(data.FluctuationThresholdKB()).To(Equal(int64(1024)))
		Expect(data.DataDir).To(Equal(DefaultDataDir))
		Expect(data.Store).To(Equal(StoreKindFile))
		Expect(data.ExcludedFSTypes()).To(ContainElements("tmpfs", "devtmpfs", "proc"))
	})

	It("parses short and long flags", func() {
		Expect(flags.Parse([]string{
			"-t", "6.5", "-x", "tmpfs|nfs", "--data-dir", "/var/tmp/forecast", "--fluctuation-threshold", "10",
		})).To(Succeed())
		Expect(data.Complete(flags)).To(Succeed())
		Expect(data.Threshold()).To(Equal(6*time.Hour + 30*time.Minute))
		Expect(data.ExcludedFSTypes()).To(Equal([]string{"tmpfs", "nfs"}))
		Expect(data.DataDir).To(Equal("/var/tmp/forecast"))
		Expect(data.FluctuationThresholdKB()).To(Equal(int64(10240)))
	})

	It("reads settings from a configuration file", func() {
		path := writeConfig(`
thresholdHours: 24
dataDir: /srv/forecast
fluctuationThresholdMB: 0.5
metricsFile: /var/lib/node_exporter/disk_forecast.prom
`)
		Expect(flags.Parse([]string{"--config", path})).To(Succeed())
		Expect(data.Complete(flags)).To(Succeed())
		Expect(data.ThresholdHours).To(Equal(24.0))
		Expect(data.DataDir).To(Equal("/srv/forecast"))
		Expect(data.FluctuationThresholdKB()).To(Equal(int64(512)))
		Expect(data.MetricsFile).To(Equal("/var/lib/node_exporter/disk_forecast.prom"))
		Expect(data.Exclude).To(Equal(NewDefault().Exclude))
	})

	It("lets command line flags override the configuration file", func() {
		path := writeConfig("thresholdHours: 24\ndataDir: /srv/forecast\n")
		Expect(flags.Parse([]string{"--config", path, "-t", "3"})).To(Succeed())
		Expect(data.Complete(flags)).To(Succeed())
		Expect(data.ThresholdHours).To(Equal(3.0))
		Expect(data.DataDir).To(Equal("/srv/forecast"))
	})

	It("accepts an empty configuration file", func() {
		path := writeConfig("")
		Expect(flags.Parse([]string{"--config", path})).To(Succeed())
		Expect(data.Complete(flags)).To(Succeed())
		Expect(data.ThresholdHours).To(Equal(float64(DefaultThresholdHours)))
	})

	It("rejects unknown configuration keys", func() {
		path := writeConfig("thresholdHour: 24\n")
		Expect(flags.Parse([]string{"--config", path})).To(Succeed())
		err := data.Complete(flags)
		Expect(IsArgumentError(err)).To(BeTrue())
	})

	It("rejects a missing configuration file", func() {
		Expect(flags.Parse([]string{"--config", "/nonexistent/config.yaml"})).To(Succeed())
		Expect(IsArgumentError(data.Complete(flags))).To(BeTrue())
	})

	DescribeTable("validation",
		func(args []string, valid bool) {
			Expect(flags.Parse(args)).To(Succeed())
			err := data.Complete(flags)
			if valid {
				Expect(err).ToNot(HaveOccurred())
				return
			}
			Expect(err).To(HaveOccurred())
			Expect(IsArgumentError(err)).To(BeTrue())
		},
		Entry("zero threshold", []string{"-t", "0"}, false),
		Entry("negative threshold", []string{"-t", "-1"}, false),
		Entry("NaN threshold", []string{"-t", "NaN"}, false),
		Entry("infinite threshold", []string{"-t", "Inf"}, false),
		Entry("negative infinite threshold", []string{"--time=-Inf"}, false),
		Entry("threshold overflowing a duration", []string{"-t", "1e300"}, false),
		Entry("largest threshold", []string{"-t", "2562047"}, true),
		Entry("NaN fluctuation", []string{"--fluctuation-threshold", "NaN"}, false),
		Entry("infinite fluctuation", []string{"--fluctuation-threshold", "Inf"}, false),
		Entry("fluctuation overflowing kilobytes", []string{"--fluctuation-threshold", "1e300"}, false),
		Entry("negative fluctuation", []string{"--fluctuation-threshold", "-1"}, false),
		Entry("zero fluctuation", []string{"--fluctuation-threshold", "0"}, true),
		Entry("empty data dir", []string{"--data-dir", ""}, false),
		Entry("unknown store", []string{"--store", "s3"}, false),
		Entry("postgres without DSN", []string{"--store", "postgres"}, false),
		Entry("postgres with DSN", []string{"--store", "postgres", "--store-dsn", "postgres://localhost/forecast"}, true),
	)

	It("converts the largest accepted values without overflowing", func() {
		Expect(flags.Parse([]string{"-t", "2562047", "--fluctuation-threshold", "8796093022207"})).To(Succeed())
		Expect(data.Complete(flags)).To(Succeed())
		Expect(data.Threshold()).To(BeNumerically(">", 0))
		Expect(data.FluctuationThresholdKB()).To(BeNumerically(">", 0))
	})

	It("rejects non-finite numbers from the configuration file", func() {
		path := writeConfig("thresholdHours: .nan\n")
		Expect(flags.Parse([]string{"--config", path})).To(Succeed())
		Expect(IsArgumentError(data.Complete(flags))).To(BeTrue())
	})

	It("rejects malformed numbers at parse time", func() {
		Expect(flags.Parse([]string{"-t", "twelve"})).ToNot(Succeed())
	})

	It("does not leak the DSN when printed", func() {
		data.StoreDSN = "postgres://user:secret@db/forecast"
		Expect(data.String()).ToNot(ContainSubstring("secret"))
	})
})
