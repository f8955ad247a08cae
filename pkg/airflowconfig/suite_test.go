/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package airflowconfig_test

import (
	"bytes"
	"encoding/json"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/airflowconfig"
)

func TestAirflowConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AirflowConfig")
}

var _ = Describe("Logging", func() {
	It("should return a fresh default every call", func() {
		a := airflowconfig.DefaultLoggingConfig()
		a.Loggers["airflow.task"].Handlers = []string{"mutated"}
		b := airflowconfig.DefaultLoggingConfig()
		Expect(b.Loggers["airflow.task"].Handlers).To(Equal([]string{"task"}))
	})
	DescribeTable("should route loggers to stdout",
		func(variant airflowconfig.Variant, taskHandlers []string) {
			cfg, err := airflowconfig.StdoutLoggingConfig(variant)
			Expect(err).ToNot(HaveOccurred())
			Expect(cfg.Handlers).To(HaveKey("stdout"))
			Expect(*cfg.Handlers["stdout"]).To(Equal(airflowconfig.Handler{
				Class:     "logging.StreamHandler",
				Formatter: "airflow",
				Stream:    airflowconfig.StdoutStream,
				Filters:   []string{"mask_secrets"},
			}))
			Expect(cfg.Loggers["airflow.processor"].Handlers).To(Equal([]string{"stdout"}))
			Expect(cfg.Loggers["flask_appbuilder"].Handlers).To(Equal([]string{"stdout"}))
			Expect(cfg.Loggers["airflow.task"].Handlers).To(Equal(taskHandlers))
		},
		Entry("fargate keeps the task handler", airflowconfig.VariantFargate, []string{"stdout", "task"}),
		Entry("ec2 only streams", airflowconfig.VariantEC2, []string{"stdout"}),
	)
	It("should keep untouched fields of overridden loggers", func() {
		cfg, err := airflowconfig.StdoutLoggingConfig(airflowconfig.VariantFargate)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Loggers["flask_appbuilder"].Level).To(Equal("WARNING"))
		Expect(cfg.Loggers["flask_appbuilder"].Propagate).To(Equal(lo.ToPtr(true)))
		Expect(cfg.Loggers["airflow.task"].Filters).To(ConsistOf("mask_secrets"))
		Expect(cfg.Handlers).To(HaveLen(4))
		Expect(cfg.Handlers["task"].BaseLogFolder).To(Equal(airflowconfig.BaseLogFolder))
		Expect(cfg.Root.Handlers).To(Equal([]string{"console"}))
	})
	It("should reject unknown variants", func() {
		_, err := airflowconfig.StdoutLoggingConfig("lambda")
		Expect(err).To(MatchError(ContainSubstring("unsupported variant")))
	})
})

var _ = Describe("Celery", func() {
	It("should enable remote control by default", func() {
		cfg := airflowconfig.DefaultCeleryConfig()
		Expect(*cfg.WorkerEnableRemoteControl).To(BeTrue())
		Expect(cfg.BrokerTransportOptions.PredefinedQueues).To(BeEmpty())
	})
	It("should predefine the default queue for SQS", func() {
		url := "https://sqs.us-west-2.amazonaws.com/000000000000/airflow-celery-broker"
		cfg, err := airflowconfig.SQSCeleryConfig(url)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.BrokerTransportOptions.PredefinedQueues).To(HaveKeyWithValue(airflowconfig.DefaultQueue, &airflowconfig.PredefinedQueue{URL: url}))
		Expect(cfg.BrokerTransportOptions.VisibilityTimeout).To(Equal(21600))
		Expect(cfg.PollingInterval).To(Equal(1.0))
		Expect(*cfg.WorkerEnableRemoteControl).To(BeFalse())
		Expect(cfg.WorkerConcurrency).To(Equal(16))
		Expect(cfg.TaskAcksLate).To(BeTrue())
	})
	It("should read the queue url from the environment", func() {
		GinkgoT().Setenv(airflowconfig.BrokerQueueURLEnv, "https://example.com/queue")
		Expect(airflowconfig.BrokerQueueURLFromEnv()).To(Equal("https://example.com/queue"))
	})
})

var _ = Describe("Render", func() {
	var cfg airflowconfig.CeleryConfig
	BeforeEach(func() {
		var err error
		cfg, err = airflowconfig.SQSCeleryConfig("https://example.com/queue")
		Expect(err).ToNot(HaveOccurred())
	})
	It("should render yaml", func() {
		buf := &bytes.Buffer{}
		Expect(airflowconfig.Render(buf, cfg, airflowconfig.FormatYAML)).To(Succeed())
		out := map[string]any{}
		Expect(yaml.Unmarshal(buf.Bytes(), &out)).To(Succeed())
		Expect(out).To(HaveKeyWithValue("worker_enable_remote_control", false))
		Expect(buf.String()).To(ContainSubstring("url: https://example.com/queue"))
	})
	It("should render json", func() {
		buf := &bytes.Buffer{}
		Expect(airflowconfig.Render(buf, cfg, airflowconfig.FormatJSON)).To(Succeed())
		out := map[string]any{}
		Expect(json.Unmarshal(buf.Bytes(), &out)).To(Succeed())
		Expect(out).To(HaveKeyWithValue("polling_interval", 1.0))
	})
	It("should render toml", func() {
		buf := &bytes.Buffer{}
		Expect(airflowconfig.Render(buf, cfg, airflowconfig.FormatTOML)).To(Succeed())
		out := map[string]any{}
		Expect(toml.Unmarshal(buf.Bytes(), &out)).To(Succeed())
		Expect(out).To(HaveKeyWithValue("worker_concurrency", int64(16)))
	})
	It("should render the dictConfig filter factory key", func() {
		buf := &bytes.Buffer{}
		Expect(airflowconfig.Render(buf, airflowconfig.DefaultLoggingConfig(), airflowconfig.FormatJSON)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring(`"()": "airflow.utils.log.secrets_masker.SecretsMasker"`))
	})
	It("should reject unknown formats", func() {
		Expect(airflowconfig.Render(&bytes.Buffer{}, cfg, "ini")).To(MatchError(ContainSubstring("unsupported output format")))
	})
	It("should prefix yaml and toml with the fingerprint", func() {
		fingerprint, err := airflowconfig.Fingerprint(cfg)
		Expect(err).ToNot(HaveOccurred())
		for _, format := range []airflowconfig.Format{airflowconfig.FormatYAML, airflowconfig.FormatTOML} {
			var buf bytes.Buffer
			got, err := airflowconfig.RenderWithFingerprint(&buf, cfg, format)
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(fingerprint))
			Expect(buf.String()).To(HavePrefix(airflowconfig.FingerprintHeader + fingerprint + "\n"))
		}
	})
	It("should keep json free of the fingerprint header", func() {
		var buf bytes.Buffer
		_, err := airflowconfig.RenderWithFingerprint(&buf, cfg, airflowconfig.FormatJSON)
		Expect(err).ToNot(HaveOccurred())
		Expect(buf.String()).To(HavePrefix("{"))
	})
	It("should not write a header for unknown formats", func() {
		var buf bytes.Buffer
		_, err := airflowconfig.RenderWithFingerprint(&buf, cfg, airflowconfig.Format("ini"))
		Expect(err).To(HaveOccurred())
		Expect(buf.Len()).To(BeZero())
	})
	It("should fingerprint configs by content", func() {
		a, err := airflowconfig.Fingerprint(cfg)
		Expect(err).ToNot(HaveOccurred())
		b, err := airflowconfig.Fingerprint(cfg)
		Expect(err).ToNot(HaveOccurred())
		Expect(a).To(Equal(b))
		c, err := airflowconfig.Fingerprint(airflowconfig.DefaultCeleryConfig())
		Expect(err).ToNot(HaveOccurred())
		Expect(c).ToNot(Equal(a))
	})
})
