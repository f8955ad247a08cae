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

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/airflowconfig"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/operator"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

func NewRenderConfigCommand() *cobra.Command {
	var output string
	command := &cobra.Command{
		Use:   "render-config",
		Short: "Render the Airflow logging and Celery overrides baked into the images",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			return airflowconfig.Format(output).Validate()
		},
	}
	command.PersistentFlags().StringVarP(&output, "output", "o", string(airflowconfig.FormatYAML), "Output format, one of yaml, json or toml")

	var variant string
	logging := &cobra.Command{
		Use:   "logging",
		Short: "Render a logging dictConfig that streams every Airflow logger to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := airflowconfig.StdoutLoggingConfig(airflowconfig.Variant(variant))
			if err != nil {
				return err
			}
			return render(cmd, cfg, output)
		},
	}
	logging.Flags().StringVar(&variant, "variant", string(airflowconfig.VariantFargate), "Deployment variant, fargate keeps the task file handler for the UI while ec2 only streams")

	var queueURL, queueName string
	celery := &cobra.Command{
		Use:   "celery",
		Short: "Render a Celery config using a predefined SQS queue as broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			url := queueURL
			if url == "" && queueName != "" {
				op, err := operator.NewOperator(cmd.Context())
				if err != nil {
					return err
				}
				if url, err = op.SQSProvider.QueueURL(cmd.Context(), queueName); err != nil {
					return err
				}
			}
			if url == "" {
				return fmt.Errorf("missing field, one of broker-queue-url, broker-queue-name or %s", airflowconfig.BrokerQueueURLEnv)
			}
			cfg, err := airflowconfig.SQSCeleryConfig(url)
			if err != nil {
				return err
			}
			return render(cmd, cfg, output)
		},
	}
	celery.Flags().StringVar(&queueURL, "broker-queue-url", airflowconfig.BrokerQueueURLFromEnv(), "URL of the SQS queue used as Celery broker")
	celery.Flags().StringVar(&queueName, "broker-queue-name", "", "Name of the SQS queue used as Celery broker, resolved to a URL when --broker-queue-url is empty")

	command.AddCommand(logging, celery)
	return command
}

func render(cmd *cobra.Command, cfg any, output string) error {
	fingerprint, err := airflowconfig.RenderWithFingerprint(cmd.OutOrStdout(), cfg, airflowconfig.Format(output))
	if err != nil {
		return err
	}
	log.FromContext(cmd.Context()).With("fingerprint", fingerprint).Debug("rendered config")
	return nil
}
