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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/operator/options"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/project"
)

// NewRootCommand returns the airflow-ecs command with every subcommand attached
func NewRootCommand() *cobra.Command {
	opts := &options.Options{}
	command := &cobra.Command{
		Use:           "airflow-ecs",
		Short:         "Operational tooling for Apache Airflow on Amazon ECS",
		Version:       project.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("validating options, %w", err)
			}
			logger, err := log.NewLogger(opts.LogLevel, opts.LogEncoding)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(log.WithLogger(options.ToContext(ctx, opts), logger.Named(cmd.Name())))
			return nil
		},
	}
	opts.AddFlags(command.PersistentFlags())
	command.AddCommand(
		NewPutWorkerAutoscalingMetricCommand(),
		NewPutTasksPerWorkerMetricCommand(),
		NewPutActiveDagRunsMetricCommand(),
		NewRunTaskCommand(),
		NewRenderConfigCommand(),
	)
	return command
}

// Execute runs the root command until it returns or the process is signalled
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		log.FromContext(ctx).Errorf("%s", err)
		stop()
		os.Exit(1)
	}
}
