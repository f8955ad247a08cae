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
	"io"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/operator"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/operator/options"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/network"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/task"
)

func NewRunTaskCommand() *cobra.Command {
	opts := &options.RunTaskOptions{}
	command := &cobra.Command{
		Use:   "run-task",
		Short: "Run an Airflow CLI command as a standalone ECS task",
		Example: `  # Initialize the db
  airflow-ecs run-task --command 'db init'

  # Create an admin user
  airflow-ecs run-task --wait-tasks-stopped --command \
    'users create --username airflow --firstname airflow --lastname airflow --password airflow --email airflow@example.com --role Admin'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("validating options, %w", err)
			}
			op, err := operator.NewOperator(cmd.Context())
			if err != nil {
				return err
			}
			if err := operator.CheckConnectivity(cmd.Context(), op.STSAPI); err != nil {
				return err
			}
			return RunTask(cmd.Context(), op.NetworkProvider, op.TaskProvider, *opts, cmd.OutOrStdout())
		},
	}
	opts.AddFlags(command.Flags())
	return command
}

// RunTask submits the standalone task in the public subnets of the VPC, prints its ARN and optionally
// waits for it to stop. A task whose containers did not all exit 0 is an error.
func RunTask(ctx context.Context, networkProvider network.Provider, taskProvider task.Provider, opts options.RunTaskOptions, out io.Writer) error {
	nw, err := networkProvider.Resolve(ctx, opts.VPCName, opts.SecurityGroupName)
	if err != nil {
		return err
	}
	taskARN, err := taskProvider.Run(ctx, task.Request{
		Cluster:          opts.Cluster,
		TaskDefinition:   opts.TaskDefinition,
		ContainerName:    opts.ContainerName,
		Command:          opts.Command,
		CPU:              int32(opts.CPU),
		Memory:           int32(opts.Memory),
		CapacityProvider: opts.CapacityProvider,
		Network:          nw,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, taskARN)
	if !opts.WaitTasksStopped {
		return nil
	}
	result, err := taskProvider.WaitStopped(ctx, opts.Cluster, taskARN, opts.WaitTimeout)
	if err != nil {
		return err
	}
	for _, c := range result.Containers {
		fmt.Fprintf(out, "container %s exited with code %s %s\n", c.Name,
			lo.TernaryF(c.ExitCode != nil, func() string { return fmt.Sprint(*c.ExitCode) }, func() string { return "unknown" }), c.Reason)
	}
	if !result.Succeeded() {
		return fmt.Errorf("task %s stopped unsuccessfully, %s %s", taskARN, result.StopCode, result.StoppedReason)
	}
	return nil
}
