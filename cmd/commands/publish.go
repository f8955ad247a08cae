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
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/controllers/publisher"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/metrics"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/operator"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/operator/options"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/airflow"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

func NewPutWorkerAutoscalingMetricCommand() *cobra.Command {
	opts := &options.WorkerAutoscalingOptions{}
	command := &cobra.Command{
		Use:   "put-worker-autoscaling-metric",
		Short: "Publish a capacity provider reservation metric for the Airflow worker service",
		Long: `Counts queued and running task instances of active, unpaused DAGs and the running and pending
tasks of the worker service, then publishes M / N * 100 where M is the number of workers needed at
--desired-tasks-per-worker and N the current number of workers. Target tracking on this metric with a
target value of 100 keeps the worker service sized to the queue.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("validating options, %w", err)
			}
			return withStore(cmd.Context(), func(ctx context.Context, op *operator.Operator, store *airflow.Store) error {
				return run(ctx, op, opts.Period, publisher.NewWorkerAutoscaling(store, op.WorkerFleetProvider, op.CloudWatchProvider, op.Recorder, *opts))
			})
		},
	}
	opts.AddFlags(command.Flags())
	return command
}

func NewPutTasksPerWorkerMetricCommand() *cobra.Command {
	opts := &options.TasksPerWorkerOptions{}
	command := &cobra.Command{
		Use:   "put-tasks-per-worker-metric",
		Short: "Publish the number of executor tasks per Airflow worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("validating options, %w", err)
			}
			op, err := operator.NewOperator(cmd.Context())
			if err != nil {
				return err
			}
			return run(cmd.Context(), op, opts.Period, publisher.NewTasksPerWorker(op.CloudWatchProvider, op.Recorder, *opts))
		},
	}
	opts.AddFlags(command.Flags())
	return command
}

func NewPutActiveDagRunsMetricCommand() *cobra.Command {
	opts := &options.PublisherOptions{}
	command := &cobra.Command{
		Use:   "put-active-dag-runs-metric",
		Short: "Publish the number of running DAG runs of active, unpaused DAGs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("validating options, %w", err)
			}
			return withStore(cmd.Context(), func(ctx context.Context, op *operator.Operator, store *airflow.Store) error {
				return run(ctx, op, opts.Period, publisher.NewActiveDagRuns(store, op.CloudWatchProvider, op.Recorder, *opts))
			})
		},
	}
	opts.AddFlags(command.Flags())
	return command
}

func withStore(ctx context.Context, fn func(context.Context, *operator.Operator, *airflow.Store) error) error {
	op, err := operator.NewOperator(ctx)
	if err != nil {
		return err
	}
	store, err := op.AirflowStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.FromContext(ctx).Errorf("closing airflow metadata database, %s", err)
		}
	}()
	return fn(ctx, op, store)
}

// run publishes until the context is cancelled, serving metrics and health probes alongside
func run(ctx context.Context, op *operator.Operator, period time.Duration, p publisher.Publisher) error {
	if err := operator.CheckConnectivity(ctx, op.STSAPI); err != nil {
		return err
	}
	opts := options.FromContext(ctx)
	runner := publisher.NewRunner(p, period, opts.MaxConsecutiveFailures, publisher.WithRecorder(op.Recorder))
	server := metrics.NewServer(opts.MetricsPort,
		metrics.WithGatherer(op.Registry),
		metrics.WithLivenessCheck(runner.LivenessProbe),
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Start(gctx) })
	g.Go(func() error { return server.Start(gctx) })
	return g.Wait()
}
