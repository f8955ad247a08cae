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

package publisher

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/capacity"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/metrics"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/operator/options"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/cloudwatch"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

// TasksPerWorker derives the executor load from metrics already in CloudWatch, so it needs no database access
type TasksPerWorker struct {
	emitter
	opts options.TasksPerWorkerOptions
}

func NewTasksPerWorker(cloudwatchProvider cloudwatch.Provider, recorder *metrics.Recorder, opts options.TasksPerWorkerOptions) *TasksPerWorker {
	return &TasksPerWorker{
		emitter: emitter{cloudwatch: cloudwatchProvider, recorder: recorder, namespace: opts.Namespace},
		opts:    opts,
	}
}

func (t *TasksPerWorker) Name() string {
	return "tasks-per-worker"
}

func (t *TasksPerWorker) Publish(ctx context.Context) error {
	load, err := t.cloudwatch.ExecutorLoad(ctx, cloudwatch.ExecutorLoadQuery{
		Namespace:   t.opts.Namespace,
		ClusterName: t.opts.ClusterName,
		ServiceName: t.opts.WorkerServiceName,
		Window:      cloudwatch.DefaultWindow,
		Period:      cloudwatch.DefaultPeriod,
	})
	if err != nil {
		return fmt.Errorf("reading executor load, %w", err)
	}
	log.FromContext(ctx).With("tasks", load.TaskCount, "workers", load.WorkerCount).Debug("read executor load")
	return t.emit(ctx, t.Name(), cloudwatch.Datum{
		Name:       t.opts.MetricName,
		Dimensions: clusterDimension(t.opts.ClusterName),
		Value:      capacity.TasksPerWorker(load.TaskCount, load.WorkerCount),
		Unit:       types.StandardUnitCount,
	})
}
