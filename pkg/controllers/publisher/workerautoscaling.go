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
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/airflow"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/cloudwatch"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/workerfleet"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

// WorkerAutoscaling publishes a capacity provider reservation style metric for the worker service,
// followed by the raw active task count for dashboards.
type WorkerAutoscaling struct {
	emitter
	airflow     airflow.Provider
	workerFleet workerfleet.Provider
	opts        options.WorkerAutoscalingOptions
}

func NewWorkerAutoscaling(airflowProvider airflow.Provider, workerFleetProvider workerfleet.Provider, cloudwatchProvider cloudwatch.Provider,
	recorder *metrics.Recorder, opts options.WorkerAutoscalingOptions) *WorkerAutoscaling {
	return &WorkerAutoscaling{
		emitter:     emitter{cloudwatch: cloudwatchProvider, recorder: recorder, namespace: opts.Namespace},
		airflow:     airflowProvider,
		workerFleet: workerFleetProvider,
		opts:        opts,
	}
}

func (w *WorkerAutoscaling) Name() string {
	return "worker-autoscaling"
}

func (w *WorkerAutoscaling) Publish(ctx context.Context) error {
	tasks, err := w.airflow.CountTaskInstances(ctx, airflow.ActiveTaskStates...)
	if err != nil {
		return fmt.Errorf("counting active task instances, %w", err)
	}
	workers, err := w.workerFleet.WorkerCount(ctx, w.opts.ClusterName, w.opts.WorkerServiceName)
	if err != nil {
		return err
	}
	reservation := capacity.ComputeReservation(int(tasks), int(workers), w.opts.DesiredTasksPerWorker)
	log.FromContext(ctx).With("active-tasks", tasks, "workers", workers, "desired-tasks-per-worker", w.opts.DesiredTasksPerWorker).Debug("computed reservation")
	return w.emit(ctx, w.Name(),
		cloudwatch.Datum{
			Name:       w.opts.MetricName,
			Dimensions: clusterDimension(w.opts.ClusterName),
			Value:      reservation,
			Unit:       types.StandardUnit(w.opts.MetricUnit),
		},
		cloudwatch.Datum{
			Name:       NumberOfActiveRunningTasksMetricName,
			Dimensions: clusterDimension(w.opts.ClusterName),
			Value:      float64(tasks),
			Unit:       types.StandardUnitCount,
		},
	)
}
