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

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/metrics"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/operator/options"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/airflow"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/cloudwatch"
)

type ActiveDagRuns struct {
	emitter
	airflow airflow.Provider
	opts    options.PublisherOptions
}

func NewActiveDagRuns(airflowProvider airflow.Provider, cloudwatchProvider cloudwatch.Provider, recorder *metrics.Recorder, opts options.PublisherOptions) *ActiveDagRuns {
	return &ActiveDagRuns{
		emitter: emitter{cloudwatch: cloudwatchProvider, recorder: recorder, namespace: opts.Namespace},
		airflow: airflowProvider,
		opts:    opts,
	}
}

func (a *ActiveDagRuns) Name() string {
	return "active-dag-runs"
}

func (a *ActiveDagRuns) Publish(ctx context.Context) error {
	runs, err := a.airflow.CountDagRuns(ctx, airflow.DagRunRunning)
	if err != nil {
		return fmt.Errorf("counting running dag runs, %w", err)
	}
	return a.emit(ctx, a.Name(), cloudwatch.Datum{
		Name:       a.opts.MetricName,
		Dimensions: clusterDimension(a.opts.ClusterName),
		Value:      float64(runs),
		Unit:       types.StandardUnitCount,
	})
}
