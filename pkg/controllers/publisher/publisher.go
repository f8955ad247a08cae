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

	"github.com/samber/lo"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/metrics"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/cloudwatch"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

const (
	ClusterNameDimension = "ClusterName"

	NumberOfActiveRunningTasksMetricName = "NumberOfActiveRunningTasks"
)

// Publisher runs a single fetch, compute and emit cycle
type Publisher interface {
	Name() string
	Publish(context.Context) error
}

// emitter sends datums to one CloudWatch namespace and mirrors the sent values on the recorder
type emitter struct {
	cloudwatch cloudwatch.Provider
	recorder   *metrics.Recorder
	namespace  string
}

func (e emitter) emit(ctx context.Context, publisher string, datums ...cloudwatch.Datum) error {
	if err := e.cloudwatch.Put(ctx, e.namespace, datums...); err != nil {
		return fmt.Errorf("publishing %s, %w", lo.Map(datums, func(d cloudwatch.Datum, _ int) string { return d.Name }), err)
	}
	for _, d := range datums {
		log.FromContext(ctx).With("namespace", e.namespace, "metric", d.Name, "value", d.Value, "unit", d.Unit).Info("published metric")
		if e.recorder != nil {
			e.recorder.SetLastValue(publisher, d.Name, d.Value)
		}
	}
	return nil
}

func clusterDimension(cluster string) map[string]string {
	return map[string]string{ClusterNameDimension: cluster}
}
