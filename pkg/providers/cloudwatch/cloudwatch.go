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

package cloudwatch

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/samber/lo"

	sdk "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/aws"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

const (
	ContainerInsightsNamespace = "ECS/ContainerInsights"

	QueuedTasksMetricName  = "airflow_executor_queued_tasks"
	RunningTasksMetricName = "airflow_executor_running_tasks"

	DefaultWindow = 5 * time.Minute
	DefaultPeriod = time.Minute
)

// Datum is a single metric value published to CloudWatch
type Datum struct {
	Name       string
	Dimensions map[string]string
	Value      float64
	Unit       types.StandardUnit
}

type Provider interface {
	Put(context.Context, string, ...Datum) error
	ExecutorLoad(context.Context, ExecutorLoadQuery) (ExecutorLoad, error)
}

type DefaultProvider struct {
	cloudwatchapi sdk.CloudWatchAPI
}

func NewDefaultProvider(cloudwatchapi sdk.CloudWatchAPI) *DefaultProvider {
	return &DefaultProvider{cloudwatchapi: cloudwatchapi}
}

// Put publishes every datum with its own PutMetricData request
func (p *DefaultProvider) Put(ctx context.Context, namespace string, datums ...Datum) error {
	for _, d := range datums {
		if _, err := p.cloudwatchapi.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(namespace),
			MetricData: []types.MetricDatum{d.metricDatum()},
		}); err != nil {
			return fmt.Errorf("putting metric data %q in namespace %q, %w", d.Name, namespace, err)
		}
		log.FromContext(ctx).With("namespace", namespace, "metric", d.Name, "value", d.Value, "unit", d.Unit).Debugf("put metric data")
	}
	return nil
}

func (d Datum) metricDatum() types.MetricDatum {
	keys := lo.Keys(d.Dimensions)
	slices.Sort(keys)
	return types.MetricDatum{
		MetricName: aws.String(d.Name),
		Value:      aws.Float64(d.Value),
		Unit:       d.Unit,
		Dimensions: lo.Map(keys, func(k string, _ int) types.Dimension {
			return types.Dimension{Name: aws.String(k), Value: aws.String(d.Dimensions[k])}
		}),
	}
}
