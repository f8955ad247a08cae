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
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/samber/lo"

	awserrors "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/errors"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

const (
	taskCountID   = "task_count"
	workerCountID = "worker_count"
)

// ExecutorLoadQuery locates the Airflow executor gauges and the Container Insights task counts of the worker service
type ExecutorLoadQuery struct {
	// Namespace the Airflow statsd gauges are published to
	Namespace   string
	ClusterName string
	ServiceName string
	// Window is how far back to look for datapoints, Period the statistic period
	Window time.Duration
	Period time.Duration
}

// ExecutorLoad is the latest executor task count and worker count
type ExecutorLoad struct {
	TaskCount   float64
	WorkerCount float64
}

// ExecutorLoad reads queued plus running executor tasks and running plus pending worker tasks
// using metric math, and returns the latest value of each sum.
func (p *DefaultProvider) ExecutorLoad(ctx context.Context, query ExecutorLoadQuery) (ExecutorLoad, error) {
	now := time.Now()
	window := lo.Ternary(query.Window > 0, query.Window, DefaultWindow)
	out, err := p.cloudwatchapi.GetMetricData(ctx, &cloudwatch.GetMetricDataInput{
		MetricDataQueries: query.metricDataQueries(),
		StartTime:         aws.Time(now.Add(-window)),
		EndTime:           aws.Time(now),
		ScanBy:            types.ScanByTimestampDescending,
	})
	if err != nil {
		return ExecutorLoad{}, fmt.Errorf("getting executor metric data, %w", err)
	}
	taskCount, workerCount, err := latestAligned(out.MetricDataResults)
	if err != nil {
		return ExecutorLoad{}, err
	}
	log.FromContext(ctx).With("task-count", taskCount, "worker-count", workerCount).Debugf("read executor load")
	return ExecutorLoad{TaskCount: taskCount, WorkerCount: workerCount}, nil
}

func series(results []types.MetricDataResult, id string) (types.MetricDataResult, error) {
	result, ok := lo.Find(results, func(r types.MetricDataResult) bool { return aws.ToString(r.Id) == id })
	if !ok || len(result.Values) == 0 {
		return types.MetricDataResult{}, fmt.Errorf("reading %q, %w", id, awserrors.ErrNoDatapoints)
	}
	return result, nil
}

// latestAligned returns the task and worker counts of the newest timestamp present in both series, since
// Container Insights can lag the executor gauges by a period.
func latestAligned(results []types.MetricDataResult) (float64, float64, error) {
	tasks, err := series(results, taskCountID)
	if err != nil {
		return 0, 0, err
	}
	workers, err := series(results, workerCountID)
	if err != nil {
		return 0, 0, err
	}
	if len(tasks.Timestamps) != len(tasks.Values) || len(workers.Timestamps) != len(workers.Values) {
		// nothing to align on, results are scanned newest first
		return tasks.Values[0], workers.Values[0], nil
	}
	workerAt := make(map[int64]float64, len(workers.Values))
	for i, ts := range workers.Timestamps {
		workerAt[ts.UnixNano()] = workers.Values[i]
	}
	var newest time.Time
	var taskCount, workerCount float64
	for i, ts := range tasks.Timestamps {
		w, ok := workerAt[ts.UnixNano()]
		if !ok || !ts.After(newest) {
			continue
		}
		newest, taskCount, workerCount = ts, tasks.Values[i], w
	}
	if newest.IsZero() {
		return 0, 0, fmt.Errorf("aligning %q and %q, %w", taskCountID, workerCountID, awserrors.ErrNoDatapoints)
	}
	return taskCount, workerCount, nil
}

func (q ExecutorLoadQuery) metricDataQueries() []types.MetricDataQuery {
	period := int32(lo.Ternary(q.Period > 0, q.Period, DefaultPeriod).Seconds())
	executorGauge := func(id, name string) types.MetricDataQuery {
		return stat(id, period, &types.Metric{
			Namespace:  aws.String(q.Namespace),
			MetricName: aws.String(name),
			Dimensions: []types.Dimension{{Name: aws.String("metric_type"), Value: aws.String("gauge")}},
		})
	}
	serviceCount := func(id, name string) types.MetricDataQuery {
		return stat(id, period, &types.Metric{
			Namespace:  aws.String(ContainerInsightsNamespace),
			MetricName: aws.String(name),
			Dimensions: []types.Dimension{
				{Name: aws.String("ClusterName"), Value: aws.String(q.ClusterName)},
				{Name: aws.String("ServiceName"), Value: aws.String(q.ServiceName)},
			},
		})
	}
	return []types.MetricDataQuery{
		executorGauge("queued_tasks", QueuedTasksMetricName),
		executorGauge("running_tasks", RunningTasksMetricName),
		serviceCount("running_worker_count", "RunningTaskCount"),
		serviceCount("pending_worker_count", "PendingTaskCount"),
		{Id: aws.String(workerCountID), Expression: aws.String("running_worker_count + pending_worker_count"), ReturnData: aws.Bool(true)},
		{Id: aws.String(taskCountID), Expression: aws.String("queued_tasks + running_tasks"), ReturnData: aws.Bool(true)},
	}
}

func stat(id string, period int32, metric *types.Metric) types.MetricDataQuery {
	return types.MetricDataQuery{
		Id: aws.String(id),
		MetricStat: &types.MetricStat{
			Metric: metric,
			Period: aws.Int32(period),
			Stat:   aws.String("Average"),
		},
		ReturnData: aws.Bool(false),
	}
}
