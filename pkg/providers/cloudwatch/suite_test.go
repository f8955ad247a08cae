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

package cloudwatch_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdkcloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"

	awserrors "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/errors"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/fake"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/cloudwatch"
)

var ctx context.Context
var cloudwatchapi *fake.CloudWatchAPI
var provider *cloudwatch.DefaultProvider

func TestCloudWatch(t *testing.T) {
	ctx = context.Background()
	RegisterFailHandler(Fail)
	RunSpecs(t, "CloudWatch")
}

var _ = BeforeSuite(func() {
	cloudwatchapi = &fake.CloudWatchAPI{}
	provider = cloudwatch.NewDefaultProvider(cloudwatchapi)
})

var _ = BeforeEach(func() {
	cloudwatchapi.Reset()
})

var _ = Describe("Put", func() {
	It("should put one request per datum", func() {
		Expect(provider.Put(ctx, "Airflow",
			cloudwatch.Datum{Name: "WorkerCapacityProviderReservation", Dimensions: map[string]string{"ClusterName": "airflow"}, Value: 140, Unit: types.StandardUnitPercent},
			cloudwatch.Datum{Name: "NumberOfActiveRunningTasks", Dimensions: map[string]string{"ClusterName": "airflow"}, Value: 7, Unit: types.StandardUnitCount},
		)).To(Succeed())
		Expect(cloudwatchapi.PutMetricDataBehavior.Calls()).To(Equal(2))
		cloudwatchapi.PutMetricDataBehavior.CalledWithInput.ForEach(func(in *sdkcloudwatch.PutMetricDataInput) {
			Expect(aws.ToString(in.Namespace)).To(Equal("Airflow"))
			Expect(in.MetricData).To(HaveLen(1))
		})
		datums := cloudwatchapi.PutDatums()
		Expect(aws.ToString(datums[0].MetricName)).To(Equal("WorkerCapacityProviderReservation"))
		Expect(aws.ToFloat64(datums[0].Value)).To(BeNumerically("==", 140))
		Expect(datums[0].Unit).To(Equal(types.StandardUnitPercent))
		Expect(aws.ToString(datums[1].MetricName)).To(Equal("NumberOfActiveRunningTasks"))
		Expect(datums[1].Unit).To(Equal(types.StandardUnitCount))
	})
	It("should sort dimensions by name", func() {
		Expect(provider.Put(ctx, "Airflow", cloudwatch.Datum{
			Name:       "TasksPerWorker",
			Dimensions: map[string]string{"ServiceName": "airflow-worker", "ClusterName": "airflow"},
			Value:      2,
			Unit:       types.StandardUnitCount,
		})).To(Succeed())
		dims := cloudwatchapi.PutDatums()[0].Dimensions
		Expect(lo.Map(dims, func(d types.Dimension, _ int) string { return aws.ToString(d.Name) })).To(Equal([]string{"ClusterName", "ServiceName"}))
	})
	It("should stop at the first failed request", func() {
		cloudwatchapi.PutMetricDataBehavior.Error.Set(fmt.Errorf("throttled"))
		err := provider.Put(ctx, "Airflow",
			cloudwatch.Datum{Name: "a", Value: 1, Unit: types.StandardUnitCount},
			cloudwatch.Datum{Name: "b", Value: 1, Unit: types.StandardUnitCount},
		)
		Expect(err).To(MatchError(ContainSubstring(`putting metric data "a"`)))
		Expect(cloudwatchapi.PutMetricDataBehavior.FailedCalls()).To(Equal(1))
	})
	It("should recover once the throttling stops", func() {
		cloudwatchapi.PutMetricDataBehavior.Error.SetTimes(fmt.Errorf("throttled"), 2)
		datum := cloudwatch.Datum{Name: "a", Value: 1, Unit: types.StandardUnitCount}
		Expect(provider.Put(ctx, "Airflow", datum)).ToNot(Succeed())
		Expect(provider.Put(ctx, "Airflow", datum)).ToNot(Succeed())
		Expect(provider.Put(ctx, "Airflow", datum)).To(Succeed())
		Expect(cloudwatchapi.PutMetricDataBehavior.FailedCalls()).To(Equal(2))
		Expect(cloudwatchapi.PutDatums()).To(HaveLen(1))
	})
})

var _ = Describe("ExecutorLoad", func() {
	query := cloudwatch.ExecutorLoadQuery{Namespace: "Airflow", ClusterName: "airflow", ServiceName: "airflow-worker"}

	It("should request the executor gauges and worker counts", func() {
		cloudwatchapi.GetMetricDataBehavior.Output.Set(&sdkcloudwatch.GetMetricDataOutput{
			MetricDataResults: []types.MetricDataResult{
				{Id: aws.String("worker_count"), Values: []float64{4, 3}},
				{Id: aws.String("task_count"), Values: []float64{10, 12}},
			},
		})
		load, err := provider.ExecutorLoad(ctx, query)
		Expect(err).ToNot(HaveOccurred())
		Expect(load).To(Equal(cloudwatch.ExecutorLoad{TaskCount: 10, WorkerCount: 4}))

		input := cloudwatchapi.GetMetricDataBehavior.CalledWithInput.Pop()
		Expect(input.ScanBy).To(Equal(types.ScanByTimestampDescending))
		Expect(input.EndTime.Sub(*input.StartTime)).To(Equal(5 * time.Minute))
		queries := lo.KeyBy(input.MetricDataQueries, func(q types.MetricDataQuery) string { return aws.ToString(q.Id) })
		Expect(queries).To(HaveKey("queued_tasks"))
		Expect(queries).To(HaveKey("running_tasks"))
		Expect(aws.ToString(queries["queued_tasks"].MetricStat.Metric.MetricName)).To(Equal(cloudwatch.QueuedTasksMetricName))
		Expect(aws.ToString(queries["queued_tasks"].MetricStat.Metric.Namespace)).To(Equal("Airflow"))
		Expect(aws.ToInt32(queries["queued_tasks"].MetricStat.Period)).To(BeEquivalentTo(60))
		Expect(aws.ToString(queries["running_worker_count"].MetricStat.Metric.Namespace)).To(Equal(cloudwatch.ContainerInsightsNamespace))
		Expect(queries["running_worker_count"].MetricStat.Metric.Dimensions).To(ContainElement(types.Dimension{Name: aws.String("ServiceName"), Value: aws.String("airflow-worker")}))
		Expect(aws.ToBool(queries["running_worker_count"].ReturnData)).To(BeFalse())
		Expect(aws.ToString(queries["task_count"].Expression)).To(Equal("queued_tasks + running_tasks"))
		Expect(aws.ToBool(queries["task_count"].ReturnData)).To(BeTrue())
		Expect(aws.ToString(queries["worker_count"].Expression)).To(Equal("running_worker_count + pending_worker_count"))
		Expect(aws.ToBool(queries["worker_count"].ReturnData)).To(BeTrue())
	})
	It("should honor a custom window and period", func() {
		cloudwatchapi.GetMetricDataBehavior.Output.Set(&sdkcloudwatch.GetMetricDataOutput{
			MetricDataResults: []types.MetricDataResult{
				{Id: aws.String("worker_count"), Values: []float64{1}},
				{Id: aws.String("task_count"), Values: []float64{1}},
			},
		})
		_, err := provider.ExecutorLoad(ctx, cloudwatch.ExecutorLoadQuery{Namespace: "Airflow", ClusterName: "airflow", ServiceName: "airflow-worker", Window: 10 * time.Minute, Period: 5 * time.Minute})
		Expect(err).ToNot(HaveOccurred())
		input := cloudwatchapi.GetMetricDataBehavior.CalledWithInput.Pop()
		Expect(input.EndTime.Sub(*input.StartTime)).To(Equal(10 * time.Minute))
		Expect(aws.ToInt32(input.MetricDataQueries[0].MetricStat.Period)).To(BeEquivalentTo(300))
	})
	It("should pair both counts from the newest minute they share", func() {
		now := time.Now().Truncate(time.Minute).UTC()
		cloudwatchapi.GetMetricDataBehavior.Output.Set(&sdkcloudwatch.GetMetricDataOutput{
			MetricDataResults: []types.MetricDataResult{
				{Id: aws.String("task_count"), Values: []float64{20, 12, 9}, Timestamps: []time.Time{now, now.Add(-time.Minute), now.Add(-2 * time.Minute)}},
				{Id: aws.String("worker_count"), Values: []float64{3, 2}, Timestamps: []time.Time{now.Add(-time.Minute), now.Add(-2 * time.Minute)}},
			},
		})
		load, err := provider.ExecutorLoad(ctx, query)
		Expect(err).ToNot(HaveOccurred())
		Expect(load).To(Equal(cloudwatch.ExecutorLoad{TaskCount: 12, WorkerCount: 3}))
	})
	It("should return ErrNoDatapoints when the series share no timestamp", func() {
		now := time.Now().Truncate(time.Minute).UTC()
		cloudwatchapi.GetMetricDataBehavior.Output.Set(&sdkcloudwatch.GetMetricDataOutput{
			MetricDataResults: []types.MetricDataResult{
				{Id: aws.String("task_count"), Values: []float64{20}, Timestamps: []time.Time{now}},
				{Id: aws.String("worker_count"), Values: []float64{3}, Timestamps: []time.Time{now.Add(-time.Minute)}},
			},
		})
		_, err := provider.ExecutorLoad(ctx, query)
		Expect(errors.Is(err, awserrors.ErrNoDatapoints)).To(BeTrue())
	})
	It("should return ErrNoDatapoints when a series is empty", func() {
		_, err := provider.ExecutorLoad(ctx, query)
		Expect(errors.Is(err, awserrors.ErrNoDatapoints)).To(BeTrue())
	})
	It("should return ErrNoDatapoints when only the task count has values", func() {
		cloudwatchapi.GetMetricDataBehavior.Output.Set(&sdkcloudwatch.GetMetricDataOutput{
			MetricDataResults: []types.MetricDataResult{{Id: aws.String("task_count"), Values: []float64{1}}},
		})
		_, err := provider.ExecutorLoad(ctx, query)
		Expect(errors.Is(err, awserrors.ErrNoDatapoints)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("worker_count"))
	})
	It("should wrap api errors", func() {
		cloudwatchapi.GetMetricDataBehavior.Error.Set(fmt.Errorf("access denied"))
		_, err := provider.ExecutorLoad(ctx, query)
		Expect(err).To(MatchError(ContainSubstring("getting executor metric data")))
	})
})
