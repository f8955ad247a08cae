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

package fake

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/samber/lo"

	sdk "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/aws"
)

// CloudWatchBehavior must be reset between tests otherwise tests will
// pollute each other.
type CloudWatchBehavior struct {
	PutMetricDataBehavior MockedFunction[cloudwatch.PutMetricDataInput, cloudwatch.PutMetricDataOutput]
	GetMetricDataBehavior MockedFunction[cloudwatch.GetMetricDataInput, cloudwatch.GetMetricDataOutput]
}

type CloudWatchAPI struct {
	sdk.CloudWatchAPI
	CloudWatchBehavior
}

// Reset must be called between tests otherwise tests will pollute
// each other.
func (c *CloudWatchAPI) Reset() {
	c.PutMetricDataBehavior.Reset()
	c.GetMetricDataBehavior.Reset()
}

func (c *CloudWatchAPI) PutMetricData(_ context.Context, input *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	return c.PutMetricDataBehavior.Invoke(input, func(_ *cloudwatch.PutMetricDataInput) (*cloudwatch.PutMetricDataOutput, error) {
		return &cloudwatch.PutMetricDataOutput{}, nil
	})
}

func (c *CloudWatchAPI) GetMetricData(_ context.Context, input *cloudwatch.GetMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error) {
	return c.GetMetricDataBehavior.Invoke(input, func(in *cloudwatch.GetMetricDataInput) (*cloudwatch.GetMetricDataOutput, error) {
		// Every query that returns data comes back complete with no datapoints
		return &cloudwatch.GetMetricDataOutput{
			MetricDataResults: lo.FilterMap(in.MetricDataQueries, func(q types.MetricDataQuery, _ int) (types.MetricDataResult, bool) {
				if q.ReturnData != nil && !*q.ReturnData {
					return types.MetricDataResult{}, false
				}
				return types.MetricDataResult{Id: q.Id, StatusCode: types.StatusCodeComplete}, true
			}),
		}, nil
	})
}

// PutDatums flattens the metric data of every recorded PutMetricData call, oldest first.
func (c *CloudWatchAPI) PutDatums() []types.MetricDatum {
	var datums []types.MetricDatum
	c.PutMetricDataBehavior.CalledWithInput.ForEach(func(in *cloudwatch.PutMetricDataInput) {
		datums = append(datums, in.MetricData...)
	})
	return datums
}
