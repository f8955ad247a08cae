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
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/google/uuid"
	"github.com/samber/lo"

	sdk "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/aws"
)

const dummyAccountID = "000000000000"

// ECSBehavior must be reset between tests otherwise tests will
// pollute each other.
type ECSBehavior struct {
	DescribeServicesBehavior MockedFunction[ecs.DescribeServicesInput, ecs.DescribeServicesOutput]
	DescribeTasksBehavior    MockedFunction[ecs.DescribeTasksInput, ecs.DescribeTasksOutput]
	RunTaskBehavior          MockedFunction[ecs.RunTaskInput, ecs.RunTaskOutput]
	// Services is keyed by "<cluster>/<service>"
	Services sync.Map
}

type ECSAPI struct {
	sdk.ECSAPI
	ECSBehavior
}

// Reset must be called between tests otherwise tests will pollute
// each other.
func (e *ECSAPI) Reset() {
	e.DescribeServicesBehavior.Reset()
	e.DescribeTasksBehavior.Reset()
	e.RunTaskBehavior.Reset()
	e.Services.Range(func(k, _ any) bool {
		e.Services.Delete(k)
		return true
	})
}

// StoreService registers a service that DescribeServices will return by default.
func (e *ECSAPI) StoreService(cluster string, service ecstypes.Service) {
	e.Services.Store(fmt.Sprintf("%s/%s", cluster, aws.ToString(service.ServiceName)), service)
}

func (e *ECSAPI) DescribeServices(_ context.Context, input *ecs.DescribeServicesInput, _ ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error) {
	return e.DescribeServicesBehavior.Invoke(input, func(in *ecs.DescribeServicesInput) (*ecs.DescribeServicesOutput, error) {
		out := &ecs.DescribeServicesOutput{}
		for _, name := range in.Services {
			if svc, ok := e.Services.Load(fmt.Sprintf("%s/%s", aws.ToString(in.Cluster), name)); ok {
				out.Services = append(out.Services, svc.(ecstypes.Service))
				continue
			}
			out.Failures = append(out.Failures, ecstypes.Failure{
				Arn:    aws.String(serviceARN(aws.ToString(in.Cluster), name)),
				Reason: aws.String("MISSING"),
			})
		}
		return out, nil
	})
}

func (e *ECSAPI) DescribeTasks(_ context.Context, input *ecs.DescribeTasksInput, _ ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error) {
	return e.DescribeTasksBehavior.Invoke(input, func(in *ecs.DescribeTasksInput) (*ecs.DescribeTasksOutput, error) {
		return &ecs.DescribeTasksOutput{
			Tasks: lo.Map(in.Tasks, func(arn string, _ int) ecstypes.Task {
				return ecstypes.Task{
					TaskArn:    aws.String(arn),
					LastStatus: aws.String("STOPPED"),
					Containers: []ecstypes.Container{{Name: aws.String("airflow"), ExitCode: aws.Int32(0)}},
				}
			}),
		}, nil
	})
}

func (e *ECSAPI) RunTask(_ context.Context, input *ecs.RunTaskInput, _ ...func(*ecs.Options)) (*ecs.RunTaskOutput, error) {
	return e.RunTaskBehavior.Invoke(input, func(in *ecs.RunTaskInput) (*ecs.RunTaskOutput, error) {
		return &ecs.RunTaskOutput{
			Tasks: []ecstypes.Task{{
				TaskArn:           aws.String(fmt.Sprintf("arn:aws:ecs:us-west-2:%s:task/%s/%s", dummyAccountID, aws.ToString(in.Cluster), uuid.NewString())),
				TaskDefinitionArn: in.TaskDefinition,
				LastStatus:        aws.String("PROVISIONING"),
			}},
		}, nil
	})
}

func serviceARN(cluster, service string) string {
	return fmt.Sprintf("arn:aws:ecs:us-west-2:%s:service/%s/%s", dummyAccountID, cluster, service)
}
