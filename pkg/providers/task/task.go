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

package task

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/google/uuid"
	"github.com/samber/lo"

	sdk "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/aws"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/network"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

// PlatformVersion is the Fargate platform version standalone tasks run on
const PlatformVersion = "1.4.0"

// Request describes a one-off Airflow CLI invocation
type Request struct {
	Cluster          string
	TaskDefinition   string
	ContainerName    string
	Command          string
	CPU              int32
	Memory           int32
	CapacityProvider string
	Network          network.Network
}

// Container is the outcome of one container of a stopped task
type Container struct {
	Name     string
	ExitCode *int32
	Reason   string
}

// Result is the outcome of a stopped task
type Result struct {
	TaskARN       string
	StopCode      string
	StoppedReason string
	Containers    []Container
}

// Succeeded reports whether every container exited with code 0
func (r Result) Succeeded() bool {
	return len(r.Containers) > 0 && lo.EveryBy(r.Containers, func(c Container) bool {
		return c.ExitCode != nil && *c.ExitCode == 0
	})
}

type Provider interface {
	Run(context.Context, Request) (string, error)
	WaitStopped(context.Context, string, string, time.Duration) (Result, error)
}

type DefaultProvider struct {
	ecsapi sdk.ECSAPI
	// waiterOptions tune the TasksStopped waiter polling
	waiterOptions []func(*ecs.TasksStoppedWaiterOptions)
}

func NewDefaultProvider(ecsapi sdk.ECSAPI, waiterOptions ...func(*ecs.TasksStoppedWaiterOptions)) *DefaultProvider {
	return &DefaultProvider{ecsapi: ecsapi, waiterOptions: waiterOptions}
}

// Run submits a single task and returns its ARN
func (p *DefaultProvider) Run(ctx context.Context, req Request) (string, error) {
	out, err := p.ecsapi.RunTask(ctx, req.runTaskInput())
	if err != nil {
		return "", fmt.Errorf("running task %q in cluster %q, %w", req.TaskDefinition, req.Cluster, err)
	}
	if len(out.Tasks) == 0 {
		reasons := lo.Map(out.Failures, func(f ecstypes.Failure, _ int) string {
			return fmt.Sprintf("%s: %s", aws.ToString(f.Arn), aws.ToString(f.Reason))
		})
		return "", fmt.Errorf("running task %q in cluster %q, no task started, failures: [%s]", req.TaskDefinition, req.Cluster, strings.Join(reasons, ", "))
	}
	taskARN := aws.ToString(out.Tasks[0].TaskArn)
	log.FromContext(ctx).With("task", taskARN, "cluster", req.Cluster).Infof("submitted task")
	return taskARN, nil
}

// WaitStopped blocks until the task reaches STOPPED or maxWait elapses
func (p *DefaultProvider) WaitStopped(ctx context.Context, cluster, taskARN string, maxWait time.Duration) (Result, error) {
	out, err := ecs.NewTasksStoppedWaiter(p.ecsapi, p.waiterOptions...).WaitForOutput(ctx, &ecs.DescribeTasksInput{
		Cluster: aws.String(cluster),
		Tasks:   []string{taskARN},
	}, maxWait)
	if err != nil {
		return Result{}, fmt.Errorf("waiting for task %q to stop, %w", taskARN, err)
	}
	t, ok := lo.Find(out.Tasks, func(t ecstypes.Task) bool { return aws.ToString(t.TaskArn) == taskARN })
	if !ok {
		return Result{}, fmt.Errorf("waiting for task %q to stop, task not returned", taskARN)
	}
	return Result{
		TaskARN:       taskARN,
		StopCode:      string(t.StopCode),
		StoppedReason: aws.ToString(t.StoppedReason),
		Containers: lo.Map(t.Containers, func(c ecstypes.Container, _ int) Container {
			return Container{Name: aws.ToString(c.Name), ExitCode: c.ExitCode, Reason: aws.ToString(c.Reason)}
		}),
	}, nil
}

func (r Request) runTaskInput() *ecs.RunTaskInput {
	return &ecs.RunTaskInput{
		Cluster:        aws.String(r.Cluster),
		TaskDefinition: aws.String(r.TaskDefinition),
		Count:          aws.Int32(1),
		CapacityProviderStrategy: []ecstypes.CapacityProviderStrategyItem{
			{CapacityProvider: aws.String(r.CapacityProvider)},
		},
		NetworkConfiguration: &ecstypes.NetworkConfiguration{
			AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
				Subnets:        r.Network.SubnetIDs,
				SecurityGroups: []string{r.Network.SecurityGroupID},
				AssignPublicIp: ecstypes.AssignPublicIpEnabled,
			},
		},
		Overrides: &ecstypes.TaskOverride{
			ContainerOverrides: []ecstypes.ContainerOverride{{
				Name:    aws.String(r.ContainerName),
				Command: strings.Fields(r.Command),
				Cpu:     aws.Int32(r.CPU),
				Memory:  aws.Int32(r.Memory),
			}},
			Cpu:    aws.String(strconv.Itoa(int(r.CPU))),
			Memory: aws.String(strconv.Itoa(int(r.Memory))),
		},
		PlatformVersion: aws.String(PlatformVersion),
		ClientToken:     aws.String(uuid.NewString()),
	}
}
