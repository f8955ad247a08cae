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

package workerfleet

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/samber/lo"

	sdk "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/aws"
	awserrors "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/errors"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

type Provider interface {
	WorkerCount(context.Context, string, string) (int32, error)
}

type DefaultProvider struct {
	ecsapi sdk.ECSAPI
}

func NewDefaultProvider(ecsapi sdk.ECSAPI) *DefaultProvider {
	return &DefaultProvider{ecsapi: ecsapi}
}

// WorkerCount returns the number of running plus pending tasks of the worker service. Pending
// tasks are counted so that a scale out in progress is not requested twice.
func (p *DefaultProvider) WorkerCount(ctx context.Context, cluster, service string) (int32, error) {
	out, err := p.ecsapi.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(cluster),
		Services: []string{service},
	})
	if err != nil {
		return 0, fmt.Errorf("describing ecs service %q in cluster %q, %w", service, cluster, err)
	}
	svc, ok := lo.Find(out.Services, func(s ecstypes.Service) bool {
		return aws.ToString(s.ServiceName) == service || aws.ToString(s.ServiceArn) == service
	})
	if !ok {
		reason := strings.Join(lo.Map(out.Failures, func(f ecstypes.Failure, _ int) string { return aws.ToString(f.Reason) }), ", ")
		return 0, fmt.Errorf("describing ecs service %q in cluster %q, %w (%s)", service, cluster, awserrors.ErrServiceNotFound, lo.Ternary(reason == "", "no services returned", reason))
	}
	count := svc.RunningCount + svc.PendingCount
	log.FromContext(ctx).With("service", service, "running", svc.RunningCount, "pending", svc.PendingCount).Debugf("discovered worker count")
	return count, nil
}
