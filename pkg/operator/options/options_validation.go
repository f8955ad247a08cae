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

package options

import (
	"fmt"
	"time"

	"github.com/awslabs/operatorpkg/serrors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

const (
	CapacityProviderFargate     = "FARGATE"
	CapacityProviderFargateSpot = "FARGATE_SPOT"
)

func (o *Options) Validate() error {
	return multierr.Combine(
		o.validateLogging(),
		o.validateMetricsPort(),
		o.validateMaxConsecutiveFailures(),
	)
}

func (o *Options) validateLogging() (err error) {
	if _, e := zapcore.ParseLevel(o.LogLevel); e != nil {
		err = multierr.Append(err, serrors.Wrap(fmt.Errorf("invalid log level"), "log-level", o.LogLevel))
	}
	if !lo.Contains([]string{log.EncodingJSON, log.EncodingConsole}, o.LogEncoding) {
		err = multierr.Append(err, serrors.Wrap(fmt.Errorf("invalid log encoding"), "log-encoding", o.LogEncoding))
	}
	return err
}

func (o *Options) validateMetricsPort() error {
	if o.MetricsPort < 0 || o.MetricsPort > 65535 {
		return serrors.Wrap(fmt.Errorf("metrics port out of range"), "metrics-port", o.MetricsPort)
	}
	return nil
}

func (o *Options) validateMaxConsecutiveFailures() error {
	if o.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("max-consecutive-failures must be at least 1")
	}
	return nil
}

// ValidateDatabase checks that a connection string can be resolved by a subcommand that reads the Airflow database
func (o *Options) ValidateDatabase() error {
	if o.SQLAlchemyConn == "" && o.SQLAlchemyConnSSMParameter == "" {
		return fmt.Errorf("missing field, one of sql-alchemy-conn or sql-alchemy-conn-ssm-parameter")
	}
	return nil
}

func (o *PublisherOptions) Validate() error {
	return multierr.Combine(
		required("namespace", o.Namespace),
		required("cluster-name", o.ClusterName),
		required("metric-name", o.MetricName),
		o.validatePeriod(),
	)
}

func (o *PublisherOptions) validatePeriod() error {
	// cron.Every rounds anything shorter up to a second
	if o.Period < time.Second {
		return serrors.Wrap(fmt.Errorf("period must be at least 1s"), "period", o.Period)
	}
	return nil
}

func (o *WorkerAutoscalingOptions) Validate() error {
	err := multierr.Combine(
		o.PublisherOptions.Validate(),
		required("metric-unit", o.MetricUnit),
		required("worker-service-name", o.WorkerServiceName),
	)
	if o.DesiredTasksPerWorker < 1 {
		err = multierr.Append(err, serrors.Wrap(fmt.Errorf("desired-tasks-per-worker must be at least 1"), "desired-tasks-per-worker", o.DesiredTasksPerWorker))
	}
	return err
}

func (o *TasksPerWorkerOptions) Validate() error {
	return multierr.Combine(
		o.PublisherOptions.Validate(),
		required("worker-service-name", o.WorkerServiceName),
	)
}

func (o *RunTaskOptions) Validate() (err error) {
	err = multierr.Combine(
		required("cluster", o.Cluster),
		required("task-definition", o.TaskDefinition),
		required("container-name", o.ContainerName),
		required("vpc-name", o.VPCName),
		required("security-group-name", o.SecurityGroupName),
		required("command", o.Command),
	)
	if !lo.Contains([]string{CapacityProviderFargate, CapacityProviderFargateSpot}, o.CapacityProvider) {
		err = multierr.Append(err, serrors.Wrap(fmt.Errorf("invalid capacity provider, valid values are [FARGATE, FARGATE_SPOT]"), "capacity-provider", o.CapacityProvider))
	}
	if o.CPU <= 0 {
		err = multierr.Append(err, serrors.Wrap(fmt.Errorf("cpu must be positive"), "cpu", o.CPU))
	}
	if o.Memory <= 0 {
		err = multierr.Append(err, serrors.Wrap(fmt.Errorf("memory must be positive"), "memory", o.Memory))
	}
	return err
}

func required(name, value string) error {
	if value == "" {
		return fmt.Errorf("missing field, %s", name)
	}
	return nil
}
