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
	"context"
	"time"

	"github.com/spf13/pflag"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/env"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

type optionsKey struct{}

// Options shared by every subcommand of the binary
type Options struct {
	RegionName                 string
	Profile                    string
	LogLevel                   string
	LogEncoding                string
	MetricsPort                int
	SQLAlchemyConn             string
	SQLAlchemyConnSSMParameter string
	MaxConsecutiveFailures     int
}

// AddFlags registers the global flags on fs. Every default is read from the environment first.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.RegionName, "region-name", env.WithDefaultString("AWS_REGION", ""), "AWS region name. Discovered from instance metadata if unset.")
	fs.StringVar(&o.Profile, "profile", env.WithDefaultString("AWS_PROFILE", ""), "The name of the shared config profile to use.")
	fs.StringVar(&o.LogLevel, "log-level", env.WithDefaultString("LOG_LEVEL", "info"), "Log verbosity level. Can be one of 'debug', 'info', 'warn' or 'error'.")
	fs.StringVar(&o.LogEncoding, "log-encoding", env.WithDefaultString("LOG_ENCODING", log.EncodingJSON), "Log encoding. Can be one of 'json' or 'console'.")
	fs.IntVar(&o.MetricsPort, "metrics-port", env.WithDefaultInt("METRICS_PORT", 8080), "The port the metric and health endpoints bind to. 0 disables the server.")
	fs.StringVar(&o.SQLAlchemyConn, "sql-alchemy-conn", env.FirstNonEmpty("", "AIRFLOW__DATABASE__SQL_ALCHEMY_CONN", "AIRFLOW__CORE__SQL_ALCHEMY_CONN"), "The Airflow metadata database connection string.")
	fs.StringVar(&o.SQLAlchemyConnSSMParameter, "sql-alchemy-conn-ssm-parameter", env.WithDefaultString("SQL_ALCHEMY_CONN_SSM_PARAMETER", ""), "Name of an SSM parameter holding the Airflow metadata database connection string. Used when --sql-alchemy-conn is empty.")
	fs.IntVar(&o.MaxConsecutiveFailures, "max-consecutive-failures", env.WithDefaultInt("MAX_CONSECUTIVE_FAILURES", 3), "Number of consecutive failed cycles tolerated before a publisher exits with an error.")
}

// PublisherOptions are common to the metric publishing subcommands
type PublisherOptions struct {
	Namespace   string
	ClusterName string
	MetricName  string
	Period      time.Duration
}

func (o *PublisherOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Namespace, "namespace", env.WithDefaultString("METRIC_NAMESPACE", ""), "Metric namespace")
	fs.StringVar(&o.ClusterName, "cluster-name", env.WithDefaultString("CLUSTER_NAME", ""), "Cluster name used as metric dimension")
	fs.StringVar(&o.MetricName, "metric-name", env.WithDefaultString("METRIC_NAME", ""), "Name of the published metric")
	fs.DurationVar(&o.Period, "period", env.WithDefaultDuration("PERIOD", time.Minute), "The interval between two put-metric-data calls")
}

type WorkerAutoscalingOptions struct {
	PublisherOptions
	MetricUnit            string
	WorkerServiceName     string
	DesiredTasksPerWorker int
}

func (o *WorkerAutoscalingOptions) AddFlags(fs *pflag.FlagSet) {
	o.PublisherOptions.AddFlags(fs)
	fs.StringVar(&o.MetricUnit, "metric-unit", env.WithDefaultString("METRIC_UNIT", "Percent"), "CloudWatch unit of the published metric")
	fs.StringVar(&o.WorkerServiceName, "worker-service-name", env.WithDefaultString("WORKER_SERVICE_NAME", ""), "The name of the airflow worker ECS service")
	fs.IntVar(&o.DesiredTasksPerWorker, "desired-tasks-per-worker", env.WithDefaultInt("DESIRED_TASKS_PER_WORKER", 5), "Number of airflow tasks a single worker is expected to run")
}

type TasksPerWorkerOptions struct {
	PublisherOptions
	WorkerServiceName string
}

func (o *TasksPerWorkerOptions) AddFlags(fs *pflag.FlagSet) {
	o.PublisherOptions.AddFlags(fs)
	fs.StringVar(&o.WorkerServiceName, "worker-service-name", env.WithDefaultString("WORKER_SERVICE_NAME", "airflow-worker"), "The name of the airflow worker ECS service")
}

type RunTaskOptions struct {
	Cluster           string
	TaskDefinition    string
	ContainerName     string
	VPCName           string
	SecurityGroupName string
	Command           string
	WaitTasksStopped  bool
	WaitTimeout       time.Duration
	CPU               int
	Memory            int
	CapacityProvider  string
}

func (o *RunTaskOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Cluster, "cluster", "airflow", "The name of the target cluster")
	fs.StringVar(&o.TaskDefinition, "task-definition", "airflow-standalone-task", "The name of the standalone task definition")
	fs.StringVar(&o.ContainerName, "container-name", "airflow", "The name of the container in the standalone task definition")
	fs.StringVar(&o.VPCName, "vpc-name", "deploy-airflow-on-ecs-fargate", "The Name tag of the ECS cluster VPC")
	fs.StringVar(&o.SecurityGroupName, "security-group-name", "airflow-standalone-task", "The name of the standalone task security group")
	fs.StringVar(&o.Command, "command", "", "The airflow command *as a single string* (eg. 'users create --role Admin')")
	fs.BoolVar(&o.WaitTasksStopped, "wait-tasks-stopped", false, "After calling run-task, wait until the task status returns STOPPED")
	fs.DurationVar(&o.WaitTimeout, "wait-timeout", 30*time.Minute, "Maximum time to wait for the task to stop")
	fs.IntVar(&o.CPU, "cpu", 1024, "Task cpu units")
	fs.IntVar(&o.Memory, "memory", 2048, "Task memory in MiB")
	fs.StringVar(&o.CapacityProvider, "capacity-provider", CapacityProviderFargate, "Capacity provider of the task, FARGATE or FARGATE_SPOT")
}

func ToContext(ctx context.Context, opts *Options) context.Context {
	return context.WithValue(ctx, optionsKey{}, opts)
}

func FromContext(ctx context.Context) *Options {
	retval := ctx.Value(optionsKey{})
	if retval == nil {
		// This is a developer error if this happens, so we should panic
		panic("options doesn't exist in context")
	}
	return retval.(*Options)
}
