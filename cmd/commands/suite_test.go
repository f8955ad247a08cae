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

package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/cmd/commands"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/airflowconfig"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/fake"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/operator/options"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/network"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/task"
)

func TestCommands(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Commands")
}

func execute(args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd := commands.NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

var _ = Describe("Root", func() {
	It("should list every subcommand", func() {
		out, err := execute("--help")
		Expect(err).ToNot(HaveOccurred())
		for _, name := range []string{"put-worker-autoscaling-metric", "put-tasks-per-worker-metric", "put-active-dag-runs-metric", "run-task", "render-config"} {
			Expect(out).To(ContainSubstring(name))
		}
	})
	It("should reject invalid global options", func() {
		_, err := execute("--log-level", "loud", "render-config", "logging")
		Expect(err).To(MatchError(ContainSubstring("validating options")))
	})
	It("should validate publisher flags before touching aws", func() {
		_, err := execute("put-worker-autoscaling-metric", "--namespace", "Airflow")
		Expect(err).To(MatchError(ContainSubstring("cluster-name")))
		Expect(err).To(MatchError(ContainSubstring("worker-service-name")))
	})
	It("should validate run-task flags before touching aws", func() {
		_, err := execute("run-task", "--capacity-provider", "EC2")
		Expect(err).To(MatchError(ContainSubstring("command")))
		Expect(err).To(MatchError(ContainSubstring("capacity provider")))
	})
})

var _ = Describe("RenderConfig", func() {
	It("should render the fargate logging config", func() {
		out, err := execute("render-config", "logging", "--output", "json")
		Expect(err).ToNot(HaveOccurred())
		cfg := airflowconfig.LoggingConfig{}
		Expect(json.Unmarshal([]byte(out), &cfg)).To(Succeed())
		Expect(cfg.Loggers["airflow.task"].Handlers).To(Equal([]string{"stdout", "task"}))
	})
	It("should render the ec2 logging config as yaml", func() {
		out, err := execute("render-config", "logging", "--variant", "ec2")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("stream: ext://sys.stdout"))
		Expect(out).To(HavePrefix(airflowconfig.FingerprintHeader))
	})
	It("should render the celery config from a queue url", func() {
		out, err := execute("render-config", "celery", "-o", "toml", "--broker-queue-url", fake.QueueURL("airflow-celery-broker"))
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring(fake.QueueURL("airflow-celery-broker")))
		Expect(out).To(ContainSubstring("worker_enable_remote_control = false"))
	})
	It("should require a queue", func() {
		GinkgoT().Setenv(airflowconfig.BrokerQueueURLEnv, "")
		_, err := execute("render-config", "celery")
		Expect(err).To(MatchError(ContainSubstring("broker-queue-url")))
	})
	It("should reject unknown formats", func() {
		_, err := execute("render-config", "logging", "--output", "ini")
		Expect(err).To(MatchError(ContainSubstring("unsupported output format")))
	})
})

var _ = Describe("RunTask", func() {
	var ec2api *fake.EC2API
	var ecsapi *fake.ECSAPI
	var networkProvider *network.DefaultProvider
	var taskProvider *task.DefaultProvider
	var opts options.RunTaskOptions

	BeforeEach(func() {
		ec2api = &fake.EC2API{}
		ecsapi = &fake.ECSAPI{}
		networkProvider = network.NewDefaultProvider(ec2api)
		taskProvider = task.NewDefaultProvider(ecsapi, func(o *ecs.TasksStoppedWaiterOptions) {
			o.MinDelay = time.Millisecond
			o.MaxDelay = 5 * time.Millisecond
		})
		ec2api.Vpcs.Add(&ec2types.Vpc{VpcId: aws.String("vpc-test1"), Tags: []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String("airflow")}}})
		ec2api.Subnets.Add(&ec2types.Subnet{SubnetId: aws.String("subnet-test1"), VpcId: aws.String("vpc-test1"), MapPublicIpOnLaunch: aws.Bool(true)})
		ec2api.SecurityGroups.Add(&ec2types.SecurityGroup{GroupId: aws.String("sg-test1"), GroupName: aws.String("airflow-standalone-task"), VpcId: aws.String("vpc-test1")})
		opts = options.RunTaskOptions{
			Cluster:           "airflow",
			TaskDefinition:    "airflow-standalone-task",
			ContainerName:     "airflow",
			VPCName:           "airflow",
			SecurityGroupName: "airflow-standalone-task",
			Command:           "db  init",
			WaitTimeout:       time.Minute,
			CPU:               1024,
			Memory:            2048,
			CapacityProvider:  options.CapacityProviderFargateSpot,
		}
	})

	It("should print the task arn", func() {
		out := &bytes.Buffer{}
		Expect(commands.RunTask(context.Background(), networkProvider, taskProvider, opts, out)).To(Succeed())
		Expect(out.String()).To(HavePrefix("arn:aws:ecs:"))
		input := ecsapi.RunTaskBehavior.CalledWithInput.Pop()
		Expect(input.Overrides.ContainerOverrides[0].Command).To(Equal([]string{"db", "init"}))
		Expect(input.NetworkConfiguration.AwsvpcConfiguration.Subnets).To(Equal([]string{"subnet-test1"}))
		Expect(aws.ToString(input.CapacityProviderStrategy[0].CapacityProvider)).To(Equal("FARGATE_SPOT"))
		Expect(ecsapi.DescribeTasksBehavior.Calls()).To(BeZero())
	})
	It("should wait for the task to stop and report exit codes", func() {
		opts.WaitTasksStopped = true
		out := &bytes.Buffer{}
		Expect(commands.RunTask(context.Background(), networkProvider, taskProvider, opts, out)).To(Succeed())
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[1]).To(ContainSubstring("container airflow exited with code 0"))
	})
	It("should fail when a container exits non-zero", func() {
		opts.WaitTasksStopped = true
		ecsapi.RunTaskBehavior.Output.Set(&ecs.RunTaskOutput{Tasks: []ecstypes.Task{{TaskArn: aws.String("arn:aws:ecs:us-west-2:000000000000:task/airflow/abc")}}})
		ecsapi.DescribeTasksBehavior.Output.Set(&ecs.DescribeTasksOutput{Tasks: []ecstypes.Task{{
			TaskArn:       aws.String("arn:aws:ecs:us-west-2:000000000000:task/airflow/abc"),
			LastStatus:    aws.String("STOPPED"),
			StopCode:      ecstypes.TaskStopCodeEssentialContainerExited,
			StoppedReason: aws.String("Essential container in task exited"),
			Containers:    []ecstypes.Container{{Name: aws.String("airflow"), ExitCode: aws.Int32(1)}},
		}}})
		err := commands.RunTask(context.Background(), networkProvider, taskProvider, opts, &bytes.Buffer{})
		Expect(err).To(MatchError(ContainSubstring("stopped unsuccessfully")))
	})
	It("should fail when the vpc does not exist", func() {
		opts.VPCName = "missing"
		Expect(commands.RunTask(context.Background(), networkProvider, taskProvider, opts, &bytes.Buffer{})).ToNot(Succeed())
		Expect(ecsapi.RunTaskBehavior.Calls()).To(BeZero())
	})
})
