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

package operator

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	sdk "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/aws"
	awscache "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/cache"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/metrics"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/operator/options"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/airflow"
	cloudwatchp "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/cloudwatch"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/network"
	sqsp "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/sqs"
	ssmp "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/ssm"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/task"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/workerfleet"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/project"
)

const userAgentKey = "airflow-ecs"

type IMDSAPI interface {
	GetRegion(context.Context, *imds.GetRegionInput, ...func(*imds.Options)) (*imds.GetRegionOutput, error)
}

// Operator is injected into the subcommands
type Operator struct {
	Config aws.Config

	STSAPI sdk.STSAPI

	CloudWatchProvider  cloudwatchp.Provider
	WorkerFleetProvider workerfleet.Provider
	NetworkProvider     network.Provider
	TaskProvider        task.Provider
	SSMProvider         ssmp.Provider
	SQSProvider         sqsp.Provider

	Registry *prometheus.Registry
	Recorder *metrics.Recorder
}

func NewOperator(ctx context.Context) (*Operator, error) {
	cfg, err := LoadAWSConfig(ctx, options.FromContext(ctx))
	if err != nil {
		return nil, err
	}
	if cfg.Region == "" {
		log.FromContext(ctx).Debug("retrieving region from IMDS")
		region, err := ResolveRegion(ctx, imds.NewFromConfig(cfg))
		if err != nil {
			return nil, err
		}
		cfg.Region = region
	}
	log.FromContext(ctx).With("region", cfg.Region).Debug("discovered region")
	return NewOperatorWithConfig(cfg), nil
}

// NewOperatorWithConfig builds the API clients and providers without making any API call
func NewOperatorWithConfig(cfg aws.Config) *Operator {
	ecsapi := ecs.NewFromConfig(cfg)
	registry, recorder := metrics.NewRegistry()
	return &Operator{
		Config:              cfg,
		STSAPI:              sts.NewFromConfig(cfg),
		CloudWatchProvider:  cloudwatchp.NewDefaultProvider(cloudwatch.NewFromConfig(cfg)),
		WorkerFleetProvider: workerfleet.NewDefaultProvider(ecsapi),
		NetworkProvider:     network.NewDefaultProvider(ec2.NewFromConfig(cfg)),
		TaskProvider:        task.NewDefaultProvider(ecsapi),
		SSMProvider:         ssmp.NewDefaultProvider(ssm.NewFromConfig(cfg), cache.New(awscache.SSMParameterTTL, awscache.DefaultCleanupInterval)),
		SQSProvider:         sqsp.NewDefaultProvider(sqs.NewFromConfig(cfg), cache.New(awscache.QueueURLTTL, awscache.DefaultCleanupInterval)),
		Registry:            registry,
		Recorder:            recorder,
	}
}

// LoadAWSConfig loads the shared config with the standard retryer and a user agent identifying this tool
func LoadAWSConfig(ctx context.Context, opts *options.Options) (aws.Config, error) {
	loadOptions := []func(*config.LoadOptions) error{
		config.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = 5
			})
		}),
		config.WithAPIOptions([]func(*middleware.Stack) error{awsmiddleware.AddUserAgentKeyValue(userAgentKey, project.Version)}),
	}
	if opts.RegionName != "" {
		loadOptions = append(loadOptions, config.WithRegion(opts.RegionName))
	}
	if opts.Profile != "" {
		loadOptions = append(loadOptions, config.WithSharedConfigProfile(opts.Profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading aws config, %w", err)
	}
	return cfg, nil
}

func ResolveRegion(ctx context.Context, api IMDSAPI) (string, error) {
	out, err := api.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", fmt.Errorf("getting region from instance metadata, %w", err)
	}
	return out.Region, nil
}

// CheckConnectivity calls GetCallerIdentity. If it fails, we provide an early indicator that credentials
// or network access to AWS are missing before the first cycle runs.
func CheckConnectivity(ctx context.Context, api sdk.STSAPI) error {
	out, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return fmt.Errorf("checking aws connectivity, %w", err)
	}
	log.FromContext(ctx).With("account", aws.ToString(out.Account), "arn", aws.ToString(out.Arn)).Debug("discovered caller identity")
	return nil
}

// ResolveSQLAlchemyConn returns the metadata database connection string, read from the SSM parameter
// when it was not passed directly
func ResolveSQLAlchemyConn(ctx context.Context, ssmProvider ssmp.Provider) (string, error) {
	opts := options.FromContext(ctx)
	if opts.SQLAlchemyConn != "" {
		return opts.SQLAlchemyConn, nil
	}
	conn, err := ssmProvider.Get(ctx, ssmp.Parameter{Name: opts.SQLAlchemyConnSSMParameter})
	if err != nil {
		return "", fmt.Errorf("resolving sql alchemy connection, %w", err)
	}
	return conn, nil
}

// AirflowStore connects to the metadata database. The caller closes the store.
func (o *Operator) AirflowStore(ctx context.Context) (*airflow.Store, error) {
	if err := options.FromContext(ctx).ValidateDatabase(); err != nil {
		return nil, err
	}
	conn, err := ResolveSQLAlchemyConn(ctx, o.SSMProvider)
	if err != nil {
		return nil, err
	}
	dsn, err := airflow.ParseSQLAlchemyConn(conn)
	if err != nil {
		return nil, err
	}
	db, err := airflow.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return airflow.NewStore(db), nil
}
