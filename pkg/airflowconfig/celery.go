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

package airflowconfig

import (
	"github.com/samber/lo"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/env"
)

const (
	BrokerQueueURLEnv = "X_AIRFLOW_SQS_CELERY_BROKER_PREDEFINED_QUEUE_URL"
	DefaultQueue      = "default"
)

// CeleryConfig is the subset of Airflow's celery_config_options that the deployment overrides
type CeleryConfig struct {
	AcceptContent             []string               `json:"accept_content" yaml:"accept_content" toml:"accept_content"`
	EventSerializer           string                 `json:"event_serializer" yaml:"event_serializer" toml:"event_serializer"`
	WorkerPrefetchMultiplier  int                    `json:"worker_prefetch_multiplier" yaml:"worker_prefetch_multiplier" toml:"worker_prefetch_multiplier"`
	TaskAcksLate              bool                   `json:"task_acks_late" yaml:"task_acks_late" toml:"task_acks_late"`
	TaskDefaultQueue          string                 `json:"task_default_queue" yaml:"task_default_queue" toml:"task_default_queue"`
	TaskDefaultExchange       string                 `json:"task_default_exchange" yaml:"task_default_exchange" toml:"task_default_exchange"`
	TaskTrackStarted          bool                   `json:"task_track_started" yaml:"task_track_started" toml:"task_track_started"`
	BrokerTransportOptions    BrokerTransportOptions `json:"broker_transport_options" yaml:"broker_transport_options" toml:"broker_transport_options"`
	WorkerConcurrency         int                    `json:"worker_concurrency" yaml:"worker_concurrency" toml:"worker_concurrency"`
	WorkerEnableRemoteControl *bool                  `json:"worker_enable_remote_control" yaml:"worker_enable_remote_control" toml:"worker_enable_remote_control"`
	PollingInterval           float64                `json:"polling_interval,omitempty" yaml:"polling_interval,omitempty" toml:"polling_interval,omitempty"`
}

type BrokerTransportOptions struct {
	VisibilityTimeout int                         `json:"visibility_timeout" yaml:"visibility_timeout" toml:"visibility_timeout"`
	PredefinedQueues  map[string]*PredefinedQueue `json:"predefined_queues,omitempty" yaml:"predefined_queues,omitempty" toml:"predefined_queues,omitempty"`
}

type PredefinedQueue struct {
	URL string `json:"url" yaml:"url" toml:"url"`
}

func DefaultCeleryConfig() CeleryConfig {
	return CeleryConfig{
		AcceptContent:             []string{"json"},
		EventSerializer:           "json",
		WorkerPrefetchMultiplier:  1,
		TaskAcksLate:              true,
		TaskDefaultQueue:          DefaultQueue,
		TaskDefaultExchange:       DefaultQueue,
		TaskTrackStarted:          true,
		BrokerTransportOptions:    BrokerTransportOptions{VisibilityTimeout: 21600},
		WorkerConcurrency:         16,
		WorkerEnableRemoteControl: lo.ToPtr(true),
	}
}

// SQSCeleryConfig points the default queue at a predefined SQS queue. Kombu refuses to start unless
// the default queue is predefined, and the SQS transport does not support remote control commands.
func SQSCeleryConfig(queueURL string) (CeleryConfig, error) {
	cfg := DefaultCeleryConfig()
	if err := Merge(&cfg, CeleryConfig{
		BrokerTransportOptions: BrokerTransportOptions{
			PredefinedQueues: map[string]*PredefinedQueue{DefaultQueue: {URL: queueURL}},
		},
		PollingInterval:           1.0,
		WorkerEnableRemoteControl: lo.ToPtr(false),
	}); err != nil {
		return CeleryConfig{}, err
	}
	return cfg, nil
}

// BrokerQueueURLFromEnv returns the queue URL injected into the container environment, empty if unset
func BrokerQueueURLFromEnv() string {
	return env.WithDefaultString(BrokerQueueURLEnv, "")
}
