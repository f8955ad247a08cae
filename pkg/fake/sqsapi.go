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
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	sdk "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/aws"
)

// SQSBehavior must be reset between tests otherwise tests will
// pollute each other.
type SQSBehavior struct {
	GetQueueURLBehavior MockedFunction[sqs.GetQueueUrlInput, sqs.GetQueueUrlOutput]
	// Queues holds the names of existing queues
	Queues sync.Map
}

type SQSAPI struct {
	sdk.SQSAPI
	SQSBehavior
}

// Reset must be called between tests otherwise tests will pollute
// each other.
func (s *SQSAPI) Reset() {
	s.GetQueueURLBehavior.Reset()
	s.Queues.Range(func(k, _ any) bool {
		s.Queues.Delete(k)
		return true
	})
}

// QueueURL returns the URL the fake hands out for a queue name.
func QueueURL(name string) string {
	return fmt.Sprintf("https://sqs.us-west-2.amazonaws.com/%s/%s", dummyAccountID, name)
}

//nolint:revive,stylecheck
func (s *SQSAPI) GetQueueUrl(_ context.Context, input *sqs.GetQueueUrlInput, _ ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	return s.GetQueueURLBehavior.Invoke(input, func(in *sqs.GetQueueUrlInput) (*sqs.GetQueueUrlOutput, error) {
		if _, ok := s.Queues.Load(aws.ToString(in.QueueName)); !ok {
			return nil, &sqstypes.QueueDoesNotExist{Message: aws.String("The specified queue does not exist.")}
		}
		return &sqs.GetQueueUrlOutput{QueueUrl: aws.String(QueueURL(aws.ToString(in.QueueName)))}, nil
	})
}
