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

package sqs

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/patrickmn/go-cache"

	sdk "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/aws"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

type Provider interface {
	QueueURL(context.Context, string) (string, error)
}

// DefaultProvider resolves the URL of the Celery broker queue
type DefaultProvider struct {
	sync.Mutex
	client sdk.SQSAPI
	cache  *cache.Cache
}

func NewDefaultProvider(client sdk.SQSAPI, cache *cache.Cache) *DefaultProvider {
	return &DefaultProvider{
		client: client,
		cache:  cache,
	}
}

// QueueURL returns the URL of the named queue in the configured account and region
func (p *DefaultProvider) QueueURL(ctx context.Context, name string) (string, error) {
	p.Lock()
	defer p.Unlock()
	if url, ok := p.cache.Get(name); ok {
		return url.(string), nil
	}
	out, err := p.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("getting url of sqs queue %q, %w", name, err)
	}
	url := aws.ToString(out.QueueUrl)
	p.cache.SetDefault(name, url)
	log.FromContext(ctx).With("queue", name, "url", url).Debugf("discovered sqs queue url")
	return url, nil
}

// Name returns the queue name part of a queue URL
func Name(queueURL string) string {
	ss := strings.Split(queueURL, "/")
	return ss[len(ss)-1]
}
