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

package ssm

import (
	"context"
	"fmt"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/samber/lo"

	sdk "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/aws"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

type Provider interface {
	Get(context.Context, Parameter) (string, error)
}

type DefaultProvider struct {
	sync.Mutex
	cache  *cache.Cache
	ssmapi sdk.SSMAPI
}

func NewDefaultProvider(ssmapi sdk.SSMAPI, cache *cache.Cache) *DefaultProvider {
	return &DefaultProvider{
		ssmapi: ssmapi,
		cache:  cache,
	}
}

func (p *DefaultProvider) Get(ctx context.Context, parameter Parameter) (string, error) {
	p.Lock()
	defer p.Unlock()
	if entry, ok := p.cache.Get(parameter.CacheKey()); ok {
		return entry.(CacheEntry).Value, nil
	}
	result, err := p.ssmapi.GetParameter(ctx, parameter.GetParameterInput())
	if err != nil {
		return "", fmt.Errorf("getting ssm parameter %q, %w", parameter.Name, err)
	}
	value := lo.FromPtr(result.Parameter.Value)
	p.cache.SetDefault(parameter.CacheKey(), CacheEntry{
		Parameter: parameter,
		Value:     value,
	})
	// values are secrets, only the name and version are logged
	log.FromContext(ctx).With("parameter", parameter.Name, "version", result.Parameter.Version).Debugf("discovered ssm parameter")
	return value, nil
}
