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

package ssm_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/patrickmn/go-cache"

	awscache "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/cache"
	awserrors "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/errors"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/fake"
	ssmp "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/ssm"
)

var ctx context.Context
var ssmapi *fake.SSMAPI
var ssmCache *cache.Cache
var provider *ssmp.DefaultProvider

func TestSSM(t *testing.T) {
	ctx = context.Background()
	RegisterFailHandler(Fail)
	RunSpecs(t, "SSM")
}

var _ = BeforeSuite(func() {
	ssmapi = &fake.SSMAPI{}
	ssmCache = cache.New(awscache.SSMParameterTTL, awscache.DefaultCleanupInterval)
	provider = ssmp.NewDefaultProvider(ssmapi, ssmCache)
})

var _ = BeforeEach(func() {
	ssmapi.Reset()
	ssmCache.Flush()
})

var _ = Describe("SSM", func() {
	It("should return a decrypted parameter", func() {
		ssmapi.Parameters.Store("/airflow/sql_alchemy_conn", "postgresql+psycopg2://airflow:secret@db/airflow")
		value, err := provider.Get(ctx, ssmp.Parameter{Name: "/airflow/sql_alchemy_conn"})
		Expect(err).ToNot(HaveOccurred())
		Expect(value).To(Equal("postgresql+psycopg2://airflow:secret@db/airflow"))
		input := ssmapi.GetParameterBehavior.CalledWithInput.Pop()
		Expect(aws.ToBool(input.WithDecryption)).To(BeTrue())
	})
	It("should not decrypt plaintext parameters", func() {
		ssmapi.Parameters.Store("/airflow/queue", "default")
		_, err := provider.Get(ctx, ssmp.Parameter{Name: "/airflow/queue", Plaintext: true})
		Expect(err).ToNot(HaveOccurred())
		input := ssmapi.GetParameterBehavior.CalledWithInput.Pop()
		Expect(aws.ToBool(input.WithDecryption)).To(BeFalse())
	})
	It("should serve repeated lookups from the cache", func() {
		ssmapi.Parameters.Store("/airflow/sql_alchemy_conn", "postgresql://db/airflow")
		for range 3 {
			_, err := provider.Get(ctx, ssmp.Parameter{Name: "/airflow/sql_alchemy_conn"})
			Expect(err).ToNot(HaveOccurred())
		}
		Expect(ssmapi.GetParameterBehavior.Calls()).To(Equal(1))
	})
	It("should query again once the cache is flushed", func() {
		ssmapi.GetParameterBehavior.Output.Set(&ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String("v1")}})
		value, err := provider.Get(ctx, ssmp.Parameter{Name: "/rotating"})
		Expect(err).ToNot(HaveOccurred())
		Expect(value).To(Equal("v1"))

		ssmCache.Flush()
		ssmapi.GetParameterBehavior.Output.Set(&ssm.GetParameterOutput{Parameter: &ssmtypes.Parameter{Value: aws.String("v2")}})
		value, err = provider.Get(ctx, ssmp.Parameter{Name: "/rotating"})
		Expect(err).ToNot(HaveOccurred())
		Expect(value).To(Equal("v2"))
	})
	It("should return a not found error for a missing parameter", func() {
		_, err := provider.Get(ctx, ssmp.Parameter{Name: "/missing"})
		Expect(err).To(HaveOccurred())
		Expect(awserrors.IsNotFound(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring(`"/missing"`))
		Expect(ssmCache.ItemCount()).To(BeZero())
	})
})
