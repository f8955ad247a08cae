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
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	sdk "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/aws"
)

// SSMBehavior must be reset between tests otherwise tests will
// pollute each other.
type SSMBehavior struct {
	GetParameterBehavior MockedFunction[ssm.GetParameterInput, ssm.GetParameterOutput]
	// Parameters maps a parameter name to its (decrypted) value
	Parameters sync.Map
}

type SSMAPI struct {
	sdk.SSMAPI
	SSMBehavior
}

// Reset must be called between tests otherwise tests will pollute
// each other.
func (s *SSMAPI) Reset() {
	s.GetParameterBehavior.Reset()
	s.Parameters.Range(func(k, _ any) bool {
		s.Parameters.Delete(k)
		return true
	})
}

func (s *SSMAPI) GetParameter(_ context.Context, input *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	return s.GetParameterBehavior.Invoke(input, func(in *ssm.GetParameterInput) (*ssm.GetParameterOutput, error) {
		value, ok := s.Parameters.Load(aws.ToString(in.Name))
		if !ok {
			return nil, &ssmtypes.ParameterNotFound{Message: aws.String(fmt.Sprintf("parameter %q does not exist", aws.ToString(in.Name)))}
		}
		return &ssm.GetParameterOutput{
			Parameter: &ssmtypes.Parameter{
				Name:  in.Name,
				Type:  ssmtypes.ParameterTypeSecureString,
				Value: aws.String(value.(string)),
			},
		}, nil
	})
}
