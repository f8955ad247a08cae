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
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/samber/lo"
)

type Parameter struct {
	Name string
	// Plaintext skips decryption, SecureString parameters are decrypted by default
	Plaintext bool
}

func (p *Parameter) GetParameterInput() *ssm.GetParameterInput {
	return &ssm.GetParameterInput{
		Name:           lo.ToPtr(p.Name),
		WithDecryption: lo.ToPtr(!p.Plaintext),
	}
}

func (p *Parameter) CacheKey() string {
	return p.Name
}

type CacheEntry struct {
	Parameter Parameter
	Value     string
}
