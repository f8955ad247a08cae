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
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/samber/lo"

	sdk "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/aws"
)

// EC2Behavior must be reset between tests otherwise tests will
// pollute each other.
type EC2Behavior struct {
	DescribeVpcsBehavior           MockedFunction[ec2.DescribeVpcsInput, ec2.DescribeVpcsOutput]
	DescribeSubnetsBehavior        MockedFunction[ec2.DescribeSubnetsInput, ec2.DescribeSubnetsOutput]
	DescribeSecurityGroupsBehavior MockedFunction[ec2.DescribeSecurityGroupsInput, ec2.DescribeSecurityGroupsOutput]

	Vpcs           AtomicPtrSlice[ec2types.Vpc]
	Subnets        AtomicPtrSlice[ec2types.Subnet]
	SecurityGroups AtomicPtrSlice[ec2types.SecurityGroup]
}

type EC2API struct {
	sdk.EC2API
	EC2Behavior
}

// Reset must be called between tests otherwise tests will pollute
// each other.
func (e *EC2API) Reset() {
	e.DescribeVpcsBehavior.Reset()
	e.DescribeSubnetsBehavior.Reset()
	e.DescribeSecurityGroupsBehavior.Reset()
	e.Vpcs.Reset()
	e.Subnets.Reset()
	e.SecurityGroups.Reset()
}

func (e *EC2API) DescribeVpcs(_ context.Context, input *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	return e.DescribeVpcsBehavior.Invoke(input, func(in *ec2.DescribeVpcsInput) (*ec2.DescribeVpcsOutput, error) {
		out := &ec2.DescribeVpcsOutput{}
		e.Vpcs.ForEach(func(vpc *ec2types.Vpc) {
			if Filter(in.Filters, map[string]string{"vpc-id": aws.ToString(vpc.VpcId)}, vpc.Tags) {
				out.Vpcs = append(out.Vpcs, *vpc)
			}
		})
		return out, nil
	})
}

func (e *EC2API) DescribeSubnets(_ context.Context, input *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	return e.DescribeSubnetsBehavior.Invoke(input, func(in *ec2.DescribeSubnetsInput) (*ec2.DescribeSubnetsOutput, error) {
		out := &ec2.DescribeSubnetsOutput{}
		e.Subnets.ForEach(func(subnet *ec2types.Subnet) {
			if Filter(in.Filters, map[string]string{"vpc-id": aws.ToString(subnet.VpcId), "subnet-id": aws.ToString(subnet.SubnetId)}, subnet.Tags) {
				out.Subnets = append(out.Subnets, *subnet)
			}
		})
		return out, nil
	})
}

func (e *EC2API) DescribeSecurityGroups(_ context.Context, input *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	return e.DescribeSecurityGroupsBehavior.Invoke(input, func(in *ec2.DescribeSecurityGroupsInput) (*ec2.DescribeSecurityGroupsOutput, error) {
		out := &ec2.DescribeSecurityGroupsOutput{}
		e.SecurityGroups.ForEach(func(sg *ec2types.SecurityGroup) {
			if Filter(in.Filters, map[string]string{"group-id": aws.ToString(sg.GroupId), "group-name": aws.ToString(sg.GroupName), "vpc-id": aws.ToString(sg.VpcId)}, sg.Tags) {
				out.SecurityGroups = append(out.SecurityGroups, *sg)
			}
		})
		return out, nil
	})
}

// Filter reports whether a resource with the given attributes and tags matches every filter.
// Filters are chained with a logical "AND", values within a filter with a logical "OR".
func Filter(filters []ec2types.Filter, attributes map[string]string, tags []ec2types.Tag) bool {
	return lo.EveryBy(filters, func(filter ec2types.Filter) bool {
		name := aws.ToString(filter.Name)
		if key, ok := strings.CutPrefix(name, "tag:"); ok {
			return lo.SomeBy(tags, func(t ec2types.Tag) bool {
				return aws.ToString(t.Key) == key && lo.Contains(filter.Values, aws.ToString(t.Value))
			})
		}
		attribute, ok := attributes[name]
		if !ok {
			panic("Unsupported mock filter " + name)
		}
		return lo.Contains(filter.Values, attribute)
	})
}
