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

package network_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Pallinder/go-randomdata"
	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	awserrors "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/errors"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/fake"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/providers/network"
)

var ctx context.Context
var ec2api *fake.EC2API
var provider *network.DefaultProvider

func TestNetwork(t *testing.T) {
	ctx = context.Background()
	RegisterFailHandler(Fail)
	RunSpecs(t, "Network")
}

var _ = BeforeSuite(func() {
	ec2api = &fake.EC2API{}
	provider = network.NewDefaultProvider(ec2api)
})

var _ = BeforeEach(func() {
	ec2api.Reset()
})

func vpc(id, name string) *ec2types.Vpc {
	return &ec2types.Vpc{VpcId: aws.String(id), Tags: []ec2types.Tag{{Key: aws.String("Name"), Value: aws.String(name)}}}
}

func subnet(id, vpcID string, public bool) *ec2types.Subnet {
	return &ec2types.Subnet{SubnetId: aws.String(id), VpcId: aws.String(vpcID), MapPublicIpOnLaunch: aws.Bool(public)}
}

func securityGroup(id, name, vpcID string) *ec2types.SecurityGroup {
	return &ec2types.SecurityGroup{GroupId: aws.String(id), GroupName: aws.String(name), VpcId: aws.String(vpcID)}
}

var _ = Describe("Network", func() {
	var vpcName string

	BeforeEach(func() {
		vpcName = fmt.Sprintf("airflow-%s", randomdata.Alphanumeric(8))
		ec2api.Vpcs.Add(vpc("vpc-test1", vpcName))
		ec2api.Vpcs.Add(vpc("vpc-test2", "another-vpc"))
		ec2api.Subnets.Add(subnet("subnet-test3", "vpc-test1", true))
		ec2api.Subnets.Add(subnet("subnet-test1", "vpc-test1", true))
		ec2api.Subnets.Add(subnet("subnet-test2", "vpc-test1", false))
		ec2api.Subnets.Add(subnet("subnet-test4", "vpc-test2", true))
		ec2api.SecurityGroups.Add(securityGroup("sg-test1", "airflow-standalone-task", "vpc-test1"))
		ec2api.SecurityGroups.Add(securityGroup("sg-test2", "airflow-standalone-task", "vpc-test2"))
	})

	It("should resolve public subnets and the security group of the named vpc", func() {
		n, err := provider.Resolve(ctx, vpcName, "airflow-standalone-task")
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(network.Network{
			VPCID:           "vpc-test1",
			SubnetIDs:       []string{"subnet-test1", "subnet-test3"},
			SecurityGroupID: "sg-test1",
		}))
	})
	It("should look the vpc up by its Name tag", func() {
		_, err := provider.VPCID(ctx, vpcName)
		Expect(err).ToNot(HaveOccurred())
		input := ec2api.DescribeVpcsBehavior.CalledWithInput.Pop()
		Expect(input.Filters).To(ConsistOf(ec2types.Filter{Name: aws.String("tag:Name"), Values: []string{vpcName}}))
	})
	It("should return ErrVPCNotFound for an unknown vpc", func() {
		_, err := provider.Resolve(ctx, "does-not-exist", "airflow-standalone-task")
		Expect(errors.Is(err, awserrors.ErrVPCNotFound)).To(BeTrue())
	})
	It("should return ErrNoPublicSubnets when every subnet is private", func() {
		ec2api.Vpcs.Add(vpc("vpc-private", "private"))
		ec2api.Subnets.Add(subnet("subnet-private", "vpc-private", false))
		_, err := provider.Resolve(ctx, "private", "airflow-standalone-task")
		Expect(errors.Is(err, awserrors.ErrNoPublicSubnets)).To(BeTrue())
	})
	It("should return ErrSecurityGroupNotFound for an unknown security group", func() {
		_, err := provider.Resolve(ctx, vpcName, "missing")
		Expect(errors.Is(err, awserrors.ErrSecurityGroupNotFound)).To(BeTrue())
	})
	It("should wrap api errors", func() {
		ec2api.DescribeSubnetsBehavior.Error.Set(fmt.Errorf("unauthorized"))
		_, err := provider.Resolve(ctx, vpcName, "airflow-standalone-task")
		Expect(err).To(MatchError(ContainSubstring("describing subnets")))
	})
})
