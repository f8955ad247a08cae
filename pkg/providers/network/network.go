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

package network

import (
	"context"
	"fmt"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/samber/lo"

	sdk "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/aws"
	awserrors "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/errors"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

// Network is the awsvpc placement of a standalone task
type Network struct {
	VPCID           string
	SubnetIDs       []string
	SecurityGroupID string
}

type Provider interface {
	Resolve(context.Context, string, string) (Network, error)
}

type DefaultProvider struct {
	ec2api sdk.EC2API
}

func NewDefaultProvider(ec2api sdk.EC2API) *DefaultProvider {
	return &DefaultProvider{ec2api: ec2api}
}

// Resolve finds the public subnets of the VPC tagged Name=vpcName and the security group named
// securityGroupName inside that VPC
func (p *DefaultProvider) Resolve(ctx context.Context, vpcName, securityGroupName string) (Network, error) {
	vpcID, err := p.VPCID(ctx, vpcName)
	if err != nil {
		return Network{}, err
	}
	subnetIDs, err := p.PublicSubnetIDs(ctx, vpcID)
	if err != nil {
		return Network{}, err
	}
	if len(subnetIDs) == 0 {
		return Network{}, fmt.Errorf("vpc %q (%s), %w", vpcName, vpcID, awserrors.ErrNoPublicSubnets)
	}
	securityGroupID, err := p.SecurityGroupID(ctx, vpcID, securityGroupName)
	if err != nil {
		return Network{}, err
	}
	log.FromContext(ctx).With("vpc", vpcID, "subnets", utils.PrettySlice(subnetIDs, 5), "security-group", securityGroupID).Debugf("discovered network")
	return Network{VPCID: vpcID, SubnetIDs: subnetIDs, SecurityGroupID: securityGroupID}, nil
}

func (p *DefaultProvider) VPCID(ctx context.Context, vpcName string) (string, error) {
	out, err := p.ec2api.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{{Name: aws.String("tag:Name"), Values: []string{vpcName}}},
	})
	if err != nil {
		return "", fmt.Errorf("describing vpcs with tag:Name=%q, %w", vpcName, err)
	}
	if len(out.Vpcs) == 0 {
		return "", fmt.Errorf("vpc with tag:Name=%q, %w", vpcName, awserrors.ErrVPCNotFound)
	}
	return aws.ToString(out.Vpcs[0].VpcId), nil
}

// PublicSubnetIDs returns the subnets of the VPC that assign public IPs on launch, sorted by id
func (p *DefaultProvider) PublicSubnetIDs(ctx context.Context, vpcID string) ([]string, error) {
	var subnetIDs []string
	paginator := ec2.NewDescribeSubnetsPaginator(p.ec2api, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}},
	})
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing subnets of vpc %q, %w", vpcID, err)
		}
		subnetIDs = append(subnetIDs, lo.FilterMap(out.Subnets, func(s ec2types.Subnet, _ int) (string, bool) {
			return aws.ToString(s.SubnetId), aws.ToBool(s.MapPublicIpOnLaunch)
		})...)
	}
	slices.Sort(subnetIDs)
	return subnetIDs, nil
}

func (p *DefaultProvider) SecurityGroupID(ctx context.Context, vpcID, name string) (string, error) {
	out, err := p.ec2api.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-name"), Values: []string{name}},
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describing security group %q, %w", name, err)
	}
	if len(out.SecurityGroups) == 0 {
		return "", fmt.Errorf("security group %q in vpc %q, %w", name, vpcID, awserrors.ErrSecurityGroupNotFound)
	}
	return aws.ToString(out.SecurityGroups[0].GroupId), nil
}
