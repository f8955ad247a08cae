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

package errors

import (
	"errors"

	"github.com/aws/smithy-go"
	"github.com/samber/lo"
)

const (
	AccessDeniedCode          = "AccessDenied"
	AccessDeniedExceptionCode = "AccessDeniedException"
)

var (
	// ErrServiceNotFound is returned when an ECS service is not part of the cluster
	ErrServiceNotFound = errors.New("ecs service not found")
	// ErrNoDatapoints is returned when a metric query yields no values in its window
	ErrNoDatapoints          = errors.New("no datapoints")
	ErrVPCNotFound           = errors.New("vpc not found")
	ErrNoPublicSubnets       = errors.New("no public subnets")
	ErrSecurityGroupNotFound = errors.New("security group not found")
)

var (
	// This is not an exhaustive list, add to it as needed
	notFoundErrorCodes = []string{
		"ClusterNotFoundException",
		"ServiceNotFoundException",
		"ParameterNotFound",
		"AWS.SimpleQueueService.NonExistentQueue",
		"QueueDoesNotExist",
		"InvalidVpcID.NotFound",
		"InvalidGroup.NotFound",
	}
	accessDeniedErrorCodes = []string{
		AccessDeniedCode,
		AccessDeniedExceptionCode,
		"UnauthorizedOperation",
	}
	throttledErrorCodes = []string{
		"Throttling",
		"ThrottlingException",
		"RequestLimitExceeded",
	}
)

// IsNotFound returns true if the err is an AWS error (even if it's
// wrapped) and is a known to mean "not found" (as opposed to a more
// serious or unexpected error)
func IsNotFound(err error) bool {
	return hasCode(err, notFoundErrorCodes)
}

// IsAccessDenied returns true if the error is an AWS error (even if it's
// wrapped) and is known to mean "access denied" (as opposed to a more
// serious or unexpected error)
func IsAccessDenied(err error) bool {
	return hasCode(err, accessDeniedErrorCodes)
}

// IsThrottled returns true if the request was rejected by the API rate limiter
func IsThrottled(err error) bool {
	return hasCode(err, throttledErrorCodes)
}

func hasCode(err error, codes []string) bool {
	if err == nil {
		return false
	}
	apiErr, ok := lo.ErrorsAs[smithy.APIError](err)
	if !ok {
		return false
	}
	return lo.Contains(codes, apiErr.ErrorCode())
}
