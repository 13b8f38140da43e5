package aws

import (
	"errors"

	"github.com/aws/smithy-go"
)

// errorCode returns the service error code of err, or "".
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsNotFound reports whether err says the resource does not exist.
func IsNotFound(err error) bool {
	switch errorCode(err) {
	case "InvalidVpcID.NotFound",
		"InvalidSubnetID.NotFound",
		"InvalidGroup.NotFound",
		"InvalidVpcEndpointId.NotFound",
		"NatGatewayNotFound",
		"InvalidFlowLogId.NotFound",
		"InvalidPermission.NotFound",
		"ResourceNotFoundException",
		"NoSuchEntity":
		return true
	}
	return false
}

// IsAlreadyExists reports whether err says the resource or rule already exists.
func IsAlreadyExists(err error) bool {
	switch errorCode(err) {
	case "InvalidPermission.Duplicate",
		"InvalidGroup.Duplicate",
		"ResourceAlreadyExistsException",
		"EntityAlreadyExists":
		return true
	}
	return false
}

// IsDependencyViolation reports whether err says the resource is still in use.
// ENIs of deleted endpoints and NAT gateways linger for a while, so callers
// retry on it.
func IsDependencyViolation(err error) bool {
	return errorCode(err) == "DependencyViolation"
}
