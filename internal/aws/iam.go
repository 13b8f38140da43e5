package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	pkgtypes "github.com/indexcards/indexnet/pkg/types"
)

const flowLogPolicyName = "flow-log-delivery"

const flowLogTrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Principal": {"Service": "vpc-flow-logs.amazonaws.com"},
    "Action": "sts:AssumeRole"
  }]
}`

const flowLogPermissionsTemplate = `{
  "Version": "2012-10-17",
  "Statement": [{
    "Effect": "Allow",
    "Action": [
      "logs:CreateLogStream",
      "logs:PutLogEvents",
      "logs:DescribeLogGroups",
      "logs:DescribeLogStreams"
    ],
    "Resource": "arn:aws:logs:*:*:log-group:%s:*"
  }]
}`

// IAMClient wraps AWS IAM API calls
type IAMClient struct {
	client IAMAPI
}

// NewIAMClient creates a new IAM client wrapper
func NewIAMClient(client IAMAPI) *IAMClient {
	return &IAMClient{client: client}
}

// EnsureFlowLogRole creates (or reuses) the role that lets VPC Flow Logs write
// to logGroupName, and returns its ARN.
func (c *IAMClient) EnsureFlowLogRole(ctx context.Context, roleName, logGroupName string, tags pkgtypes.ResourceTagSet) (string, error) {
	var roleArn string

	created, err := c.client.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 awssdk.String(roleName),
		AssumeRolePolicyDocument: awssdk.String(flowLogTrustPolicy),
		Description:              awssdk.String("Delivers VPC flow logs to CloudWatch Logs"),
		Tags:                     iamTags(tags),
	})
	switch {
	case err == nil:
		roleArn = awssdk.ToString(created.Role.Arn)
	case IsAlreadyExists(err):
		existing, err := c.client.GetRole(ctx, &iam.GetRoleInput{RoleName: awssdk.String(roleName)})
		if err != nil {
			return "", fmt.Errorf("failed to get role %s: %w", roleName, err)
		}
		roleArn = awssdk.ToString(existing.Role.Arn)
	default:
		return "", fmt.Errorf("failed to create role %s: %w", roleName, err)
	}

	_, err = c.client.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       awssdk.String(roleName),
		PolicyName:     awssdk.String(flowLogPolicyName),
		PolicyDocument: awssdk.String(fmt.Sprintf(flowLogPermissionsTemplate, logGroupName)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to attach policy to %s: %w", roleName, err)
	}

	return roleArn, nil
}

// DeleteFlowLogRole removes the inline policy and the role. A missing role is
// not an error.
func (c *IAMClient) DeleteFlowLogRole(ctx context.Context, roleName string) error {
	_, err := c.client.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
		RoleName:   awssdk.String(roleName),
		PolicyName: awssdk.String(flowLogPolicyName),
	})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete policy of %s: %w", roleName, err)
	}

	_, err = c.client.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: awssdk.String(roleName)})
	if err != nil && !IsNotFound(err) {
		return fmt.Errorf("failed to delete role %s: %w", roleName, err)
	}
	return nil
}
