package aws

import (
	"context"
	"errors"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	pkgtypes "github.com/indexcards/indexnet/pkg/types"
)

// CloudWatchLogsClient wraps AWS CloudWatch Logs API calls
type CloudWatchLogsClient struct {
	client CloudWatchLogsAPI
}

// NewCloudWatchLogsClient creates a new CloudWatch Logs client wrapper
func NewCloudWatchLogsClient(client CloudWatchLogsAPI) *CloudWatchLogsClient {
	return &CloudWatchLogsClient{client: client}
}

// CreateLogGroup creates a tagged log group and sets its retention. An
// existing group is reused and its retention is reset. retentionDays 0 means
// never expire.
func (c *CloudWatchLogsClient) CreateLogGroup(ctx context.Context, logGroupName string, retentionDays int, tags pkgtypes.ResourceTagSet) error {
	input := &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: &logGroupName,
		Tags:         tags.Map(),
	}

	_, err := c.client.CreateLogGroup(ctx, input)
	if err != nil {
		// Ignore if already exists
		var exists *types.ResourceAlreadyExistsException
		if !errors.As(err, &exists) {
			return fmt.Errorf("failed to create log group: %w", err)
		}
	}

	if retentionDays == 0 {
		return nil
	}

	retentionInput := &cloudwatchlogs.PutRetentionPolicyInput{
		LogGroupName:    &logGroupName,
		RetentionInDays: awssdk.Int32(int32(retentionDays)),
	}

	_, err = c.client.PutRetentionPolicy(ctx, retentionInput)
	if err != nil {
		return fmt.Errorf("failed to set retention policy: %w", err)
	}

	return nil
}

// DeleteLogGroup deletes a CloudWatch Logs log group
func (c *CloudWatchLogsClient) DeleteLogGroup(ctx context.Context, logGroupName string) error {
	input := &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: &logGroupName,
	}

	_, err := c.client.DeleteLogGroup(ctx, input)
	if err != nil {
		// Ignore if doesn't exist
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to delete log group: %w", err)
	}

	return nil
}

// DescribeLogGroup returns the named group, or nil if it does not exist.
func (c *CloudWatchLogsClient) DescribeLogGroup(ctx context.Context, logGroupName string) (*pkgtypes.LogGroup, error) {
	resp, err := c.client.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
		LogGroupNamePrefix: &logGroupName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe log group: %w", err)
	}

	// The prefix filter also matches longer names
	for _, lg := range resp.LogGroups {
		if awssdk.ToString(lg.LogGroupName) == logGroupName {
			return &pkgtypes.LogGroup{
				Name:          logGroupName,
				RetentionDays: int(awssdk.ToInt32(lg.RetentionInDays)),
			}, nil
		}
	}
	return nil, nil
}
