package aws

import (
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	pkgtypes "github.com/indexcards/indexnet/pkg/types"
)

// EC2Tags converts a tag set to EC2 tags, adding a Name tag when name is set.
func EC2Tags(set pkgtypes.ResourceTagSet, name string) []types.Tag {
	if name != "" {
		set = set.With("Name", name)
	}
	tags := make([]types.Tag, 0, len(set))
	for _, t := range set {
		tags = append(tags, types.Tag{Key: awssdk.String(t.Key), Value: awssdk.String(t.Value)})
	}
	return tags
}

func iamTags(set pkgtypes.ResourceTagSet) []iamtypes.Tag {
	tags := make([]iamtypes.Tag, 0, len(set))
	for _, t := range set {
		tags = append(tags, iamtypes.Tag{Key: awssdk.String(t.Key), Value: awssdk.String(t.Value)})
	}
	return tags
}

func tagSpec(resource types.ResourceType, tags []types.Tag) []types.TagSpecification {
	if len(tags) == 0 {
		return nil
	}
	return []types.TagSpecification{{ResourceType: resource, Tags: tags}}
}

func tagMap(tags []types.Tag) map[string]string {
	m := make(map[string]string, len(tags))
	for _, tag := range tags {
		if tag.Key != nil && tag.Value != nil {
			m[*tag.Key] = *tag.Value
		}
	}
	return m
}
