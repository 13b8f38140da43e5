package planner

import "github.com/indexcards/indexnet/pkg/types"

// Fixed tag values.
const (
	ProductName           = "index-cards"
	CostCenter            = "web-and-apps"
	ManagedByIndexnet     = "indexnet"
	StackComponentNetwork = "Network"
)

// TagBuilder assembles the tag set applied to every resource of a stack.
// The mandatory keys are pre-set; later calls may add but Build rejects a set
// whose mandatory values end up empty.
type TagBuilder struct {
	tags map[string]string
}

// NewTagBuilder creates a builder with the mandatory tags for environment.
func NewTagBuilder(environment string) *TagBuilder {
	return &TagBuilder{
		tags: map[string]string{
			types.TagProduct:     ProductName,
			types.TagCostCenter:  CostCenter,
			types.TagManagedBy:   ManagedByIndexnet,
			types.TagEnvironment: environment,
		},
	}
}

// WithStack adds the component tag, e.g. "Network".
func (b *TagBuilder) WithStack(component string) *TagBuilder {
	b.tags[types.TagStack] = component
	return b
}

// Merge adds all tags from extra. Mandatory keys can be overridden.
func (b *TagBuilder) Merge(extra map[string]string) *TagBuilder {
	for k, v := range extra {
		b.tags[k] = v
	}
	return b
}

// Build returns the tag set, or an error if a mandatory tag is empty.
func (b *TagBuilder) Build() (types.ResourceTagSet, error) {
	set := types.NewResourceTagSet(b.tags)
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}
