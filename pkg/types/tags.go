package types

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Tag keys every provisioned resource must carry.
const (
	TagProduct     = "Product"
	TagCostCenter  = "cost-center"
	TagManagedBy   = "ManagedBy"
	TagEnvironment = "Environment"

	// TagStack names the component a resource belongs to.
	TagStack = "Stack"
)

// MandatoryTagKeys lists the keys Validate requires.
var MandatoryTagKeys = []string{TagProduct, TagCostCenter, TagManagedBy, TagEnvironment}

// Tag is a single key/value pair.
type Tag struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// ResourceTagSet is an ordered set of tags with unique keys, sorted by key.
// Methods never modify the receiver.
type ResourceTagSet []Tag

// NewResourceTagSet builds a sorted set from a map.
func NewResourceTagSet(m map[string]string) ResourceTagSet {
	set := make(ResourceTagSet, 0, len(m))
	for k, v := range m {
		set = append(set, Tag{Key: k, Value: v})
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Key < set[j].Key })
	return set
}

// Get returns the value for key.
func (s ResourceTagSet) Get(key string) (string, bool) {
	for _, t := range s {
		if t.Key == key {
			return t.Value, true
		}
	}
	return "", false
}

// With returns a copy of s with key set to value.
func (s ResourceTagSet) With(key, value string) ResourceTagSet {
	m := s.Map()
	m[key] = value
	return NewResourceTagSet(m)
}

// Map returns the tags as a fresh map.
func (s ResourceTagSet) Map() map[string]string {
	m := make(map[string]string, len(s))
	for _, t := range s {
		m[t.Key] = t.Value
	}
	return m
}

// Validate reports duplicate or empty keys and missing or empty mandatory tags.
func (s ResourceTagSet) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, t := range s {
		if strings.TrimSpace(t.Key) == "" {
			return errors.New("tag with empty key")
		}
		if seen[t.Key] {
			return fmt.Errorf("tag %s set twice", t.Key)
		}
		seen[t.Key] = true
	}

	if missing := MissingMandatoryTags(s.Map()); len(missing) > 0 {
		return fmt.Errorf("missing mandatory tags: %s", strings.Join(missing, ", "))
	}
	return nil
}

// MissingMandatoryTags returns the mandatory keys absent or empty in tags.
func MissingMandatoryTags(tags map[string]string) []string {
	var missing []string
	for _, key := range MandatoryTagKeys {
		if strings.TrimSpace(tags[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
