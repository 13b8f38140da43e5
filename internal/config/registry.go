package config

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Registry maps environment names to their entries. It is read-only after
// Load, so concurrent Get calls need no locking.
type Registry struct {
	source       string
	defaultName  string
	names        []string
	environments map[string]EnvironmentEntry
}

// LoadFile reads an environments document from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigSourceError{Source: path, Reason: "cannot open", Err: err}
	}
	defer f.Close()

	return load(path, f)
}

// Load reads an environments document. Both layouts are accepted:
//
//	environments:
//	  dev: {...}
//
// and the CDK context layout, where the map sits under context.environments
// and context.environment names the default.
func Load(r io.Reader) (*Registry, error) {
	return load("<reader>", r)
}

func load(source string, r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ConfigSourceError{Source: source, Reason: "cannot read", Err: err}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ConfigSourceError{Source: source, Reason: "malformed document", Err: err}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &ConfigSourceError{Source: source, Reason: "document is empty"}
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, &ConfigSourceError{Source: source, Reason: "top level must be a mapping"}
	}

	envs := mappingValue(top, "environments")
	defaultName := scalarValue(top, "defaultEnvironment")
	if envs == nil {
		if ctx := mappingValue(top, "context"); ctx != nil {
			envs = mappingValue(ctx, "environments")
			defaultName = scalarValue(ctx, "environment")
		}
	}
	if envs == nil {
		return nil, &ConfigSourceError{Source: source, Reason: "no environments mapping found"}
	}
	if envs.Kind != yaml.MappingNode {
		return nil, &ConfigSourceError{Source: source, Reason: "environments must be a mapping"}
	}
	if len(envs.Content) == 0 {
		return nil, &ConfigSourceError{Source: source, Reason: "environments mapping is empty"}
	}

	reg := &Registry{
		source:       source,
		defaultName:  defaultName,
		environments: make(map[string]EnvironmentEntry, len(envs.Content)/2),
	}

	for i := 0; i+1 < len(envs.Content); i += 2 {
		keyNode, valueNode := envs.Content[i], envs.Content[i+1]
		name := keyNode.Value
		if valueNode.Kind == yaml.AliasNode && valueNode.Alias != nil {
			valueNode = valueNode.Alias
		}

		if name == "" {
			return nil, &ConfigSourceError{Source: source, Reason: fmt.Sprintf("line %d: empty environment name", keyNode.Line)}
		}
		if _, dup := reg.environments[name]; dup {
			return nil, &ConfigSourceError{Source: source, Reason: fmt.Sprintf("line %d: environment %q defined twice", keyNode.Line, name)}
		}
		if valueNode.Kind != yaml.MappingNode {
			return nil, &ConfigSourceError{Source: source, Reason: fmt.Sprintf("line %d: environment %q must be a mapping", valueNode.Line, name)}
		}

		entry, err := decodeEntry(valueNode)
		if err != nil {
			return nil, &ConfigSourceError{Source: source, Reason: fmt.Sprintf("environment %q", name), Err: err}
		}

		reg.environments[name] = entry
		reg.names = append(reg.names, name)
	}

	sort.Strings(reg.names)
	return reg, nil
}

var entryFields = map[string]bool{
	"region": true, "vpcCidr": true, "enableNatGateway": true,
	"dbInstanceType": true, "dbAllocatedStorage": true, "dbMultiAz": true,
	"dbBackupRetention": true, "dbDeletionProtection": true,
	"lambdaMemory": true, "lambdaTimeout": true, "requireApproval": true,
	"enableDetailedMonitoring": true, "logRetentionDays": true,
}

// decodeEntry rejects unknown keys, then decodes the node. Merge keys ("<<")
// are allowed so environments can share anchors.
func decodeEntry(node *yaml.Node) (EnvironmentEntry, error) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if key.Value == "<<" {
			continue
		}
		if !entryFields[key.Value] {
			return EnvironmentEntry{}, fmt.Errorf("line %d: unknown field %q", key.Line, key.Value)
		}
	}

	var entry EnvironmentEntry
	if err := node.Decode(&entry); err != nil {
		return EnvironmentEntry{}, err
	}
	return entry, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalarValue(m *yaml.Node, key string) string {
	if v := mappingValue(m, key); v != nil && v.Kind == yaml.ScalarNode {
		return v.Value
	}
	return ""
}

// Get returns a copy of the named entry. Names match case-sensitively.
func (r *Registry) Get(name string) (EnvironmentEntry, error) {
	entry, ok := r.environments[name]
	if !ok {
		return EnvironmentEntry{}, &UnknownEnvironmentError{Name: name, Available: r.Names()}
	}
	return entry.clone(), nil
}

// Names returns the environment names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// DefaultName returns the default environment declared by the document, if any.
func (r *Registry) DefaultName() string {
	return r.defaultName
}

// Source describes where the registry was loaded from.
func (r *Registry) Source() string {
	return r.source
}
