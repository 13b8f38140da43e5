package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/indexcards/indexnet/pkg/types"
)

// WriteOutputs stores stack outputs as YAML, or JSON when path ends in .json.
func WriteOutputs(path string, out *types.StackOutputs) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = yaml.Marshal(out)
	}
	if err != nil {
		return fmt.Errorf("failed to encode outputs: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write outputs: %w", err)
	}
	return nil
}

// ReadOutputs loads stack outputs written by WriteOutputs.
func ReadOutputs(path string) (*types.StackOutputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outputs: %w", err)
	}

	var out types.StackOutputs
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &out)
	} else {
		err = yaml.Unmarshal(data, &out)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse outputs %s: %w", path, err)
	}
	if out.StackName == "" {
		return nil, fmt.Errorf("outputs %s: missing stackName", path)
	}
	return &out, nil
}

// DefaultOutputsPath is where apply records the outputs of a stack.
func DefaultOutputsPath(stack string) string {
	return filepath.Join(".indexnet", stack+".outputs.yaml")
}
