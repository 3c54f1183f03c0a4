package parser

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLParser reads either a bare list of tasks or a document with a
// top-level "tasks" key. JSON input is accepted as a YAML subset.
type YAMLParser struct{}

// NewYAMLParser creates a YAMLParser.
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

type yamlBacklog struct {
	Tasks []TaskSpec `yaml:"tasks"`
}

// Parse implements Parser.
func (p *YAMLParser) Parse(r io.Reader) ([]TaskSpec, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	var specs []TaskSpec
	doc := &root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&specs); err != nil {
			return nil, fmt.Errorf("invalid task list: %w", err)
		}
	case yaml.MappingNode:
		var backlog yamlBacklog
		if err := doc.Decode(&backlog); err != nil {
			return nil, fmt.Errorf("invalid backlog: %w", err)
		}
		specs = backlog.Tasks
	default:
		return nil, fmt.Errorf("expected a list of tasks or a mapping with a tasks key")
	}

	if err := validate(specs); err != nil {
		return nil, err
	}
	return specs, nil
}
