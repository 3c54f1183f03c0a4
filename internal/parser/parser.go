// Package parser turns backlog documents (Markdown or YAML) into task
// drafts that can be appended to the task file.
package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format represents the format of a backlog file
type Format int

const (
	// FormatUnknown represents an unknown or unsupported file format
	FormatUnknown Format = iota
	// FormatMarkdown represents a Markdown (.md, .markdown) backlog
	FormatMarkdown
	// FormatYAML represents a YAML (.yaml, .yml) or JSON (.json) backlog
	FormatYAML
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// TaskSpec is a task as written in a backlog document. Ids and status are
// assigned by the store on import.
type TaskSpec struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Acceptance  string   `yaml:"acceptance"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
}

// Parser is the interface that all backlog parsers implement
type Parser interface {
	// Parse reads from an io.Reader and returns the tasks in document order
	Parse(r io.Reader) ([]TaskSpec, error)
}

// DetectFormat detects the backlog format from the file extension:
//   - .md, .markdown -> FormatMarkdown
//   - .yaml, .yml, .json -> FormatYAML
//   - all others -> FormatUnknown
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".yaml", ".yml", ".json":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// NewParser creates a parser for the given format
func NewParser(format Format) (Parser, error) {
	switch format {
	case FormatMarkdown:
		return NewMarkdownParser(), nil
	case FormatYAML:
		return NewYAMLParser(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %v", format)
	}
}

// ParseFile detects the format of path and parses it.
func ParseFile(path string) ([]TaskSpec, error) {
	format := DetectFormat(path)
	p, err := NewParser(format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backlog: %w", err)
	}
	defer f.Close()

	specs, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return specs, nil
}

// validate normalizes specs in place and rejects untitled tasks.
func validate(specs []TaskSpec) error {
	for i := range specs {
		s := &specs[i]
		s.Title = strings.TrimSpace(s.Title)
		s.Description = strings.TrimSpace(s.Description)
		s.Acceptance = strings.TrimSpace(s.Acceptance)
		if s.Title == "" {
			return fmt.Errorf("task %d: title is required", i+1)
		}
		tags := s.Tags[:0]
		for _, tag := range s.Tags {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		s.Tags = tags
	}
	return nil
}
