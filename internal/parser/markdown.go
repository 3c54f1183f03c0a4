package parser

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// MarkdownParser reads one task per level 2 heading:
//
//	## Task: Create calculator.py
//	**Priority**: 10
//	**Tags**: core, math
//
//	Implement add and subtract.
//
//	**Acceptance**: All functions return correct results
//
// Paragraphs that are not annotations form the description. An acceptance
// annotation with no inline text takes the bullet list that follows it.
// Optional YAML frontmatter sets default_priority and tags for every task.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// NewMarkdownParser creates a MarkdownParser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
	}
}

var (
	headingPrefix = regexp.MustCompile(`(?i)^task(\s+\d+)?\s*:\s*`)
	annotation    = regexp.MustCompile(`^\*\*([A-Za-z ]+?):?\*\*:?\s*(.*)$`)
)

type frontmatterDefaults struct {
	DefaultPriority int      `yaml:"default_priority"`
	Tags            []string `yaml:"tags"`
}

// Parse implements Parser.
func (p *MarkdownParser) Parse(r io.Reader) ([]TaskSpec, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	var defaults frontmatterDefaults
	content, frontmatter := extractFrontmatter(content)
	if frontmatter != nil {
		if err := yaml.Unmarshal(frontmatter, &defaults); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}

	doc := p.markdown.Parser().Parse(text.NewReader(content))
	specs, err := extractTasks(doc, content, defaults)
	if err != nil {
		return nil, err
	}
	if err := validate(specs); err != nil {
		return nil, err
	}
	return specs, nil
}

// taskBuilder accumulates one section of the document.
type taskBuilder struct {
	spec           TaskSpec
	description    []string
	acceptance     []string
	wantAcceptList bool
}

func (b *taskBuilder) build() TaskSpec {
	spec := b.spec
	spec.Description = strings.Join(b.description, "\n\n")
	spec.Acceptance = strings.Join(b.acceptance, "; ")
	return spec
}

func extractTasks(doc ast.Node, source []byte, defaults frontmatterDefaults) ([]TaskSpec, error) {
	var (
		specs   []TaskSpec
		current *taskBuilder
	)

	flush := func() {
		if current != nil {
			specs = append(specs, current.build())
			current = nil
		}
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if heading, ok := n.(*ast.Heading); ok {
			if heading.Level == 2 {
				flush()
				title := headingPrefix.ReplaceAllString(strings.TrimSpace(extractText(heading, source)), "")
				current = &taskBuilder{spec: TaskSpec{
					Title:    title,
					Priority: defaults.DefaultPriority,
					Tags:     append([]string{}, defaults.Tags...),
				}}
			} else if heading.Level == 1 {
				flush()
			}
			continue
		}
		if current == nil {
			continue
		}

		switch block := n.(type) {
		case *ast.Paragraph:
			if err := current.addParagraph(blockLines(block, source)); err != nil {
				return nil, fmt.Errorf("task %q: %w", current.spec.Title, err)
			}
		case *ast.List:
			items := listItems(block, source)
			if current.wantAcceptList {
				current.acceptance = append(current.acceptance, items...)
				current.wantAcceptList = false
			} else {
				current.description = append(current.description, "- "+strings.Join(items, "\n- "))
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			current.description = append(current.description, strings.Join(blockLines(block, source), "\n"))
		}
	}
	flush()

	return specs, nil
}

// addParagraph splits a paragraph into annotation lines and free text.
func (b *taskBuilder) addParagraph(lines []string) error {
	var prose []string
	for _, line := range lines {
		m := annotation.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			prose = append(prose, line)
			continue
		}
		value := strings.TrimSpace(m[2])
		switch strings.ToLower(m[1]) {
		case "priority":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid priority %q", value)
			}
			b.spec.Priority = n
		case "tags":
			b.spec.Tags = append(b.spec.Tags, strings.Split(value, ",")...)
		case "acceptance", "acceptance criteria":
			if value == "" {
				b.wantAcceptList = true
			} else {
				b.acceptance = append(b.acceptance, value)
			}
		case "description":
			if value != "" {
				b.description = append(b.description, value)
			}
		default:
			prose = append(prose, line)
		}
	}
	if joined := strings.TrimSpace(strings.Join(prose, "\n")); joined != "" {
		b.description = append(b.description, joined)
	}
	return nil
}

// blockLines returns the raw source lines of a block node.
func blockLines(n ast.Node, source []byte) []string {
	lines := n.Lines()
	out := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, strings.TrimRight(string(seg.Value(source)), "\r\n"))
	}
	return out
}

func listItems(list *ast.List, source []byte) []string {
	var items []string
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		var parts []string
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if c.Type() == ast.TypeBlock && c.Lines().Len() > 0 {
				parts = append(parts, strings.Join(blockLines(c, source), " "))
			}
		}
		if joined := strings.TrimSpace(strings.Join(parts, " ")); joined != "" {
			items = append(items, joined)
		}
	}
	return items
}

// extractText extracts plain text from an AST node
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			continue
		}
		buf.WriteString(extractText(c, source))
	}
	return buf.String()
}

// extractFrontmatter splits leading YAML frontmatter from the content.
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))
	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			return bytes.Join(lines[i+1:], []byte("\n")), bytes.Join(lines[1:i], []byte("\n"))
		}
	}
	return content, nil
}
