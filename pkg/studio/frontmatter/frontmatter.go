// Package frontmatter splits markdown documents into a YAML front-matter block
// and a body, and writes them back in the same shape:
//
//	---
//	title: Hello
//	tags: [a, b]
//	---
//
//	Body text.
//
// Key order is preserved in both directions.
package frontmatter

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Delimiter opens and closes the front-matter block.
const Delimiter = "---"

// ErrNotMapping is returned when the front-matter block is valid YAML but not
// a key/value mapping.
var ErrNotMapping = errors.New("front matter must be a mapping")

// Document is a parsed markdown document.
type Document struct {
	Fields *Fields
	Body   string
	// HasFrontMatter is false when the text did not start with a delimited
	// block; Body then holds the whole text.
	HasFrontMatter bool
}

// Parse splits raw into front matter and body. A missing or unterminated
// block is not an error: the whole text becomes the body.
func Parse(raw string) (*Document, error) {
	block, body, ok := split(raw)
	if !ok {
		return &Document{Fields: &Fields{}, Body: raw}, nil
	}

	fields, err := parseBlock(block)
	if err != nil {
		return nil, err
	}
	return &Document{Fields: fields, Body: body, HasFrontMatter: true}, nil
}

func split(raw string) (block, body string, ok bool) {
	first, rest, found := cutLine(raw)
	if !found || first != Delimiter {
		return "", "", false
	}

	var lines []string
	for {
		var line string
		line, rest, found = cutLine(rest)
		if line == Delimiter {
			break
		}
		if !found {
			return "", "", false
		}
		lines = append(lines, line)
	}

	// one blank separator line belongs to the format, not to the body
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")
	return strings.Join(lines, "\n"), rest, true
}

// cutLine returns the first line of s without its terminator.
func cutLine(s string) (line, rest string, found bool) {
	line, rest, found = strings.Cut(s, "\n")
	return strings.TrimSuffix(line, "\r"), rest, found
}

func parseBlock(block string) (*Fields, error) {
	fields := &Fields{}
	if strings.TrimSpace(block) == "" {
		return fields, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(block), &root); err != nil {
		return nil, fmt.Errorf("failed to parse front matter: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return fields, nil
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keyNode, valueNode := mapping.Content[i], mapping.Content[i+1]
		keepTimestamps(valueNode)
		var value any
		if err := valueNode.Decode(&value); err != nil {
			return nil, fmt.Errorf("failed to decode front matter key %q: %w", keyNode.Value, err)
		}
		fields.Set(keyNode.Value, value)
	}
	return fields, nil
}

// keepTimestamps retags timestamp scalars as strings so dates keep the
// exact text they were written with.
func keepTimestamps(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.Tag == timestampTag {
		n.Tag = strTag
	}
	for _, c := range n.Content {
		keepTimestamps(c)
	}
}

const (
	strTag       = "!!str"
	nullTag      = "!!null"
	timestampTag = "!!timestamp"
)

// Format renders fields and body. Values are encoded with yaml so they read
// back unchanged; sequences are written inline as [a, b, c].
func Format(fields *Fields, body string) string {
	var b strings.Builder
	b.WriteString(Delimiter + "\n")
	for key, value := range fields.All() {
		b.WriteString(formatField(key, value))
	}
	b.WriteString(Delimiter + "\n")
	b.WriteString("\n")
	b.WriteString(body)
	return b.String()
}

// formatField renders one "key: value" entry, including its trailing newline.
func formatField(key string, value any) string {
	valueNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: nullTag}
	if value != nil {
		if err := valueNode.Encode(value); err != nil {
			return key + ": " + fmt.Sprint(value) + "\n"
		}
	}
	inlineSequences(valueNode)

	keyNode := &yaml.Node{}
	if err := keyNode.Encode(key); err != nil {
		return key + ": " + fmt.Sprint(value) + "\n"
	}

	out, err := yaml.Marshal(&yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{keyNode, valueNode}})
	if err != nil {
		return key + ": " + fmt.Sprint(value) + "\n"
	}
	return string(out)
}

// inlineSequences switches sequences to flow style and lets strings that
// read as dates stay plain, matching how keepTimestamps parses them.
func inlineSequences(n *yaml.Node) {
	switch n.Kind {
	case yaml.SequenceNode:
		n.Style = yaml.FlowStyle
	case yaml.ScalarNode:
		if n.Tag == strTag && isTimestamp(n.Value) {
			n.Tag = timestampTag
			n.Style = 0
		}
	}
	for _, c := range n.Content {
		inlineSequences(c)
	}
}

func isTimestamp(s string) bool {
	if s == "" || s[0] < '0' || s[0] > '9' {
		return false
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil || len(doc.Content) != 1 {
		return false
	}
	n := doc.Content[0]
	return n.Kind == yaml.ScalarNode && n.Tag == timestampTag && n.Value == s
}
