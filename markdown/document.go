// Package markdown parses MDX/Markdown content documents into front matter
// and body, extracts embedded image references, and rewrites them in place
// without disturbing any other byte of the document.
package markdown

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// CoverImageKey is the front matter field holding a document's cover image.
const CoverImageKey = "image"

const fenceLine = "---"

// ErrFrontMatterNotClosed is returned when an opening "---" fence has no
// matching closing fence.
var ErrFrontMatterNotClosed = errors.New("front matter not closed")

// Document is a content file split into its YAML front matter and body.
// The original fences and front matter text are kept verbatim so Bytes
// reproduces the input exactly until something is changed.
type Document struct {
	Path string

	open   string // opening fence line including its newline
	fm     string // raw YAML between the fences
	close  string // closing fence line including its newline
	body   string
	root   *yaml.Node // mapping node, nil when there is no front matter
	fields map[string]any
}

// ParseDocument splits data into front matter and body. A document without
// a leading "---" fence has an empty front matter and data as its body.
func ParseDocument(path string, data []byte) (*Document, error) {
	d := &Document{Path: path}
	content := string(data)

	first, rest, ok := cutLine(content)
	if !ok || strings.TrimRight(first, "\r\n") != fenceLine {
		d.body = content
		return d, d.parseFrontMatter()
	}

	offset := len(first)
	for {
		line, next, ok := cutLine(rest)
		if line == "" && !ok {
			return nil, fmt.Errorf("%s: %w", path, ErrFrontMatterNotClosed)
		}
		if strings.TrimRight(line, "\r\n") == fenceLine {
			d.open = first
			d.fm = content[len(first):offset]
			d.close = line
			d.body = next
			break
		}
		offset += len(line)
		rest = next
		if !ok {
			return nil, fmt.Errorf("%s: %w", path, ErrFrontMatterNotClosed)
		}
	}
	if err := d.parseFrontMatter(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// cutLine returns the first line of s including its trailing newline.
// ok is false when s has no newline.
func cutLine(s string) (line, rest string, ok bool) {
	i := strings.IndexByte(s, '\n')
	if i < 0 {
		return s, "", false
	}
	return s[:i+1], s[i+1:], true
}

func (d *Document) parseFrontMatter() error {
	d.root = nil
	d.fields = map[string]any{}
	if strings.TrimSpace(d.fm) == "" {
		return nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(d.fm), &doc); err != nil {
		return fmt.Errorf("parse front matter: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("front matter must be a mapping")
	}
	if err := root.Decode(&d.fields); err != nil {
		return fmt.Errorf("decode front matter: %w", err)
	}
	d.root = root
	return nil
}

// Bytes reassembles the document.
func (d *Document) Bytes() []byte {
	return []byte(d.open + d.fm + d.close + d.body)
}

// Body returns the content after the front matter.
func (d *Document) Body() string { return d.body }

// SetBody replaces the document body.
func (d *Document) SetBody(body string) { d.body = body }

// HasFrontMatter reports whether the document opened with a fence.
func (d *Document) HasFrontMatter() bool { return d.open != "" }

// FrontMatter returns the decoded front matter fields.
func (d *Document) FrontMatter() map[string]any { return d.fields }

// Slug returns the trimmed front matter slug, or "" when absent. Any
// scalar counts, so `slug: 2024` yields "2024"; null and false do not.
func (d *Document) Slug() string {
	node := d.valueNode("slug")
	if node == nil || node.Kind != yaml.ScalarNode {
		return ""
	}
	switch node.ShortTag() {
	case "!!null":
		return ""
	case "!!bool":
		if v, _ := d.fields["slug"].(bool); !v {
			return ""
		}
	}
	return strings.TrimSpace(node.Value)
}

// FrontMatterString returns a string-valued front matter field.
func (d *Document) FrontMatterString(key string) (string, bool) {
	v, ok := d.fields[key].(string)
	return v, ok
}

// SetFrontMatterString replaces the scalar value of key. The new value is
// spliced in at the position of the existing YAML value node, keeping its
// quoting style, so nothing else in the front matter moves. Block scalars
// and other shapes that cannot be spliced are re-encoded instead.
func (d *Document) SetFrontMatterString(key, value string) error {
	node := d.valueNode(key)
	if node == nil {
		return fmt.Errorf("front matter key %q not found", key)
	}
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("front matter key %q is not a scalar", key)
	}

	start, end, ok := scalarSpan(d.fm, node)
	if !ok {
		node.Value = value
		node.Style = yaml.DoubleQuotedStyle
		node.Tag = "!!str"
		out, err := yaml.Marshal(d.root)
		if err != nil {
			return fmt.Errorf("encode front matter: %w", err)
		}
		d.fm = string(out)
		return d.parseFrontMatter()
	}

	d.fm = d.fm[:start] + quoteScalar(value, node.Style) + d.fm[end:]
	return d.parseFrontMatter()
}

func (d *Document) valueNode(key string) *yaml.Node {
	if d.root == nil {
		return nil
	}
	for i := 0; i+1 < len(d.root.Content); i += 2 {
		if d.root.Content[i].Value == key {
			return d.root.Content[i+1]
		}
	}
	return nil
}

// scalarSpan locates the source bytes of a single-line scalar node.
func scalarSpan(src string, node *yaml.Node) (int, int, bool) {
	start, ok := offsetOf(src, node.Line, node.Column)
	if !ok {
		return 0, 0, false
	}
	s := src[start:]
	switch node.Style {
	case yaml.DoubleQuotedStyle:
		if !strings.HasPrefix(s, `"`) {
			return 0, 0, false
		}
		for i := 1; i < len(s); i++ {
			switch s[i] {
			case '\\':
				i++
			case '\n':
				return 0, 0, false
			case '"':
				return start, start + i + 1, true
			}
		}
	case yaml.SingleQuotedStyle:
		if !strings.HasPrefix(s, "'") {
			return 0, 0, false
		}
		for i := 1; i < len(s); i++ {
			switch s[i] {
			case '\n':
				return 0, 0, false
			case '\'':
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
					continue
				}
				return start, start + i + 1, true
			}
		}
	case 0:
		if node.Value != "" && strings.HasPrefix(s, node.Value) {
			return start, start + len(node.Value), true
		}
	}
	return 0, 0, false
}

// offsetOf converts a 1-based line/column (in characters) to a byte offset.
func offsetOf(src string, line, column int) (int, bool) {
	if line < 1 || column < 1 {
		return 0, false
	}
	off := 0
	for l := 1; l < line; l++ {
		i := strings.IndexByte(src[off:], '\n')
		if i < 0 {
			return 0, false
		}
		off += i + 1
	}
	for c := 1; c < column; c++ {
		if off >= len(src) || src[off] == '\n' {
			return 0, false
		}
		_, size := utf8.DecodeRuneInString(src[off:])
		off += size
	}
	return off, true
}

func quoteScalar(v string, style yaml.Style) string {
	switch style {
	case yaml.SingleQuotedStyle:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case yaml.DoubleQuotedStyle:
		return doubleQuote(v)
	}
	if plainSafe(v) {
		return v
	}
	return doubleQuote(v)
}

func doubleQuote(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`)
	return `"` + r.Replace(v) + `"`
}

func plainSafe(v string) bool {
	if v == "" || strings.TrimSpace(v) != v {
		return false
	}
	if strings.ContainsAny(v[:1], "-?:,[]{}#&*!|>'\"%@`") {
		return false
	}
	return !strings.Contains(v, ": ") && !strings.Contains(v, " #") && !strings.ContainsAny(v, "\n\r\t")
}
