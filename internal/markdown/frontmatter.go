package markdown

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// hintPattern matches the HTML comments a template carries as guidance for
// whoever fills it in. They never reach the parsed body.
var hintPattern = regexp.MustCompile(`(?s)<!--.*?-->`)

// Validator is implemented by frontmatter types that check their own fields.
type Validator interface {
	Validate() error
}

// Parse reads YAML frontmatter and body from r into T. Windows line endings
// are accepted, template hints are dropped from the body, and T is validated
// when it implements Validator.
func Parse[T any](r io.Reader) (T, string, error) {
	var meta T
	raw, err := io.ReadAll(r)
	if err != nil {
		return meta, "", fmt.Errorf("reading report: %w", err)
	}
	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))

	body, err := frontmatter.Parse(bytes.NewReader(raw), &meta)
	if err != nil {
		return meta, "", fmt.Errorf("parsing frontmatter: %w", err)
	}
	if v, ok := any(meta).(Validator); ok {
		if err := v.Validate(); err != nil {
			return meta, "", fmt.Errorf("invalid frontmatter: %w", err)
		}
	}
	note := hintPattern.ReplaceAll(body, nil)
	return meta, strings.TrimSpace(string(note)), nil
}

// Marshal serializes meta as YAML frontmatter followed by body.
func Marshal[T any](meta T, body string) ([]byte, error) {
	return MarshalWithHint(meta, "", body)
}

// MarshalWithHint is Marshal with a comment placed above the body. Parse
// removes it again, so an untouched hint never ends up in a report.
func MarshalWithHint[T any](meta T, hint, body string) ([]byte, error) {
	yamlBytes, err := yaml.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(yamlBytes)
	buf.WriteString("---\n")
	if hint != "" {
		fmt.Fprintf(&buf, "\n<!-- %s -->\n", strings.ReplaceAll(hint, "-->", "- ->"))
	}
	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.Bytes(), nil
}
