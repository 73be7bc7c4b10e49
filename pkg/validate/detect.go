package validate

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/fluxcheck/pkg/batch"
)

// Format is the kind of document submitted for validation.
type Format int

const (
	// FormatUnknown is content that is neither a jobspec nor a batch script.
	FormatUnknown Format = iota
	// FormatYAML is a structured jobspec written as block YAML.
	FormatYAML
	// FormatJSON is a structured jobspec written as JSON.
	FormatJSON
	// FormatBatch is a shell script that may carry #FLUX: directives.
	FormatBatch
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	case FormatBatch:
		return "batch"
	default:
		return "unknown"
	}
}

// IsJobspec reports whether f is a structured jobspec.
func (f Format) IsJobspec() bool {
	return f == FormatYAML || f == FormatJSON
}

// MarshalText renders the format name.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Detect classifies content. A document whose root is a mapping is a
// jobspec; anything else that parses, or that fails to parse but carries
// directive lines, is a batch script.
func Detect(content string) Format {
	f, _, _ := detect(content)
	return f
}

// detect also returns the parsed document for jobspecs and the parser
// error for unknown content.
func detect(content string) (Format, *yaml.Node, error) {
	if strings.TrimSpace(content) == "" {
		return FormatUnknown, nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		if batch.HasDirectives(content) {
			return FormatBatch, nil, nil
		}
		return FormatUnknown, nil, err
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return FormatBatch, nil, nil
	}
	if root.Style&yaml.FlowStyle != 0 && strings.HasPrefix(strings.TrimSpace(content), "{") {
		return FormatJSON, &doc, nil
	}
	return FormatYAML, &doc, nil
}
