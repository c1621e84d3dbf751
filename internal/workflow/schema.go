// Package workflow loads job graph templates, validates them against a
// per-variant schema and injects normalized job values into them.
package workflow

import (
	"fmt"
	"os"

	"videoworker/internal/domain"
)

// Node ids of the Wan 2.2 image-to-video templates.
const (
	NodeImage    NodeID = "244"
	NodeFrames   NodeID = "541"
	NodePrompts  NodeID = "135"
	NodeSeed     NodeID = "220"
	NodeSampler  NodeID = "540"
	NodeWidth    NodeID = "235"
	NodeHeight   NodeID = "236"
	NodeContext  NodeID = "498"
	NodeSteps    NodeID = "834"
	NodeLowSteps NodeID = "829"
	NodeEndImage NodeID = "617"
	NodeLoraHigh NodeID = "279"
	NodeLoraLow  NodeID = "553"
)

// Variant selects one of the two templates.
type Variant string

const (
	VariantSingle Variant = "single"
	VariantFLF2V  Variant = "flf2v"
)

// VariantFor picks the template for a job: first/last frame mode when an
// end image was resolved.
func VariantFor(in domain.ResolvedInputs) Variant {
	if in.HasEndImage() {
		return VariantFLF2V
	}
	return VariantSingle
}

// Schema lists the node ids a template variant must contain.
type Schema struct {
	Variant  Variant
	Required []NodeID
}

var baseRequired = []NodeID{
	NodeImage, NodeFrames, NodePrompts, NodeSeed,
	NodeSampler, NodeWidth, NodeHeight, NodeContext,
}

// SchemaFor returns the declared schema of a variant.
func SchemaFor(v Variant) Schema {
	required := append([]NodeID(nil), baseRequired...)
	if v == VariantFLF2V {
		required = append(required, NodeEndImage)
	}
	return Schema{Variant: v, Required: required}
}

// Validate fails with a TemplateError naming the first missing id.
func (s Schema) Validate(g *Graph) error {
	for _, id := range s.Required {
		if !g.Has(id) {
			return &domain.TemplateError{
				Workflow: string(s.Variant),
				NodeID:   string(id),
				Reason:   "missing required node id",
			}
		}
	}
	return nil
}

// Templates locates the template file of each variant on disk. Files are
// read on every Load so each job gets its own mutable graph.
type Templates struct {
	paths map[Variant]string
}

func NewTemplates(singlePath, flf2vPath string) *Templates {
	return &Templates{paths: map[Variant]string{
		VariantSingle: singlePath,
		VariantFLF2V:  flf2vPath,
	}}
}

// Load reads, parses and validates the template of variant.
func (t *Templates) Load(v Variant) (*Graph, error) {
	path, ok := t.paths[v]
	if !ok || path == "" {
		return nil, &domain.TemplateError{Workflow: string(v), Reason: "no template configured"}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, &domain.TemplateError{Workflow: string(v), Reason: fmt.Sprintf("parse %s: %v", path, err)}
	}
	if err := SchemaFor(v).Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}
