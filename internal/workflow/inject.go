package workflow

import (
	"fmt"

	"videoworker/internal/domain"
)

// Warning is a soft degradation noticed while injecting.
type Warning string

// Inject writes in into g. g must already satisfy the schema of its variant.
// The seed is written to both the high and low noise samplers.
func Inject(g *Graph, in domain.ResolvedInputs) ([]Warning, error) {
	p := in.Params
	variant := VariantFor(in)
	writes := []struct {
		id    NodeID
		field string
		value Value
	}{
		{NodeImage, "image", Path(in.ImagePath)},
		{NodeFrames, "num_frames", Int(int64(p.Length))},
		{NodePrompts, "positive_prompt", String(in.Prompt)},
		{NodePrompts, "negative_prompt", String(in.NegativePrompt)},
		{NodeSeed, "seed", Int(p.Seed)},
		{NodeSampler, "seed", Int(p.Seed)},
		{NodeSampler, "cfg", Float(p.CFG)},
		{NodeWidth, "value", Int(int64(p.Width))},
		{NodeHeight, "value", Int(int64(p.Height))},
		{NodeContext, "context_overlap", Int(int64(p.ContextOverlap))},
		{NodeContext, "context_frames", Int(int64(p.Length))},
	}
	for _, w := range writes {
		if err := g.Set(w.id, w.field, w.value); err != nil {
			return nil, &domain.TemplateError{Workflow: string(variant), NodeID: string(w.id), Reason: "missing required node id"}
		}
	}

	if g.Has(NodeSteps, NodeLowSteps) {
		_ = g.Set(NodeSteps, "steps", Int(int64(p.Steps)))
		_ = g.Set(NodeLowSteps, "step", Int(int64(p.LowSteps())))
	}

	if in.HasEndImage() {
		if !g.Has(NodeEndImage) {
			return nil, &domain.TemplateError{
				Workflow: string(VariantFLF2V),
				NodeID:   string(NodeEndImage),
				Reason:   "end image requested but node not found",
			}
		}
		_ = g.Set(NodeEndImage, "image", Path(in.EndImagePath))
	}

	var warnings []Warning
	if len(p.Loras) > 0 {
		if g.Has(NodeLoraHigh, NodeLoraLow) {
			injectLoras(g, p.Loras)
		} else {
			warnings = append(warnings, Warning(fmt.Sprintf(
				"lora pairs provided but nodes %s/%s not found, skipping", NodeLoraHigh, NodeLoraLow)))
		}
	}
	return warnings, nil
}

func injectLoras(g *Graph, pairs []domain.LoraPair) {
	for i, pair := range pairs {
		loraKey := fmt.Sprintf("lora_%d", i+1)
		strengthKey := fmt.Sprintf("strength_%d", i+1)
		if pair.High != "" {
			_ = g.Set(NodeLoraHigh, loraKey, String(pair.High))
			_ = g.Set(NodeLoraHigh, strengthKey, Float(pair.HighWeight))
		}
		if pair.Low != "" {
			_ = g.Set(NodeLoraLow, loraKey, String(pair.Low))
			_ = g.Set(NodeLoraLow, strengthKey, Float(pair.LowWeight))
		}
	}
}
