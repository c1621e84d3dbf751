package workflow

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoworker/internal/domain"
)

func loadFixture(t *testing.T, name string, v Variant) *Graph {
	t.Helper()
	tpl := NewTemplates(filepath.Join("testdata", name), filepath.Join("testdata", name))
	g, err := tpl.Load(v)
	require.NoError(t, err)
	return g
}

func sampleInputs() domain.ResolvedInputs {
	return domain.ResolvedInputs{
		ImagePath:      "/tmp/task/input_0.png",
		Prompt:         "a cat",
		NegativePrompt: "blurry",
		Params: domain.Params{
			Seed:           4242,
			CFG:            7.0,
			Length:         81,
			Steps:          10,
			ContextOverlap: 48,
			Width:          832,
			Height:         480,
		},
	}
}

func intInput(t *testing.T, g *Graph, id NodeID, field string) int64 {
	t.Helper()
	v, ok := g.Input(id, field)
	require.True(t, ok, "%s.%s missing", id, field)
	i, ok := v.Int64()
	require.True(t, ok, "%s.%s is %s, want int", id, field, v.Kind())
	return i
}

func textInput(t *testing.T, g *Graph, id NodeID, field string) string {
	t.Helper()
	v, ok := g.Input(id, field)
	require.True(t, ok, "%s.%s missing", id, field)
	s, ok := v.Text()
	require.True(t, ok, "%s.%s is %s, want text", id, field, v.Kind())
	return s
}

func TestInjectSingleVariant(t *testing.T) {
	g := loadFixture(t, "single.json", VariantSingle)
	warnings, err := Inject(g, sampleInputs())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "/tmp/task/input_0.png", textInput(t, g, NodeImage, "image"))
	assert.Equal(t, int64(81), intInput(t, g, NodeFrames, "num_frames"))
	assert.Equal(t, "a cat", textInput(t, g, NodePrompts, "positive_prompt"))
	assert.Equal(t, "blurry", textInput(t, g, NodePrompts, "negative_prompt"))
	assert.Equal(t, int64(4242), intInput(t, g, NodeSeed, "seed"))
	assert.Equal(t, int64(4242), intInput(t, g, NodeSampler, "seed"))
	assert.Equal(t, int64(832), intInput(t, g, NodeWidth, "value"))
	assert.Equal(t, int64(480), intInput(t, g, NodeHeight, "value"))
	assert.Equal(t, int64(48), intInput(t, g, NodeContext, "context_overlap"))
	assert.Equal(t, int64(81), intInput(t, g, NodeContext, "context_frames"))
	assert.Equal(t, int64(10), intInput(t, g, NodeSteps, "steps"))
	assert.Equal(t, int64(6), intInput(t, g, NodeLowSteps, "step"))

	cfg, ok := g.Input(NodeSampler, "cfg")
	require.True(t, ok)
	f, ok := cfg.Float64()
	require.True(t, ok)
	assert.Equal(t, 7.0, f)
}

func TestInjectPreservesUntouchedFields(t *testing.T) {
	g := loadFixture(t, "single.json", VariantSingle)
	_, err := Inject(g, sampleInputs())
	require.NoError(t, err)

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "WanVideoTextEncode", decoded["135"]["class_type"])
	assert.Equal(t, map[string]any{"title": "Prompts"}, decoded["135"]["_meta"])
	inputs := decoded["541"]["inputs"].(map[string]any)
	assert.Equal(t, []any{"244", float64(0)}, inputs["start_image"])
	link, ok := g.Input(NodeFrames, "start_image")
	require.True(t, ok)
	assert.JSONEq(t, `["244", 0]`, string(link.RawJSON()))
	assert.Equal(t, 13, g.Len())

	lora := decoded["279"]["inputs"].(map[string]any)
	assert.Equal(t, false, lora["low_mem_load"])
	assert.Contains(t, string(data), `"cfg":7.0`)
}

func TestInjectLoras(t *testing.T) {
	g := loadFixture(t, "single.json", VariantSingle)
	in := sampleInputs()
	in.Params.Loras = []domain.LoraPair{
		{High: "high_a.safetensors", Low: "low_a.safetensors", HighWeight: 0.7, LowWeight: 1.0},
		{High: "high_b.safetensors", HighWeight: 1.0, LowWeight: 0.5},
	}
	warnings, err := Inject(g, in)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "high_a.safetensors", textInput(t, g, NodeLoraHigh, "lora_1"))
	assert.Equal(t, "low_a.safetensors", textInput(t, g, NodeLoraLow, "lora_1"))
	assert.Equal(t, "high_b.safetensors", textInput(t, g, NodeLoraHigh, "lora_2"))
	_, ok := g.Input(NodeLoraLow, "lora_2")
	assert.False(t, ok, "low side of pair 2 should not be written")
	_, ok = g.Input(NodeLoraLow, "strength_2")
	assert.False(t, ok)

	strength, ok := g.Input(NodeLoraHigh, "strength_1")
	require.True(t, ok)
	f, _ := strength.Float64()
	assert.Equal(t, 0.7, f)
}

func TestInjectLorasWithoutNodesWarns(t *testing.T) {
	g := loadFixture(t, "flf2v.json", VariantFLF2V)
	in := sampleInputs()
	in.EndImagePath = "/tmp/task/end_image.jpg"
	in.Params.Loras = []domain.LoraPair{{High: "h.safetensors", HighWeight: 1, LowWeight: 1}}

	warnings, err := Inject(g, in)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, string(warnings[0]), "279")
	assert.Equal(t, "/tmp/task/end_image.jpg", textInput(t, g, NodeEndImage, "image"))
}

func TestInjectSkipsStepsWhenNodesAbsent(t *testing.T) {
	g := loadFixture(t, "flf2v.json", VariantFLF2V)
	in := sampleInputs()
	in.EndImagePath = "/tmp/end.jpg"
	_, err := Inject(g, in)
	require.NoError(t, err)
	assert.False(t, g.Has(NodeSteps))
	assert.False(t, g.Has(NodeLowSteps))
}

func TestInjectEndImageNodeMissing(t *testing.T) {
	g := loadFixture(t, "single.json", VariantSingle)
	in := sampleInputs()
	in.EndImagePath = "/tmp/end.jpg"

	_, err := Inject(g, in)
	var tplErr *domain.TemplateError
	require.ErrorAs(t, err, &tplErr)
	assert.Equal(t, "617", tplErr.NodeID)
}

func TestInjectNamesVariantOfIncompleteGraph(t *testing.T) {
	g, err := Parse([]byte(`{"244":{"class_type":"LoadImage","inputs":{"image":"x.png"}}}`))
	require.NoError(t, err)

	in := sampleInputs()
	_, err = Inject(g, in)
	var tplErr *domain.TemplateError
	require.ErrorAs(t, err, &tplErr)
	assert.Equal(t, "single", tplErr.Workflow)
	assert.Equal(t, "541", tplErr.NodeID)

	in.EndImagePath = "/tmp/end.jpg"
	_, err = Inject(g, in)
	require.ErrorAs(t, err, &tplErr)
	assert.Equal(t, "flf2v", tplErr.Workflow)
	assert.Contains(t, err.Error(), "workflow flf2v")
}

func TestLoadValidatesSchema(t *testing.T) {
	tpl := NewTemplates(filepath.Join("testdata", "single.json"), filepath.Join("testdata", "flf2v_missing_end.json"))

	_, err := tpl.Load(VariantSingle)
	require.NoError(t, err)

	_, err = tpl.Load(VariantFLF2V)
	var tplErr *domain.TemplateError
	require.ErrorAs(t, err, &tplErr)
	assert.Equal(t, "617", tplErr.NodeID)
	assert.Contains(t, err.Error(), "617")
}

func TestLoadReportsFirstMissingRequiredNode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"244":{"inputs":{}}}`), 0o644))

	_, err := NewTemplates(path, path).Load(VariantSingle)
	var tplErr *domain.TemplateError
	require.ErrorAs(t, err, &tplErr)
	assert.Equal(t, "541", tplErr.NodeID)
}

func TestLoadReturnsIndependentGraphs(t *testing.T) {
	tpl := NewTemplates(filepath.Join("testdata", "single.json"), "")
	a, err := tpl.Load(VariantSingle)
	require.NoError(t, err)
	b, err := tpl.Load(VariantSingle)
	require.NoError(t, err)

	require.NoError(t, a.Set(NodeWidth, "value", Int(1)))
	assert.Equal(t, int64(512), intInput(t, b, NodeWidth, "value"))
}

func TestLoadUnconfiguredVariant(t *testing.T) {
	_, err := NewTemplates(filepath.Join("testdata", "single.json"), "").Load(VariantFLF2V)
	var tplErr *domain.TemplateError
	require.ErrorAs(t, err, &tplErr)
}

func TestVariantFor(t *testing.T) {
	assert.Equal(t, VariantSingle, VariantFor(domain.ResolvedInputs{}))
	assert.Equal(t, VariantFLF2V, VariantFor(domain.ResolvedInputs{EndImagePath: "/x"}))
}

func TestValueRoundTrip(t *testing.T) {
	var inputs map[string]Value
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":3,"c":1.5,"d":["1",0],"e":null,"f":true}`), &inputs))

	assert.Equal(t, KindString, inputs["a"].Kind())
	assert.Equal(t, KindInt, inputs["b"].Kind())
	assert.Equal(t, KindFloat, inputs["c"].Kind())
	assert.Equal(t, KindRaw, inputs["d"].Kind())
	assert.JSONEq(t, `["1",0]`, string(inputs["d"].RawJSON()))

	out, err := json.Marshal(inputs)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":3,"c":1.5,"d":["1",0],"e":null,"f":true}`, string(out))
}
