// Package params normalizes loosely typed job input into a fully typed
// parameter set. Only a missing prompt and a non-numeric dimension fail a
// job; every other field falls back to a default.
package params

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"videoworker/internal/domain"
	"videoworker/internal/infra"
)

const (
	DefaultCFG            = 7.0
	DefaultLength         = 81
	DefaultSteps          = 10
	DefaultContextOverlap = 48
	DefaultWidth          = 832
	DefaultHeight         = 480
	DefaultLoraWeight     = 1.0

	MaxLoraPairs = 4
	MaxSeed      = math.MaxInt32
	RandomSeed   = -1

	dimensionStep = 16
	maxDimension  = 1 << 20
)

const DefaultNegativePrompt = "bright tones, overexposed, static, blurred details, subtitles, style, works, paintings, images, static, overall gray, worst quality, low quality, JPEG compression residue, ugly, incomplete, extra fingers, poorly drawn hands, poorly drawn faces, deformed, disfigured, misshapen limbs, fused fingers, still picture, messy background, three legs, many people in the background, walking backwards"

// Options configures a Normalizer.
type Options struct {
	// Rand draws fresh seeds. Nil uses the global source.
	Rand   *rand.Rand
	Logger *infra.Logger
}

// Normalizer turns a JobSpec into ResolvedInputs without touching image
// fields, which belong to the acquire stage.
type Normalizer struct {
	rng    *rand.Rand
	logger *infra.Logger
}

func New(opts Options) *Normalizer {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Normalizer{rng: opts.Rand, logger: logger}
}

// Normalize validates the prompt and coerces every numeric field.
func (n *Normalizer) Normalize(spec domain.JobSpec) (domain.ResolvedInputs, error) {
	prompt, ok := spec.String("prompt")
	if !ok || strings.TrimSpace(prompt) == "" {
		return domain.ResolvedInputs{}, &domain.InputError{Field: "prompt", Reason: "missing required string"}
	}

	negative, ok := spec.String("negative_prompt")
	if !ok {
		if _, present := spec.Lookup("negative_prompt"); present {
			n.logger.Warn().Msg("params: negative_prompt is not a string, using default")
		}
		negative = DefaultNegativePrompt
	}

	width, err := Dimension(spec, "width", DefaultWidth)
	if err != nil {
		return domain.ResolvedInputs{}, err
	}
	height, err := Dimension(spec, "height", DefaultHeight)
	if err != nil {
		return domain.ResolvedInputs{}, err
	}

	p := domain.Params{
		Seed:           n.seed(spec),
		CFG:            n.floatField(spec, "cfg", DefaultCFG),
		Length:         n.intField(spec, "length", DefaultLength, 1),
		Steps:          n.intField(spec, "steps", DefaultSteps, 1),
		ContextOverlap: n.intField(spec, "context_overlap", DefaultContextOverlap, 0),
		Width:          width,
		Height:         height,
		Loras:          n.loras(spec),
	}

	return domain.ResolvedInputs{
		Prompt:         prompt,
		NegativePrompt: negative,
		Params:         p,
	}, nil
}

func (n *Normalizer) seed(spec domain.JobSpec) int64 {
	raw, present := spec.Lookup("seed")
	if present {
		if s, ok := toSeed(raw); ok && s >= 0 {
			return s
		} else if !ok || s != RandomSeed {
			n.logger.Warn().Interface("seed", raw).Msg("params: unusable seed, drawing a random one")
		}
	}
	return n.randomSeed()
}

func (n *Normalizer) randomSeed() int64 {
	if n.rng != nil {
		return n.rng.Int64N(MaxSeed + 1)
	}
	return rand.Int64N(MaxSeed + 1)
}

func (n *Normalizer) floatField(spec domain.JobSpec, key string, fallback float64) float64 {
	raw, present := spec.Lookup(key)
	if !present {
		return fallback
	}
	f, ok := toFloat(raw)
	if !ok {
		n.logger.Warn().Str("field", key).Interface("value", raw).Float64("default", fallback).Msg("params: unparsable value, using default")
		return fallback
	}
	return f
}

func (n *Normalizer) intField(spec domain.JobSpec, key string, fallback, floor int) int {
	raw, present := spec.Lookup(key)
	if !present {
		return fallback
	}
	i, ok := toInt(raw)
	if !ok || i < floor {
		n.logger.Warn().Str("field", key).Interface("value", raw).Int("default", fallback).Msg("params: unusable value, using default")
		return fallback
	}
	return i
}

func (n *Normalizer) loras(spec domain.JobSpec) []domain.LoraPair {
	raw, present := spec.Lookup("lora_pairs")
	if !present || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		n.logger.Warn().Msg("params: lora_pairs is not a list, ignoring")
		return nil
	}
	if len(list) > MaxLoraPairs {
		n.logger.Warn().Int("given", len(list)).Int("kept", MaxLoraPairs).Msg("params: too many lora pairs, truncating")
		list = list[:MaxLoraPairs]
	}

	pairs := make([]domain.LoraPair, 0, len(list))
	for _, item := range list {
		entry, _ := item.(map[string]any)
		pair := domain.LoraPair{HighWeight: DefaultLoraWeight, LowWeight: DefaultLoraWeight}
		if s, ok := entry["high"].(string); ok {
			pair.High = s
		}
		if s, ok := entry["low"].(string); ok {
			pair.Low = s
		}
		if w, ok := entry["high_weight"]; ok {
			pair.HighWeight = weight(w)
		}
		if w, ok := entry["low_weight"]; ok {
			pair.LowWeight = weight(w)
		}
		pairs = append(pairs, pair)
	}
	return pairs
}

func weight(v any) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return DefaultLoraWeight
}

// Dimension reads key from spec and snaps it to the generation grid. A
// missing key yields fallback unchanged; a present non-numeric value is an
// InputError.
func Dimension(spec domain.JobSpec, key string, fallback int) (int, error) {
	raw, present := spec.Lookup(key)
	if !present {
		return Quantize(float64(fallback)), nil
	}
	v, ok := toFloat(raw)
	if !ok {
		return 0, &domain.InputError{Field: key, Reason: fmt.Sprintf("not a number: %v", raw)}
	}
	if math.Abs(v) > maxDimension {
		return 0, &domain.InputError{Field: key, Reason: fmt.Sprintf("out of range: %v", raw)}
	}
	return Quantize(v), nil
}

// Quantize rounds v to the nearest multiple of 16, ties to even multiples
// (100 -> 96, 40 -> 32, 24 -> 32), with a floor of 16.
func Quantize(v float64) int {
	adjusted := int(math.RoundToEven(v/dimensionStep) * dimensionStep)
	if adjusted < dimensionStep {
		adjusted = dimensionStep
	}
	return adjusted
}
