package domain

// JobSpec is the raw job input as received from the caller. Numbers are kept
// as json.Number so integer seeds survive decoding unchanged.
type JobSpec map[string]any

// Lookup returns the value stored under key and whether it was present.
func (s JobSpec) Lookup(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s[key]
	return v, ok
}

// String returns the value under key when it is a string.
func (s JobSpec) String(key string) (string, bool) {
	v, ok := s.Lookup(key)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

// LoraPair carries one high/low LoRA reference pair with independent weights.
type LoraPair struct {
	High       string
	Low        string
	HighWeight float64
	LowWeight  float64
}

// Params is the fully typed numeric parameter set of a job.
type Params struct {
	Seed           int64
	CFG            float64
	Length         int
	Steps          int
	ContextOverlap int
	Width          int
	Height         int
	Loras          []LoraPair
}

// LowSteps is the step count handed to the low-noise stage.
func (p Params) LowSteps() int {
	return int(float64(p.Steps) * 0.6)
}

// ResolvedInputs is the canonical job after resource acquisition and
// normalization.
type ResolvedInputs struct {
	ImagePath      string
	EndImagePath   string
	Prompt         string
	NegativePrompt string
	Params         Params
}

// HasEndImage reports whether the job runs in first/last frame mode.
func (r ResolvedInputs) HasEndImage() bool {
	return r.EndImagePath != ""
}

// Result is the caller facing outcome of one job.
type Result struct {
	Video string `json:"video,omitempty"`
	Error string `json:"error,omitempty"`
}
