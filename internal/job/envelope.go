package job

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"videoworker/internal/domain"
)

// Response wraps a job result for the caller.
type Response struct {
	Output *domain.Result `json:"output,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// DecodeSpec reads a job from r. Documents carrying an "input" key are
// unwrapped; any other object is taken as the job input itself. Numbers are
// kept as json.Number.
func DecodeSpec(r io.Reader) (domain.JobSpec, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("job: read request: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := decodeNumbers(raw, &doc); err != nil {
		return nil, &domain.InputError{Field: "input", Reason: "request is not a JSON object", Err: err}
	}
	if doc == nil {
		return nil, &domain.InputError{Field: "input", Reason: "request is not a JSON object"}
	}

	body := raw
	if inner, ok := doc["input"]; ok {
		body = inner
	}
	var spec domain.JobSpec
	if err := decodeNumbers(body, &spec); err != nil {
		return nil, &domain.InputError{Field: "input", Reason: "input must be an object", Err: err}
	}
	if spec == nil {
		spec = domain.JobSpec{}
	}
	return spec, nil
}

func decodeNumbers(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected trailing data")
	}
	return nil
}
