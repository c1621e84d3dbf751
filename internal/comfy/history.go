package comfy

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultArtifactKeys are the node output keys that carry video files, in
// lookup order.
var DefaultArtifactKeys = []string{"gifs", "videos"}

// Artifact is one file reported in a node's output.
type Artifact struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
	Format    string `json:"format"`
	FullPath  string `json:"fullpath"`
}

// NodeOutput is the output of one node, kept raw per key.
type NodeOutput struct {
	NodeID string
	Fields map[string]json.RawMessage
}

// Artifacts returns the files listed under keys, in key order.
func (o NodeOutput) Artifacts(keys []string) ([]Artifact, error) {
	var out []Artifact
	for _, key := range keys {
		raw, ok := o.Fields[key]
		if !ok || string(raw) == "null" {
			continue
		}
		var list []Artifact
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("comfy: node %s %s: %w", o.NodeID, key, err)
		}
		out = append(out, list...)
	}
	return out, nil
}

// History is the execution record of one prompt. Outputs keep the order in
// which the engine listed them.
type History struct {
	PromptID  string
	Outputs   []NodeOutput
	Status    string
	Completed bool
}

// ErrHistoryMissing is returned when the history response has no entry for
// the requested prompt.
var ErrHistoryMissing = errors.New("comfy: prompt not found in history")

type historyEntry struct {
	Outputs json.RawMessage `json:"outputs"`
	Status  struct {
		StatusStr string `json:"status_str"`
		Completed bool   `json:"completed"`
	} `json:"status"`
}

// ParseHistory decodes a /history/{id} response body.
func ParseHistory(raw []byte, promptID string) (*History, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("comfy: decode history: %w", err)
	}
	entryRaw, ok := entries[promptID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHistoryMissing, promptID)
	}
	var entry historyEntry
	if err := json.Unmarshal(entryRaw, &entry); err != nil {
		return nil, fmt.Errorf("comfy: decode history entry: %w", err)
	}
	outputs, err := decodeOrderedOutputs(entry.Outputs)
	if err != nil {
		return nil, err
	}
	return &History{
		PromptID:  promptID,
		Outputs:   outputs,
		Status:    entry.Status.StatusStr,
		Completed: entry.Status.Completed,
	}, nil
}

func decodeOrderedOutputs(raw json.RawMessage) ([]NodeOutput, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	keys, values, err := orderedObject(raw)
	if err != nil {
		return nil, fmt.Errorf("comfy: decode outputs: %w", err)
	}
	outputs := make([]NodeOutput, 0, len(keys))
	for i, key := range keys {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(values[i], &fields); err != nil {
			return nil, fmt.Errorf("comfy: decode output of node %s: %w", key, err)
		}
		outputs = append(outputs, NodeOutput{NodeID: key, Fields: fields})
	}
	return outputs, nil
}
