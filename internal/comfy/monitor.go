package comfy

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"videoworker/internal/infra"
)

// Engine is the part of the engine API the monitor drives.
type Engine interface {
	Submit(ctx context.Context, graph any, clientID string) (string, error)
	History(ctx context.Context, promptID string) (*History, error)
}

// FileReader reads an artifact reported by the engine.
type FileReader func(path string) ([]byte, error)

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Engine       Engine
	ReadFile     FileReader
	ArtifactKeys []string
	Logger       *infra.Logger
}

// Monitor drives one submitted job to completion and collects its artifacts.
type Monitor struct {
	engine   Engine
	readFile FileReader
	keys     []string
	logger   *infra.Logger
}

func NewMonitor(opts MonitorOptions) *Monitor {
	readFile := opts.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	keys := opts.ArtifactKeys
	if len(keys) == 0 {
		keys = DefaultArtifactKeys
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Monitor{engine: opts.Engine, readFile: readFile, keys: keys, logger: logger}
}

// LoadedArtifact is an artifact together with its file content.
type LoadedArtifact struct {
	Artifact
	Data []byte
}

// Base64 returns the standard base64 encoding of the content.
func (a LoadedArtifact) Base64() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// NodeArtifacts groups the artifacts produced by one node.
type NodeArtifacts struct {
	NodeID    string
	Artifacts []LoadedArtifact
}

// Outputs is everything a finished job produced, in engine order.
type Outputs struct {
	PromptID string
	Nodes    []NodeArtifacts
}

// First returns the first artifact of the first node that has any.
func (o *Outputs) First() (LoadedArtifact, string, bool) {
	if o == nil {
		return LoadedArtifact{}, "", false
	}
	for _, n := range o.Nodes {
		if len(n.Artifacts) > 0 {
			return n.Artifacts[0], n.NodeID, true
		}
	}
	return LoadedArtifact{}, "", false
}

// Run submits graph, waits on stream for its completion, then loads the
// artifacts listed in the history. stream is always closed before Run
// returns.
func (m *Monitor) Run(ctx context.Context, stream Stream, graph any, clientID string) (*Outputs, error) {
	defer func() {
		if err := stream.Close(); err != nil {
			m.logger.Debug().Err(err).Msg("monitor: close progress channel")
		}
	}()

	promptID, err := m.engine.Submit(ctx, graph, clientID)
	if err != nil {
		return nil, err
	}
	log := m.logger.With().Str("prompt_id", promptID).Logger()
	log.Info().Msg("monitor: waiting for completion")

	if err := WaitForCompletion(ctx, stream, promptID); err != nil {
		return nil, fmt.Errorf("monitor: wait for %s: %w", promptID, err)
	}
	log.Info().Msg("monitor: execution finished")

	history, err := m.engine.History(ctx, promptID)
	if err != nil {
		return nil, err
	}
	return m.collect(history)
}

func (m *Monitor) collect(h *History) (*Outputs, error) {
	out := &Outputs{PromptID: h.PromptID, Nodes: make([]NodeArtifacts, 0, len(h.Outputs))}
	for _, node := range h.Outputs {
		artifacts, err := node.Artifacts(m.keys)
		if err != nil {
			return nil, err
		}
		loaded := make([]LoadedArtifact, 0, len(artifacts))
		for _, a := range artifacts {
			if a.FullPath == "" {
				m.logger.Warn().Str("node", node.NodeID).Str("filename", a.Filename).Msg("monitor: artifact without fullpath, skipping")
				continue
			}
			data, err := m.readFile(a.FullPath)
			if err != nil {
				return nil, fmt.Errorf("monitor: read artifact %s: %w", a.FullPath, err)
			}
			loaded = append(loaded, LoadedArtifact{Artifact: a, Data: data})
		}
		out.Nodes = append(out.Nodes, NodeArtifacts{NodeID: node.NodeID, Artifacts: loaded})
	}
	return out, nil
}
