// Package job runs one video generation request end to end: resource
// acquisition, parameter normalization, graph injection, engine supervision
// and artifact collection.
package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"videoworker/internal/acquire"
	"videoworker/internal/comfy"
	"videoworker/internal/domain"
	"videoworker/internal/infra"
	"videoworker/internal/metrics"
	"videoworker/internal/storage"
	"videoworker/internal/workflow"
)

const (
	startImageFile = "input_image.jpg"
	endImageFile   = "end_image.jpg"
	listImageFile  = "input_0.png"

	outcomeSucceeded  = "succeeded"
	outcomeNoArtifact = "no_artifact"
	outcomeFailed     = "failed"
)

// Resolver turns an image descriptor into a local path.
type Resolver interface {
	Resolve(ctx context.Context, dir string, kind acquire.Kind, source, filename string) (string, error)
}

// Normalizer produces typed inputs from a raw job.
type Normalizer interface {
	Normalize(spec domain.JobSpec) (domain.ResolvedInputs, error)
}

// TemplateLoader returns a fresh graph for a workflow variant.
type TemplateLoader interface {
	Load(v workflow.Variant) (*workflow.Graph, error)
}

// Connector makes the engine reachable and opens the progress channel.
type Connector interface {
	Connect(ctx context.Context, clientID string) (comfy.Stream, error)
}

// Runner submits a graph and collects its outputs.
type Runner interface {
	Run(ctx context.Context, stream comfy.Stream, graph any, clientID string) (*comfy.Outputs, error)
}

// Options configures a Handler.
type Options struct {
	Resolver         Resolver
	Normalizer       Normalizer
	Templates        TemplateLoader
	Connector        Connector
	Runner           Runner
	Store            *storage.FileStore
	TempDir          string
	DefaultImagePath string
	ClientID         string
	CleanupInputs    bool
	Logger           *infra.Logger
}

// Handler executes jobs. It holds no per-job state and can be shared.
type Handler struct {
	resolver     Resolver
	normalizer   Normalizer
	templates    TemplateLoader
	connector    Connector
	runner       Runner
	store        *storage.FileStore
	tempDir      string
	defaultImage string
	clientID     string
	cleanup      bool
	logger       *infra.Logger
}

func NewHandler(opts Options) (*Handler, error) {
	switch {
	case opts.Resolver == nil:
		return nil, errors.New("job: resolver is required")
	case opts.Normalizer == nil:
		return nil, errors.New("job: normalizer is required")
	case opts.Templates == nil:
		return nil, errors.New("job: templates are required")
	case opts.Connector == nil:
		return nil, errors.New("job: connector is required")
	case opts.Runner == nil:
		return nil, errors.New("job: runner is required")
	}
	tempDir := strings.TrimSpace(opts.TempDir)
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Handler{
		resolver:     opts.Resolver,
		normalizer:   opts.Normalizer,
		templates:    opts.Templates,
		connector:    opts.Connector,
		runner:       opts.Runner,
		store:        opts.Store,
		tempDir:      tempDir,
		defaultImage: opts.DefaultImagePath,
		clientID:     strings.TrimSpace(opts.ClientID),
		cleanup:      opts.CleanupInputs,
		logger:       logger,
	}, nil
}

// Handle runs one job. A completed job without any artifact is reported in
// the result rather than as an error.
func (h *Handler) Handle(ctx context.Context, spec domain.JobSpec) (res domain.Result, err error) {
	taskID := "task_" + uuid.NewString()
	logger := h.logger.With().Str("task_id", taskID).Logger()
	variant := workflow.VariantSingle

	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()
	defer func() {
		outcome := outcomeSucceeded
		switch {
		case err != nil:
			outcome = outcomeFailed
		case res.Error != "":
			outcome = outcomeNoArtifact
		}
		metrics.JobsTotal.WithLabelValues(string(variant), outcome).Inc()
	}()

	in, err := h.normalizer.Normalize(spec)
	if err != nil {
		return domain.Result{}, err
	}

	dir := filepath.Join(h.tempDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return domain.Result{}, fmt.Errorf("job: create task dir: %w", err)
	}
	if h.cleanup {
		defer func() {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				logger.Warn().Err(rmErr).Str("dir", dir).Msg("job: cleanup failed")
			}
		}()
	}

	started := time.Now()
	if in.ImagePath, err = h.startImage(ctx, dir, spec); err != nil {
		return domain.Result{}, err
	}
	if in.EndImagePath, err = h.endImage(ctx, dir, spec); err != nil {
		return domain.Result{}, err
	}
	observe("acquire", started)

	variant = workflow.VariantFor(in)
	logger = logger.With().Str("workflow", string(variant)).Logger()
	logger.Info().
		Str("image", in.ImagePath).
		Bool("end_image", in.HasEndImage()).
		Int64("seed", in.Params.Seed).
		Int("width", in.Params.Width).
		Int("height", in.Params.Height).
		Int("length", in.Params.Length).
		Int("steps", in.Params.Steps).
		Msg("job: inputs resolved")

	started = time.Now()
	graph, err := h.templates.Load(variant)
	if err != nil {
		return domain.Result{}, err
	}
	warnings, err := workflow.Inject(graph, in)
	if err != nil {
		return domain.Result{}, err
	}
	for _, w := range warnings {
		logger.Warn().Msg("job: " + string(w))
	}
	logger.Debug().Int("nodes", graph.Len()).Msg("job: graph prepared")
	observe("inject", started)

	clientID := h.clientID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	started = time.Now()
	stream, err := h.connector.Connect(ctx, clientID)
	if err != nil {
		return domain.Result{}, err
	}
	observe("connect", started)

	started = time.Now()
	outputs, err := h.runner.Run(ctx, stream, graph, clientID)
	if err != nil {
		return domain.Result{}, err
	}
	observe("generate", started)
	logger = logger.With().Str("prompt_id", outputs.PromptID).Logger()

	art, nodeID, ok := outputs.First()
	if !ok {
		logger.Warn().Msg("job: no video artifact produced")
		return domain.Result{Error: domain.ErrArtifactNotFound.Error()}, nil
	}
	logger.Info().Str("node_id", nodeID).Str("file", art.FullPath).Int("bytes", len(art.Data)).Msg("job: video collected")

	h.persist(ctx, logger, taskID, art)
	return domain.Result{Video: art.Base64()}, nil
}

func (h *Handler) startImage(ctx context.Context, dir string, spec domain.JobSpec) (string, error) {
	if url, ok := firstListedURL(spec); ok {
		return h.resolver.Resolve(ctx, dir, acquire.KindURL, url, listImageFile)
	}
	if kind, source, ok := pick(spec, "image_path", "image_url", "image_base64"); ok {
		return h.resolver.Resolve(ctx, dir, kind, source, startImageFile)
	}
	if h.defaultImage == "" {
		return "", &domain.InputError{Field: "image", Reason: "no start image supplied and no default configured"}
	}
	return h.defaultImage, nil
}

func (h *Handler) endImage(ctx context.Context, dir string, spec domain.JobSpec) (string, error) {
	kind, source, ok := pick(spec, "end_image_path", "end_image_url", "end_image_base64")
	if !ok {
		return "", nil
	}
	return h.resolver.Resolve(ctx, dir, kind, source, endImageFile)
}

func (h *Handler) persist(ctx context.Context, logger infra.Logger, taskID string, art comfy.LoadedArtifact) {
	if h.store == nil {
		return
	}
	key, err := h.store.Write(ctx, storage.VideoKey(taskID, art.Filename), art.Data)
	if err != nil {
		logger.Warn().Err(err).Msg("job: persist video failed")
		return
	}
	logger.Info().Str("storage_key", key).Msg("job: video persisted")
}

// firstListedURL returns images[0].url when it is a non-empty string.
func firstListedURL(spec domain.JobSpec) (string, bool) {
	raw, ok := spec.Lookup("images")
	if !ok {
		return "", false
	}
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return "", false
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return "", false
	}
	url, ok := first["url"].(string)
	if !ok || strings.TrimSpace(url) == "" {
		return "", false
	}
	return url, true
}

// pick returns the first of the path, url and base64 keys holding a
// non-empty string.
func pick(spec domain.JobSpec, pathKey, urlKey, base64Key string) (acquire.Kind, string, bool) {
	candidates := []struct {
		key  string
		kind acquire.Kind
	}{
		{pathKey, acquire.KindPath},
		{urlKey, acquire.KindURL},
		{base64Key, acquire.KindBase64},
	}
	for _, c := range candidates {
		if v, ok := spec.String(c.key); ok && strings.TrimSpace(v) != "" {
			return c.kind, v, true
		}
	}
	return "", "", false
}

func observe(stage string, started time.Time) {
	metrics.StageDurationSeconds.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}
