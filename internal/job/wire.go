package job

import (
	"fmt"
	"net/http"

	"videoworker/internal/acquire"
	"videoworker/internal/comfy"
	"videoworker/internal/infra"
	"videoworker/internal/params"
	"videoworker/internal/retry"
	"videoworker/internal/storage"
	"videoworker/internal/workflow"
)

// NewFromConfig assembles a Handler talking to the engine described by cfg.
func NewFromConfig(cfg *infra.Config, logger *infra.Logger) (*Handler, error) {
	if logger == nil {
		logger = infra.DiscardLogger()
	}

	var fetcher acquire.Fetcher
	switch cfg.Downloader {
	case "http":
		fetcher = acquire.NewHTTPFetcher(&http.Client{})
	default:
		fetcher = acquire.NewCommandFetcher(cfg.Downloader)
	}
	acquirer := acquire.New(acquire.Options{
		Fetcher: fetcher,
		Timeout: cfg.DownloadTimeout,
		Logger:  logger,
	})

	client, supervisor, err := NewEngine(cfg, logger)
	if err != nil {
		return nil, err
	}

	monitor := comfy.NewMonitor(comfy.MonitorOptions{
		Engine: client,
		Logger: logger,
	})

	var store *storage.FileStore
	if cfg.ArtifactStoragePath != "" {
		store, err = storage.NewFileStore(cfg.ArtifactStoragePath)
		if err != nil {
			return nil, fmt.Errorf("job: configure artifact storage: %w", err)
		}
	}

	return NewHandler(Options{
		Resolver:         acquirer,
		Normalizer:       params.New(params.Options{Logger: logger}),
		Templates:        workflow.NewTemplates(cfg.WorkflowPath, cfg.WorkflowFLF2VPath),
		Connector:        supervisor,
		Runner:           monitor,
		Store:            store,
		TempDir:          cfg.InputTempDir,
		DefaultImagePath: cfg.DefaultImagePath,
		ClientID:         cfg.ClientID,
		CleanupInputs:    cfg.CleanupInputs,
		Logger:           logger,
	})
}

// NewEngine builds the engine HTTP client and the supervisor guarding it.
func NewEngine(cfg *infra.Config, logger *infra.Logger) (*comfy.Client, *comfy.Supervisor, error) {
	client, err := comfy.NewClient(comfy.Options{
		BaseURL:      cfg.EngineHTTPURL(),
		ProbeTimeout: cfg.ReadinessTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("job: configure engine client: %w", err)
	}
	supervisor := comfy.NewSupervisor(comfy.SupervisorOptions{
		Prober:    client,
		Dialer:    comfy.NewDialer(cfg.EngineWSURL(), 0),
		Readiness: retry.Policy{Attempts: cfg.ReadinessAttempts, Delay: cfg.ReadinessInterval},
		Channel:   retry.Policy{Attempts: cfg.ChannelAttempts, Delay: cfg.ChannelInterval},
		Address:   client.BaseURL(),
		Logger:    logger,
	})
	return client, supervisor, nil
}
