package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"videoworker/internal/domain"
	"videoworker/internal/infra"
)

// JobRunner executes one job synchronously.
type JobRunner interface {
	Handle(ctx context.Context, spec domain.JobSpec) (domain.Result, error)
}

type App struct {
	Jobs   JobRunner
	Logger *infra.Logger

	slots chan struct{}
}

// NewApp builds the handler container. maxConcurrent bounds how many jobs
// run at once; further requests wait for a free slot.
func NewApp(jobs JobRunner, maxConcurrent int, logger *infra.Logger) *App {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &App{Jobs: jobs, Logger: logger, slots: make(chan struct{}, maxConcurrent)}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
