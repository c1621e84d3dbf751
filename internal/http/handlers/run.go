package handlers

import (
	"context"
	"errors"
	"net/http"

	"videoworker/internal/domain"
	"videoworker/internal/job"
	"videoworker/internal/middleware"
)

const maxRequestBytes = 64 << 20

// Run executes the job in the request body and answers once it finished.
func (a *App) Run(w http.ResponseWriter, r *http.Request) {
	logger := a.Logger.With().Str("request_id", middleware.RequestIDFromContext(r.Context())).Logger()

	spec, err := job.DecodeSpec(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		a.json(w, http.StatusBadRequest, job.Response{Error: err.Error()})
		return
	}

	select {
	case a.slots <- struct{}{}:
		defer func() { <-a.slots }()
	case <-r.Context().Done():
		a.json(w, http.StatusServiceUnavailable, job.Response{Error: "request cancelled while waiting for a free worker"})
		return
	}

	res, err := a.Jobs.Handle(r.Context(), spec)
	if err != nil {
		status := statusFor(err)
		logger.Error().Err(err).Int("status", status).Msg("http: job failed")
		a.json(w, status, job.Response{Error: err.Error()})
		return
	}
	a.json(w, http.StatusOK, job.Response{Output: &res})
}

func statusFor(err error) int {
	var (
		templateErr *domain.TemplateError
		downloadErr *domain.DownloadError
		connErr     *domain.ConnectivityError
	)
	switch {
	case errors.As(err, &templateErr):
		return http.StatusUnprocessableEntity
	case domain.IsClientError(err):
		return http.StatusBadRequest
	case errors.As(err, &downloadErr), errors.As(err, &connErr):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
