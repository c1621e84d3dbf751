package domain

import (
	"errors"
	"fmt"
)

var (
	ErrArtifactNotFound = errors.New("video not found")
	ErrUnsupportedInput = errors.New("unsupported input type")
)

// InputError reports a job input that cannot be normalized into a usable value.
type InputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return e.Err }

// DownloadError reports a failed or timed out remote fetch.
type DownloadError struct {
	URL    string
	Detail string
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("download %s failed: %s", e.URL, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("download %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("download %s failed", e.URL)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// DecodeError reports a malformed inline base64 payload.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TemplateError reports a workflow template that does not match the requested job.
type TemplateError struct {
	Workflow string
	NodeID   string
	Reason   string
}

func (e *TemplateError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("workflow %s: %s", e.Workflow, e.Reason)
	}
	return fmt.Sprintf("workflow %s: %s: %s", e.Workflow, e.Reason, e.NodeID)
}

// ConnectStage identifies which supervisor loop gave up.
type ConnectStage string

const (
	StageReadiness ConnectStage = "readiness"
	StageChannel   ConnectStage = "channel"
)

// ConnectivityError reports an exhausted readiness or channel attempt budget.
type ConnectivityError struct {
	Stage    ConnectStage
	Address  string
	Attempts int
	Err      error
}

func (e *ConnectivityError) Error() string {
	switch e.Stage {
	case StageReadiness:
		return fmt.Sprintf("engine at %s unreachable after %d attempts: %v", e.Address, e.Attempts, e.Err)
	case StageChannel:
		return fmt.Sprintf("progress channel to %s timed out after %d attempts: %v", e.Address, e.Attempts, e.Err)
	default:
		return fmt.Sprintf("connect %s: %v", e.Address, e.Err)
	}
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsClientError reports whether err was caused by the submitted job rather than
// by the engine or the network.
func IsClientError(err error) bool {
	var (
		inputErr    *InputError
		decodeErr   *DecodeError
		templateErr *TemplateError
	)
	return errors.As(err, &inputErr) || errors.As(err, &decodeErr) || errors.As(err, &templateErr)
}
