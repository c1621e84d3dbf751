// Package acquire turns job image descriptors into local files the engine
// can read.
package acquire

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"videoworker/internal/domain"
	"videoworker/internal/infra"
)

// Kind names how a source string should be interpreted.
type Kind string

const (
	KindPath   Kind = "path"
	KindURL    Kind = "url"
	KindBase64 Kind = "base64"
)

// Options configures an Acquirer.
type Options struct {
	Fetcher Fetcher
	Timeout time.Duration
	Logger  *infra.Logger
}

// Acquirer resolves sources into local paths. It writes at most one file per
// call and never retries.
type Acquirer struct {
	fetcher Fetcher
	timeout time.Duration
	logger  *infra.Logger
}

// New builds an Acquirer. Without a fetcher downloads go through wget.
func New(opts Options) *Acquirer {
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewCommandFetcher("")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Acquirer{fetcher: fetcher, timeout: timeout, logger: logger}
}

// Resolve returns a local path for source. dir is the task's scratch
// directory and filename the name the file gets inside it.
func (a *Acquirer) Resolve(ctx context.Context, dir string, kind Kind, source, filename string) (string, error) {
	switch kind {
	case KindPath:
		a.logger.Info().Str("path", source).Msg("acquire: using local path")
		return source, nil
	case KindURL:
		a.logger.Info().Str("url", source).Msg("acquire: downloading")
		return a.download(ctx, dir, source, filename)
	case KindBase64:
		a.logger.Info().Int("length", len(source)).Msg("acquire: decoding inline payload")
		return a.decode(dir, source, filename)
	default:
		return "", &domain.InputError{Field: string(kind), Reason: "unsupported input type", Err: domain.ErrUnsupportedInput}
	}
}

func (a *Acquirer) download(ctx context.Context, dir, url, filename string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", &domain.DownloadError{URL: url, Detail: "empty url"}
	}
	dest, err := destination(dir, filename)
	if err != nil {
		return "", &domain.DownloadError{URL: url, Detail: "prepare destination", Err: err}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.fetcher.Fetch(fetchCtx, url, dest); err != nil {
		a.logger.Error().Err(err).Str("url", url).Msg("acquire: download failed")
		return "", err
	}
	a.logger.Info().Str("url", url).Str("path", dest).Msg("acquire: downloaded")
	return dest, nil
}

func (a *Acquirer) decode(dir, payload, filename string) (string, error) {
	data, err := decodeBase64(payload)
	if err != nil {
		a.logger.Error().Err(err).Msg("acquire: base64 decode failed")
		return "", &domain.DecodeError{Field: filename, Err: err}
	}
	dest, err := destination(dir, filename)
	if err != nil {
		return "", fmt.Errorf("acquire: prepare destination: %w", err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", fmt.Errorf("acquire: write %s: %w", dest, err)
	}
	a.logger.Info().Str("path", dest).Int("bytes", len(data)).Msg("acquire: saved inline payload")
	return dest, nil
}

func destination(dir, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Abs(filepath.Join(dir, filepath.Base(filename)))
}

// decodeBase64 accepts padded and unpadded standard base64, with or without a
// data URI prefix and embedded whitespace.
func decodeBase64(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.Index(payload, ","); idx >= 0 {
			payload = payload[idx+1:]
		}
	}
	payload = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	if payload == "" {
		return nil, fmt.Errorf("empty payload")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(payload); rawErr == nil {
		return raw, nil
	}
	return nil, err
}
