package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"videoworker/internal/domain"
)

// Fetcher downloads url into the file at dest.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// CommandFetcher shells out to wget. The context bounds how long the
// download may run.
type CommandFetcher struct {
	Binary string
}

// NewCommandFetcher returns a fetcher running binary, or wget when empty.
func NewCommandFetcher(binary string) *CommandFetcher {
	if strings.TrimSpace(binary) == "" {
		binary = "wget"
	}
	return &CommandFetcher{Binary: binary}
}

func (f *CommandFetcher) Fetch(ctx context.Context, url, dest string) error {
	cmd := exec.CommandContext(ctx, f.Binary, "-O", dest, "--no-verbose", url)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &domain.DownloadError{URL: url, Detail: "timed out", Err: ctx.Err()}
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return &domain.DownloadError{URL: url, Detail: detail, Err: err}
	}
	return nil
}

// HTTPFetcher downloads in process with net/http.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher using client, or http.DefaultClient when nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &domain.DownloadError{URL: url, Detail: "invalid url", Err: err}
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return wrapFetchErr(ctx, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &domain.DownloadError{
			URL:    url,
			Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	out, err := os.Create(dest)
	if err != nil {
		return &domain.DownloadError{URL: url, Detail: "create destination", Err: err}
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return wrapFetchErr(ctx, url, err)
	}
	if err := out.Close(); err != nil {
		return &domain.DownloadError{URL: url, Detail: "close destination", Err: err}
	}
	return nil
}

func wrapFetchErr(ctx context.Context, url string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &domain.DownloadError{URL: url, Detail: "timed out", Err: err}
	}
	return &domain.DownloadError{URL: url, Err: err}
}
