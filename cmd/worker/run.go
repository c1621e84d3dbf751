package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"videoworker/internal/domain"
	"videoworker/internal/infra"
	"videoworker/internal/job"
)

// JobRunner executes one decoded job.
type JobRunner interface {
	Handle(ctx context.Context, spec domain.JobSpec) (domain.Result, error)
}

func newRunCommand() *cobra.Command {
	var (
		input  string
		output string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single job and print its result",
		Long:  `Run reads one job, drives it through the engine and writes {"output": {...}} or {"error": "..."} as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			handler, err := job.NewFromConfig(cfg, &logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			in, closeIn, err := openInput(input, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer closeIn()

			out, closeOut, err := openOutput(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeOut()

			return runJob(ctx, handler, in, out)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "Job file, or - for stdin")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Result file, or - for stdout")
	return cmd
}

// runJob decodes one job from in, runs it and writes the response to out.
// The job error is returned after the response is written.
func runJob(ctx context.Context, runner JobRunner, in io.Reader, out io.Writer) error {
	spec, err := job.DecodeSpec(in)
	if err != nil {
		return errors.Join(writeResponse(out, job.Response{Error: err.Error()}), err)
	}
	res, err := runner.Handle(ctx, spec)
	if err != nil {
		return errors.Join(writeResponse(out, job.Response{Error: err.Error()}), err)
	}
	return writeResponse(out, job.Response{Output: &res})
}

func writeResponse(w io.Writer, resp job.Response) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func setup(cmd *cobra.Command) (*infra.Config, infra.Logger, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, infra.Logger{}, err
	}
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	return cfg, infra.NewLoggerTo(cmd.ErrOrStderr(), cfg.AppEnv, level), nil
}

func openInput(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
