package comfy

import (
	"context"
	"errors"
	"time"

	"videoworker/internal/domain"
	"videoworker/internal/infra"
	"videoworker/internal/metrics"
	"videoworker/internal/retry"
)

// Prober checks whether the engine answers HTTP.
type Prober interface {
	Ping(ctx context.Context) error
}

// ChannelDialer opens a progress channel for a client id.
type ChannelDialer interface {
	Dial(ctx context.Context, clientID string) (Stream, error)
}

// SupervisorOptions configures a Supervisor. Readiness drives HTTP probing,
// Channel the progress channel handshake.
type SupervisorOptions struct {
	Prober    Prober
	Dialer    ChannelDialer
	Readiness retry.Policy
	Channel   retry.Policy
	Address   string
	Logger    *infra.Logger
}

// Supervisor establishes reachability of the engine before a job is
// submitted.
type Supervisor struct {
	prober    Prober
	dialer    ChannelDialer
	readiness retry.Policy
	channel   retry.Policy
	address   string
	logger    *infra.Logger
}

func NewSupervisor(opts SupervisorOptions) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Supervisor{
		prober:    opts.Prober,
		dialer:    opts.Dialer,
		readiness: opts.Readiness,
		channel:   opts.Channel,
		address:   opts.Address,
		logger:    logger,
	}
}

// Connect waits for the engine to answer, then opens the progress channel.
func (s *Supervisor) Connect(ctx context.Context, clientID string) (Stream, error) {
	if err := s.WaitReady(ctx); err != nil {
		return nil, err
	}
	return s.OpenChannel(ctx, clientID)
}

// WaitReady probes the engine until it answers or the readiness budget is
// spent.
func (s *Supervisor) WaitReady(ctx context.Context) error {
	s.logger.Info().Str("address", s.address).Int("max_attempts", s.readiness.Attempts).Msg("supervisor: checking engine http")
	_, err := retry.Fixed(ctx, s.readiness, func(attempt int) (struct{}, error) {
		metrics.ConnectAttemptsTotal.WithLabelValues(string(domain.StageReadiness)).Inc()
		if err := s.prober.Ping(ctx); err != nil {
			return struct{}{}, err
		}
		s.logger.Info().Int("attempt", attempt).Msg("supervisor: engine http reachable")
		return struct{}{}, nil
	}, s.notify(domain.StageReadiness, s.readiness.Attempts))
	return s.wrap(domain.StageReadiness, err)
}

// OpenChannel dials the progress channel until it opens or the channel
// budget is spent.
func (s *Supervisor) OpenChannel(ctx context.Context, clientID string) (Stream, error) {
	s.logger.Info().Str("address", s.address).Str("client_id", clientID).Msg("supervisor: connecting progress channel")
	stream, err := retry.Fixed(ctx, s.channel, func(attempt int) (Stream, error) {
		metrics.ConnectAttemptsTotal.WithLabelValues(string(domain.StageChannel)).Inc()
		st, err := s.dialer.Dial(ctx, clientID)
		if err != nil {
			return nil, err
		}
		s.logger.Info().Int("attempt", attempt).Msg("supervisor: progress channel open")
		return st, nil
	}, s.notify(domain.StageChannel, s.channel.Attempts))
	if err != nil {
		return nil, s.wrap(domain.StageChannel, err)
	}
	return stream, nil
}

func (s *Supervisor) notify(stage domain.ConnectStage, max int) retry.Notify {
	return func(attempt int, err error, next time.Duration) {
		s.logger.Warn().Err(err).
			Str("stage", string(stage)).
			Int("attempt", attempt).
			Int("max_attempts", max).
			Dur("retry_in", next).
			Msg("supervisor: attempt failed")
	}
}

func (s *Supervisor) wrap(stage domain.ConnectStage, err error) error {
	if err == nil {
		return nil
	}
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		s.logger.Error().Err(exhausted.Last).Str("stage", string(stage)).Int("attempts", exhausted.Attempts).Msg("supervisor: giving up")
		return &domain.ConnectivityError{
			Stage:    stage,
			Address:  s.address,
			Attempts: exhausted.Attempts,
			Err:      exhausted.Last,
		}
	}
	return err
}
