package comfy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoworker/internal/domain"
	"videoworker/internal/retry"
)

type fakeProber struct {
	failures int
	calls    int
}

func (p *fakeProber) Ping(context.Context) error {
	p.calls++
	if p.failures < 0 || p.calls <= p.failures {
		return errors.New("connection refused")
	}
	return nil
}

type fakeDialer struct {
	failures int
	calls    int
	clientID string
}

func (d *fakeDialer) Dial(_ context.Context, clientID string) (Stream, error) {
	d.calls++
	d.clientID = clientID
	if d.failures < 0 || d.calls <= d.failures {
		return nil, errors.New("bad handshake")
	}
	return &SliceStream{}, nil
}

func newTestSupervisor(p Prober, d ChannelDialer) *Supervisor {
	return NewSupervisor(SupervisorOptions{
		Prober:    p,
		Dialer:    d,
		Readiness: retry.Policy{Attempts: 3, Delay: time.Millisecond},
		Channel:   retry.Policy{Attempts: 2, Delay: 2 * time.Millisecond},
		Address:   "127.0.0.1:8188",
	})
}

func TestSupervisorConnects(t *testing.T) {
	p := &fakeProber{failures: 2}
	d := &fakeDialer{failures: 1}
	stream, err := newTestSupervisor(p, d).Connect(context.Background(), "client-1")
	require.NoError(t, err)
	require.NotNil(t, stream)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, 2, d.calls)
	assert.Equal(t, "client-1", d.clientID)
}

func TestSupervisorReadinessExhausted(t *testing.T) {
	p := &fakeProber{failures: -1}
	d := &fakeDialer{}
	_, err := newTestSupervisor(p, d).Connect(context.Background(), "c")

	var connErr *domain.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, domain.StageReadiness, connErr.Stage)
	assert.Equal(t, 3, connErr.Attempts)
	assert.Equal(t, 3, p.calls)
	assert.Zero(t, d.calls, "channel must not be attempted before readiness")
	assert.Contains(t, err.Error(), "unreachable")
}

func TestSupervisorChannelExhausted(t *testing.T) {
	p := &fakeProber{}
	d := &fakeDialer{failures: -1}
	_, err := newTestSupervisor(p, d).Connect(context.Background(), "c")

	var connErr *domain.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, domain.StageChannel, connErr.Stage)
	assert.Equal(t, 2, connErr.Attempts)
	assert.Contains(t, err.Error(), "timed out")
}

func TestSupervisorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sup := NewSupervisor(SupervisorOptions{
		Prober:    &fakeProber{failures: -1},
		Dialer:    &fakeDialer{},
		Readiness: retry.Policy{Attempts: 10, Delay: time.Hour},
		Channel:   retry.Policy{Attempts: 1},
	})
	_, err := sup.Connect(ctx, "c")
	assert.ErrorIs(t, err, context.Canceled)
}
