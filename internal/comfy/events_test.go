package comfy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(s string) Frame { return Frame{Text: true, Data: []byte(s)} }

func TestWaitForCompletionSkipsUnrelatedFrames(t *testing.T) {
	s := &SliceStream{Frames: []Frame{
		{Text: false, Data: []byte{0x00, 0x01}},
		text(`not json`),
		text(`{"type":"status","data":{"status":{"exec_info":{"queue_remaining":1}}}}`),
		text(`{"type":"executing","data":{"node":"540","prompt_id":"p1"}}`),
		text(`{"type":"executing","data":{"node":null,"prompt_id":"other"}}`),
		text(`{"type":"progress","data":{"value":3,"max":10,"prompt_id":"p1"}}`),
		text(`{"type":"executing","data":{"node":null,"prompt_id":"p1"}}`),
		text(`{"type":"executing","data":{"node":null,"prompt_id":"p1"}}`),
	}}

	require.NoError(t, WaitForCompletion(context.Background(), s, "p1"))
	assert.Equal(t, 7, s.pos, "loop must stop at the first completion event")
}

func TestWaitForCompletionAcceptsAbsentOrEmptyNode(t *testing.T) {
	for _, frame := range []string{
		`{"type":"executing","data":{"prompt_id":"p1"}}`,
		`{"type":"executing","data":{"node":"","prompt_id":"p1"}}`,
	} {
		s := &SliceStream{Frames: []Frame{text(frame)}}
		assert.NoError(t, WaitForCompletion(context.Background(), s, "p1"), frame)
	}
}

func TestWaitForCompletionStreamEnds(t *testing.T) {
	s := &SliceStream{Frames: []Frame{
		text(`{"type":"executing","data":{"node":"1","prompt_id":"p1"}}`),
	}}
	assert.ErrorIs(t, WaitForCompletion(context.Background(), s, "p1"), ErrStreamEnded)
}

func TestUntilHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &SliceStream{Frames: []Frame{text(`{"type":"executing","data":{"prompt_id":"p1"}}`)}}
	_, err := Until(ctx, s, func(Event) bool { return true })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsCompletionOf(t *testing.T) {
	node := "12"
	empty := ""
	assert.True(t, Event{Type: "executing", Data: EventData{PromptID: "a"}}.IsCompletionOf("a"))
	assert.True(t, Event{Type: "executing", Data: EventData{PromptID: "a", Node: &empty}}.IsCompletionOf("a"))
	assert.False(t, Event{Type: "executing", Data: EventData{PromptID: "a", Node: &node}}.IsCompletionOf("a"))
	assert.False(t, Event{Type: "executed", Data: EventData{PromptID: "a"}}.IsCompletionOf("a"))
	assert.False(t, Event{Type: "executing", Data: EventData{PromptID: "b"}}.IsCompletionOf("a"))
}

func TestSliceStreamReplaysThenEnds(t *testing.T) {
	s := &SliceStream{Frames: []Frame{text(`{"type":"status"}`), {Data: []byte{0x01}}}}

	f, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.True(t, f.Text)
	f, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, f.Text)
	_, err = s.Next(context.Background())
	require.ErrorIs(t, err, ErrStreamEnded)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.Close())
	assert.True(t, s.Closed())
	_, err = s.Next(context.Background())
	require.Error(t, err)
}
