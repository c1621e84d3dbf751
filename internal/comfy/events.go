package comfy

import (
	"context"
	"encoding/json"
	"errors"
)

// Frame is one message received on the progress channel.
type Frame struct {
	Text bool
	Data []byte
}

// Stream yields progress frames until it is closed or fails. Next blocks
// until a frame arrives.
type Stream interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Event is a decoded textual progress message.
type Event struct {
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData holds the fields of an event the worker cares about. Node is nil
// when the engine sent null or omitted it.
type EventData struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

// IsCompletionOf reports whether e signals that promptID finished: an
// "executing" event with no node for that prompt.
func (e Event) IsCompletionOf(promptID string) bool {
	if e.Type != "executing" || e.Data.PromptID != promptID {
		return false
	}
	return e.Data.Node == nil || *e.Data.Node == ""
}

// ErrStreamEnded is returned when a stream runs out before the predicate held.
var ErrStreamEnded = errors.New("comfy: progress stream ended before completion")

// Until consumes s until pred holds and returns the matching event. Binary
// frames and text that does not decode as an event are dropped.
func Until(ctx context.Context, s Stream, pred func(Event) bool) (Event, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		frame, err := s.Next(ctx)
		if err != nil {
			return Event{}, err
		}
		if !frame.Text {
			continue
		}
		var ev Event
		if err := json.Unmarshal(frame.Data, &ev); err != nil {
			continue
		}
		if pred(ev) {
			return ev, nil
		}
	}
}

// WaitForCompletion blocks until the completion event of promptID arrives.
func WaitForCompletion(ctx context.Context, s Stream, promptID string) error {
	_, err := Until(ctx, s, func(e Event) bool { return e.IsCompletionOf(promptID) })
	return err
}

// SliceStream is a supported in-memory Stream: it replays a fixed list of
// frames, then reports ErrStreamEnded. Callers use it to replay recorded
// sessions or to drive the event loop without a live engine.
type SliceStream struct {
	Frames []Frame
	pos    int
	closed bool
}

func (s *SliceStream) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.closed {
		return Frame{}, errors.New("comfy: stream closed")
	}
	if s.pos >= len(s.Frames) {
		return Frame{}, ErrStreamEnded
	}
	f := s.Frames[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SliceStream) Closed() bool { return s.closed }
