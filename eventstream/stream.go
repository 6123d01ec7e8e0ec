// Package eventstream provides a generic, channel-backed event stream. The
// facade uses it to carry the agent loop's LoopEvents to its listeners;
// the provider adapters do not use it.
// It generalizes the teacher's pull-based pipe.Stream interface (Next/
// State/Message/Close) into a reusable producer/consumer primitive: a
// producer goroutine calls Push for each event and End once with the final
// result, while one or more consumers drain the stream via Range (a Go 1.23
// iter.Seq) or wait for the terminal value via Result.
package eventstream

import (
	"context"
	"errors"
	"iter"
	"sync"
)

// ErrClosed is returned by Push/End after the stream has been closed by a
// consumer (e.g. on cancellation) before the producer finished.
var ErrClosed = errors.New("eventstream: stream closed")

// Stream is a single-producer, pull/push hybrid event channel parameterized
// by an event type E and a terminal result type R. IsComplete, if non-nil,
// lets the producer signal completion by pushing a terminal event rather
// than calling End explicitly (for producers whose protocol marks
// completion in-band, e.g. an SSE message_stop event); ExtractResult then
// derives R from that terminal event.
type Stream[E any, R any] struct {
	events chan E
	closed chan struct{}

	isComplete    func(E) bool
	extractResult func(E) R

	once   sync.Once
	result R
	err    error
	done   chan struct{}
}

// Option configures a Stream at construction.
type Option[E any, R any] func(*Stream[E, R])

// WithCompletion installs a predicate/extractor pair so a Push of a
// terminal event both ends the stream and derives its Result, without the
// producer needing to call End separately.
func WithCompletion[E any, R any](isComplete func(E) bool, extractResult func(E) R) Option[E, R] {
	return func(s *Stream[E, R]) {
		s.isComplete = isComplete
		s.extractResult = extractResult
	}
}

// WithBuffer sets the channel buffer size (default 0, unbuffered).
func WithBuffer[E any, R any](n int) Option[E, R] {
	return func(s *Stream[E, R]) { s.events = make(chan E, n) }
}

// New creates a Stream. Call Push from the producer goroutine for each
// event, and End exactly once when the producer finishes (unless a
// completion predicate is installed and fires first).
func New[E any, R any](opts ...Option[E, R]) *Stream[E, R] {
	s := &Stream[E, R]{
		events: make(chan E),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push sends one event to the stream. It returns ErrClosed if a consumer
// has already closed the stream. If a completion predicate is installed
// and reports true for e, Push also ends the stream with the extracted
// result after delivering e.
func (s *Stream[E, R]) Push(e E) error {
	select {
	case <-s.closed:
		return ErrClosed
	case s.events <- e:
	}
	if s.isComplete != nil && s.isComplete(e) {
		s.finish(s.extractResult(e), nil)
	}
	return nil
}

// End finalizes the stream successfully. Only the first End, Fail or
// completion event takes effect; later calls are no-ops. Pass one result
// value, or none to end with the zero R; use Fail to end with an error.
func (s *Stream[E, R]) End(result ...R) {
	var r R
	if len(result) > 0 {
		r = result[0]
	}
	s.finish(r, nil)
}

// Fail ends the stream with a terminal error instead of a result.
func (s *Stream[E, R]) Fail(err error) {
	var zero R
	s.finish(zero, err)
}

func (s *Stream[E, R]) finish(r R, err error) {
	s.once.Do(func() {
		s.result = r
		s.err = err
		close(s.done)
	})
}

// Range returns an iter.Seq that yields events as they are pushed, until
// the stream ends. Use in a for ... range loop: `for e := range s.Range() {
// ... }`. The loop terminates once the producer calls End/Fail (or a
// completion event fires) and all buffered events have been drained.
func (s *Stream[E, R]) Range() iter.Seq[E] {
	return func(yield func(E) bool) {
		for {
			select {
			case e, ok := <-s.events:
				if !ok {
					return
				}
				if !yield(e) {
					return
				}
			case <-s.done:
				// Drain any events already buffered before stopping.
				for {
					select {
					case e := <-s.events:
						if !yield(e) {
							return
						}
					default:
						return
					}
				}
			}
		}
	}
}

// Result blocks until the stream ends (via End, Fail, or a completion
// event) or ctx is cancelled, and returns the terminal result or error.
func (s *Stream[E, R]) Result(ctx context.Context) (R, error) {
	select {
	case <-s.done:
		return s.result, s.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Close signals the producer to stop pushing (Push returns ErrClosed
// thereafter). Consumers call this to abandon a stream early, e.g. on
// cancellation, without waiting for the producer to notice ctx.Done()
// itself.
func (s *Stream[E, R]) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}
