package agentruntime

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request or message failed validation.
	ErrValidation = errors.New("validation error")

	// ErrStreamNotReady indicates Message() was called before Next().
	ErrStreamNotReady = errors.New("stream not ready: call Next() first")

	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream closed")

	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")

	// ErrUnknownAPI indicates no adapter is registered for a model's api tag.
	ErrUnknownAPI = errors.New("unknown api")

	// ErrAlreadyStreaming indicates Prompt or Continue was called while an
	// activation is already in flight, violating the single-flight invariant.
	ErrAlreadyStreaming = errors.New("activation already in progress")

	// ErrCannotContinue indicates Continue was called when no continuation is
	// legal: history is empty, or the last message is an assistant message
	// with both the steering and follow-up queues empty.
	ErrCannotContinue = errors.New("cannot continue")
)
