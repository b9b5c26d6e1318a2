package common

import "errors"

// Pipeline error classes. Wrap with fmt.Errorf("...: %w", ErrX) and test with errors.Is.
var (
	// ErrSourceUnavailable means a fetch failed or timed out; the section degrades to a notice.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNotApplicable means the section does not apply to the entity and is omitted.
	ErrNotApplicable = errors.New("not applicable")

	// ErrMalformedData marks an unexpected shape from a source; the field or concept is treated as absent.
	ErrMalformedData = errors.New("malformed data")

	// ErrDispatchFailure means the messaging boundary rejected a payload.
	ErrDispatchFailure = errors.New("dispatch failure")

	// ErrNarrativeFailure means the narrative service could not produce text.
	ErrNarrativeFailure = errors.New("narrative service failure")
)
