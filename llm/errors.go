package llm

import "errors"

// Providers wrap request failures with one of these sentinels so the
// orchestrator can pick a retry policy without knowing provider internals.
var (
	// ErrTransient marks failures worth retrying: timeouts, connection
	// resets, rate limits, 5xx responses.
	ErrTransient = errors.New("llm: transient backend error")

	// ErrPermanent marks failures that will not succeed on retry: bad
	// credentials, exhausted quota, malformed requests.
	ErrPermanent = errors.New("llm: permanent backend error")
)

func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

func IsPermanent(err error) bool { return errors.Is(err, ErrPermanent) }
