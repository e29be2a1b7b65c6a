package domain

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies an external API failure. The orchestrator picks
// its recovery path from the kind, nothing else.
type FetchErrorKind int

const (
	// FetchTransient covers network failures and 5xx responses. Retried
	// with backoff up to a bounded attempt count.
	FetchTransient FetchErrorKind = iota
	// FetchQuotaExceeded means the shared daily quota is spent. Fatal for
	// the remaining work of the whole day, across all channels.
	FetchQuotaExceeded
	// FetchPermanent covers other 4xx responses and malformed channels.
	// Fails this channel's run only.
	FetchPermanent
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchTransient:
		return "transient"
	case FetchQuotaExceeded:
		return "quota_exceeded"
	case FetchPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// FetchError is a classified failure of one external API call.
type FetchError struct {
	Kind   FetchErrorKind
	Op     string
	Status int
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Kind, e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsQuotaExceeded reports whether err carries a quota-exhaustion
// classification anywhere in its chain.
func IsQuotaExceeded(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchQuotaExceeded
}

// IsPermanentFetch reports whether err is a permanent API failure.
func IsPermanentFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchPermanent
}

// IsTransientFetch reports whether err is retryable.
func IsTransientFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchTransient
}

// ErrAlreadyAttempted is returned by the run ledger when the
// (channel, kind, day) key already holds an attempt.
var ErrAlreadyAttempted = errors.New("run already attempted for this day")

// ErrRunFinalized is returned when finalize is called on a run that is
// already in a terminal state.
var ErrRunFinalized = errors.New("run is already finalized")

// ErrCacheMiss is returned by Cache.Get for an absent key.
var ErrCacheMiss = errors.New("cache: key not found")

// SchemaError indicates a contract violation with the external API or the
// storage layout that cannot be repaired locally. Process-fatal.
type SchemaError struct {
	Subject string
	Detail  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation on %s: %s", e.Subject, e.Detail)
}

// IsSchemaError reports whether err is a schema contract violation.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
