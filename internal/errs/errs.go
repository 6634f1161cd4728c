// Package errs holds the error kinds a bot run can fail with.
//
// Kinds are cockroachdb/errors marks: wrap freely, then classify with
// errors.Is against the sentinel. Context added by Wrap is kept in the
// message; hints are shown to the operator by the CLI.
package errs

import (
	crdb "github.com/cockroachdb/errors"
)

var (
	// ErrConfiguration: malformed or missing config or persisted state.
	// Always detected before any side effect.
	ErrConfiguration = crdb.New("configuration error")
	// ErrTransientProvider: network or API failure of a provider call.
	// Not retried; the next scheduled run tries again.
	ErrTransientProvider = crdb.New("transient provider error")
	// ErrRandomSource: the random source failed. Fatal.
	ErrRandomSource = crdb.New("random source error")
)

var (
	New   = crdb.New
	Newf  = crdb.Newf
	Wrap  = crdb.Wrap
	Wrapf = crdb.Wrapf
	Is    = crdb.Is
	As    = crdb.As

	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	FlattenHints = crdb.FlattenHints
)

// Configuration marks err as a configuration error.
func Configuration(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.Wrapf(err, format, args...), ErrConfiguration)
}

// Transient marks err as a transient provider error.
func Transient(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.Wrapf(err, format, args...), ErrTransientProvider)
}

// RandomSource marks err as a random source failure.
func RandomSource(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(crdb.Wrapf(err, format, args...), ErrRandomSource)
}

// Kind returns a short label for logs and the audit trail.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case crdb.Is(err, ErrConfiguration):
		return "configuration"
	case crdb.Is(err, ErrRandomSource):
		return "random-source"
	case crdb.Is(err, ErrTransientProvider):
		return "transient-provider"
	default:
		return "internal"
	}
}
