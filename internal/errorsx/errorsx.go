package errorsx

import (
	"context"
	"errors"
	"fmt"
)

// KindedError wraps an error with a kind.
type KindedError struct {
	Err  error
	Kind Kind
}

func (e KindedError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e KindedError) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) error {
	return KindedError{Err: fmt.Errorf(format, args...), Kind: kind}
}

// Wrap attaches a kind to an error (no-op if err is nil or already has a kind).
func Wrap(err error, kind Kind) error {
	if err == nil {
		return nil
	}
	var ke KindedError
	if errors.As(err, &ke) {
		return err
	}
	return KindedError{Err: err, Kind: kind}
}

// KindOf extracts the kind from err. Context deadline errors without an explicit
// kind are reported as timeouts.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ke KindedError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// CapabilityError marks an error raised by an external capability (model, news).
type CapabilityError struct {
	Err        error
	Capability string
}

func (e CapabilityError) Error() string {
	return e.Err.Error()
}

func (e CapabilityError) Unwrap() error {
	return e.Err
}

// Capability attaches the capability name to err and tags it with kind unless a kind is already present.
func Capability(err error, capability string, kind Kind) error {
	if err == nil {
		return nil
	}
	return CapabilityError{Err: Wrap(err, kind), Capability: capability}
}

// CapabilityOf returns the capability attached to err, if any.
func CapabilityOf(err error) string {
	var ce CapabilityError
	if errors.As(err, &ce) {
		return ce.Capability
	}
	return ""
}
