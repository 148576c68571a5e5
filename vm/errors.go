package gvm

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel errors for guest-visible API misuse, distinct from the
// in-band ExceptionState mechanism the interpreter uses during execution.
var (
	ErrOutOfRange     = errors.New("gvm: address or index out of range")
	ErrMisaligned     = errors.New("gvm: address or size not page/alignment aligned")
	ErrTypeMismatch   = errors.New("gvm: region type mismatch")
	ErrZeroSize       = errors.New("gvm: zero-sized allocation or region")
	ErrAlreadyFreed   = errors.New("gvm: region already freed")
	ErrStackInvariant = errors.New("gvm: stack register violates its invariants")
)

// WrapHostError annotates a host-side (non guest-visible) failure with a
// stack trace. Used for CLI/API plumbing, never inside an opcode handler.
func WrapHostError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, msg)
}
