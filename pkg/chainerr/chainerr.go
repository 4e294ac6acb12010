// Package chainerr defines the single error taxonomy used across the chain,
// mempool, and network layers. Unlike the per-package sentinel errors
// elsewhere in this tree, consensus-facing failures all funnel through one
// enumerated Kind so callers can dispatch on cause without importing every
// producing package's error variables.
package chainerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the distinct reasons a consensus or network operation can fail.
type Kind int

const (
	// InvalidBlockLinkage means a block's previous_hash/height does not
	// connect to a known parent.
	InvalidBlockLinkage Kind = iota
	// InvalidProofOfWork means a block's header hash fails the difficulty predicate.
	InvalidProofOfWork
	// InvalidMerkleRoot means a block's declared merkle root does not match its transactions.
	InvalidMerkleRoot
	// InvalidTransaction means a transaction failed stateless or stateful validation.
	InvalidTransaction
	// TriangleNotFound means a referenced UTXO hash is absent from the state.
	TriangleNotFound
	// OrphanBlock means a block's parent is not yet known.
	OrphanBlock
	// NetworkError means a peer connection, framing, or protocol failure occurred.
	NetworkError
	// StoreError means the persistence backend failed to read or write.
	StoreError
	// CryptoError means a signature or key operation failed.
	CryptoError
)

func (k Kind) String() string {
	switch k {
	case InvalidBlockLinkage:
		return "invalid block linkage"
	case InvalidProofOfWork:
		return "invalid proof of work"
	case InvalidMerkleRoot:
		return "invalid merkle root"
	case InvalidTransaction:
		return "invalid transaction"
	case TriangleNotFound:
		return "triangle not found"
	case OrphanBlock:
		return "orphan block"
	case NetworkError:
		return "network error"
	case StoreError:
		return "store error"
	case CryptoError:
		return "crypto error"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type carrying a Kind, a human-readable detail,
// and an optional wrapped cause.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error of the given kind with a formatted detail message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping cause, with a formatted
// detail message.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a chainerr.Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
