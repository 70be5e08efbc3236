package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of the message that describes it.
type Kind string

const (
	KindInvalidArguments   Kind = "INVALID_ARGUMENTS"
	KindConnectivity       Kind = "CONNECTIVITY_FAILURE"
	KindCorruptedInput     Kind = "CORRUPTED_INPUT"
	KindVehicleUnavailable Kind = "VEHICLE_UNAVAILABLE"
	KindPairingNotFound    Kind = "PAIRING_NOT_FOUND"
	KindInsufficientFunds  Kind = "INSUFFICIENT_FUNDS"
	KindProcedural         Kind = "PROCEDURAL_VIOLATION"
)

// Error is a classified failure. Err, when set, is the cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = kindText(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	// ErrInvalidArguments matches malformed identifiers, out of range coordinates and bad amounts.
	ErrInvalidArguments = &Error{Kind: KindInvalidArguments}

	// ErrConnectivity matches unreachable Bluetooth or server collaborators.
	ErrConnectivity = &Error{Kind: KindConnectivity}

	// ErrCorruptedInput matches unreadable QR images.
	ErrCorruptedInput = &Error{Kind: KindCorruptedInput}

	// ErrVehicleUnavailable matches vehicles that are not in the Available state.
	ErrVehicleUnavailable = &Error{Kind: KindVehicleUnavailable}

	// ErrPairingNotFound matches operations with no active vehicle or journey.
	ErrPairingNotFound = &Error{Kind: KindPairingNotFound}

	// ErrInsufficientFunds matches wallet balances below the requested amount.
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}

	// ErrProcedural matches out of sequence operations and failed invariant checks.
	ErrProcedural = &Error{Kind: KindProcedural}
)

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind, keeping it as the cause.
func Wrap(kind Kind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the outermost kind in err's chain, or "" if err is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func kindText(k Kind) string {
	switch k {
	case KindInvalidArguments:
		return "invalid arguments"
	case KindConnectivity:
		return "connectivity failure"
	case KindCorruptedInput:
		return "corrupted input"
	case KindVehicleUnavailable:
		return "vehicle not available"
	case KindPairingNotFound:
		return "pairing not found"
	case KindInsufficientFunds:
		return "insufficient funds"
	case KindProcedural:
		return "procedural violation"
	default:
		return "unknown error"
	}
}
