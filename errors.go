package rox

import "github.com/rollout/rox-go/internal/configuration"

// ErrorCode mirrors the configuration-fetch error taxonomy of §7, exported
// as its own type so callers outside this module never need to reference
// an internal package to inspect an *Error's Code.
type ErrorCode int

const (
	NoError ErrorCode = iota
	CorruptedJSON
	EmptyJSON
	SignatureVerificationError
	NetworkError
	MismatchAppKey
	UnknownError
)

func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "NoError"
	case CorruptedJSON:
		return "CorruptedJson"
	case EmptyJSON:
		return "EmptyJson"
	case SignatureVerificationError:
		return "SignatureVerificationError"
	case NetworkError:
		return "NetworkError"
	case MismatchAppKey:
		return "MismatchAppKey"
	default:
		return "UnknownError"
	}
}

func errorCodeFromFetch(code configuration.ErrorCode) ErrorCode {
	switch code {
	case configuration.NoError:
		return NoError
	case configuration.CorruptedJSON:
		return CorruptedJSON
	case configuration.EmptyJSON:
		return EmptyJSON
	case configuration.SignatureVerificationError:
		return SignatureVerificationError
	case configuration.NetworkError:
		return NetworkError
	case configuration.MismatchAppKey:
		return MismatchAppKey
	default:
		return UnknownError
	}
}

// Error is the small sentinel-style error type propagated setup, parser,
// and network faults wrap themselves in (§7 FULL).
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code.String() + ": " + e.Err.Error()
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, err error) *Error {
	return &Error{Code: code, Err: err}
}
