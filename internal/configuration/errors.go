package configuration

// ErrorCode is the error taxonomy carried by configuration-fetched events
// (§7).
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

// FetchError pairs an ErrorCode with the underlying cause, if any.
type FetchError struct {
	Code ErrorCode
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return e.Code.String() + ": " + e.Err.Error()
	}
	return e.Code.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

func newFetchError(code ErrorCode, err error) *FetchError {
	return &FetchError{Code: code, Err: err}
}
