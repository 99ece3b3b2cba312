package rox

import "sync/atomic"

// StateCode reports Core's lifecycle state (§4.13 "State codes exposed").
// Negative values are setup errors.
type StateCode int32

const (
	Uninitialized StateCode = 0
	SettingUp     StateCode = 1
	Initialized   StateCode = 2
	ShuttingDown  StateCode = 3

	ErrorInvalidAPIKey StateCode = -1
	ErrorSetupFailed   StateCode = -2
)

func (c StateCode) String() string {
	switch c {
	case Uninitialized:
		return "Uninitialized"
	case SettingUp:
		return "SettingUp"
	case Initialized:
		return "Initialized"
	case ShuttingDown:
		return "ShuttingDown"
	case ErrorInvalidAPIKey:
		return "ErrorInvalidAPIKey"
	case ErrorSetupFailed:
		return "ErrorSetupFailed"
	default:
		return "Unknown"
	}
}

type stateHolder struct {
	v atomic.Int32
}

func (h *stateHolder) set(s StateCode) { h.v.Store(int32(s)) }
func (h *stateHolder) get() StateCode  { return StateCode(h.v.Load()) }
