package domain

import "fmt"

// CallState is the lifecycle state reported by the call transport.
type CallState string

const (
	CallStateIdle       CallState = "idle"
	CallStateConnecting CallState = "connecting"
	CallStateJoined     CallState = "joined"
	CallStateLeft       CallState = "left"
)

func ParseCallState(s string) (CallState, error) {
	switch state := CallState(s); state {
	case CallStateIdle, CallStateConnecting, CallStateJoined, CallStateLeft:
		return state, nil
	default:
		return "", fmt.Errorf("invalid call state: %s", s)
	}
}
