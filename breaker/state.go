package breaker

import (
	"fmt"
	"strings"
)

// State 熔断器状态
type State int

const (
	// StateClosed 关闭（正常）
	StateClosed State = iota

	// StateOpen 打开（熔断）
	StateOpen

	// StateHalfOpen 半开（探测恢复）
	StateHalfOpen
)

// String returns CLOSED, OPEN or HALF_OPEN
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the state name, case insensitive
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState parses CLOSED, OPEN or HALF_OPEN
func ParseState(name string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CLOSED":
		return StateClosed, nil
	case "OPEN":
		return StateOpen, nil
	case "HALF_OPEN", "HALF-OPEN":
		return StateHalfOpen, nil
	default:
		return StateClosed, fmt.Errorf("unknown breaker state %q", name)
	}
}
