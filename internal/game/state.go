package game

import (
	"errors"
	"fmt"
)

// State is the avatar's top-level activity. Exactly one holds at a time.
type State uint8

const (
	StateIdle State = iota
	StateMoving
	StateCasting
	StateStunned
	StateTrading
	StateCrafting
	StateDead
	stateCount
)

// ErrUnknownState is returned when a state value is outside the enum.
var ErrUnknownState = errors.New("game: unknown state")

var stateNames = [stateCount]string{
	StateIdle:     "IDLE",
	StateMoving:   "MOVING",
	StateCasting:  "CASTING",
	StateStunned:  "STUNNED",
	StateTrading:  "TRADING",
	StateCrafting: "CRAFTING",
	StateDead:     "DEAD",
}

func (s State) String() string {
	if s < stateCount {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool { return s < stateCount }

// ParseState is the inverse of String.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownState, name)
}

func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownState, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// stateSet is a bitmask of states a command is allowed in.
type stateSet uint8

func states(ss ...State) stateSet {
	var set stateSet
	for _, s := range ss {
		set |= 1 << s
	}
	return set
}

var anyState = stateSet(1<<stateCount - 1)

func (set stateSet) has(s State) bool { return s.Valid() && set&(1<<s) != 0 }
