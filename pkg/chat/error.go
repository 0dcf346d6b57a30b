package chat

import (
	"errors"
	"fmt"
)

// ErrDone is the cause of the terminal state of a cleanly finished
// stream.
var ErrDone = errors.New("chat: done")

// ErrToolRounds is returned by RunTools when the model keeps calling
// tools past the round limit.
var ErrToolRounds = errors.New("chat: tool rounds exceeded")

func Done(stats Usage) *State {
	return &State{
		usage:  stats,
		status: StatusDone,
		err:    ErrDone,
	}
}

func Blocked(stats Usage, refusal string) *State {
	return &State{
		usage:  stats,
		status: StatusBlocked,
		err:    fmt.Errorf("chat: generate blocked: %s", refusal),
	}
}

func Truncated(stats Usage) *State {
	return &State{
		usage:  stats,
		status: StatusTruncated,
		err:    errors.New("chat: generate truncated"),
	}
}

func Error(stats Usage, err error) *State {
	return &State{
		usage:  stats,
		status: StatusError,
		err:    fmt.Errorf("chat: generate error: %w", err),
	}
}

// State is the terminal error of a Stream. It reports why generation
// stopped and how many tokens the round consumed.
type State struct {
	usage  Usage
	status Status
	err    error
}

func (ss State) Usage() Usage {
	return ss.usage
}

func (ss State) Status() Status {
	return ss.status
}

func (ss State) Unwrap() error {
	return ss.err
}

func (ss State) Error() string {
	switch ss.status {
	case StatusDone:
		return "chat: generate done"
	case StatusTruncated, StatusBlocked, StatusError:
		return ss.err.Error()
	default:
		return fmt.Sprintf("chat: unexpected stream status: %v", ss.status)
	}
}
