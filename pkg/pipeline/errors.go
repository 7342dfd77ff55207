package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionTimeout is returned by Join when the connection does not
	// become ready in time.
	ErrConnectionTimeout = errors.New("voice connection timed out")
	// ErrConnectionError is returned by Join for any other connect failure.
	ErrConnectionError = errors.New("voice connection failed")
	// ErrNoSession is returned when no session exists for the guild.
	ErrNoSession = errors.New("no audio session for guild")
	// ErrSessionExists is returned by Join when the guild already has a
	// session or a join in flight.
	ErrSessionExists = errors.New("audio session already exists for guild")
	// ErrStreamStartFailure marks a pipeline or resource that could not be
	// started. It is handled internally by the reconnection path.
	ErrStreamStartFailure = errors.New("failed to start stream")
	// ErrReconnectExhausted marks a session that gave up restarting.
	ErrReconnectExhausted = errors.New("reconnection attempts exhausted")

	ErrInvalidConfig = errors.New("invalid pipeline configuration")
)

func errMissingDependency(name string) error {
	return fmt.Errorf("%w: missing %s", ErrInvalidConfig, name)
}
