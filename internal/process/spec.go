// Package process implements the per-process state machine: spawning,
// signalling, non-blocking reaping, and the timed transitions between
// Starting, Up, Stopping, Backoff, and the terminal Stopped reasons.
package process

import "time"

// AutoRestart selects when a Process is automatically respawned after it
// stops on its own (as opposed to an explicit operator stop/restart).
type AutoRestart string

const (
	AutoRestartNever        AutoRestart = "never"
	AutoRestartOnUnexpected AutoRestart = "on-unexpected"
	AutoRestartAlways       AutoRestart = "always"
)

// Spec is the frozen configuration snapshot a Process is spawned with. It is
// copied out of a Job's Config at spawn time and never mutated afterward, so
// an in-flight reload cannot change the policy governing a running replica.
type Spec struct {
	Name string // "{job}-{replica_index}"

	Argv       []string
	WorkingDir string
	Env        map[string]string // overlaid onto the daemon's own environment

	Stdout string // truncated-on-open redirect path, empty = inherit
	Stderr string

	Umask *int // octal umask applied around fork, nil = don't touch

	ExitCodes    map[int]bool
	AutoRestart  AutoRestart
	StartRetries int
	StartTime    time.Duration
	StopTime     time.Duration
	StopSignal   Signal
}
