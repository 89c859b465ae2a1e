package control

import (
	"fmt"
	"strings"
)

// Verb is one of the six recognized control-socket commands, grounded on
// original_source/taskmasterd/src/listener.rs's Action enum.
type Verb string

const (
	VerbStart    Verb = "start"
	VerbStop     Verb = "stop"
	VerbRestart  Verb = "restart"
	VerbStatus   Verb = "status"
	VerbReload   Verb = "reload"
	VerbShutdown Verb = "shutdown"
)

// Request is a parsed control-socket line: a verb plus zero or more target
// job names (empty means "all", except for reload/shutdown which ignore
// any names given).
type Request struct {
	Verb  Verb
	Names []string
}

// ParseRequest parses "VERB [name ...]", matching spec.md §6's wire format.
func ParseRequest(line string) (Request, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return Request{}, fmt.Errorf("control: empty request")
	}
	verb := Verb(strings.ToLower(fields[0]))
	switch verb {
	case VerbStart, VerbStop, VerbRestart, VerbStatus, VerbReload, VerbShutdown:
		return Request{Verb: verb, Names: fields[1:]}, nil
	default:
		return Request{}, fmt.Errorf("control: unknown verb %q", fields[0])
	}
}
