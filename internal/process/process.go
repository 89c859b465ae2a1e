package process

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cassian-io/taskmasterd/internal/metrics"
)

// Process is one OS child and its state machine, as described in spec.md
// §3–4.1. A Process is created, spawned, and eventually discarded by its
// owning Job; it never reaches across to sibling processes or to the JobSet.
type Process struct {
	mu   sync.Mutex
	spec Spec

	state State
	cmd   *exec.Cmd

	// reapPID is set by Kill() when the killed child might not yet have
	// been collected. Later ticks keep trying a non-blocking reap for it
	// even though the Process itself has already moved on to
	// Stopped(Stopped), so we don't leak a zombie for the life of the
	// daemon.
	reapPID int
}

// New builds a Process in its initial Stopped(Never) state. It does not
// spawn anything.
func New(spec Spec) *Process {
	return &Process{
		spec:  spec,
		state: State{Kind: KindStopped, Reason: ReasonNever},
	}
}

// Snapshot returns a copy of the current state, safe to read without
// racing concurrent Tick/Spawn/RequestStop/Kill calls.
func (p *Process) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Name is the process's "{job}-{replica}" identifier.
func (p *Process) Name() string { return p.spec.Name }

// Spawn execs the child. It is valid to call from any Stopped(_) state; the
// caller (Job) is responsible for not calling it on a Running Process.
func (p *Process) Spawn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spawnLocked(time.Now())
}

// Restart resets the retry counter and spawns, regardless of which Stopped
// reason the Process is currently in. Used by Job.Restart() (the `restart`
// command) for replicas that are not Running.
func (p *Process) Restart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Tries = 0
	metrics.IncRestart(p.spec.Name)
	p.spawnLocked(time.Now())
}

func (p *Process) spawnLocked(now time.Time) {
	cmd, err := p.buildCmd()
	if err == nil {
		var oldMask int
		if p.spec.Umask != nil {
			oldMask = syscall.Umask(*p.spec.Umask)
		}
		err = cmd.Start()
		if p.spec.Umask != nil {
			syscall.Umask(oldMask)
		}
	}
	if err != nil {
		p.recordFailedStartLocked(now)
		return
	}
	p.cmd = cmd
	next := State{
		Kind:       KindRunning,
		PID:        cmd.Process.Pid,
		Phase:      PhaseStarting,
		PhaseSince: now,
		Tries:      p.state.Tries,
	}
	p.recordTransition(p.state, next)
	p.state = next
}

func (p *Process) buildCmd() (*exec.Cmd, error) {
	if len(p.spec.Argv) == 0 {
		return nil, fmt.Errorf("process %s: empty argv", p.spec.Name)
	}
	cmd := exec.Command(p.spec.Argv[0], p.spec.Argv[1:]...)
	cmd.Dir = p.spec.WorkingDir
	cmd.Env = p.mergedEnv()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := openRedirect(p.spec.Stdout)
	if err != nil {
		return nil, err
	}
	stderr, err := openRedirect(p.spec.Stderr)
	if err != nil {
		return nil, err
	}
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if stderr != nil {
		cmd.Stderr = stderr
	}
	return cmd, nil
}

// recordTransition reports a label-to-label move to internal/metrics and
// logs it via slog.Info. The metrics calls are no-ops until
// metrics.Register has been called by the daemon; the log record is always
// emitted.
func (p *Process) recordTransition(from, to State) {
	if from.Label() == to.Label() {
		return
	}
	metrics.RecordStateTransition(p.spec.Name, from.Label(), to.Label())
	metrics.SetCurrentState(p.spec.Name, from.Label(), false)
	metrics.SetCurrentState(p.spec.Name, to.Label(), true)
	slog.Info("process state transition", "process", p.spec.Name, "from", from.Label(), "state", to.Label())
}

// mergedEnv composes the child's final environment: the daemon's own
// process environment, overlaid with this job's per-process Env overrides
// (spec.md §3's Process.Env), then resolves any ${VAR} reference in a value
// against that combined map. A reference to an unknown name is left as-is.
func (p *Process) mergedEnv() []string {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 && kv[:i] != "" {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range p.spec.Env {
		if k != "" {
			merged[k] = v
		}
	}

	out := make([]string, 0, len(merged))
	for k, v := range merged {
		out = append(out, k+"="+expandEnvRefs(v, merged))
	}
	return out
}

// expandEnvRefs replaces every ${NAME} occurrence in s with env[NAME].
func expandEnvRefs(s string, env map[string]string) string {
	for k, v := range env {
		s = strings.ReplaceAll(s, "${"+k+"}", v)
	}
	return s
}

func openRedirect(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open redirect %s: %w", path, err)
	}
	return f, nil
}

func (p *Process) recordFailedStartLocked(now time.Time) {
	tries := p.state.Tries + 1
	var next State
	if tries <= p.spec.StartRetries {
		next = State{Kind: KindStopped, Reason: ReasonBackoff, Tries: tries, Since: now}
	} else {
		next = State{Kind: KindStopped, Reason: ReasonFatal}
	}
	p.recordTransition(p.state, next)
	p.state = next
}

// RequestStop asks a Running process to stop by sending sig to its process
// group, or folds a queued stop into an already-Backoff Process. restartAfter
// records whether, once it actually exits, it should be spawned again.
func (p *Process) RequestStop(sig Signal, restartAfter bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state.Kind {
	case KindRunning:
		switch p.state.Phase {
		case PhaseStarting, PhaseUp:
			_ = syscall.Kill(-p.state.PID, syscall.Signal(sig))
			next := p.state
			next.Phase = PhaseStopping
			next.PhaseSince = time.Now()
			next.RestartAfter = restartAfter
			p.recordTransition(p.state, next)
			p.state = next
		case PhaseStopping:
			// already stopping; the first requested restart_after wins.
		default:
			panic("process: unhandled Phase in RequestStop()")
		}
	case KindStopped:
		if p.state.Reason == ReasonBackoff {
			next := State{Kind: KindStopped, Reason: ReasonStopped}
			p.recordTransition(p.state, next)
			p.state = next
		}
		// any other Stopped reason: no-op, nothing to stop.
	default:
		panic("process: unhandled Kind in RequestStop()")
	}
}

// Kill sends SIGKILL immediately and forces the state to Stopped(Stopped)
// without waiting for the child to actually be reaped; a later Tick keeps
// trying to collect it so it doesn't linger as a zombie for the rest of the
// daemon's life.
func (p *Process) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Kind == KindRunning {
		_ = syscall.Kill(-p.state.PID, syscall.SIGKILL)
		p.reapPID = p.state.PID
	}
	next := State{Kind: KindStopped, Reason: ReasonStopped}
	p.recordTransition(p.state, next)
	p.state = next
}

// Tick advances time-driven transitions: reaping an exited child,
// escalating a stuck stop to SIGKILL, promoting Starting to Up, and
// triggering auto-restart or backoff retries.
func (p *Process) Tick() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()

	if p.reapPID != 0 {
		if exited, _, _ := tryReap(p.reapPID); exited {
			p.reapPID = 0
		}
	}

	switch p.state.Kind {
	case KindRunning:
		return p.tickRunning(now)
	case KindStopped:
		p.tickStopped(now)
		return nil
	default:
		panic("process: unhandled Kind in Tick()")
	}
}

func (p *Process) tickRunning(now time.Time) error {
	exited, ws, err := tryReap(p.state.PID)
	if err != nil {
		return fmt.Errorf("process %s: reap pid %d: %w", p.spec.Name, p.state.PID, err)
	}
	if !exited {
		switch p.state.Phase {
		case PhaseStarting:
			if now.Sub(p.state.PhaseSince) >= p.spec.StartTime {
				next := p.state
				next.Phase = PhaseUp
				next.Tries = 0
				p.recordTransition(p.state, next)
				p.state = next
			}
		case PhaseStopping:
			if now.Sub(p.state.PhaseSince) >= p.spec.StopTime {
				_ = syscall.Kill(-p.state.PID, syscall.SIGKILL)
			}
		case PhaseUp:
			// nothing to do until it exits or is asked to stop
		default:
			panic("process: unhandled Phase in tickRunning()")
		}
		return nil
	}

	expected := classifyExit(ws, p.spec.ExitCodes)
	switch p.state.Phase {
	case PhaseStopping:
		restartAfter := p.state.RestartAfter
		next := State{Kind: KindStopped, Reason: ReasonStopped}
		p.recordTransition(p.state, next)
		p.state = next
		if restartAfter {
			p.state.Tries = 0
			metrics.IncRestart(p.spec.Name)
			p.spawnLocked(now)
		}
	case PhaseStarting:
		p.recordFailedStartLocked(now)
	case PhaseUp:
		var next State
		if expected {
			next = State{Kind: KindStopped, Reason: ReasonExited}
		} else {
			next = State{Kind: KindStopped, Reason: ReasonUnexpected}
		}
		p.recordTransition(p.state, next)
		p.state = next
	default:
		panic("process: unhandled Phase in tickRunning() exit branch")
	}
	return nil
}

func (p *Process) tickStopped(now time.Time) {
	switch p.state.Reason {
	case ReasonBackoff:
		if now.Sub(p.state.Since) >= time.Duration(p.state.Tries)*time.Second {
			p.spawnLocked(now)
		}
	case ReasonUnexpected:
		if p.spec.AutoRestart == AutoRestartAlways || p.spec.AutoRestart == AutoRestartOnUnexpected {
			metrics.IncRestart(p.spec.Name)
			p.spawnLocked(now)
		}
	case ReasonExited:
		if p.spec.AutoRestart == AutoRestartAlways {
			metrics.IncRestart(p.spec.Name)
			p.spawnLocked(now)
		}
	case ReasonFatal, ReasonStopped, ReasonNever:
		// terminal; only an explicit start/restart moves these forward.
	default:
		panic("process: unhandled Reason in tickStopped()")
	}
}

// StatusLine renders the one-line status a `status` reply shows for this
// process.
func (p *Process) StatusLine() string {
	s := p.Snapshot()
	now := time.Now()
	switch s.Kind {
	case KindRunning:
		switch s.Phase {
		case PhaseStarting:
			return fmt.Sprintf("%s STARTING tries=%d elapsed=%s", p.spec.Name, s.Tries, now.Sub(s.PhaseSince).Round(time.Second))
		case PhaseUp:
			return fmt.Sprintf("%s RUNNING pid=%d uptime=%s", p.spec.Name, s.PID, now.Sub(s.PhaseSince).Round(time.Second))
		case PhaseStopping:
			return fmt.Sprintf("%s STOPPING elapsed=%s", p.spec.Name, now.Sub(s.PhaseSince).Round(time.Second))
		default:
			panic("process: unhandled Phase in StatusLine()")
		}
	case KindStopped:
		if s.Reason == ReasonBackoff {
			return fmt.Sprintf("%s BACKOFF tries=%d elapsed=%s", p.spec.Name, s.Tries, now.Sub(s.Since).Round(time.Second))
		}
		return fmt.Sprintf("%s %s", p.spec.Name, s.Reason.label())
	default:
		panic("process: unhandled Kind in StatusLine()")
	}
}
