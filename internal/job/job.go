package job

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/cassian-io/taskmasterd/internal/process"
)

// Job is a named program definition plus the Process instances currently
// backing its replicas, per spec.md §3–4.2.
type Job struct {
	Name      string
	Config    Config
	Processes []*process.Process
}

// New builds a Job with no processes yet; Start (or AutoStart via JobSet)
// creates them.
func New(name string, cfg Config) *Job {
	return &Job{Name: name, Config: cfg.Defaults()}
}

// IsRunning reports whether any replica currently has a live child.
func (j *Job) IsRunning() bool {
	for _, p := range j.Processes {
		if p.Snapshot().IsRunning() {
			return true
		}
	}
	return false
}

// Start rejects a call against an already-running Job (non-fatal: the
// caller reports it and moves on), otherwise replaces Processes with
// exactly NumProcs freshly spawned instances, per spec.md §4.2.
func (j *Job) Start() error {
	if j.IsRunning() {
		return fmt.Errorf("job %s: already running", j.Name)
	}
	procs := make([]*process.Process, 0, j.Config.NumProcs)
	for i := 0; i < j.Config.NumProcs; i++ {
		spec, err := j.Config.toSpec(j.Name, i)
		if err != nil {
			return err
		}
		p := process.New(spec)
		p.Spawn()
		procs = append(procs, p)
	}
	j.Processes = procs
	slog.Info("job started", "job", j.Name, "numprocs", j.Config.NumProcs)
	return nil
}

// Stop requests every replica to stop via the job's configured stop signal,
// without asking for a restart afterward.
func (j *Job) Stop() {
	slog.Info("job stopping", "job", j.Name)
	sig, _ := process.ParseSignal(j.Config.StopSignal)
	for _, p := range j.Processes {
		p.RequestStop(sig, false)
	}
}

// Restart asks Running replicas to stop-then-respawn, and spawns any
// non-Running replica immediately (resetting its retry counter), per
// spec.md §4.2 and the Open Question decision recorded in DESIGN.md.
func (j *Job) Restart() {
	sig, _ := process.ParseSignal(j.Config.StopSignal)
	for _, p := range j.Processes {
		if p.Snapshot().IsRunning() {
			p.RequestStop(sig, true)
		} else {
			p.Restart()
		}
	}
}

// Tick advances every replica's state machine by one control-loop tick.
func (j *Job) Tick() []error {
	var errs []error
	for _, p := range j.Processes {
		if err := p.Tick(); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", j.Name, err))
		}
	}
	return errs
}

// Status renders one status line per configured replica slot, newline
// joined. A slot that has never been spawned (no Process instance yet, e.g.
// an autostart=false job before its first `start`) is reported STOPPED,
// matching spec.md §8 scenario 6.
func (j *Job) Status() string {
	lines := make([]string, 0, j.Config.NumProcs)
	for i := 0; i < j.Config.NumProcs; i++ {
		if i < len(j.Processes) {
			lines = append(lines, j.Processes[i].StatusLine())
			continue
		}
		lines = append(lines, fmt.Sprintf("%s-%d STOPPED", j.Name, i))
	}
	return strings.Join(lines, "\n")
}
