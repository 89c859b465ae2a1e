// Package jobset implements the top-level collection of Jobs, the
// start/stop/restart/status dispatch used by the control socket, and the
// config-diff reload algorithm described in spec.md §4.3.
package jobset

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cassian-io/taskmasterd/internal/job"
)

// pendingSwap records a Job that Reload has asked to stop before it can be
// removed (pure removal) or replaced with a freshly-configured instance
// (changed). It is resolved by Tick once the old Job is no longer running,
// so Reload itself never blocks the control loop waiting for children to
// exit.
type pendingSwap struct {
	name        string
	replacement *job.Job // nil means "just remove it"
}

// JobSet owns every configured Job and is the only thing the control loop
// and the control socket's command dispatcher touch.
type JobSet struct {
	mu         sync.Mutex
	jobs       map[string]*job.Job
	pending    []pendingSwap
	ConfigPath string
}

// New returns an empty JobSet.
func New() *JobSet {
	return &JobSet{jobs: map[string]*job.Job{}}
}

// LoadInitial populates the JobSet from a freshly-parsed config, for
// first-time startup (no diffing, no running jobs to disturb).
func (js *JobSet) LoadInitial(programs map[string]job.Config) {
	js.mu.Lock()
	defer js.mu.Unlock()
	for name, cfg := range programs {
		js.jobs[name] = job.New(name, cfg)
	}
}

// AutostartPass spawns every Job configured with autostart=true that has no
// processes running yet. It is called after LoadInitial and after every
// Reload, and is idempotent.
func (js *JobSet) AutostartPass() {
	js.mu.Lock()
	defer js.mu.Unlock()
	js.autostartLocked()
}

func (js *JobSet) autostartLocked() {
	for _, j := range js.jobs {
		if j.Config.AutoStart && !j.IsRunning() && len(j.Processes) == 0 {
			_ = j.Start()
		}
	}
}

// Tick advances every Job's Process state machines by one control-loop
// cycle, then resolves any pending reload swaps whose target Job has
// finished stopping.
func (js *JobSet) Tick() []error {
	js.mu.Lock()
	defer js.mu.Unlock()

	var errs []error
	for _, j := range js.jobs {
		errs = append(errs, j.Tick()...)
	}

	remaining := js.pending[:0]
	for _, sw := range js.pending {
		j, ok := js.jobs[sw.name]
		if ok && j.IsRunning() {
			remaining = append(remaining, sw)
			continue
		}
		if sw.replacement != nil {
			js.jobs[sw.name] = sw.replacement
		} else {
			delete(js.jobs, sw.name)
		}
	}
	js.pending = remaining

	js.autostartLocked()
	return errs
}

// names returns every job name currently held, used when a command targets
// "all" (an empty name list).
func (js *JobSet) names() []string {
	out := make([]string, 0, len(js.jobs))
	for n := range js.jobs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (js *JobSet) resolveTargets(names []string) (targets []*job.Job, missing []string) {
	if len(names) == 0 {
		names = js.names()
	}
	for _, n := range names {
		if j, ok := js.jobs[n]; ok {
			targets = append(targets, j)
		} else {
			missing = append(missing, n)
		}
	}
	return targets, missing
}

// Start dispatches `start` to the named jobs (or all, if names is empty).
func (js *JobSet) Start(names []string) string {
	js.mu.Lock()
	defer js.mu.Unlock()
	targets, missing := js.resolveTargets(names)
	var lines []string
	for _, m := range missing {
		lines = append(lines, fmt.Sprintf("job %s not found", m))
	}
	for _, j := range targets {
		if err := j.Start(); err != nil {
			lines = append(lines, err.Error())
		} else {
			lines = append(lines, fmt.Sprintf("job %s started", j.Name))
		}
	}
	return strings.Join(lines, "\n")
}

// Stop dispatches `stop` to the named jobs (or all, if names is empty).
func (js *JobSet) Stop(names []string) string {
	js.mu.Lock()
	defer js.mu.Unlock()
	targets, missing := js.resolveTargets(names)
	var lines []string
	for _, m := range missing {
		lines = append(lines, fmt.Sprintf("job %s not found", m))
	}
	for _, j := range targets {
		j.Stop()
		lines = append(lines, fmt.Sprintf("job %s stopped", j.Name))
	}
	return strings.Join(lines, "\n")
}

// Restart dispatches `restart` to the named jobs (or all, if names is empty).
func (js *JobSet) Restart(names []string) string {
	js.mu.Lock()
	defer js.mu.Unlock()
	targets, missing := js.resolveTargets(names)
	var lines []string
	for _, m := range missing {
		lines = append(lines, fmt.Sprintf("job %s not found", m))
	}
	for _, j := range targets {
		j.Restart()
		lines = append(lines, fmt.Sprintf("job %s restarted", j.Name))
	}
	return strings.Join(lines, "\n")
}

// Status dispatches `status` to the named jobs (or all, if names is empty).
func (js *JobSet) Status(names []string) string {
	js.mu.Lock()
	defer js.mu.Unlock()
	targets, missing := js.resolveTargets(names)
	var lines []string
	for _, m := range missing {
		lines = append(lines, fmt.Sprintf("job %s not found", m))
	}
	for _, j := range targets {
		lines = append(lines, j.Status())
	}
	return strings.Join(lines, "\n")
}

// StopAll requests every job to stop; used during daemon shutdown.
func (js *JobSet) StopAll() {
	js.mu.Lock()
	defer js.mu.Unlock()
	for _, j := range js.jobs {
		j.Stop()
	}
}

// AnyRunning reports whether any job still has a live process, used by the
// shutdown sequence to decide when it's safe to exit.
func (js *JobSet) AnyRunning() bool {
	js.mu.Lock()
	defer js.mu.Unlock()
	for _, j := range js.jobs {
		if j.IsRunning() {
			return true
		}
	}
	return false
}

// Reload computes the removed/added/changed diff between the current job
// set and a freshly-parsed candidate, per spec.md §4.3:
//  1. programs present now but absent from the candidate are stopped and
//     queued for removal;
//  2. programs present in both but with a changed Config are stopped and
//     queued to be replaced by a fresh Job once the old one is no longer
//     running;
//  3. programs new to the candidate are inserted immediately.
//
// Removal/replacement is asynchronous (resolved by Tick) rather than
// blocking here, since Reload runs on the same single-threaded control loop
// that also has to keep ticking every other job.
func (js *JobSet) Reload(programs map[string]job.Config) {
	js.mu.Lock()
	defer js.mu.Unlock()

	for name, current := range js.jobs {
		cfg, stillPresent := programs[name]
		switch {
		case !stillPresent:
			current.Stop()
			js.pending = append(js.pending, pendingSwap{name: name})
		case !current.Config.Equal(cfg):
			current.Stop()
			js.pending = append(js.pending, pendingSwap{name: name, replacement: job.New(name, cfg)})
		}
	}
	for name, cfg := range programs {
		if _, exists := js.jobs[name]; !exists {
			js.jobs[name] = job.New(name, cfg)
		}
	}
	js.autostartLocked()
}
