// Package job implements the Job concept from spec.md §3–4.2: a named
// program definition together with its declared replica count, and the
// Process instances currently backing it.
package job

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cassian-io/taskmasterd/internal/process"
)

// Config is a job's declarative definition, decoded from the `programs:`
// map in the config file by internal/config. Field names and defaults
// follow original_source/taskmasterd/src/job/jobconfig/*.rs.
type Config struct {
	Cmd          string            `mapstructure:"cmd"`
	NumProcs     int               `mapstructure:"numprocs"`
	AutoStart    bool              `mapstructure:"autostart"`
	AutoRestart  string            `mapstructure:"autorestart"`
	ExitCodes    []int             `mapstructure:"exitcodes"`
	StartRetries int               `mapstructure:"startretries"`
	StartTime    int               `mapstructure:"starttime"` // seconds
	StopTime     int               `mapstructure:"stoptime"`  // seconds
	StopSignal   string            `mapstructure:"stopsignal"`
	Umask        string            `mapstructure:"umask"` // octal, e.g. "022"; empty = unset
	WorkingDir   string            `mapstructure:"workingdir"`
	Env          map[string]string `mapstructure:"env"`
	Stdout       string            `mapstructure:"stdout"`
	Stderr       string            `mapstructure:"stderr"`
}

// Defaults fills in the supervisord-style defaults for any field the config
// file left at its zero value.
func (c Config) Defaults() Config {
	if c.NumProcs == 0 {
		c.NumProcs = 1
	}
	if c.AutoRestart == "" {
		c.AutoRestart = string(process.AutoRestartOnUnexpected)
	}
	if c.ExitCodes == nil {
		c.ExitCodes = []int{0}
	}
	if c.StartRetries == 0 {
		c.StartRetries = 3
	}
	if c.StartTime == 0 {
		c.StartTime = 1
	}
	if c.StopTime == 0 {
		c.StopTime = 10
	}
	if c.StopSignal == "" {
		c.StopSignal = "TERM"
	}
	return c
}

// Validate reports a configuration error, per spec.md §7's Configuration
// error kind.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Cmd) == "" {
		return fmt.Errorf("job config: cmd is required")
	}
	if c.NumProcs < 1 {
		return fmt.Errorf("job config: numprocs must be >= 1, got %d", c.NumProcs)
	}
	switch c.AutoRestart {
	case string(process.AutoRestartNever), string(process.AutoRestartOnUnexpected), string(process.AutoRestartAlways):
	default:
		return fmt.Errorf("job config: invalid autorestart %q", c.AutoRestart)
	}
	if _, err := process.ParseSignal(c.StopSignal); err != nil {
		return err
	}
	if c.Umask != "" {
		if _, err := parseUmask(c.Umask); err != nil {
			return err
		}
	}
	return nil
}

func parseUmask(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(s, "%o", &v); err != nil {
		return 0, fmt.Errorf("job config: invalid umask %q: %w", s, err)
	}
	return v, nil
}

// Equal compares two configs for the purposes of JobSet.Reload's diff:
// process counts and every option that affects how replicas are spawned,
// but never anything about the live processes themselves (there are none
// stored on Config to begin with).
func (c Config) Equal(other Config) bool {
	if c.Cmd != other.Cmd ||
		c.NumProcs != other.NumProcs ||
		c.AutoStart != other.AutoStart ||
		c.AutoRestart != other.AutoRestart ||
		c.StartRetries != other.StartRetries ||
		c.StartTime != other.StartTime ||
		c.StopTime != other.StopTime ||
		c.StopSignal != other.StopSignal ||
		c.Umask != other.Umask ||
		c.WorkingDir != other.WorkingDir ||
		c.Stdout != other.Stdout ||
		c.Stderr != other.Stderr {
		return false
	}
	return intsEqual(c.ExitCodes, other.ExitCodes) && envEqual(c.Env, other.Env)
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := append([]int(nil), a...), append([]int(nil), b...)
	sort.Ints(sa)
	sort.Ints(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func envEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// toSpec builds the frozen process.Spec for replica index i of this job.
func (c Config) toSpec(jobName string, i int) (process.Spec, error) {
	sig, err := process.ParseSignal(c.StopSignal)
	if err != nil {
		return process.Spec{}, err
	}
	var umask *int
	if c.Umask != "" {
		v, err := parseUmask(c.Umask)
		if err != nil {
			return process.Spec{}, err
		}
		umask = &v
	}
	exitCodes := make(map[int]bool, len(c.ExitCodes))
	for _, code := range c.ExitCodes {
		exitCodes[code] = true
	}
	argv := strings.Fields(c.Cmd)
	if len(argv) == 0 {
		return process.Spec{}, fmt.Errorf("job %s: empty cmd", jobName)
	}
	return process.Spec{
		Name:         fmt.Sprintf("%s-%d", jobName, i),
		Argv:         argv,
		WorkingDir:   c.WorkingDir,
		Env:          c.Env,
		Stdout:       c.Stdout,
		Stderr:       c.Stderr,
		Umask:        umask,
		ExitCodes:    exitCodes,
		AutoRestart:  process.AutoRestart(c.AutoRestart),
		StartRetries: c.StartRetries,
		StartTime:    time.Duration(c.StartTime) * time.Second,
		StopTime:     time.Duration(c.StopTime) * time.Second,
		StopSignal:   sig,
	}, nil
}
