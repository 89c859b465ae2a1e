package control

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cassian-io/taskmasterd/internal/config"
	"github.com/cassian-io/taskmasterd/internal/jobset"
)

// DefaultPeriod is the control loop's target iteration interval, per
// spec.md §5.
const DefaultPeriod = 100 * time.Millisecond

// Loop is the single-threaded supervision driver described in spec.md §4.4:
// each iteration polls the control socket for at most one request, ticks
// every Job's Process state machines, and sleeps out the remainder of the
// period. The only concurrency in the whole daemon is the signal-catching
// goroutine that flips Term/Reread from cmd/taskmasterd's main — the loop
// itself blocks only in its own rate limiter and while reading a request
// from, or writing a reply to, an accepted connection.
type Loop struct {
	Jobs   *jobset.JobSet
	Socket *Socket
	Log    *slog.Logger

	sleeper *Sleeper

	// Term and Reread are set by signal handlers (SIGTERM/SIGINT/SIGQUIT
	// and SIGHUP respectively) installed by the caller. They are checked
	// once per iteration.
	Term   atomic.Bool
	Reread atomic.Bool

	shutdownRequested atomic.Bool
}

// NewLoop builds a Loop ready to Run.
func NewLoop(jobs *jobset.JobSet, sock *Socket, log *slog.Logger) *Loop {
	return &Loop{Jobs: jobs, Socket: sock, Log: log, sleeper: NewSleeper(DefaultPeriod)}
}

// Run drives the control loop until Term is set or a `shutdown` command
// arrives, then stops every job and waits for them to actually exit before
// returning.
func (l *Loop) Run() {
	for !l.Term.Load() && !l.shutdownRequested.Load() {
		if l.Reread.CompareAndSwap(true, false) {
			l.reread()
		}

		if handled, err := l.Socket.Poll(l.handle); err != nil {
			l.Log.Error("control socket poll failed", "err", err)
		} else if handled {
			l.Log.Debug("handled control request")
		}

		if errs := l.Jobs.Tick(); len(errs) > 0 {
			for _, err := range errs {
				l.Log.Error("tick error", "err", err)
			}
		}

		l.sleeper.Sleep()
	}
	l.shutdown()
}

func (l *Loop) reread() {
	path, err := config.Resolve(l.Jobs.ConfigPath)
	if err != nil {
		l.Log.Error("reread: resolve config path failed", "err", err)
		return
	}
	programs, err := config.Load(path)
	if err != nil {
		l.Log.Error("reread: load config failed", "err", err)
		return
	}
	l.Jobs.Reload(programs)
	l.Log.Info("config reloaded", "path", path)
}

// shutdown stops every job and waits (still ticking, still rate-limited)
// until none of them are running, then closes the socket.
func (l *Loop) shutdown() {
	l.Log.Info("shutting down: stopping all jobs")
	l.Jobs.StopAll()
	for l.Jobs.AnyRunning() {
		l.Jobs.Tick()
		l.sleeper.Sleep()
	}
	if err := l.Socket.Close(); err != nil {
		l.Log.Error("close control socket", "err", err)
	}
}

func (l *Loop) handle(request string) string {
	req, err := ParseRequest(request)
	if err != nil {
		return err.Error()
	}
	switch req.Verb {
	case VerbStart:
		return l.Jobs.Start(req.Names)
	case VerbStop:
		return l.Jobs.Stop(req.Names)
	case VerbRestart:
		return l.Jobs.Restart(req.Names)
	case VerbStatus:
		return l.Jobs.Status(req.Names)
	case VerbReload:
		l.Reread.Store(true)
		return "reload scheduled"
	case VerbShutdown:
		l.shutdownRequested.Store(true)
		return "shutting down"
	default:
		return "unknown verb"
	}
}
