package process

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh/sleep on Unix-like systems")
	}
}

func testSpec(name string, argv []string) Spec {
	return Spec{
		Name:         name,
		Argv:         argv,
		ExitCodes:    map[int]bool{0: true},
		StartRetries: 2,
		StartTime:    50 * time.Millisecond,
		StopTime:     50 * time.Millisecond,
		StopSignal:   SIGTERM,
	}
}

func waitUntil(t *testing.T, p *Process, want Reason, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := p.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		s := p.Snapshot()
		if s.Kind == KindStopped && s.Reason == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for Reason=%d, last state=%+v", want, p.Snapshot())
}

func TestSpawnPromotesStartingToUp(t *testing.T) {
	requireUnix(t)
	p := New(testSpec("sleeper-0", []string{"sleep", "0.3"}))
	p.Spawn()
	if s := p.Snapshot(); !s.IsRunning() || s.Phase != PhaseStarting {
		t.Fatalf("expected Running/Starting right after spawn, got %+v", s)
	}
	time.Sleep(70 * time.Millisecond)
	if err := p.Tick(); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if s := p.Snapshot(); s.Phase != PhaseUp {
		t.Fatalf("expected Phase=Up after starttime elapsed, got %+v", s)
	}
	p.Kill()
}

func TestExitedWithConfiguredCodeIsExpected(t *testing.T) {
	requireUnix(t)
	p := New(testSpec("ok-0", []string{"sh", "-c", "sleep 0.1; exit 0"}))
	p.Spawn()
	waitUntil(t, p, ReasonExited, time.Second)
}

func TestUnexpectedExitGoesToUnexpected(t *testing.T) {
	requireUnix(t)
	p := New(testSpec("bad-0", []string{"sh", "-c", "sleep 0.1; exit 1"}))
	p.Spawn()
	waitUntil(t, p, ReasonUnexpected, time.Second)
}

func TestFailedSpawnExhaustsRetriesIntoFatal(t *testing.T) {
	requireUnix(t)
	spec := testSpec("missing-0", []string{"/no/such/executable"})
	spec.StartRetries = 1
	p := New(spec)
	p.Spawn()
	if s := p.Snapshot(); s.Kind != KindStopped || s.Reason != ReasonBackoff || s.Tries != 1 {
		t.Fatalf("expected Backoff tries=1 after first failed spawn, got %+v", s)
	}
	waitUntil(t, p, ReasonFatal, 2*time.Second)
}

func TestAutoRestartAlwaysRespawnsAfterExit(t *testing.T) {
	requireUnix(t)
	spec := testSpec("loop-0", []string{"sh", "-c", "sleep 0.1; exit 0"})
	spec.AutoRestart = AutoRestartAlways
	p := New(spec)
	p.Spawn()
	// First exit should be observed, then immediately respawned by tickStopped.
	deadline := time.Now().Add(time.Second)
	sawExit, sawRunningAgain := false, false
	for time.Now().Before(deadline) {
		if err := p.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if s := p.Snapshot(); !s.IsRunning() {
			sawExit = true
		} else if sawExit {
			sawRunningAgain = true
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !sawRunningAgain {
		t.Fatalf("expected at least one respawn under autorestart=always")
	}
	p.Kill()
}

func TestRequestStopSendsSignalAndEscalatesOnTimeout(t *testing.T) {
	requireUnix(t)
	spec := testSpec("stubborn-0", []string{"sh", "-c", "trap '' TERM; sleep 5"})
	spec.StopTime = 30 * time.Millisecond
	p := New(spec)
	p.Spawn()
	time.Sleep(10 * time.Millisecond)
	p.RequestStop(spec.StopSignal, false)
	waitUntil(t, p, ReasonStopped, 2*time.Second)
}

func TestStdoutRedirectTruncatesOnSpawn(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.log")
	if err := os.WriteFile(out, []byte("stale content\n"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	spec := testSpec("echoer-0", []string{"sh", "-c", "echo fresh; sleep 0.1"})
	spec.Stdout = out
	p := New(spec)
	p.Spawn()
	waitUntil(t, p, ReasonExited, time.Second)
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read redirect: %v", err)
	}
	if strings.Contains(string(b), "stale") || !strings.Contains(string(b), "fresh") {
		t.Fatalf("expected truncated redirect with only fresh output, got %q", string(b))
	}
}

func TestMergedEnvOverlaysSpecEnvOnOSEnv(t *testing.T) {
	t.Setenv("TASKMASTERD_TEST_BASE", "from-os")
	spec := testSpec("env-0", []string{"true"})
	spec.Env = map[string]string{"TASKMASTERD_TEST_OVERRIDE": "job-value"}
	p := New(spec)

	merged := p.mergedEnv()
	got := make(map[string]string, len(merged))
	for _, kv := range merged {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			got[kv[:i]] = kv[i+1:]
		}
	}
	if got["TASKMASTERD_TEST_BASE"] != "from-os" {
		t.Fatalf("expected OS env to be carried through, got %q", got["TASKMASTERD_TEST_BASE"])
	}
	if got["TASKMASTERD_TEST_OVERRIDE"] != "job-value" {
		t.Fatalf("expected spec.Env override present, got %q", got["TASKMASTERD_TEST_OVERRIDE"])
	}
}

func TestMergedEnvExpandsVarReferences(t *testing.T) {
	spec := testSpec("env-1", []string{"true"})
	spec.Env = map[string]string{
		"BASE_DIR": "/srv/app",
		"LOG_PATH": "${BASE_DIR}/out.log",
	}
	p := New(spec)

	merged := p.mergedEnv()
	var logPath string
	for _, kv := range merged {
		if strings.HasPrefix(kv, "LOG_PATH=") {
			logPath = strings.TrimPrefix(kv, "LOG_PATH=")
		}
	}
	if logPath != "/srv/app/out.log" {
		t.Fatalf("expected ${BASE_DIR} to expand, got %q", logPath)
	}
}

func TestKillForcesStoppedImmediately(t *testing.T) {
	requireUnix(t)
	p := New(testSpec("killme-0", []string{"sleep", "5"}))
	p.Spawn()
	p.Kill()
	if s := p.Snapshot(); s.Kind != KindStopped || s.Reason != ReasonStopped {
		t.Fatalf("expected immediate Stopped(Stopped) after Kill, got %+v", s)
	}
}
