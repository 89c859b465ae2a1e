package process

import "syscall"

// tryReap performs a non-blocking wait on pid. The three return values
// mirror spec.md's Tick step 1: exited reports whether the child has
// terminated, ws is only meaningful when exited is true, and err is set for
// anything other than "no such child" (which is folded into exited=true,
// since losing the child this way only happens after Kill() already gave up
// on tracking it).
func tryReap(pid int) (exited bool, ws syscall.WaitStatus, err error) {
	wpid, werr := syscall.Wait4(pid, &ws, syscall.WNOHANG, nil)
	if werr != nil {
		if werr == syscall.ECHILD {
			return true, ws, nil
		}
		return false, ws, werr
	}
	if wpid == 0 {
		return false, ws, nil
	}
	return true, ws, nil
}

// classifyExit reports whether an observed exit counts as "expected" per
// spec.md §4.1: any signal-terminated exit is expected (the supervisor
// itself is usually the one that sent the signal), otherwise the exit code
// must be in the job's configured exitcodes set.
func classifyExit(ws syscall.WaitStatus, exitCodes map[int]bool) bool {
	if ws.Signaled() {
		return true
	}
	if ws.Exited() {
		return exitCodes[ws.ExitStatus()]
	}
	return false
}
