package control

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// Socket is a non-blocking UNIX-domain listener. Accept is polled once per
// control-loop iteration instead of blocking, per spec.md §4.5; grounded on
// original_source/taskmasterd/src/socket.rs's bind/non-blocking/accept
// shape, generalized from its single ack-echo reply into full
// request/reply dispatch.
type Socket struct {
	path     string
	listener *net.UnixListener
}

// NewSocket removes a stale socket file left over from an unclean exit and
// binds a fresh UNIX listener at path. The listener itself stays in
// blocking mode; Poll makes each accept non-blocking with an immediate
// deadline.
func NewSocket(path string) (*Socket, error) {
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("control: remove stale socket %s: %w", path, err)
		}
	}
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("control: resolve socket address %s: %w", path, err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("control: bind socket %s: %w", path, err)
	}
	return &Socket{path: path, listener: ln}, nil
}

// Poll accepts at most one pending connection, reads its full request
// (terminated by the client half-closing its write side), invokes handle,
// and writes the reply back before closing. It returns immediately with
// handled=false if no connection was waiting.
func (s *Socket) Poll(handle func(request string) string) (handled bool, err error) {
	if err := s.listener.SetDeadline(time.Now()); err != nil {
		return false, fmt.Errorf("control: set accept deadline: %w", err)
	}
	conn, acceptErr := s.listener.Accept()
	if acceptErr != nil {
		if ne, ok := acceptErr.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return false, fmt.Errorf("control: accept: %w", acceptErr)
	}
	defer conn.Close()

	req, err := io.ReadAll(conn)
	if err != nil {
		return false, fmt.Errorf("control: read request: %w", err)
	}
	reply := handle(string(req))
	if _, err := io.WriteString(conn, reply); err != nil {
		return false, fmt.Errorf("control: write reply: %w", err)
	}
	return true, nil
}

// Close closes the listener and removes the socket file.
func (s *Socket) Close() error {
	if err := s.listener.Close(); err != nil {
		return err
	}
	return os.Remove(s.path)
}
