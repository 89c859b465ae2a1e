// Package ctlclient is a small client for taskmasterd's UNIX-domain control
// socket: write one request line, half-close, read the reply until the
// daemon closes its end. Styled after the teacher repo's own
// pkg/client.Client (a constructor taking a small Config, a single exported
// call per request), adapted from an HTTP+TLS transport to a local socket.
package ctlclient

import (
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// Config configures a Client.
type Config struct {
	// SocketPath is the path to taskmasterd's control socket.
	SocketPath string
	// Timeout bounds the whole request/reply round trip. Zero means no
	// timeout.
	Timeout time.Duration
}

// Client talks to a taskmasterd control socket.
type Client struct {
	cfg Config
}

// New builds a Client for the given configuration.
func New(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Send writes verb and args as one request line and returns the daemon's
// reply. args may be empty, meaning "all programs" for start/stop/restart
// /status.
func (c *Client) Send(verb string, args ...string) (string, error) {
	conn, err := net.Dial("unix", c.cfg.SocketPath)
	if err != nil {
		return "", fmt.Errorf("ctlclient: dial %s: %w", c.cfg.SocketPath, err)
	}
	defer conn.Close()

	if c.cfg.Timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
			return "", fmt.Errorf("ctlclient: set deadline: %w", err)
		}
	}

	request := verb
	if len(args) > 0 {
		request = verb + " " + strings.Join(args, " ")
	}
	if _, err := io.WriteString(conn, request); err != nil {
		return "", fmt.Errorf("ctlclient: write request: %w", err)
	}
	if uc, ok := conn.(*net.UnixConn); ok {
		if err := uc.CloseWrite(); err != nil {
			return "", fmt.Errorf("ctlclient: half-close: %w", err)
		}
	}

	reply, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("ctlclient: read reply: %w", err)
	}
	return string(reply), nil
}
