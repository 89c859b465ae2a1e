package ctlclient

import (
	"net"
	"path/filepath"
	"testing"
	"time"
)

func TestSendWritesRequestAndReturnsReply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		n, _ := conn.Read(buf)
		if string(buf[:n]) != "start hello world" {
			t.Errorf("unexpected request %q", string(buf[:n]))
		}
		_, _ = conn.Write([]byte("job hello started\njob world started"))
	}()

	c := New(Config{SocketPath: path, Timeout: 2 * time.Second})
	reply, err := c.Send("start", "hello", "world")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := "job hello started\njob world started"
	if reply != want {
		t.Fatalf("expected reply %q, got %q", want, reply)
	}
}
