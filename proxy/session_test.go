package proxy

import (
	"net"
	"testing"
	"time"
)

func pipeConns(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	return a, b
}

func TestSessionForwardsBytesAndInvokesObservers(t *testing.T) {
	localApp, localProxySide := pipeConns(t)
	remoteProxySide, remoteApp := pipeConns(t)

	var seenC2S, seenS2C []byte
	s := &Session{
		ID:     1,
		Local:  localProxySide,
		Remote: remoteProxySide,
		ClientToServer: ObserverFunc(func(data []byte) error {
			seenC2S = append(seenC2S, data...)
			return nil
		}),
		ServerToClient: ObserverFunc(func(data []byte) error {
			seenS2C = append(seenS2C, data...)
			return nil
		}),
	}

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	go func() {
		localApp.Write([]byte("hello"))
		localApp.Close()
	}()

	buf := make([]byte, 16)
	n, _ := remoteApp.Read(buf)
	if string(buf[:n]) != "hello" {
		t.Fatalf("remote app saw %q, want %q", buf[:n], "hello")
	}
	remoteApp.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not close after both sides finished")
	}

	if string(seenC2S) != "hello" {
		t.Fatalf("client->server observer saw %q, want %q", seenC2S, "hello")
	}
	if s.State() != Closed {
		t.Fatalf("state = %v, want Closed", s.State())
	}
}
