// Package proxy implements a transparent TCP man-in-the-middle: every byte
// received from one side is handed to that direction's parser/logger pair
// before being forwarded unchanged to the other side.
package proxy

import (
	"io"
	"log"
	"net"
	"sync"
	"time"
)

// State is a Session's position in its lifecycle.
type State int

const (
	Opening State = iota
	Connecting
	Relaying
	Draining
	Closed
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Connecting:
		return "connecting"
	case Relaying:
		return "relaying"
	case Draining:
		return "draining"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Observer receives every chunk of bytes read from one direction of a
// session, before those bytes are forwarded to the peer. An observer's own
// failure never stops forwarding; Session logs it and continues.
type Observer interface {
	Observe(data []byte) error
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(data []byte) error

func (f ObserverFunc) Observe(data []byte) error { return f(data) }

// Session is one accepted connection paired with its outbound connection to
// the fixed destination address, relaying bytes in both directions through
// a per-direction Observer.
type Session struct {
	ID int64

	Local  net.Conn
	Remote net.Conn

	ClientToServer Observer
	ServerToClient Observer

	// Delay, if positive, is an artificial per-chunk stall applied after a
	// chunk is observed and before it is forwarded, simulating network
	// latency without affecting byte ordering.
	Delay time.Duration

	Logger *log.Logger

	mu    sync.Mutex
	state State

	bytesLocalToRemote int64
	bytesRemoteToLocal int64
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the session to completion: relays both directions until
// either side reaches EOF or errors, drains the other direction, then
// closes both sockets. It blocks until the session reaches Closed.
func (s *Session) Run() {
	s.setState(Relaying)

	var wg sync.WaitGroup
	wg.Add(2)
	go s.pump(&wg, s.Local, s.Remote, s.ClientToServer, &s.bytesLocalToRemote, "local->remote")
	go s.pump(&wg, s.Remote, s.Local, s.ServerToClient, &s.bytesRemoteToLocal, "remote->local")
	wg.Wait()

	s.setState(Closed)
	s.Local.Close()
	s.Remote.Close()
	if s.Logger != nil {
		s.Logger.Printf("session %d closed: sent local2remote=%d remote2local=%d",
			s.ID, s.bytesLocalToRemote, s.bytesRemoteToLocal)
	}
}

// pump copies bytes from src to dst, calling observe on every chunk read
// before writing it onward. It returns once src reaches EOF or a read/write
// error occurs; the session as a whole moves to Draining at that point
// (signalled by the caller's WaitGroup bookkeeping in Run), and this side's
// destination is closed for writes so the peer observes EOF in turn.
func (s *Session) pump(wg *sync.WaitGroup, src, dst net.Conn, observe Observer, counter *int64, label string) {
	defer wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			if observe != nil {
				if obsErr := observe.Observe(chunk); obsErr != nil && s.Logger != nil {
					s.Logger.Printf("session %d: %s observer: %v", s.ID, label, obsErr)
				}
			}
			if s.Delay > 0 {
				time.Sleep(s.Delay)
			}
			if _, werr := dst.Write(chunk); werr != nil {
				if s.Logger != nil {
					s.Logger.Printf("session %d: %s write: %v", s.ID, label, werr)
				}
				return
			}
			*counter += int64(n)
		}
		if err != nil {
			if err != io.EOF && s.Logger != nil {
				s.Logger.Printf("session %d: %s read: %v", s.ID, label, err)
			}
			s.setState(Draining)
			if tc, ok := dst.(interface{ CloseWrite() error }); ok {
				tc.CloseWrite()
			}
			return
		}
	}
}
