package proxy

import (
	"log"
	"net"
	"sync/atomic"
	"time"
)

// NewObservers builds the per-direction observers for a freshly accepted
// session. Returning nil for either disables capture for that direction
// while forwarding continues unaffected.
type NewObservers func(sessionID int64) (clientToServer, serverToClient Observer)

// Server accepts connections on a listening socket and, for each one,
// dials RemoteAddr and relays bytes between the two through a Session.
type Server struct {
	Listener   net.Listener
	RemoteAddr string
	Observers  NewObservers
	Delay      time.Duration
	Logger     *log.Logger

	nextID int64
}

// NewServer returns a Server listening on listener, proxying to remoteAddr.
func NewServer(listener net.Listener, remoteAddr string, observers NewObservers) *Server {
	return &Server{
		Listener:   listener,
		RemoteAddr: remoteAddr,
		Observers:  observers,
		Logger:     log.Default(),
	}
}

// Serve accepts connections until the listener is closed or an
// unrecoverable accept error occurs.
func (s *Server) Serve() error {
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			return err
		}
		id := atomic.AddInt64(&s.nextID, 1)
		go s.handle(id, conn)
	}
}

func (s *Server) handle(id int64, local net.Conn) {
	s.Logger.Printf("session %d: accepted from %v", id, local.RemoteAddr())

	remote, err := net.Dial("tcp", s.RemoteAddr)
	if err != nil {
		s.Logger.Printf("session %d: connect to %s failed: %v", id, s.RemoteAddr, err)
		local.Close()
		return
	}
	s.Logger.Printf("session %d: connected to %v", id, remote.RemoteAddr())

	var clientToServer, serverToClient Observer
	if s.Observers != nil {
		clientToServer, serverToClient = s.Observers(id)
	}

	session := &Session{
		ID:             id,
		Local:          local,
		Remote:         remote,
		ClientToServer: clientToServer,
		ServerToClient: serverToClient,
		Delay:          s.Delay,
		Logger:         s.Logger,
	}
	session.Run()
}
