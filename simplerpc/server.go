package simplerpc

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Subprotocol is the application tag a connection must negotiate to be
// served, such as the websocket Sec-WebSocket-Protocol.
const Subprotocol = "simple-rpc"

// Server is a multi-connection peer. Every accepted connection shares the
// Server's Namespaces and one Pending registry, and has its own id space.
type Server struct {
	Namespaces
	emitter

	// Timeout for calls made to connected peers, DefaultTimeout when zero.
	Timeout time.Duration
	// PendingLimit and PendingDiscard configure Pending.Limit and
	// Pending.Discard of the shared registry. Changes to these and to
	// Timeout apply from the next accepted connection.
	PendingLimit   int
	PendingDiscard int
	// CallRate is the number of incoming calls per second each connection
	// may make, with bursts of up to CallBurst. Unlimited when zero.
	CallRate  float64
	CallBurst int

	mu      sync.Mutex
	pending *Pending
	remotes map[string]*Remote
}

// Accept initializes a transport as a peer if it negotiated Subprotocol.
// The returned Remote is not tracked or served, see ServeTransport.
func (s *Server) Accept(t Transport, subprotocol string) (*Remote, error) {
	if subprotocol != Subprotocol {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, subprotocol)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = &Pending{}
	}
	s.pending.configure(s.Timeout, s.PendingLimit, s.PendingDiscard)
	remote := &Remote{
		Transport:  t,
		Namespaces: &s.Namespaces,
		Pending:    s.pending,
		ID:         uuid.New().String(),
	}
	if s.CallRate > 0 {
		burst := s.CallBurst
		if burst < 1 {
			burst = 1
		}
		remote.Limiter = rate.NewLimiter(rate.Limit(s.CallRate), burst)
	}
	remote.init()
	return remote, nil
}

// ServeTransport accepts the transport and serves it until it is closed. A
// transport that did not negotiate Subprotocol is closed and
// ErrUnsupportedProtocol is returned.
func (s *Server) ServeTransport(t Transport, subprotocol string) error {
	remote, err := s.Accept(t, subprotocol)
	if err != nil {
		t.Close()
		s.emit(EventError, nil, err)
		return err
	}

	s.mu.Lock()
	if s.remotes == nil {
		s.remotes = map[string]*Remote{}
	}
	s.remotes[remote.ID] = remote
	s.mu.Unlock()

	logger.Debugf("%s: connection opened", remote.ID)
	s.emit(EventOpen, remote, nil)

	err = remote.Serve()
	remote.Close()

	s.mu.Lock()
	delete(s.remotes, remote.ID)
	s.mu.Unlock()

	logger.Debugf("%s: connection closed: %s", remote.ID, err)
	s.emit(EventClose, remote, err)
	return err
}

// Remotes returns the live connections, ordered by ID.
func (s *Server) Remotes() []*Remote {
	s.mu.Lock()
	remotes := make([]*Remote, 0, len(s.remotes))
	for _, r := range s.remotes {
		remotes = append(remotes, r)
	}
	s.mu.Unlock()
	sort.Slice(remotes, func(i, j int) bool { return remotes[i].ID < remotes[j].ID })
	return remotes
}

// Remote returns a live connection by ID.
func (s *Server) Remote(id string) (*Remote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.remotes[id]
	return r, ok
}

// Publish is reserved for broadcasts and does nothing.
func (s *Server) Publish(ctx context.Context, args ...interface{}) error {
	return nil
}

// Close closes every live connection.
func (s *Server) Close() error {
	var firstErr error
	for _, r := range s.Remotes() {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
