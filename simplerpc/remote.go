package simplerpc

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Service represents a remote peer that can be called.
type Service interface {
	Call(ctx context.Context, result interface{}, namespace string, args ...interface{}) error
	Signal(ctx context.Context, namespace string, args ...interface{}) error
}

var _ Service = &Remote{}

// ServePipe sets up symmetric peers over a net.Pipe() and starts both in
// goroutines. Useful for testing. Namespaces still need to be registered.
func ServePipe() (*Remote, *Remote) {
	c1, c2 := net.Pipe()
	client := &Remote{
		Transport:  IOTransport(c1),
		Namespaces: &Namespaces{},
	}
	server := &Remote{
		Transport:  IOTransport(c2),
		Namespaces: &Namespaces{},
	}
	go server.Serve()
	go client.Serve()
	return server, client
}

// Remote is the message pump of one connection. It implements the Service
// interface, dispatches incoming calls to Namespaces and settles outgoing
// calls from the Pending registry.
//
// Namespaces and Pending may be shared between several Remotes, as long as
// each Remote has a distinct ID.
type Remote struct {
	// lastID is the id counter of outgoing calls on this connection.
	lastID uint64

	Transport
	Namespaces *Namespaces
	Pending    *Pending
	// ID identifies this connection within Pending. A random UUID is
	// assigned if empty.
	ID string
	// Limiter, if set, bounds the rate of incoming calls. Calls over the
	// limit are refused with ErrCodeRateLimited and signals are dropped.
	Limiter *rate.Limiter

	once sync.Once
}

func (r *Remote) init() {
	r.once.Do(func() {
		if r.Namespaces == nil {
			r.Namespaces = &Namespaces{}
		}
		if r.Pending == nil {
			r.Pending = &Pending{}
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
	})
}

func (r *Remote) nextID() uint64 {
	return atomic.AddUint64(&r.lastID, 1)
}

// Serve reads and routes incoming messages until the transport fails, and
// returns the read error (usually io.EOF). Calls still pending on this
// connection are rejected with ErrClosed.
func (r *Remote) Serve() error {
	r.init()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = context.WithValue(ctx, ctxRemote, r)

	var err error
	for err == nil {
		err = r.serveOne(ctx)
	}
	if n := r.Pending.RejectConn(r.ID, ErrClosed); n > 0 {
		logger.Debugf("%s: rejected %d pending calls on close", r.ID, n)
	}
	return err
}

func (r *Remote) serveOne(ctx context.Context) error {
	raw, err := r.Transport.ReadMessage()
	if err != nil {
		return err
	}
	msg, err := Decode(raw)
	if err != nil {
		logger.Debugf("%s: dropping message: %s", r.ID, err)
		return nil
	}
	switch msg.Type {
	case TypeCall:
		go r.handleCall(ctx, msg)
	case TypeResponse:
		r.handleResponse(msg)
	}
	return nil
}

func (r *Remote) handleCall(ctx context.Context, msg *Envelope) {
	var resp *Envelope
	if r.Limiter != nil && !r.Limiter.Allow() {
		logger.Debugf("%s: rate limited call to %q", r.ID, msg.Namespace)
		if msg.WantsResponse() {
			resp = responseFor(msg.ID, nil, errRateLimited)
		}
	} else {
		resp = r.Namespaces.Handle(ctx, msg)
	}
	if resp == nil {
		return
	}
	if err := r.send(resp); err != nil {
		logger.Warningf("%s: failed to respond to %q: %s", r.ID, msg.Namespace, err)
	}
}

func (r *Remote) handleResponse(msg *Envelope) {
	key := PendingKey{Conn: r.ID, ID: msg.ID}
	var ok bool
	if hasValue(msg.Error) {
		ok = r.Pending.Reject(key, parseErrResponse(msg.Error))
	} else {
		ok = r.Pending.Resolve(key, msg.Data)
	}
	if !ok {
		logger.Debugf("%s: ignoring response to unknown call %d", r.ID, msg.ID)
	}
}

func (r *Remote) send(msg *Envelope) error {
	raw, err := Encode(msg)
	if err != nil {
		return err
	}
	return r.Transport.WriteMessage(raw)
}

type settlement struct {
	result json.RawMessage
	err    error
}

// Call sends a call and waits for its response, which is unmarshalled into
// result (unless result is nil). It fails with a *TimeoutError if no
// response arrives within the Pending timeout, an *ErrResponse if the
// remote handler failed, or ctx.Err() if ctx ends first.
func (r *Remote) Call(ctx context.Context, result interface{}, namespace string, args ...interface{}) error {
	r.init()
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := newCall(r.nextID(), namespace, args)
	if err != nil {
		return err
	}
	raw, err := Encode(msg)
	if err != nil {
		return err
	}

	key := PendingKey{Conn: r.ID, ID: msg.ID}
	done := make(chan settlement, 1)
	r.Pending.Register(key, namespace,
		func(result json.RawMessage) { done <- settlement{result: result} },
		func(err error) { done <- settlement{err: err} },
	)
	if err := r.Transport.WriteMessage(raw); err != nil {
		r.Pending.Remove(key)
		return &SendError{Namespace: namespace, Err: err}
	}

	var s settlement
	select {
	case s = <-done:
	case <-ctx.Done():
		if r.Pending.Remove(key) {
			return ctx.Err()
		}
		// Settled concurrently, the continuation is on its way.
		s = <-done
	}
	if s.err != nil {
		return s.err
	}
	return unmarshalResult(s.result, result)
}

// Signal sends a call that does not request a response. It returns as soon
// as the transport accepted the message.
func (r *Remote) Signal(ctx context.Context, namespace string, args ...interface{}) error {
	r.init()
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := newCall(0, namespace, args)
	if err != nil {
		return err
	}
	raw, err := Encode(msg)
	if err != nil {
		return err
	}
	if err := r.Transport.WriteMessage(raw); err != nil {
		return &SendError{Namespace: namespace, Err: err}
	}
	return nil
}

// Publish is reserved for broadcasts and does nothing.
func (r *Remote) Publish(ctx context.Context, args ...interface{}) error {
	return nil
}

func unmarshalResult(raw json.RawMessage, result interface{}) error {
	if result == nil || !hasValue(raw) {
		// No result
		return nil
	}
	return json.Unmarshal(raw, result)
}
