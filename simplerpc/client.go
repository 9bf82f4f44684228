package simplerpc

import (
	"context"
	"sync"
	"time"
)

// DialFunc opens a new Transport to the server.
type DialFunc func(ctx context.Context) (Transport, error)

const (
	defaultMinBackoff = 500 * time.Millisecond
	defaultMaxBackoff = 30 * time.Second
)

var _ Service = &Client{}

// Client is a single-connection peer. Namespaces registered on the Client
// survive reconnects; each new connection starts a fresh id space.
type Client struct {
	Namespaces
	emitter

	// Dial opens the connection, such as gorilla.Dial bound to a URL.
	Dial DialFunc
	// Timeout for calls, DefaultTimeout when zero. Changes apply from the
	// next connection.
	Timeout time.Duration
	// MinBackoff and MaxBackoff bound the delay between redials in Run.
	MinBackoff time.Duration
	MaxBackoff time.Duration

	mu      sync.Mutex
	pending *Pending
	remote  *Remote
}

// NewClient returns a Client which dials with dial.
func NewClient(dial DialFunc) *Client {
	return &Client{Dial: dial}
}

// Connect dials once and serves the connection in the background. It does
// not redial when the connection is lost; use Run for that.
func (c *Client) Connect(ctx context.Context) error {
	t, err := c.Dial(ctx)
	if err != nil {
		c.emit(EventError, nil, err)
		return err
	}
	remote := c.attach(t)
	go c.serve(remote)
	return nil
}

// Run dials and serves the connection, redialing with exponential backoff
// whenever it is lost, until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.minBackoff()
	for {
		t, err := c.Dial(ctx)
		if err == nil {
			remote := c.attach(t)
			stop := closeOnDone(ctx, t)
			err = c.serve(remote)
			stop()
			backoff = c.minBackoff()
		} else {
			c.emit(EventError, nil, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Infof("connection lost (%s), redialing in %s", err, backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if backoff *= 2; backoff > c.maxBackoff() {
			backoff = c.maxBackoff()
		}
	}
}

func (c *Client) minBackoff() time.Duration {
	if c.MinBackoff > 0 {
		return c.MinBackoff
	}
	return defaultMinBackoff
}

func (c *Client) maxBackoff() time.Duration {
	if c.MaxBackoff > 0 {
		return c.MaxBackoff
	}
	return defaultMaxBackoff
}

// closeOnDone closes t when ctx is done, until the returned stop is called.
func closeOnDone(ctx context.Context, t Transport) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t.Close()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func (c *Client) attach(t Transport) *Remote {
	c.mu.Lock()
	if c.pending == nil {
		c.pending = &Pending{}
	}
	c.pending.configure(c.Timeout, 0, 0)
	remote := &Remote{
		Transport:  t,
		Namespaces: &c.Namespaces,
		Pending:    c.pending,
	}
	remote.init()
	c.remote = remote
	c.mu.Unlock()

	c.emit(EventOpen, remote, nil)
	return remote
}

func (c *Client) serve(remote *Remote) error {
	err := remote.Serve()
	remote.Close()

	c.mu.Lock()
	if c.remote == remote {
		c.remote = nil
	}
	c.mu.Unlock()

	c.emit(EventClose, remote, err)
	return err
}

// Remote returns the live connection, or nil.
func (c *Client) Remote() *Remote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remote
}

// Call calls a namespace on the server. See Remote.Call.
func (c *Client) Call(ctx context.Context, result interface{}, namespace string, args ...interface{}) error {
	remote := c.Remote()
	if remote == nil {
		return ErrNotConnected
	}
	return remote.Call(ctx, result, namespace, args...)
}

// Signal signals a namespace on the server. See Remote.Signal.
func (c *Client) Signal(ctx context.Context, namespace string, args ...interface{}) error {
	remote := c.Remote()
	if remote == nil {
		return ErrNotConnected
	}
	return remote.Signal(ctx, namespace, args...)
}

// Publish is reserved for broadcasts and does nothing.
func (c *Client) Publish(ctx context.Context, args ...interface{}) error {
	return nil
}

// Close closes the live connection, if any. A running Run will redial
// unless its context is done.
func (c *Client) Close() error {
	remote := c.Remote()
	if remote == nil {
		return nil
	}
	return remote.Close()
}
