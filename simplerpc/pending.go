package simplerpc

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultTimeout is how long a call waits for its response.
const DefaultTimeout = 10 * time.Second

// PendingKey identifies an in-flight call. IDs are only unique within one
// connection, so the connection identity is part of the key.
type PendingKey struct {
	Conn string
	ID   uint64
}

func (k PendingKey) String() string {
	return fmt.Sprintf("%s/%d", k.Conn, k.ID)
}

type pendingCall struct {
	namespace string
	onResolve func(json.RawMessage)
	onReject  func(error)
	timer     *time.Timer
	timestamp time.Time
}

// Pending tracks calls awaiting a response. Every registered call is settled
// exactly once: by Resolve, by Reject, or by its timeout, whichever comes
// first. The others become no-ops.
type Pending struct {
	// Timeout is the time a call waits before it is rejected with a
	// *TimeoutError. DefaultTimeout is used when zero.
	Timeout time.Duration
	// Limit is the number of calls to hold before the oldest get discarded.
	Limit int
	// Discard is the number of oldest calls that get rejected when Limit is reached.
	Discard int

	mu    sync.Mutex
	calls map[PendingKey]*pendingCall
}

// NewPending returns a registry using the given timeout.
func NewPending(timeout time.Duration) *Pending {
	return &Pending{Timeout: timeout}
}

// configure replaces the settings used by later Register calls. Calls
// already registered keep their timers.
func (p *Pending) configure(timeout time.Duration, limit, discard int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Timeout = timeout
	p.Limit = limit
	p.Discard = discard
}

// timeout must hold the p.mu lock.
func (p *Pending) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

// Register adds a call and arms its timeout. Either continuation may be nil.
func (p *Pending) Register(key PendingKey, namespace string, onResolve func(json.RawMessage), onReject func(error)) {
	call := &pendingCall{
		namespace: namespace,
		onResolve: onResolve,
		onReject:  onReject,
		timestamp: time.Now(),
	}

	p.mu.Lock()
	after := p.timeout()
	if p.calls == nil {
		p.calls = map[PendingKey]*pendingCall{}
	}
	var evicted []*pendingCall
	if p.Limit > 0 && len(p.calls) >= p.Limit && p.Discard > 0 {
		evicted = p.discardOldest(p.Discard)
	}
	if old, ok := p.calls[key]; ok {
		delete(p.calls, key)
		evicted = append(evicted, old)
	}
	call.timer = time.AfterFunc(after, func() {
		if c := p.take(key, call); c != nil {
			c.reject(&TimeoutError{Namespace: namespace, After: after})
		}
	})
	p.calls[key] = call
	p.mu.Unlock()

	for _, c := range evicted {
		c.timer.Stop()
		c.reject(ErrPendingOverflow)
	}
}

// take removes and returns the entry for key, must not hold the p.mu lock.
// If want is non-nil, the entry is only removed if it is still want.
func (p *Pending) take(key PendingKey, want *pendingCall) *pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.calls[key]
	if !ok || (want != nil && c != want) {
		return nil
	}
	delete(p.calls, key)
	return c
}

// Resolve settles the call with a result. It returns false if the call is
// unknown, already settled or timed out.
func (p *Pending) Resolve(key PendingKey, result json.RawMessage) bool {
	c := p.take(key, nil)
	if c == nil {
		return false
	}
	c.timer.Stop()
	if c.onResolve != nil {
		c.onResolve(result)
	}
	return true
}

// Reject settles the call with an error. It returns false if the call is
// unknown, already settled or timed out.
func (p *Pending) Reject(key PendingKey, err error) bool {
	c := p.take(key, nil)
	if c == nil {
		return false
	}
	c.timer.Stop()
	c.reject(err)
	return true
}

// Remove drops a call without settling it, such as when sending it failed.
func (p *Pending) Remove(key PendingKey) bool {
	c := p.take(key, nil)
	if c == nil {
		return false
	}
	c.timer.Stop()
	return true
}

// RejectConn rejects every call pending on one connection and returns how
// many there were.
func (p *Pending) RejectConn(conn string, err error) int {
	p.mu.Lock()
	var rejected []*pendingCall
	for key, c := range p.calls {
		if key.Conn != conn {
			continue
		}
		delete(p.calls, key)
		rejected = append(rejected, c)
	}
	p.mu.Unlock()

	for _, c := range rejected {
		c.timer.Stop()
		c.reject(err)
	}
	return len(rejected)
}

// Len returns the number of calls awaiting a response.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// discardOldest removes num oldest entries, must hold the p.mu lock.
func (p *Pending) discardOldest(num int) []*pendingCall {
	var discarded []*pendingCall
	for _, item := range pendingOldest(p.calls, num) {
		discarded = append(discarded, p.calls[item.key])
		delete(p.calls, item.key)
	}
	return discarded
}

func (c *pendingCall) reject(err error) {
	if c.onReject != nil {
		c.onReject(err)
	}
}

type pendingItem struct {
	key       PendingKey
	timestamp time.Time
}

type pendingQueue []pendingItem

func (q pendingQueue) Len() int {
	return len(q)
}

func (q pendingQueue) Less(i, j int) bool {
	if q[i].timestamp.Equal(q[j].timestamp) {
		return q[i].key.ID < q[j].key.ID
	}
	return q[i].timestamp.Before(q[j].timestamp)
}

func (q pendingQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}

func pendingOldest(pending map[PendingKey]*pendingCall, num int) pendingQueue {
	if num > len(pending) {
		num = len(pending)
	}
	queue := make(pendingQueue, 0, len(pending))
	for key, c := range pending {
		queue = append(queue, pendingItem{
			key, c.timestamp,
		})
	}
	sort.Sort(queue)
	return queue[:num]
}
