package simplerpc

import (
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPendingOldest(t *testing.T) {
	now := time.Now()
	pending := map[PendingKey]*pendingCall{
		{"a", 1}: {timestamp: now.Add(time.Second * 1)},
		{"a", 2}: {timestamp: now.Add(time.Second * 2)},
		{"b", 3}: {timestamp: now.Add(time.Second * 3)},
		{"a", 4}: {timestamp: now.Add(time.Second * 4)},
		{"b", 5}: {timestamp: now.Add(time.Second * 5)},
	}

	ids := []uint64{}
	for _, item := range pendingOldest(pending, 3) {
		ids = append(ids, item.key.ID)
	}

	if want, got := []uint64{1, 2, 3}, ids; !reflect.DeepEqual(got, want) {
		t.Errorf("got: %v; want: %v", got, want)
	}
}

func TestPendingResolve(t *testing.T) {
	p := NewPending(time.Minute)
	key := PendingKey{"conn", 1}

	var got json.RawMessage
	var rejected error
	p.Register(key, "echo",
		func(result json.RawMessage) { got = result },
		func(err error) { rejected = err },
	)
	if want, got := 1, p.Len(); got != want {
		t.Errorf("got: %d; want: %d", got, want)
	}

	if !p.Resolve(key, json.RawMessage("42")) {
		t.Error("first resolve should succeed")
	}
	if p.Resolve(key, json.RawMessage("43")) {
		t.Error("second resolve should be a no-op")
	}
	if p.Reject(key, errors.New("late")) {
		t.Error("reject after resolve should be a no-op")
	}
	if string(got) != "42" {
		t.Errorf("got: %s; want 42", got)
	}
	if rejected != nil {
		t.Errorf("unexpected rejection: %s", rejected)
	}
	if want, got := 0, p.Len(); got != want {
		t.Errorf("got: %d; want: %d", got, want)
	}
}

func TestPendingUnknown(t *testing.T) {
	p := &Pending{}
	if p.Resolve(PendingKey{"conn", 99}, nil) {
		t.Error("resolving an unknown id should return false")
	}
	if p.Reject(PendingKey{"conn", 99}, errors.New("nope")) {
		t.Error("rejecting an unknown id should return false")
	}
	if p.Remove(PendingKey{"conn", 99}) {
		t.Error("removing an unknown id should return false")
	}
}

func TestPendingTimeout(t *testing.T) {
	timeout := 50 * time.Millisecond
	p := NewPending(timeout)
	key := PendingKey{"conn", 1}

	errChan := make(chan error, 1)
	start := time.Now()
	p.Register(key, "slow", nil, func(err error) { errChan <- err })

	select {
	case err := <-errChan:
		elapsed := time.Since(start)
		if elapsed < timeout {
			t.Errorf("timed out too early: %s", elapsed)
		}
		var timeoutErr *TimeoutError
		if !errors.As(err, &timeoutErr) {
			t.Fatalf("expected TimeoutError, got: %v", err)
		}
		if timeoutErr.Namespace != "slow" {
			t.Errorf("wrong namespace in timeout: %q", timeoutErr.Namespace)
		}
	case <-time.After(timeout + time.Second):
		t.Fatal("call never timed out")
	}

	if p.Resolve(key, json.RawMessage("1")) {
		t.Error("resolve after timeout should be a no-op")
	}
}

func TestPendingSettlesOnce(t *testing.T) {
	p := NewPending(time.Millisecond)
	const numCalls = 200

	var settled int64
	for i := uint64(1); i <= numCalls; i++ {
		p.Register(PendingKey{"conn", i}, "race",
			func(json.RawMessage) { atomic.AddInt64(&settled, 1) },
			func(error) { atomic.AddInt64(&settled, 1) },
		)
	}

	// Race resolvers and rejecters against the timers
	var wg sync.WaitGroup
	var won int64
	for i := uint64(1); i <= numCalls; i++ {
		key := PendingKey{"conn", i}
		wg.Add(2)
		go func() {
			defer wg.Done()
			if p.Resolve(key, json.RawMessage("1")) {
				atomic.AddInt64(&won, 1)
			}
		}()
		go func() {
			defer wg.Done()
			if p.Reject(key, errors.New("rejected")) {
				atomic.AddInt64(&won, 1)
			}
		}()
	}
	wg.Wait()
	time.Sleep(50 * time.Millisecond)

	if got := atomic.LoadInt64(&settled); got != numCalls {
		t.Errorf("settled %d times; want %d", got, numCalls)
	}
	if got := atomic.LoadInt64(&won); got > numCalls {
		t.Errorf("%d explicit settlements for %d calls", got, numCalls)
	}
	if got := p.Len(); got != 0 {
		t.Errorf("got %d pending; want 0", got)
	}
}

func TestPendingRejectConn(t *testing.T) {
	p := NewPending(time.Minute)
	var mu sync.Mutex
	rejected := []uint64{}
	for _, key := range []PendingKey{{"a", 1}, {"b", 1}, {"a", 2}} {
		key := key
		p.Register(key, "wait", nil, func(err error) {
			if err != ErrClosed {
				t.Errorf("unexpected error: %v", err)
			}
			mu.Lock()
			rejected = append(rejected, key.ID)
			mu.Unlock()
		})
	}

	if got, want := p.RejectConn("a", ErrClosed), 2; got != want {
		t.Errorf("got: %d; want: %d", got, want)
	}
	sort.Slice(rejected, func(i, j int) bool { return rejected[i] < rejected[j] })
	if want := []uint64{1, 2}; !reflect.DeepEqual(rejected, want) {
		t.Errorf("got: %v; want: %v", rejected, want)
	}

	// Same id on another connection is untouched
	if !p.Resolve(PendingKey{"b", 1}, nil) {
		t.Error("call on connection b should still be pending")
	}
}

func TestPendingOverflow(t *testing.T) {
	p := &Pending{
		Timeout: time.Minute,
		Limit:   5,
		Discard: 3,
	}
	now := time.Now().Add(-time.Second * 100)

	var overflowed []uint64
	for i := uint64(1); i <= 5; i++ {
		id := i
		p.Register(PendingKey{"conn", id}, "wait", nil, func(err error) {
			if err == ErrPendingOverflow {
				overflowed = append(overflowed, id)
			}
		})
		// Make the order deterministic
		p.calls[PendingKey{"conn", id}].timestamp = now.Add(time.Second * time.Duration(id))
	}

	if want, got := 5, p.Len(); got != want {
		t.Errorf("got: %d; want: %d", got, want)
	}

	// Should trigger a cleanup of 3, add 1.
	p.Register(PendingKey{"conn", 6}, "wait", nil, nil)
	if want, got := 3, p.Len(); got != want {
		t.Errorf("got: %d; want: %d", got, want)
	}

	ids := []uint64{}
	for key := range p.calls {
		ids = append(ids, key.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if want, got := []uint64{4, 5, 6}, ids; !reflect.DeepEqual(got, want) {
		t.Errorf("got: %v; want %v", got, want)
	}
	sort.Slice(overflowed, func(i, j int) bool { return overflowed[i] < overflowed[j] })
	if want := []uint64{1, 2, 3}; !reflect.DeepEqual(overflowed, want) {
		t.Errorf("overflowed got: %v; want %v", overflowed, want)
	}
}
