package simplerpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
)

type FruitService struct{}

func (f *FruitService) Apple() string {
	return "Apple"
}

func (f *FruitService) Banana() error {
	return nil
}

func (f *FruitService) Cherry() (string, error) {
	return "Cherry", nil
}

func (f *FruitService) Durian() error {
	return errors.New("durian failure")
}

type Pinger struct {
	PongService Service
}

func (f *Pinger) Ping() string {
	return "ping"
}

func (f *Pinger) PingPong() string {
	var pong string
	err := f.PongService.Call(context.Background(), &pong, "pong")
	if err != nil {
		return fmt.Sprintf("err: %s", err)
	}
	return "ping" + pong
}

type Ponger struct{}

func (b *Ponger) Pong() string {
	return "pong"
}

type Fib struct{}

func (f *Fib) Fibonacci(ctx context.Context, a int, b int, steps int) (int, error) {
	remote, err := CtxRemote(ctx)
	if err != nil {
		return 0, err
	}
	a, b = b, a+b
	if steps <= 0 {
		return b, nil
	}
	if err := remote.Call(ctx, &b, "fibonacci", a, b, steps-1); err != nil {
		return 0, err
	}
	return b, nil
}

// chanTransport is an in-memory Transport which preserves message
// boundaries, so that tests can inject malformed messages.
type chanTransport struct {
	in   <-chan []byte
	out  chan<- []byte
	once *sync.Once
	done chan struct{}
}

// chanPipe returns both ends of an in-memory connection. Closing either end
// closes both.
func chanPipe() (*chanTransport, *chanTransport) {
	a, b := make(chan []byte, 16), make(chan []byte, 16)
	once, done := &sync.Once{}, make(chan struct{})
	return &chanTransport{in: a, out: b, once: once, done: done},
		&chanTransport{in: b, out: a, once: once, done: done}
}

func (t *chanTransport) ReadMessage() ([]byte, error) {
	select {
	case msg := <-t.in:
		return msg, nil
	case <-t.done:
		return nil, io.EOF
	}
}

func (t *chanTransport) WriteMessage(msg []byte) error {
	select {
	case <-t.done:
		return io.ErrClosedPipe
	default:
	}
	select {
	case t.out <- append([]byte(nil), msg...):
		return nil
	case <-t.done:
		return io.ErrClosedPipe
	}
}

func (t *chanTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

// readEnvelope reads and decodes the next message from a raw transport end.
func readEnvelope(t *testing.T, tr Transport) *Envelope {
	t.Helper()
	raw, err := tr.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	msg, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	return msg
}

type failingTransport struct {
	err error
}

func (t failingTransport) ReadMessage() ([]byte, error) { return nil, t.err }
func (t failingTransport) WriteMessage([]byte) error    { return t.err }
func (t failingTransport) Close() error                 { return nil }

func assertEqualJSON(t *testing.T, a, b interface{}, format string, args ...interface{}) {
	t.Helper()

	aa, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	bb, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(aa, bb) {
		prefix := fmt.Sprintf(format, args...)
		t.Errorf(prefix+"\n   got: %q\n  want: %q", aa, bb)
	}
}
