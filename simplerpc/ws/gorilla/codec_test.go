package gorilla

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vipnode/socketrpc/simplerpc"
)

func serve(t *testing.T, srv *simplerpc.Server) string {
	t.Helper()
	fallback := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not rpc", http.StatusTeapot)
	})
	ts := httptest.NewServer(WebsocketHandler(srv, fallback))
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestWebsocketCall(t *testing.T) {
	srv := &simplerpc.Server{}
	srv.RegisterFunc("echo", func(ctx context.Context, args ...interface{}) (interface{}, error) {
		return args[0], nil
	})
	url := serve(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := simplerpc.NewClient(Dialer(url))
	c.RegisterFunc("whoami", func(ctx context.Context, args ...interface{}) (interface{}, error) {
		return "gorilla client", nil
	})
	if err := c.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var got int
	if err := c.Call(ctx, &got, "echo", 42); err != nil {
		t.Fatal(err)
	}
	if got != 42 {
		t.Errorf("got: %d; want 42", got)
	}

	// And the other direction
	var remotes []*simplerpc.Remote
	for len(remotes) == 0 && ctx.Err() == nil {
		remotes = srv.Remotes()
		time.Sleep(5 * time.Millisecond)
	}
	if len(remotes) == 0 {
		t.Fatal("server has no connections")
	}
	var name string
	if err := remotes[0].Call(ctx, &name, "whoami"); err != nil {
		t.Fatal(err)
	}
	if name != "gorilla client" {
		t.Errorf("got: %q; want %q", name, "gorilla client")
	}
}

func TestWebsocketOtherProtocol(t *testing.T) {
	url := serve(t, &simplerpc.Server{})

	dialer := websocket.Dialer{Subprotocols: []string{"chat"}}
	_, resp, err := dialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusTeapot {
		t.Errorf("expected fallback handler response, got: %v", resp)
	}

	if _, err := Dial(context.Background(), url); err != nil {
		t.Errorf("simple-rpc dial failed: %s", err)
	}
}

func TestDialNoServer(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ts.Close()

	if _, err := Dial(context.Background(), url); err == nil {
		t.Fatal("expected dial error")
	} else if errors.Is(err, simplerpc.ErrUnsupportedProtocol) {
		t.Errorf("unexpected error kind: %s", err)
	}
}
