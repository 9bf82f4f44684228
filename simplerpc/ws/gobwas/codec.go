package gobwas

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/vipnode/socketrpc/simplerpc"
	rpcws "github.com/vipnode/socketrpc/simplerpc/ws"
)

// Dial opens a client-side websocket transport which negotiated the
// simple-rpc sub-protocol.
func Dial(ctx context.Context, url string) (simplerpc.Transport, error) {
	dialer := ws.Dialer{
		Protocols: []string{simplerpc.Subprotocol},
	}
	conn, br, hs, err := dialer.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	if hs.Protocol != simplerpc.Subprotocol {
		conn.Close()
		return nil, fmt.Errorf("%w: server chose %q", simplerpc.ErrUnsupportedProtocol, hs.Protocol)
	}
	return newTransport(conn, br, ws.StateClientSide), nil
}

// Dialer returns a DialFunc for a simplerpc.Client.
func Dialer(url string) simplerpc.DialFunc {
	return func(ctx context.Context) (simplerpc.Transport, error) {
		return Dial(ctx, url)
	}
}

// newTransport wraps conn. Frames already buffered in br during the
// handshake are read first.
func newTransport(conn net.Conn, br *bufio.Reader, state ws.State) *wsTransport {
	t := &wsTransport{
		conn:  conn,
		state: state,
	}
	var r io.Reader = conn
	if br != nil && br.Buffered() > 0 {
		r = io.MultiReader(io.LimitReader(br, int64(br.Buffered())), conn)
	}
	t.rw = struct {
		io.Reader
		io.Writer
	}{r, lockedWriter{&t.muWrite, conn}}
	return t
}

var _ simplerpc.Transport = &wsTransport{}

type wsTransport struct {
	muWrite sync.Mutex
	muRead  sync.Mutex
	conn    net.Conn
	rw      io.ReadWriter
	state   ws.State
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	t.muRead.Lock()
	defer t.muRead.Unlock()

	var msg []byte
	var err error
	if t.state == ws.StateServerSide {
		msg, _, err = wsutil.ReadClientData(t.rw)
	} else {
		msg, _, err = wsutil.ReadServerData(t.rw)
	}
	if _, ok := err.(wsutil.ClosedError); ok {
		return nil, io.EOF
	}
	return msg, err
}

func (t *wsTransport) WriteMessage(msg []byte) error {
	t.muWrite.Lock()
	defer t.muWrite.Unlock()
	if t.state == ws.StateServerSide {
		return wsutil.WriteServerMessage(t.conn, ws.OpText, msg)
	}
	return wsutil.WriteClientMessage(t.conn, ws.OpText, msg)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// lockedWriter serializes control frame replies with WriteMessage.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (lw lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

var _ rpcws.Upgrader = &Upgrader{}

// Upgrader upgrades an HTTP request to a websocket connection, accepting
// only the simple-rpc sub-protocol.
type Upgrader struct {
	Upgrader ws.HTTPUpgrader
}

func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (simplerpc.Transport, string, error) {
	upgrader := u.Upgrader
	upgrader.Protocol = func(p string) bool {
		return p == simplerpc.Subprotocol
	}
	conn, rw, hs, err := upgrader.Upgrade(r, w)
	if err != nil {
		return nil, "", err
	}
	var br *bufio.Reader
	if rw != nil {
		br = rw.Reader
	}
	return newTransport(conn, br, ws.StateServerSide), hs.Protocol, nil
}

// WebsocketHandler serves simple-rpc websocket connections on srv, passing
// other requests to fallback.
func WebsocketHandler(srv *simplerpc.Server, fallback http.Handler) http.HandlerFunc {
	return rpcws.Handler(srv, &Upgrader{}, fallback)
}
