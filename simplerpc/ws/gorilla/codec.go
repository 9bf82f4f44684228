// Websocket implementation using Gorilla's Websocket library
package gorilla

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/vipnode/socketrpc/simplerpc"
	"github.com/vipnode/socketrpc/simplerpc/ws"
)

// Dial opens a client-side websocket transport which negotiated the
// simple-rpc sub-protocol.
func Dial(ctx context.Context, url string) (simplerpc.Transport, error) {
	dialer := *websocket.DefaultDialer
	dialer.Subprotocols = []string{simplerpc.Subprotocol}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if p := conn.Subprotocol(); p != simplerpc.Subprotocol {
		conn.Close()
		return nil, fmt.Errorf("%w: server chose %q", simplerpc.ErrUnsupportedProtocol, p)
	}
	return &wsTransport{conn: conn}, nil
}

// Dialer returns a DialFunc for a simplerpc.Client.
func Dialer(url string) simplerpc.DialFunc {
	return func(ctx context.Context) (simplerpc.Transport, error) {
		return Dial(ctx, url)
	}
}

var _ simplerpc.Transport = &wsTransport{}

type wsTransport struct {
	muWrite sync.Mutex
	muRead  sync.Mutex
	conn    *websocket.Conn
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	t.muRead.Lock()
	defer t.muRead.Unlock()
	_, msg, err := t.conn.ReadMessage()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (t *wsTransport) WriteMessage(msg []byte) error {
	t.muWrite.Lock()
	defer t.muWrite.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, msg)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

var _ ws.Upgrader = &Upgrader{}

// Upgrader upgrades an HTTP request to a websocket connection offering only
// the simple-rpc sub-protocol.
type Upgrader struct {
	Upgrader websocket.Upgrader
}

func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (simplerpc.Transport, string, error) {
	upgrader := u.Upgrader
	upgrader.Subprotocols = []string{simplerpc.Subprotocol}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, "", err
	}
	return &wsTransport{conn: conn}, conn.Subprotocol(), nil
}

// WebsocketHandler serves simple-rpc websocket connections on srv, passing
// other requests to fallback.
func WebsocketHandler(srv *simplerpc.Server, fallback http.Handler) http.HandlerFunc {
	return ws.Handler(srv, &Upgrader{}, fallback)
}
