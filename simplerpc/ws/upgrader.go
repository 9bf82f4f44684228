package ws

import (
	"io"
	"net/http"
	"strings"

	"github.com/vipnode/socketrpc/simplerpc"
)

// Upgrader takes an HTTP request, upgrades it to a websocket connection and
// returns its transport with the negotiated sub-protocol. This allows
// switching between different websocket implementations.
type Upgrader interface {
	Upgrade(w http.ResponseWriter, r *http.Request) (t simplerpc.Transport, subprotocol string, err error)
}

// Offered returns true if the request offers the simple-rpc sub-protocol.
func Offered(r *http.Request) bool {
	for _, h := range r.Header[http.CanonicalHeaderKey("Sec-WebSocket-Protocol")] {
		for _, p := range strings.Split(h, ",") {
			if strings.TrimSpace(p) == simplerpc.Subprotocol {
				return true
			}
		}
	}
	return false
}

// Handler upgrades requests offering the simple-rpc sub-protocol and serves
// them on srv. Other requests are passed untouched to fallback, or get a 404
// if fallback is nil.
func Handler(srv *simplerpc.Server, up Upgrader, fallback http.Handler) http.HandlerFunc {
	if fallback == nil {
		fallback = http.NotFoundHandler()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if !Offered(r) {
			fallback.ServeHTTP(w, r)
			return
		}
		t, subprotocol, err := up.Upgrade(w, r)
		if err != nil {
			logger.Debugf("websocket upgrade error from %s: %s", r.RemoteAddr, err)
			return
		}
		if err := srv.ServeTransport(t, subprotocol); err != nil && err != io.EOF {
			logger.Warningf("connection from %s ended: %s", r.RemoteAddr, err)
		}
	}
}
