/*
	Package simplerpc implements a symmetric request/response protocol over
	duplex message-oriented connections, such as websockets.

	Both ends of a connection are peers: each can register namespaces
	(named functions) and each can call or signal the namespaces registered
	by the other side. Calls carry a correlation id and wait for a response
	or time out; signals are one-way and never get a reply.

	Envelope is the wire unit, serialized as JSON:

		{"type":"c","id":1,"namespace":"echo","data":[42]}
		{"type":"r","id":1,"data":42}

	Transport is the message-oriented connection. Once a Transport is
	established, it does not matter which side dialed. Implementations live
	in the ws/gorilla and ws/gobwas subpackages, and IOTransport wraps any
	io.ReadWriteCloser.

	Remote is the message pump for one Transport. It routes incoming calls to
	a Namespaces table and incoming responses to a Pending registry.

	Client is a single-connection endpoint that redials when its connection
	is lost. Server is a multi-connection endpoint which shares one
	Namespaces table and one Pending registry across every accepted
	connection that negotiated the "simple-rpc" sub-protocol.

	When a handler is invoked, its context carries the calling Remote, which
	can be acquired with CtxRemote(ctx) to send calls back to the caller, and
	the called namespace, which can be acquired with CtxNamespace(ctx).
*/
package simplerpc
