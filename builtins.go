package main

import (
	"context"

	"github.com/vipnode/socketrpc/simplerpc"
)

// Builtins are the namespaces served by `socketrpc serve`.
type Builtins struct {
	server *simplerpc.Server
}

// Echo returns its argument.
func (b *Builtins) Echo(v interface{}) interface{} {
	return v
}

// Ping returns "pong".
func (b *Builtins) Ping() string {
	return "pong"
}

// Peers returns the number of live connections.
func (b *Builtins) Peers() int {
	return len(b.server.Remotes())
}

// Namespaces lists the registered namespaces.
func (b *Builtins) Namespaces() []string {
	return b.server.Names()
}

// registerBuiltins registers Builtins and a wildcard which answers any
// other namespace with its own name.
func registerBuiltins(srv *simplerpc.Server) error {
	if err := srv.RegisterMethods("", &Builtins{server: srv}); err != nil {
		return err
	}
	srv.RegisterFunc(simplerpc.Wildcard, func(ctx context.Context, args ...interface{}) (interface{}, error) {
		ns, err := simplerpc.CtxNamespace(ctx)
		if err != nil {
			return nil, err
		}
		logger.Infof("Wildcard call to %q with %d args", ns, len(args))
		return ns, nil
	})
	return nil
}
