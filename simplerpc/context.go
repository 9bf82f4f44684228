package simplerpc

import "context"

type contextKey string

const (
	ctxRemote    contextKey = "remote"
	ctxNamespace contextKey = "namespace"
)

// CtxRemote returns the Remote that delivered the call being handled. This is
// useful for initiating bidirectional calls.
func CtxRemote(ctx context.Context) (*Remote, error) {
	r, ok := ctx.Value(ctxRemote).(*Remote)
	if !ok {
		return nil, ErrContextMissingValue{ctxRemote}
	}
	return r, nil
}

// CtxNamespace returns the namespace of the call being handled. Wildcard
// handlers use it to learn which name was called.
func CtxNamespace(ctx context.Context) (string, error) {
	ns, ok := ctx.Value(ctxNamespace).(string)
	if !ok {
		return "", ErrContextMissingValue{ctxNamespace}
	}
	return ns, nil
}
