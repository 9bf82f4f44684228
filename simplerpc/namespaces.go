package simplerpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"unicode"
)

// Wildcard is the namespace consulted when no exact registration matches.
const Wildcard = "*"

// Handler is a registered namespace.
type Handler interface {
	// Invoke runs the handler with the positional params of a call, as a
	// JSON array (or nil when the call had no data).
	Invoke(ctx context.Context, params json.RawMessage) (interface{}, error)
}

// HandlerFunc is a Handler which receives its positional arguments decoded
// into generic JSON values (nil, bool, float64, string, []interface{} and
// map[string]interface{}).
type HandlerFunc func(ctx context.Context, args ...interface{}) (interface{}, error)

func (fn HandlerFunc) Invoke(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var args []interface{}
	if hasValue(params) {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, &ErrResponse{
				Code:    ErrCodeInvalidParams,
				Message: fmt.Sprintf("invalid params: %s", err),
			}
		}
	}
	return fn(ctx, args...)
}

// Namespaces is the dispatch table mapping namespaces to handlers. The zero
// value is ready to use and it is safe for concurrent use.
type Namespaces struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// Register sets the handler for a namespace, replacing any previous one.
func (ns *Namespaces) Register(namespace string, h Handler) {
	if h == nil {
		ns.Unregister(namespace)
		return
	}
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if ns.handlers == nil {
		ns.handlers = map[string]Handler{}
	}
	ns.handlers[namespace] = h
}

// RegisterFunc is Register for a HandlerFunc.
func (ns *Namespaces) RegisterFunc(namespace string, fn HandlerFunc) {
	ns.Register(namespace, fn)
}

// RegisterMethods adds valid methods from the receiver to the table with the
// given prefix. The first letter of each method name is lowercased.
func (ns *Namespaces) RegisterMethods(prefix string, receiver interface{}) error {
	methods, err := Methods(receiver)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	for name, m := range methods {
		buf.WriteString(prefix)
		buf.WriteRune(unicode.ToLower(rune(name[0])))
		buf.WriteString(name[1:])
		ns.Register(buf.String(), m)
		buf.Reset()
	}
	return nil
}

// RegisterMethod registers a single method of the receiver under namespace.
func (ns *Namespaces) RegisterMethod(namespace string, receiver interface{}, methodName string) error {
	m, err := MethodByName(receiver, methodName)
	if err != nil {
		return err
	}
	ns.Register(namespace, m)
	return nil
}

// Unregister removes a namespace. Unknown namespaces are ignored.
func (ns *Namespaces) Unregister(namespace string) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	delete(ns.handlers, namespace)
}

// Lookup returns the handler for namespace, falling back to the wildcard.
func (ns *Namespaces) Lookup(namespace string) (Handler, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	if h, ok := ns.handlers[namespace]; ok {
		return h, true
	}
	h, ok := ns.handlers[Wildcard]
	return h, ok
}

// Names returns the registered namespaces, sorted.
func (ns *Namespaces) Names() []string {
	ns.mu.RLock()
	names := make([]string, 0, len(ns.handlers))
	for name := range ns.handlers {
		names = append(names, name)
	}
	ns.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Handle invokes the handler for a call and returns its response envelope,
// or nil if the call did not request a response. Handler failures and panics
// are converted into error responses.
func (ns *Namespaces) Handle(ctx context.Context, call *Envelope) *Envelope {
	result, err := ns.invoke(ctx, call)
	if !call.WantsResponse() {
		if err != nil {
			logger.Debugf("signal %q failed: %s", call.Namespace, err)
		}
		return nil
	}
	return responseFor(call.ID, result, err)
}

func (ns *Namespaces) invoke(ctx context.Context, call *Envelope) (result interface{}, err error) {
	h, ok := ns.Lookup(call.Namespace)
	if !ok {
		return nil, errUnregistered(call.Namespace)
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("handler for %q panicked: %v", call.Namespace, r)
			err = &ErrResponse{
				Code:    ErrCodeHandler,
				Message: fmt.Sprintf("handler panic: %v", r),
			}
		}
	}()
	ctx = context.WithValue(ctx, ctxNamespace, call.Namespace)
	return h.Invoke(ctx, call.Data)
}

func responseFor(id uint64, result interface{}, err error) *Envelope {
	resp := &Envelope{
		Type: TypeResponse,
		ID:   id,
	}
	if err != nil {
		resp.Error = encodeError(err)
		return resp
	}
	if resp.Data, err = json.Marshal(result); err != nil {
		resp.Error = encodeError(&ErrResponse{
			Code:    ErrCodeEncode,
			Message: fmt.Sprintf("failed to encode result: %s", err),
		})
	}
	return resp
}
