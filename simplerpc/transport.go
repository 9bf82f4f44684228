package simplerpc

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	"github.com/vipnode/socketrpc/internal/pretty"
)

// Transport is a duplex message-oriented connection. Each ReadMessage
// returns one whole message as written by one WriteMessage on the other end.
// WriteMessage must be safe to call from multiple goroutines.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage([]byte) error
	Close() error
}

var _ Transport = &ioTransport{}

// IOTransport returns a Transport that frames messages as newline-delimited
// JSON over any io.ReadWriteCloser, such as a TCP connection or net.Pipe.
// A malformed line is returned as is, so the stream survives it.
func IOTransport(rwc io.ReadWriteCloser) Transport {
	return &ioTransport{
		r:      bufio.NewReader(rwc),
		w:      rwc,
		closer: rwc,
	}
}

type ioTransport struct {
	muRead  sync.Mutex
	muWrite sync.Mutex
	r       *bufio.Reader
	w       io.Writer
	closer  io.Closer
}

func (t *ioTransport) ReadMessage() ([]byte, error) {
	t.muRead.Lock()
	defer t.muRead.Unlock()
	for {
		line, err := t.r.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			// A final line without a newline is still a message
			return line, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (t *ioTransport) WriteMessage(msg []byte) error {
	buf := make([]byte, 0, len(msg)+1)
	buf = append(append(buf, msg...), '\n')

	t.muWrite.Lock()
	defer t.muWrite.Unlock()
	_, err := t.w.Write(buf)
	return err
}

func (t *ioTransport) Close() error {
	return t.closer.Close()
}

// debugPayloadMax is the number of bytes of each message DebugTransport logs.
const debugPayloadMax = 1024

// DebugTransport wraps a Transport and logs every message read and written.
func DebugTransport(name string, t Transport) Transport {
	return &debugTransport{name: name, inner: t}
}

type debugTransport struct {
	name  string
	inner Transport
}

func (t *debugTransport) ReadMessage() ([]byte, error) {
	msg, err := t.inner.ReadMessage()
	if err != nil {
		logger.Debugf("%s <- error: %s", t.name, err)
		return nil, err
	}
	logger.Debugf("%s <- %s", t.name, pretty.Payload{Body: msg, Max: debugPayloadMax})
	return msg, nil
}

func (t *debugTransport) WriteMessage(msg []byte) error {
	logger.Debugf("%s -> %s", t.name, pretty.Payload{Body: msg, Max: debugPayloadMax})
	return t.inner.WriteMessage(msg)
}

func (t *debugTransport) Close() error {
	return t.inner.Close()
}
