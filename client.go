package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vipnode/socketrpc/simplerpc"
	"github.com/vipnode/socketrpc/simplerpc/ws/gobwas"
	"github.com/vipnode/socketrpc/simplerpc/ws/gorilla"
)

func findDialer(transport string, url string, debug bool) (simplerpc.DialFunc, error) {
	var dial simplerpc.DialFunc
	switch transport {
	case "gorilla":
		dial = gorilla.Dialer(url)
	case "gobwas":
		dial = gobwas.Dialer(url)
	default:
		return nil, ErrExplain{
			fmt.Errorf("unknown transport: %q", transport),
			"Use --transport=gorilla or --transport=gobwas.",
		}
	}
	if !debug {
		return dial, nil
	}
	return func(ctx context.Context) (simplerpc.Transport, error) {
		t, err := dial(ctx)
		if err != nil {
			return nil, err
		}
		return simplerpc.DebugTransport(url, t), nil
	}, nil
}

// parseArgs decodes each argument as JSON, falling back to a plain string.
func parseArgs(params []string) []interface{} {
	args := make([]interface{}, 0, len(params))
	for _, p := range params {
		var v interface{}
		if err := json.Unmarshal([]byte(p), &v); err != nil {
			v = p
		}
		args = append(args, v)
	}
	return args
}

func connect(options Options, url string) (*simplerpc.Client, error) {
	dial, err := findDialer(options.Transport, url, len(options.Verbose) >= len(logLevels))
	if err != nil {
		return nil, err
	}
	c := simplerpc.NewClient(dial)
	c.Timeout = options.Call.Timeout

	logger.Infof("Connecting to: %s", url)
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	err = c.Connect(ctx)
	cancel()
	if err != nil {
		return nil, ErrExplain{err, "Failed to connect to the simple-rpc server. Make sure the URL is right and the server is running."}
	}
	logger.Info("Connected.")
	return c, nil
}

func runCall(options Options, out io.Writer) error {
	args := options.Call.Args
	c, err := connect(options, args.URL)
	if err != nil {
		return err
	}
	defer c.Close()

	var result json.RawMessage
	if err := c.Call(context.Background(), &result, args.Namespace, parseArgs(args.Params)...); err != nil {
		return err
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	_, err = fmt.Fprintf(out, "%s\n", result)
	return err
}

func runSignal(options Options) error {
	args := options.Signal.Args
	c, err := connect(options, args.URL)
	if err != nil {
		return err
	}
	defer c.Close()

	return c.Signal(context.Background(), args.Namespace, parseArgs(args.Params)...)
}
