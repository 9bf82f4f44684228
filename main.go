package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/alexcesaro/log"
	"github.com/alexcesaro/log/golog"
	flags "github.com/jessevdk/go-flags"
	"github.com/vipnode/socketrpc/simplerpc"
	"github.com/vipnode/socketrpc/simplerpc/ws"
)

// Version of the binary, assigned during build.
var Version string = "dev"

var rpcTimeout = time.Second * 5

type callArgs struct {
	URL       string   `positional-arg-name:"url" description:"Websocket URL of the simple-rpc server, such as ws://localhost:8080/" required:"yes"`
	Namespace string   `positional-arg-name:"namespace" description:"Namespace to invoke." required:"yes"`
	Params    []string `positional-arg-name:"args" description:"Positional arguments, each parsed as JSON or passed as a string."`
}

// Options contains the flag options
type Options struct {
	Verbose   []bool `short:"v" long:"verbose" description:"Show verbose logging."`
	Version   bool   `long:"version" description:"Print version and exit."`
	Transport string `long:"transport" description:"Websocket implementation. (gorilla|gobwas)" default:"gorilla"`

	Serve struct {
		Bind    string        `long:"bind" description:"Address and port to listen on." default:"0.0.0.0:8080"`
		Timeout time.Duration `long:"timeout" description:"How long to wait for a response to calls made to clients." default:"10s"`
		Rate    float64       `long:"rate" description:"Incoming calls per second allowed on each connection, 0 for unlimited." default:"0"`
		Burst   int           `long:"burst" description:"Burst of calls allowed over --rate." default:"10"`
	} `command:"serve" description:"Start a simple-rpc websocket server."`

	Call struct {
		Timeout time.Duration `long:"timeout" description:"How long to wait for a response." default:"10s"`
		Args    callArgs      `positional-args:"yes"`
	} `command:"call" description:"Call a namespace on a server and print the result."`

	Signal struct {
		Args callArgs `positional-args:"yes"`
	} `command:"signal" description:"Send a signal to a server without waiting for a response."`
}

const callUsage = `Examples:
* Echo a value back from a local server:
  $ socketrpc call ws://localhost:8080/ echo '{"hello": "world"}'

* Count the peers connected to a server:
  $ socketrpc call ws://localhost:8080/ peers
`

func subcommand(cmd string, options Options) error {
	switch cmd {
	case "serve":
		return runServe(options)
	case "call":
		return runCall(options, os.Stdout)
	case "signal":
		return runSignal(options)
	}
	return fmt.Errorf("unknown command: %q", cmd)
}

func main() {
	options := Options{}
	parser := flags.NewParser(&options, flags.Default)
	configPath, configErr := loadConfig(parser)

	p, err := parser.Parse()
	if err != nil {
		if p == nil {
			fmt.Println(err)
		}
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp && parser.Active != nil {
			// Print additional usage help when run with --help
			switch parser.Active.Name {
			case "call":
				exit(0, callUsage)
			}
		}
		return
	}

	if options.Version {
		fmt.Println(Version)
		os.Exit(0)
	}

	// Figure out the log level
	numVerbose := len(options.Verbose)
	if numVerbose >= len(logLevels) {
		numVerbose = len(logLevels) - 1
	}

	logLevel := logLevels[numVerbose]
	logWriter := os.Stderr

	SetLogger(golog.New(logWriter, logLevel))
	if logLevel == log.Debug {
		// Enable logging from subpackages
		simplerpc.SetLogger(logWriter)
		ws.SetLogger(logWriter)
	}

	if configErr != nil {
		exit(1, "%s\n", configErr)
	} else if configPath != "" {
		logger.Debugf("Loaded config: %s", configPath)
	}

	cmd := parser.Active.Name
	err = subcommand(cmd, options)
	if err == nil {
		return
	}

	if err == io.EOF || errors.Is(err, simplerpc.ErrClosed) {
		exit(3, "Connection closed.\n")
	}
	exit(2, "%s failed: %s\n", cmd, explain(err))
}

// explain wraps err with a hint about what to do next, unless it already
// has one.
func explain(err error) error {
	var explained ErrExplain
	if errors.As(err, &explained) {
		return err
	}

	var timeoutErr *simplerpc.TimeoutError
	if errors.As(err, &timeoutErr) {
		return ErrExplain{err, `The server did not respond in time. Try a longer --timeout?`}
	}
	if errors.Is(err, simplerpc.ErrNotConnected) {
		return ErrExplain{err, `Not connected to a server. Check the URL and try again.`}
	}

	var codeErr interface{ ErrorCode() int }
	if errors.As(err, &codeErr) {
		switch codeErr.ErrorCode() {
		case simplerpc.ErrCodeUnregistered:
			return ErrExplain{err, `The server has no handler for this namespace. Call the "namespaces" namespace to list what is available.`}
		case simplerpc.ErrCodeInvalidParams:
			return ErrExplain{err, `The arguments did not match what the handler expects.`}
		case simplerpc.ErrCodeRateLimited:
			return ErrExplain{err, `The server is refusing calls over its rate limit. Slow down and try again.`}
		default:
			return ErrExplain{err, fmt.Sprintf(`The remote handler failed (code %d).`, codeErr.ErrorCode())}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrExplain{err, `Disconnected from server unexpectedly. Could be a connectivity issue or the server is down. Try again?`}
	}
	return ErrExplain{err, fmt.Sprintf(`Error type %T is missing an explanation. Please open an issue at https://github.com/vipnode/socketrpc`, err)}
}

func exit(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(code)
}

// ErrExplain annotates an error with an explanation.
type ErrExplain struct {
	Cause       error
	Explanation string
}

func (err ErrExplain) Error() string {
	return fmt.Sprintf("%s\n -> %s", err.Cause, err.Explanation)
}

func (err ErrExplain) Unwrap() error {
	return err.Cause
}
