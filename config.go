package main

import (
	"os"

	"github.com/OpenPeeDeeP/xdg"
	flags "github.com/jessevdk/go-flags"
)

const configEnv = "SOCKETRPC_CONFIG"

// findConfig returns the path of the INI config file, or "" if there is
// none. $SOCKETRPC_CONFIG takes precedence over the XDG config directories.
func findConfig() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return xdg.New("vipnode", "socketrpc").QueryConfig("config.ini")
}

// loadConfig fills the parser's options from the config file, if any.
// Command line flags parsed afterwards override these values.
func loadConfig(parser *flags.Parser) (string, error) {
	path := findConfig()
	if path == "" {
		return "", nil
	}
	if err := flags.NewIniParser(parser).ParseFile(path); err != nil {
		return path, ErrExplain{err, "Failed to parse the config file. Fix it or set $" + configEnv + " to another path."}
	}
	return path, nil
}
