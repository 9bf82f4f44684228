package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"

	"github.com/vipnode/socketrpc/internal/pretty"
	"github.com/vipnode/socketrpc/simplerpc"
	"github.com/vipnode/socketrpc/simplerpc/ws"
	"github.com/vipnode/socketrpc/simplerpc/ws/gobwas"
	"github.com/vipnode/socketrpc/simplerpc/ws/gorilla"
	"golang.org/x/sync/errgroup"
)

func findUpgrader(transport string) (ws.Upgrader, error) {
	switch transport {
	case "gorilla":
		return &gorilla.Upgrader{}, nil
	case "gobwas":
		return &gobwas.Upgrader{}, nil
	}
	return nil, ErrExplain{
		fmt.Errorf("unknown transport: %q", transport),
		"Use --transport=gorilla or --transport=gobwas.",
	}
}

type statusResponse struct {
	Version    string   `json:"version"`
	Peers      int      `json:"peers"`
	Namespaces []string `json:"namespaces"`
}

// statusHandler serves non-RPC requests with a JSON status summary.
func statusHandler(srv *simplerpc.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "unsupported method", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("content-type", "application/json")
		json.NewEncoder(w).Encode(statusResponse{
			Version:    Version,
			Peers:      len(srv.Remotes()),
			Namespaces: srv.Names(),
		})
	}
}

func newServer(options Options) (*simplerpc.Server, http.Handler, error) {
	upgrader, err := findUpgrader(options.Transport)
	if err != nil {
		return nil, nil, err
	}

	srv := &simplerpc.Server{
		Timeout:   options.Serve.Timeout,
		CallRate:  options.Serve.Rate,
		CallBurst: options.Serve.Burst,

		PendingLimit:   50,
		PendingDiscard: 10,
	}
	if err := registerBuiltins(srv); err != nil {
		return nil, nil, err
	}
	srv.On(simplerpc.EventOpen, func(r *simplerpc.Remote, err error) {
		logger.Infof("Peer connected: %s", pretty.Abbrev(r.ID))
	})
	srv.On(simplerpc.EventClose, func(r *simplerpc.Remote, err error) {
		if err != nil && err != io.EOF {
			logger.Infof("Peer disconnected: %s (%s)", pretty.Abbrev(r.ID), err)
			return
		}
		logger.Infof("Peer disconnected: %s", pretty.Abbrev(r.ID))
	})

	return srv, ws.Handler(srv, upgrader, statusHandler(srv)), nil
}

func runServe(options Options) error {
	srv, handler, err := newServer(options)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:    options.Serve.Bind,
		Handler: handler,
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		logger.Infof("Starting server (version %s, %s transport), listening on: ws://%s", Version, options.Transport, options.Serve.Bind)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Shut down on ctrl+c signal
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			logger.Info("Shutting down...")
		case <-ctx.Done():
		}
		srv.Close()
		return httpServer.Shutdown(context.Background())
	})
	return g.Wait()
}
