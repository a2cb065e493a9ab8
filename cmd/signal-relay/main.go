/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Command signal-relay runs the websocket signaling relay that callctl
// clients connect to.
//
// Usage:
//
//	go run ./cmd/signal-relay -config config/local.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tejzpr/p2pcall-go-sdk/callsdk"
	"github.com/tejzpr/p2pcall-go-sdk/config"
	"github.com/tejzpr/p2pcall-go-sdk/signaling/relay"
)

func main() {
	cfg := config.MustLoad()

	logger, err := callsdk.NewLogger(cfg.LoggerConfig())
	if err != nil {
		fmt.Printf("ERROR creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	hub := relay.NewHub(cfg.RelayConfig(), logger)

	mux := http.NewServeMux()
	mux.Handle(cfg.Relay.Path, hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","calls":%d}`, hub.Calls().Len())
	})

	server := &http.Server{
		Addr:              cfg.Relay.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))

		hub.Shutdown()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("http server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting relay",
		zap.String("env", cfg.Env),
		zap.String("addr", cfg.Relay.Address),
		zap.String("path", cfg.Relay.Path))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server stopped", zap.Error(err))
		os.Exit(1)
	}
}
