package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tinytelemetry/testtrace/internal/auth"
	"github.com/tinytelemetry/testtrace/internal/httpapi"
	"github.com/tinytelemetry/testtrace/internal/ingest"
	"golang.org/x/sync/errgroup"
)

// runSink starts the loopback ingest backend and the inspection API and
// blocks until interrupted.
func runSink(cfg appConfig) error {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var token auth.Token
	if cfg.AuthToken != "" {
		var err error
		token, err = auth.Parse(cfg.AuthToken)
		if err != nil {
			return fmt.Errorf("invalid auth-token: %w", err)
		}
	}

	backend := ingest.NewServer(cfg.ListenAddr, ingest.ServerConfig{RequiredToken: token})
	if err := backend.Start(); err != nil {
		return fmt.Errorf("failed to start ingest backend: %w", err)
	}
	defer backend.Stop()
	log.Printf("sink: ingest backend listening on %s", backend.Addr())

	if cfg.APIEnabled {
		apiServer := httpapi.NewServer(cfg.APIAddr, backend)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
		log.Printf("sink: inspection API listening on %s", apiServer.Addr())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("sink: errgroup exited with error: %v", err)
	}
	signal.Stop(sigCh)
	return nil
}
