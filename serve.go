package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"tomgalvin.uk/catprint/internal/config"
	"tomgalvin.uk/catprint/internal/printer"
	"tomgalvin.uk/catprint/internal/server"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, cfg config.Values, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listen := fs.String("listen", cfg.Listen, "address to listen on")
	connect := fs.Bool("connect", false, "connect to a printer on startup")
	if err := fs.Parse(args); err != nil {
		return err
	}

	repo, err := NewRepository(cfg.Database)
	if err != nil {
		return err
	}
	defer repo.Close()
	if n, err := repo.Interrupted(); err != nil {
		logger.Warn("Couldn't tidy up old jobs", "error", err)
	} else if n > 0 {
		logger.Info("Marked unfinished jobs from last run as failed", "count", n)
	}

	transport, err := newTransport(cfg, logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	hub := server.NewHub(logger)
	var session *printer.Session
	session = printer.NewSession(transport,
		printer.WithLogger(logger.With("src", "printer")),
		printer.WithChunkSize(cfg.ChunkSize),
		printer.WithStatusHandler(server.NotifyStatus(hub, func() printer.Info { return session.Info() }, transport != nil)),
	)
	srv := server.New(ctx, session, repo, hub, cfg.Print, logger)

	httpServer := &http.Server{
		Addr:              *listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		logger.Info("Starting server", "addr", *listen)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		srv.Wait()
		session.Disconnect()
		return err
	})

	if *connect && transport != nil {
		g.Go(func() error {
			if err := session.Connect(ctx); err != nil && !printer.IsPairingDeclined(err) {
				logger.Warn("Couldn't connect on startup", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}
