// Package app wires an HTTP surface and its background workers into
// one process with coordinated startup and shutdown.
package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/julienschmidt/httprouter"

	"seatgrid/pkg/config"
	"seatgrid/pkg/middleware"
)

// Runner is a long-lived background worker. It must return when its
// context is cancelled.
type Runner func(ctx context.Context) error

type Application struct {
	cfg     *config.Config
	server  *http.Server
	runners []namedRunner
	closers []namedCloser
}

type namedRunner struct {
	name string
	run  Runner
}

type namedCloser struct {
	name  string
	close func() error
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// SetHandler builds the middleware stack around the given router and
// configures the HTTP server. The health endpoints registered on the
// same router pass through the full stack; none of the middleware
// blocks an unauthenticated GET.
func (a *Application) SetHandler(router *httprouter.Router) {
	var h http.Handler = router
	h = middleware.RequestTimeout(a.cfg.RequestTimeout)(h)
	h = middleware.ContentTypeValidation(a.cfg.Log)(h)
	h = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(h)
	h = middleware.RequestLogging(a.cfg.Log)(h)
	h = middleware.Recovery(a.cfg.Log)(h)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      h,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

// AddRunner registers a background worker started alongside the server.
func (a *Application) AddRunner(name string, run Runner) {
	a.runners = append(a.runners, namedRunner{name: name, run: run})
}

// AddCloser registers a resource closed during shutdown, after the
// runners have stopped.
func (a *Application) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, close: fn})
}

// Run blocks until a shutdown signal arrives or the server fails.
func (a *Application) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, r := range a.runners {
		wg.Add(1)
		go func(r namedRunner) {
			defer wg.Done()
			a.cfg.Log.Info("Starting background worker", "worker", r.name)
			if err := r.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.cfg.Log.Error("Background worker stopped with error", "worker", r.name, "error", err)
			}
		}(r)
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown(cancel, &wg)
	}
}

func (a *Application) gracefulShutdown(cancel context.CancelFunc, wg *sync.WaitGroup) {
	a.cfg.Log.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.cfg.Log.Error("HTTP server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Error("HTTP server close failed", "error", err)
		}
	}

	cancel()
	wg.Wait()
	a.cfg.Log.Info("Background workers stopped")

	for _, c := range a.closers {
		if err := c.close(); err != nil {
			a.cfg.Log.Error("Failed to close resource", "resource", c.name, "error", err)
		}
	}

	a.cfg.GracefulShutdown()
	a.cfg.Log.Info("Graceful shutdown complete")
}
