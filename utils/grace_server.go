package utils

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	DEFAULT_READ_TIMEOUT     = 30 * time.Second
	DEFAULT_WRITE_TIMEOUT    = DEFAULT_READ_TIMEOUT
	DEFAULT_SHUTDOWN_TIMEOUT = 20 * time.Second
)

// Server wraps http.Server with signal driven graceful shutdown and
// hooks for background workers that must stop with it.
type Server struct {
	*http.Server

	shutdownTimeout time.Duration
	hooks           []func(ctx context.Context)
	signalChan      chan os.Signal
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       readTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
		},
		shutdownTimeout: DEFAULT_SHUTDOWN_TIMEOUT,
		signalChan:      make(chan os.Signal, 1),
	}
}

// OnShutdown registers a hook run after the listener stops accepting requests.
// Hooks run in registration order and share the shutdown deadline.
func (srv *Server) OnShutdown(fn func(ctx context.Context)) {
	srv.hooks = append(srv.hooks, fn)
}

// ListenAndServe serves until SIGINT or SIGTERM, then drains in-flight requests.
func (srv *Server) ListenAndServe() error {
	signal.Notify(srv.signalChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(srv.signalChan)

	errCh := make(chan error, 1)
	go func() {
		Sugar.Infof("HTTP server listening on %s", srv.Addr)
		if err := srv.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			ctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
			defer cancel()
			srv.runHooks(ctx)
			return err
		}
		return nil
	case sig := <-srv.signalChan:
		Sugar.Infof("received %s, graceful shutting down HTTP server", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), srv.shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	if err != nil {
		Sugar.Errorf("HTTP server shutdown error: %v", err)
	} else {
		Sugar.Info("HTTP server shutdown success")
	}
	srv.runHooks(ctx)
	return err
}

func (srv *Server) runHooks(ctx context.Context) {
	for _, fn := range srv.hooks {
		fn(ctx)
	}
}
