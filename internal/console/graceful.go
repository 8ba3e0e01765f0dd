package console

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// NewHTTPServer creates a configured HTTP server
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// SetupSignalHandler sets up OS signal handling for SIGINT and SIGTERM
func SetupSignalHandler() chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}

// WaitForSignal blocks until a signal arrives or ctx is done. It returns
// nil when ctx ended the wait.
func WaitForSignal(ctx context.Context, ch chan os.Signal) os.Signal {
	select {
	case sig := <-ch:
		return sig
	case <-ctx.Done():
		return nil
	}
}

// Shutdownable is a component stopped after the server.
type Shutdownable interface {
	Shutdown(ctx context.Context) error
}

// ShutdownWithComponents shuts down the server first, then each component
// in order, all within timeout. Every component is asked to stop even if
// an earlier one fails; the first error is returned.
func ShutdownWithComponents(server Shutdownable, timeout time.Duration, components ...Shutdownable) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var first error
	for _, comp := range append([]Shutdownable{server}, components...) {
		if comp == nil {
			continue
		}
		if err := comp.Shutdown(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
