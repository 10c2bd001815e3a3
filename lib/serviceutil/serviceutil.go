// Package serviceutil holds process plumbing shared by the commands.
package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"edupage-client/lib/fault"
)

// SignalContext lives until Ctrl+C or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// Fatal logs err and exits. Portal errors also log their kind and the pattern that failed.
func Fatal(message string, err error) {
	attrs := []any{"err", err.Error()}
	if ferr, ok := fault.As(err); ok {
		attrs = append(attrs, "kind", ferr.Kind.String())
		if ferr.Pattern != "" {
			attrs = append(attrs, "pattern", ferr.Pattern)
		}
	}
	slog.Error(message, attrs...)
	os.Exit(1)
}
