// Package shutdown converts the process-termination signals (SIGINT,
// SIGTERM) into a cooperative cancellation the server loop observes.
package shutdown

import (
	"context"
	"os/signal"
	"syscall"
)

// Bind returns a context derived from parent that is cancelled on
// receipt of SIGINT or SIGTERM, and the stop function that must be
// deferred to release the signal handlers. At most one additional
// accept() call happens after the signal: the returned context's
// Done channel closes as soon as the signal arrives, and callers are
// expected to close their listener from a goroutine watching it (see
// server.Server.Serve), guaranteeing the accept loop unblocks promptly.
func Bind(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
