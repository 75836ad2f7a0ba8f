package httpapi

import "context"

// serverBaseCtx is canceled when the daemon shuts down, so in-flight
// conversions stop instead of outliving the listener.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process-level context handlers derive from.
// Passing nil restores Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// joinContexts yields a context done when either parent is done. Callers must
// invoke cancel to release the watcher goroutine.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		select {
		case <-a.Done():
		case <-b.Done():
		}
	}()
	return ctx, cancel
}
