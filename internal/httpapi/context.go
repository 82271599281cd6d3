package httpapi

import "context"

// serverBaseCtx is the daemon-level context; a shutdown cancels it so
// blocked /generate handlers stop waiting on the worker queue.
var serverBaseCtx = context.Background()

// SetBaseContext installs the daemon's shutdown context. Passing nil resets
// to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context that is canceled as soon as either parent
// is done. The cancel func must be called when the handler returns.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-a.Done():
		case <-b.Done():
		case <-ctx.Done():
		}
		cancel()
	}()
	return ctx, cancel
}
