package core

import (
	"context"

	"golang.org/x/sync/errgroup"

	"telemetry/internal/diag"
	"telemetry/internal/server"
	"telemetry/util"
)

// ServeMode runs the telemetry server and, when configured, the
// diagnostic endpoint beside it.  Either failing stops both.
type ServeMode struct {
	Server *server.Server
	Diag   *diag.Server // nil when disabled
	Logger *util.Logger
}

// Run binds the server and blocks until it shuts down, via a client
// command, a signal or ctx.
func (m *ServeMode) Run(ctx context.Context) error {
	if err := m.Server.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	stopped := make(chan struct{})

	// Reactor: Run and Stop stay on this goroutine.
	g.Go(func() error {
		defer close(stopped)
		defer m.Server.Stop()
		return m.Server.Run()
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
			m.Server.RequestShutdown("context done")
		case <-stopped:
		}
		return nil
	})

	if m.Diag != nil {
		g.Go(func() error {
			dctx, cancel := context.WithCancel(gctx)
			defer cancel()
			go func() {
				select {
				case <-stopped:
					cancel()
				case <-dctx.Done():
				}
			}()
			return m.Diag.Serve(dctx)
		})
	}

	return g.Wait()
}
