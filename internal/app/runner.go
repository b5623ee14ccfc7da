package app

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/wppcli/internal/command"
)

// Runner drives the foreground: the terminal event loop, when the surface has
// one, and the command processor. Background loops belong to the fx lifecycle.
type Runner struct {
	surface   *Surface
	processor *command.Processor
	log       *zap.Logger
}

func NewRunner(s *Surface, p *command.Processor, log *zap.Logger) *Runner {
	return &Runner{surface: s, processor: p, log: log}
}

// Run blocks until the operator quits, the input ends or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if t := r.surface.TUI; t != nil {
		g.Go(func() error {
			err := t.Run(ctx)
			if err != nil {
				r.log.Error("terminal UI failed", zap.Error(err))
			}
			return err
		})
	}

	g.Go(func() error {
		err := r.processor.Run(ctx)
		if t := r.surface.TUI; t != nil {
			t.Stop()
		}
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}
