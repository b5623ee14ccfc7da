// Package app composes the client with fx: providers for every component and
// the lifecycle hooks that start and stop the background loops.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/wppcli/internal/bus"
	"github.com/matheus3301/wppcli/internal/chat"
	"github.com/matheus3301/wppcli/internal/command"
	"github.com/matheus3301/wppcli/internal/config"
	"github.com/matheus3301/wppcli/internal/console"
	"github.com/matheus3301/wppcli/internal/display"
	"github.com/matheus3301/wppcli/internal/expiry"
	"github.com/matheus3301/wppcli/internal/inbound"
	"github.com/matheus3301/wppcli/internal/lock"
	"github.com/matheus3301/wppcli/internal/logging"
	"github.com/matheus3301/wppcli/internal/media"
	"github.com/matheus3301/wppcli/internal/metrics"
	"github.com/matheus3301/wppcli/internal/notify"
	"github.com/matheus3301/wppcli/internal/seen"
	"github.com/matheus3301/wppcli/internal/session"
	"github.com/matheus3301/wppcli/internal/settings"
	"github.com/matheus3301/wppcli/internal/status"
	"github.com/matheus3301/wppcli/internal/transport"
	"github.com/matheus3301/wppcli/internal/transport/loopback"
	"github.com/matheus3301/wppcli/internal/wa"
)

const shutdownTimeout = 5 * time.Second

// Params holds the resolved session and configuration passed to the fx module.
type Params struct {
	Session string
	Paths   session.Paths
	Config  *config.Config
	// Plain selects the line-based console instead of the full-screen UI.
	Plain bool
	// ClearScreen makes the line-based console clear the terminal before each render.
	ClearScreen bool
	In    io.Reader
	Out   io.Writer
}

// Module returns the fx module for the client, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("wppcli",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			chat.NewStore,
			provideSettings,
			provideQueue,
			provideMetrics,
			provideMediaStore,
			provideSurface,
			provideDisplay,
			provideTransport,
			provideScheduler,
			providePoller,
			provideDispatcher,
			provideProcessor,
			provideRelay,
			NewRunner,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*logging.Logger, *zap.Logger, error) {
	level, err := p.Config.Level()
	if err != nil {
		return nil, nil, err
	}
	l, err := logging.New(p.Paths.LogPath(), p.Session, level)
	if err != nil {
		return nil, nil, err
	}
	return l, l.Logger, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := p.Paths.Ensure(); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.Session))
	l, err := lock.Acquire(p.Paths.Dir())
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func provideSettings(p Params) *settings.Settings {
	return settings.New(p.Config.ImageTimer.Std(), p.Config.TextTimer.Std(), p.Config.AutoDelete)
}

func provideQueue(p Params) *inbound.Queue {
	return inbound.NewQueue(p.Config.InboundCapacity)
}

func provideMetrics(q *inbound.Queue) *metrics.Metrics {
	m := metrics.New()
	m.WatchGauge("wppcli_inbound_queue_depth", "Events waiting for the dispatcher.", func() float64 {
		return float64(q.Len())
	})
	return m
}

func provideMediaStore(p Params) *media.Store {
	dir := p.Config.MediaDir
	if dir == "" {
		dir = p.Paths.MediaDir()
	}
	return media.NewStore(dir)
}

// Surface is the terminal the client draws on. Exactly one of TUI and Stream is set.
type Surface struct {
	console.Console
	TUI    *console.TUI
	Stream *console.Stream
}

// label returns the status bar of the surface, if it has one.
func (s *Surface) label() ConnectionLabel {
	if s.TUI == nil {
		return nil
	}
	return s.TUI
}

func provideSurface(p Params) (*Surface, console.Console) {
	if p.Plain {
		st := console.NewStream(p.In, p.Out, console.StreamOptions{
			ClearScreen: p.ClearScreen,
			Width:       console.DefaultWidth,
		})
		return &Surface{Console: st, Stream: st}, st
	}
	t := console.NewTUI(p.Session)
	return &Surface{Console: t, TUI: t}, t
}

func provideDisplay(p Params, store *chat.Store, st *settings.Settings, machine *status.Machine, con console.Console, logger *zap.Logger) *display.Machine {
	return display.NewMachine(store, st, machine, con, logger, p.Config.RefreshInterval.Std())
}

func provideTransport(p Params, q *inbound.Queue, ms *media.Store, machine *status.Machine, b *bus.Bus, logger *zap.Logger) (transport.Provider, error) {
	switch p.Config.Transport {
	case config.TransportLoopback:
		return loopback.New(q, machine, logger, loopback.Options{}), nil
	case config.TransportWhatsApp, "":
		a, err := wa.NewAdapter(context.Background(), p.Paths.DevicePath(), q, ms, machine, b, logger)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", p.Config.Transport)
	}
}

func provideScheduler(p Params, store *chat.Store, prov transport.Provider, view *display.Machine, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *expiry.Scheduler {
	return expiry.NewScheduler(store, prov, view, logger, expiry.Options{
		Interval: p.Config.ExpiryInterval.Std(),
		Bus:      b,
		Metrics:  m,
	})
}

func providePoller(p Params, store *chat.Store, prov transport.Provider, view *display.Machine, m *metrics.Metrics, logger *zap.Logger) *seen.Poller {
	return seen.NewPoller(store, prov, view, logger, m, p.Config.SeenInterval.Std())
}

func provideDispatcher(p Params, q *inbound.Queue, store *chat.Store, view *display.Machine, con console.Console, prov transport.Provider, m *metrics.Metrics, logger *zap.Logger) *notify.Dispatcher {
	return notify.NewDispatcher(q, store, view, con, logger, notify.Options{
		Replier: notify.NewAutoReplier(prov, p.Config.AutoReplies, logger, m),
		Viewer:  notify.NewViewer(p.Config.ImageViewer, logger),
		Metrics: m,
	})
}

func provideProcessor(con console.Console, view *display.Machine, store *chat.Store, st *settings.Settings, prov transport.Provider, sched *expiry.Scheduler, m *metrics.Metrics, logger *zap.Logger) *command.Processor {
	return command.NewProcessor(con, view, store, st, prov, sched, logger, m)
}

func provideRelay(b *bus.Bus, view *display.Machine, s *Surface, logger *zap.Logger) *relay {
	return newRelay(b, view, s, s.label(), logger)
}

type lifecycleDeps struct {
	fx.In

	Params     Params
	Log        *logging.Logger
	Logger     *zap.Logger
	Lock       *lock.Lock
	Bus        *bus.Bus
	Machine    *status.Machine
	Queue      *inbound.Queue
	Metrics    *metrics.Metrics
	Surface    *Surface
	View       *display.Machine
	Provider   transport.Provider
	Scheduler  *expiry.Scheduler
	Poller     *seen.Poller
	Dispatcher *notify.Dispatcher
	Relay      *relay
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	var metricsSrv *metrics.Server

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Background loops outlive the start hook, so they get their own context.
			bg := context.Background()
			d.Relay.Start(bg)
			d.View.Start(bg)
			d.Scheduler.Start(bg)
			d.Poller.Start(bg)
			d.Dispatcher.Start(bg)

			if addr := d.Params.Config.MetricsAddr; addr != "" {
				srv, err := d.Metrics.Listen(addr, d.Logger)
				if err != nil {
					d.Logger.Warn("metrics listener disabled", zap.String("addr", addr), zap.Error(err))
				} else {
					metricsSrv = srv
					go func() {
						if err := srv.Serve(); err != nil {
							d.Logger.Error("metrics server error", zap.Error(err))
						}
					}()
				}
			}

			d.Logger.Info("starting transport", zap.String("transport", d.Provider.Name()))
			if err := d.Provider.Start(bg); err != nil {
				// The client stays usable offline; the operator sees why.
				d.Logger.Error("transport start failed", zap.Error(err))
				_ = d.Machine.Transition(status.Error)
				d.Bus.Emit(bus.KindNotice, "Could not connect: "+err.Error())
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Provider.Stop()
			d.Queue.Close()
			d.Dispatcher.Stop()
			d.Poller.Stop()
			d.Scheduler.Stop()
			d.View.Stop()
			d.Relay.Stop()

			if metricsSrv != nil {
				sctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
				if err := metricsSrv.Shutdown(sctx); err != nil {
					d.Logger.Warn("metrics shutdown", zap.Error(err))
				}
				cancel()
			}
			if d.Surface.Stream != nil {
				d.Surface.Stream.Close()
			}
			if err := d.Lock.Release(); err != nil {
				d.Logger.Warn("error releasing lock", zap.Error(err))
			}
			d.Logger.Info("client stopped")
			return d.Log.Close()
		},
	})
}
