package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/matheus3301/wppcli/internal/app"
	"github.com/matheus3301/wppcli/internal/config"
	"github.com/matheus3301/wppcli/internal/lock"
	"github.com/matheus3301/wppcli/internal/session"
)

type options struct {
	session    string
	configPath string
	transport  string
	plain      bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "wppcli",
		Short: "Terminal messaging client",
		Long: `wppcli is a single-operator messaging client for the terminal.

Incoming messages are announced as they arrive; chats are opened by ID,
sent messages can be scheduled for deletion on both ends.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.session, "session", "", "session name (overrides config default)")
	f.StringVar(&opts.configPath, "config", session.ConfigPath(), "path to config.toml")
	f.StringVar(&opts.transport, "transport", "", "provider: whatsapp or loopback (overrides config)")
	f.BoolVar(&opts.plain, "plain", false, "line-based console instead of the full-screen UI")
	return cmd
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", opts.configPath, err)
	}
	if opts.transport != "" {
		cfg.Transport = opts.transport
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", opts.configPath, err)
	}

	name := session.Resolve(opts.session, cfg.DefaultSession)
	if err := session.ValidateName(name); err != nil {
		return err
	}

	tty := isTerminal(in) && isTerminal(out)
	params := app.Params{
		Session:     name,
		Paths:       session.For(name),
		Config:      cfg,
		Plain:       opts.plain || !tty,
		ClearScreen: tty,
		In:          in,
		Out:         out,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runner *app.Runner
	fxApp := fx.New(
		app.Module(params),
		fx.Populate(&runner),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	startCtx, cancel := context.WithTimeout(ctx, fxApp.StartTimeout())
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		var held *lock.LockHeldError
		if errors.As(err, &held) {
			return fmt.Errorf("session %q is already open: %w", name, held)
		}
		return err
	}

	runErr := runner.Run(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), fxApp.StopTimeout())
	defer cancelStop()
	if err := fxApp.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
