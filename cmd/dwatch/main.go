package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/psi"
	"pkt.systems/pslog"

	"github.com/Dicklesworthstone/dwatch/internal/config"
	"github.com/Dicklesworthstone/dwatch/internal/focus"
	"github.com/Dicklesworthstone/dwatch/internal/persist"
	"github.com/Dicklesworthstone/dwatch/internal/record"
	"github.com/Dicklesworthstone/dwatch/internal/sampler"
	"github.com/Dicklesworthstone/dwatch/internal/signals"
	"github.com/Dicklesworthstone/dwatch/internal/styles"
	"github.com/Dicklesworthstone/dwatch/internal/ui"
	"github.com/Dicklesworthstone/dwatch/internal/watch"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	ctx = pslog.ContextWithLogger(ctx, newLogger(false))

	root := newRootCmd()
	root.SetArgs(os.Args[1:])
	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("dwatch failed")
		return 1
	}
	return 0
}

func newLogger(verbose bool) pslog.Logger {
	opts := pslog.Options{Mode: pslog.ModeConsole, MinLevel: pslog.InfoLevel}
	if verbose {
		opts.MinLevel = pslog.DebugLevel
	}
	return pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(opts),
	)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dwatch [flags] command [args...]",
		Short: "Run commands periodically and highlight how their numbers change",
		Long: `dwatch runs the given commands every interval and renders the numbers in
their output together with deltas and rates.

While running, Ctrl-Z (SIGTSTP) moves the focus to the next number and
Ctrl-\ (SIGQUIT) cycles the style of the focused number, or of all numbers
when nothing is focused. Per-number styles are remembered per command line.

Styles: ` + styles.Describe(),
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			cfg, err := config.Load(cmd.Flags(), args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if cfg.Verbose {
				ctx = pslog.ContextWithLogger(ctx, newLogger(true))
			}
			return run(ctx, cfg, cmd.OutOrStdout())
		},
	}
	root.Flags().SetInterspersed(false)
	config.BindFlags(root.Flags())
	return root
}

func run(ctx context.Context, cfg config.Config, out io.Writer) error {
	log := pslog.Ctx(ctx)

	path := cfg.StylesFile
	if path == "" {
		p, err := persist.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	store, err := persist.NewStoreWithLogger(path, log)
	if err != nil {
		return err
	}
	key := persist.Key(cfg.Commands)
	overrides, err := store.Load(key)
	if err != nil {
		log.Warn("ignoring saved styles", "command", key, "err", err)
		overrides = nil
	}

	global, _ := styles.Index(cfg.Style)
	state := focus.New(styles.Len(), global, overrides)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	signals.Listen(ctx, state)

	var opts []watch.Option
	if cfg.DataFile != "" {
		rec, err := record.Open(cfg.DataFile)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Warn("closing data file failed", "path", rec.Path(), "err", err)
			}
		}()
		opts = append(opts, watch.WithRecorder(rec))
	}

	exe := &sampler.Executor{Shell: cfg.Shell, Timeout: cfg.Timeout}
	w := watch.New(watch.Config{
		Commands: cfg.Commands,
		Interval: cfg.Interval,
		RunFor:   cfg.RunFor,
		NoBanner: cfg.NoBanner,
	},
		sampler.New(cfg.Commands, cfg.Interval, exe),
		state,
		ui.NewScreen(out, useColor(cfg, out), cfg.Interval),
		store,
		opts...,
	)
	log.Debug("watching", "commands", len(cfg.Commands), "interval", cfg.Interval, "timeout", cfg.Timeout, "styles_file", path)
	return w.Run(ctx)
}

func useColor(cfg config.Config, out io.Writer) bool {
	if cfg.NoColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
