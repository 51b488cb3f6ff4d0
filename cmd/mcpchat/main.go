package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"mcpchat/internal/adapter/directory"
	tuichat "mcpchat/internal/adapter/tui/chat"
	"mcpchat/internal/approval"
	"mcpchat/internal/infra/config"
	"mcpchat/internal/infra/logger"
	"mcpchat/internal/infra/tracer"
	"mcpchat/internal/transport"
	"mcpchat/internal/usecase/chat"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "mcpchat.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	var resolver transport.Resolver
	if cfg.Transport.URL != "" {
		resolver = transport.StaticResolver(cfg.Transport.URL)
	} else {
		resolver = transport.PortFileResolver{Path: cfg.Transport.PortFile}
	}

	client := transport.NewClient(resolver, cfg.Transport.ReconnectWait, log)
	dir := directory.NewClient(cfg.Directory, log)
	svc := chat.NewService(client, dir, approval.NewQueue(), log)

	// Coalescing signals: the TUI re-reads service state per tick, so one
	// pending tick per channel is enough. Resync gets its own channel so a
	// reconnect re-fetches the cached conversation list instead of only
	// re-rendering.
	updates := make(chan struct{}, 1)
	resyncs := make(chan struct{}, 1)
	notify := func(ch chan struct{}) func() {
		return func() {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
	svc.SetOnChange(notify(updates))
	svc.SetOnResync(notify(resyncs))

	go client.Run(ctx)
	go svc.Run(ctx, client.Events(), client.States())

	model := tuichat.NewModel(ctx, svc, updates, resyncs, cfg.Directory.ListLimit)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}

	log.Info("shutting down")
	return nil
}
