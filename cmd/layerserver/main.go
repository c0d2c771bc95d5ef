package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/openprocon/layerd/internal/accounts"
	"github.com/openprocon/layerd/internal/battlemap"
	"github.com/openprocon/layerd/internal/config"
	"github.com/openprocon/layerd/internal/event"
	"github.com/openprocon/layerd/internal/layer"
	"github.com/openprocon/layerd/internal/plugin"
	"github.com/openprocon/layerd/internal/vars"
)

const ConfigPath = "config/layerserver.yaml"

const Version = "1.5.4.0"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cancel); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, shutdown context.CancelFunc) error {
	// Configure slog
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	slog.Info("layer server starting", "version", Version)

	// Load config
	cfgPath := ConfigPath
	if p := os.Getenv("LAYERD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadLayerServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "bind", cfg.BindAddress, "port", cfg.Port, "game", cfg.Game.Host)

	bus := event.NewBus()

	// Account storage: Postgres when configured, in-memory otherwise.
	var persister accounts.Persister
	if cfg.Database.Enabled() {
		if err := accounts.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		store, err := accounts.NewPostgresStore(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer store.Close()
		persister = store
		slog.Info("database connected")
	}

	accountRegistry := accounts.NewRegistry(bus, persister)
	if persister != nil {
		if err := accountRegistry.Load(ctx); err != nil {
			return fmt.Errorf("loading accounts: %w", err)
		}
		slog.Info("accounts loaded", "count", len(accountRegistry.Names()))
	}

	varStore := vars.NewStore(bus)
	for name, value := range cfg.Variables {
		varStore.Set(name, value)
	}

	pluginManager := plugin.NewManager(bus)
	zoneStore := battlemap.NewStore(bus)

	// Connect to the game server.
	gameAddr := net.JoinHostPort(cfg.Game.Host, strconv.Itoa(cfg.Game.Port))
	game, err := layer.DialGame(ctx, gameAddr, cfg.Game.Password, slog.Default())
	if err != nil {
		return fmt.Errorf("connecting to game server: %w", err)
	}
	defer game.Close()
	slog.Info("game server connected", "addr", gameAddr)

	// Mirror in-game chat onto the chat console so controllers see it
	// as procon.chat.onConsole.
	chatLog := event.NewConsoleSource(bus, event.ChatConsole)
	go func() {
		for {
			select {
			case p := <-game.Events():
				if len(p.Words) >= 3 && strings.EqualFold(p.Words[0], "player.onChat") {
					chatLog.Write(p.Words[1] + ": " + p.Words[2])
				}
			case <-game.Done():
				return
			}
		}
	}()

	registry := layer.NewRegistry()
	relay := layer.NewRelay(registry, layer.Privileges(cfg.MaxPrivileges))
	relay.Attach(bus)
	defer relay.Detach(bus)
	defer relay.NotifyShutdown()

	server := layer.NewServer(net.JoinHostPort(cfg.BindAddress, strconv.Itoa(cfg.Port)), layer.Deps{
		Accounts:      accountRegistry,
		Vars:          varStore,
		Plugins:       pluginManager,
		Zones:         zoneStore,
		Bus:           bus,
		Registry:      registry,
		Upstream:      game,
		Shutdown:      shutdown,
		Log:           slog.Default(),
		Version:       Version,
		NameFormat:    cfg.NameFormat,
		MaxPrivileges: layer.Privileges(cfg.MaxPrivileges),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Run(gctx); err != nil {
			return fmt.Errorf("layer server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-game.Done():
			return errors.New("game connection lost")
		case <-gctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
