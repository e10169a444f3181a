package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/maaaruch/shallweeat-bot/internal/api"
	"github.com/maaaruch/shallweeat-bot/internal/app"
	"github.com/maaaruch/shallweeat-bot/internal/board"
	"github.com/maaaruch/shallweeat-bot/internal/config"
	"github.com/maaaruch/shallweeat-bot/internal/logger"
	"github.com/maaaruch/shallweeat-bot/internal/recommend"
	"github.com/maaaruch/shallweeat-bot/internal/storage"
	"github.com/maaaruch/shallweeat-bot/internal/storage/postgres"
	"github.com/maaaruch/shallweeat-bot/internal/storage/sqlite"
	"github.com/maaaruch/shallweeat-bot/internal/vote"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Format:      cfg.Log.Format,
		Environment: cfg.Env,
		Level:       logger.ParseLevel(cfg.Log.Level),
		AddSource:   !cfg.IsProduction(),
	})
	slog.SetDefault(log)

	if err := run(ctx, cfg, log, os.Args[1:]); err != nil {
		log.Error("exiting", "error", err)
		os.Exit(1)
	}
	log.Info("shut down")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string) error {
	store, err := openStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	if len(args) > 0 && args[0] == "migrate" {
		log.Info("schema is up to date", "driver", cfg.DB.Driver)
		return nil
	}

	boards := board.NewService(store, log)
	engine := recommend.NewEngine(store, log)
	ledger := vote.NewLedger(store, log)
	tally := vote.NewTally(store)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Addr != "" {
		srv := &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: api.NewServer(api.Services{
				Boards:    boards,
				Recommend: engine,
				Ledger:    ledger,
				Tally:     tally,
			}, api.Options{
				CORSOrigins:        cfg.HTTP.CORSOrigins,
				RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
			}, log),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Info("http server listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.Telegram.Token != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return fmt.Errorf("create bot: %w", err)
		}
		bot.Debug = cfg.Telegram.Debug
		log.Info("bot started", "username", bot.Self.UserName)

		application := app.New(bot, app.Services{
			Boards:    boards,
			Recommend: engine,
			Ledger:    ledger,
			Tally:     tally,
		}, log)
		g.Go(func() error {
			application.Run(ctx)
			return nil
		})
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is not set, running without the bot")
	}

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.DBConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	default:
		if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		s, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return s, nil
	}
}
