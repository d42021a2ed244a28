// Package app wires the job relay components and runs them until a signal
// arrives.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"jobrelay/internal/adapter/dispatcher"
	"jobrelay/internal/adapter/httpapi"
	"jobrelay/internal/adapter/logstore"
	"jobrelay/internal/adapter/scheduler"
	"jobrelay/internal/adapter/telegram"
	"jobrelay/internal/adapter/telegram/handlers"
	"jobrelay/internal/adapter/telegram/middleware"
	"jobrelay/internal/config"
	"jobrelay/internal/platform/clock"
	"jobrelay/internal/platform/httpclient"
	"jobrelay/internal/platform/logger"
	"jobrelay/internal/platform/pg"
	"jobrelay/internal/platform/sqlite"
	"jobrelay/internal/usecase/registration"
)

const webhookPath = "/telegram/webhook"

// App wires application components.
type App struct {
	cfg config.Config
	log *slog.Logger
}

// archive is the durable copy of the job log.
type archive interface {
	logstore.Sink
	registration.History
	io.Closer
}

// New creates a new App instance and loads configuration.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		File:         cfg.Log.File,
		App:          "jobrelay",
		Redact:       []string{"webhook_secret"},
	})
	return &App{cfg: cfg, log: log}, nil
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	defer func() { _ = logger.Close(a.log) }()
	a.log.Info("starting", "env", a.cfg.Env, "addr", a.cfg.HTTP.Addr, "archive", a.cfg.Archive.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.New()

	arc, err := a.openArchive(ctx)
	if err != nil {
		return err
	}
	storeOpts := []logstore.Option{logstore.WithClock(clk), logstore.WithLogger(a.log)}
	var history registration.History
	if arc != nil {
		storeOpts = append(storeOpts, logstore.WithSink(arc, a.cfg.Archive.Queue))
		history = arc
	}
	store := logstore.New(storeOpts...)

	client := httpclient.New(
		httpclient.WithLogger(a.log),
		httpclient.WithTimeout(a.cfg.Dispatch.Timeout),
		httpclient.WithMaxBodySize(a.cfg.Dispatch.MaxBody),
	)
	runner := registration.NewBatchRunner(dispatcher.New(client), store, a.log)

	var (
		b        *bot.Bot
		disp     *telegram.Dispatcher
		notifier *telegram.Notifier
	)
	hooks := scheduler.JobHooks{
		OnTerminated: func(info scheduler.JobInfo, reason scheduler.Reason) {
			a.log.Info("job finished", "job_id", info.ID, "reason", string(reason), "retries", info.RetriesElapsed)
		},
	}
	if a.cfg.Telegram.Token != "" {
		b, err = a.newBot(&disp)
		if err != nil {
			return err
		}
		notifier = telegram.NewNotifier(b, a.cfg.Telegram.NotifyChatIDs, 0, telegram.WithNotifierLogger(a.log))
		logOnly := hooks.OnTerminated
		hooks.OnTerminated = func(info scheduler.JobInfo, reason scheduler.Reason) {
			logOnly(info, reason)
			notifier.OnTerminated(info, reason)
		}
	}

	sched := scheduler.New(scheduler.Config{
		Logger:   a.log,
		Clock:    clk,
		Location: a.cfg.Location,
		Runner:   runner,
		Log:      store,
		JobHooks: hooks,
	})
	sched.Start()

	svc := registration.NewService(registration.Config{
		Runner:    runner,
		Scheduler: sched,
		Logs:      store,
		History:   history,
		Clock:     clk,
		Logger:    a.log,
	})

	router := httpapi.NewRouter(httpapi.NewHandler(svc, a.log), httpapi.RouterOptions{
		Logger:    a.log,
		RateLimit: a.cfg.HTTP.RateLimit,
		RateBurst: a.cfg.HTTP.RateBurst,
	})
	var root http.Handler = router

	if b != nil {
		rate := middleware.NewRateLimiter(time.Second, clk)
		acl := middleware.NewACL(a.cfg.Telegram.AllowedIDs)
		cmds := handlers.NewCommands(svc, a.log)
		disp = telegram.NewDispatcher(b, a.cfg.Telegram.Workers, middleware.Chain(cmds.Handle, rate.Middleware, acl.Middleware))

		if a.cfg.Telegram.WebhookURL != "" {
			if _, err := b.SetWebhook(ctx, &bot.SetWebhookParams{
				URL:         a.cfg.Telegram.WebhookURL,
				SecretToken: a.cfg.Telegram.WebhookSecret,
			}); err != nil {
				return fmt.Errorf("set webhook: %w", err)
			}
			// The webhook bypasses the API rate limiter.
			mux := http.NewServeMux()
			mux.Handle("POST "+webhookPath, b.WebhookHandler())
			mux.Handle("/", router)
			root = mux
			go b.StartWebhook(ctx)
			a.log.Info("telegram webhook mode", "path", webhookPath)
		} else {
			go b.Start(ctx)
			a.log.Info("telegram polling mode")
		}
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()
	a.log.Info("http server listening", "addr", a.cfg.HTTP.Addr)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-srvErr:
		if err != nil {
			a.log.Error("server", slog.Any("err", err))
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, a.shutdown(shutdownCtx, srv, sched, notifier, disp, store, arc))
}

// shutdown stops components in dependency order: intake first, storage last.
func (a *App) shutdown(
	ctx context.Context,
	srv *http.Server,
	sched *scheduler.Scheduler,
	notifier *telegram.Notifier,
	disp *telegram.Dispatcher,
	store *logstore.Store,
	arc archive,
) error {
	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := sched.StopContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler stop: %w", err))
	}
	if notifier != nil {
		if err := notifier.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("notifier close: %w", err))
		}
	}
	if disp != nil {
		disp.Close()
	}
	if err := store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("log store close: %w", err))
	}
	if arc != nil {
		if err := arc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("archive close: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		a.log.Error("shutdown", slog.Any("err", err))
	} else {
		a.log.Info("stopped")
	}
	return err
}

func (a *App) openArchive(ctx context.Context) (archive, error) {
	switch a.cfg.Archive.Driver {
	case config.ArchiveSQLite:
		path := a.cfg.Archive.SQLitePath
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create archive dir: %w", err)
		}
		arc, err := sqlite.NewArchive(ctx, path, a.log)
		if err != nil {
			return nil, fmt.Errorf("sqlite archive: %w", err)
		}
		return arc, nil
	case config.ArchivePostgres:
		arc, err := pg.NewArchive(ctx, a.cfg.Archive.PGDSN, a.log)
		if err != nil {
			return nil, fmt.Errorf("postgres archive: %w", err)
		}
		return arc, nil
	default:
		return nil, nil
	}
}

// newBot builds the Telegram client. Updates go to *disp, which is assigned
// once the command handlers exist.
func (a *App) newBot(disp **telegram.Dispatcher) (*bot.Bot, error) {
	log := a.log.With("component", "telegram")
	opts := []bot.Option{
		bot.WithDefaultHandler(func(ctx context.Context, _ *bot.Bot, upd *models.Update) {
			if d := *disp; d != nil {
				d.Dispatch(ctx, upd)
			}
		}),
		bot.WithAllowedUpdates([]string{"message", "callback_query"}),
		bot.WithErrorsHandler(func(err error) {
			log.Warn("telegram", slog.Any("err", err))
		}),
	}
	if a.cfg.Telegram.WebhookSecret != "" {
		opts = append(opts, bot.WithWebhookSecretToken(a.cfg.Telegram.WebhookSecret))
	}
	b, err := bot.New(a.cfg.Telegram.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return b, nil
}
