package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"

	"github.com/MimeLyc/srt-translator/internal/config"
	"github.com/MimeLyc/srt-translator/internal/httpapi"
	"github.com/MimeLyc/srt-translator/internal/persistence"
	"github.com/MimeLyc/srt-translator/internal/service"
	"github.com/MimeLyc/srt-translator/pkg/log"
)

const shutdownTimeout = 10 * time.Second

// Exit codes of the one-shot mode.
const (
	exitOK       = 0
	exitError    = 1
	exitFallback = 2
)

type scheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

type options struct {
	input   string
	output  string
	target  string
	envFile string
	serve   bool
	watch   bool
	preview int
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("srt-translator", flag.ContinueOnError)
	fs.StringVar(&opts.input, "in", "", "SRT file to translate")
	fs.StringVar(&opts.output, "out", "", "output path (default: <input>.<target>.srt)")
	fs.StringVar(&opts.target, "target", "", "target language tag (default: TARGET_LANGUAGE)")
	fs.StringVar(&opts.envFile, "env", ".env", "dotenv file loaded before reading the environment")
	fs.BoolVar(&opts.serve, "serve", false, "run the HTTP API on SERVER_ADDR")
	fs.BoolVar(&opts.watch, "watch", false, "translate new SRT files under WATCH_DIR on CRON_EXPR")
	fs.IntVar(&opts.preview, "preview", 5, "number of translated lines to print in one-shot mode")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.input == "" && !opts.serve && !opts.watch {
		fs.Usage()
		return opts, fmt.Errorf("one of -in, -serve or -watch is required")
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(exitOK)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}

	if err := config.LoadDotEnv(opts.envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}
	log.InitLogger(log.ParseLevel(os.Getenv("LOG_LEVEL")))
	defer func() { _ = log.GetLogger().Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		log.Error("Failed to load configuration: %v\n advice: %s", err, service.Advice(service.WrapError(err, service.ErrConfig, "invalid configuration")))
		os.Exit(exitError)
	}
	if cfg.LLM.Debug {
		log.GetLogger().SetLevel(log.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.input != "" {
		code := runOnce(ctx, cfg, opts)
		_ = log.GetLogger().Sync()
		os.Exit(code)
	}
	if err := runServer(ctx, cfg, opts); err != nil {
		log.Error("Server stopped: %v", err)
		os.Exit(exitError)
	}
}

// loadConfig reads the environment, then overlays the runtime settings file
// when one exists.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return nil, err
	}
	overlay, err := config.WithRuntimeSettingsFile(cfg.System.SettingsFile)
	if err != nil {
		return nil, err
	}
	return config.NewFromEnv(overlay)
}

func openHistory(cfg *config.Config) *persistence.SQLiteStore {
	store, err := persistence.NewSQLiteStore(cfg.System.DBPath)
	if err != nil {
		log.Warn("Translation history disabled: %v", err)
		return nil
	}
	return store
}

func runOnce(ctx context.Context, cfg *config.Config, opts options) int {
	target := language.Und
	if opts.target != "" {
		tag, err := language.Parse(opts.target)
		if err != nil {
			log.Error("Invalid -target %q: %v", opts.target, err)
			return exitError
		}
		target = tag
	}

	var svcOpts []service.Option
	if store := openHistory(cfg); store != nil {
		defer store.Close()
		svcOpts = append(svcOpts, service.WithHistory(store))
	}
	svc, err := service.NewFromConfig(cfg, svcOpts...)
	if err != nil {
		service.NewDefaultErrorHandler().Handle(err)
		return exitError
	}

	result, err := svc.TranslateFile(ctx, opts.input, opts.output, target, persistence.SourceCLI)
	if err != nil {
		service.NewDefaultErrorHandler().Handle(err)
		return exitError
	}

	service.PrintTranslationReport(result)
	if opts.preview > 0 {
		fmt.Print(service.GetTranslationPreview(result, opts.preview))
	}
	if result.Fallback {
		return exitFallback
	}
	return exitOK
}

func runServer(ctx context.Context, cfg *config.Config, opts options) error {
	store := openHistory(cfg)
	var svcOpts []service.Option
	if store != nil {
		defer store.Close()
		svcOpts = append(svcOpts, service.WithHistory(store))
	}
	svc, err := service.NewFromConfig(cfg, svcOpts...)
	if err != nil {
		return err
	}

	engine := cron.New()
	var sched scheduler
	if opts.watch {
		if cfg.Translate.WatchDir == "" {
			return fmt.Errorf("-watch requires WATCH_DIR")
		}
		sched = service.NewWatcher(svc, cfg.Translate.WatchDir, cfg.Translate.CronExpr, engine)
	}

	var srv httpServer
	if opts.serve {
		settingsStore, err := config.NewRuntimeSettingsStore(cfg.System.SettingsFile, cfg.RuntimeSettings())
		if err != nil {
			return err
		}
		srv = httpapi.NewServer(svc,
			httpapi.WithAllowedOrigins(cfg.HTTP.AllowedOrigins),
			httpapi.WithRuntimeSettingsStore(settingsStore),
			httpapi.WithRuntimeSettingsApplier(func(next config.RuntimeSettings) error {
				updated, err := config.NewFromEnv(config.WithRuntimeSettings(next))
				if err != nil {
					return err
				}
				return svc.Reconfigure(updated)
			}),
		)
	}

	return runWithComponents(ctx, cfg, sched, engine, srv)
}

// runWithComponents starts the optional watcher and HTTP server and blocks
// until ctx is cancelled or the server fails.
func runWithComponents(
	ctx context.Context,
	cfg *config.Config,
	sched scheduler,
	engine cronEngine,
	srv httpServer,
) error {
	if sched != nil {
		if err := sched.Schedule(ctx); err != nil {
			return fmt.Errorf("schedule watcher: %w", err)
		}
	}
	engine.Start()
	defer func() {
		<-engine.Stop().Done()
		log.Info("Scheduler stopped")
	}()

	serveErr := make(chan error, 1)
	if srv != nil {
		go func() {
			log.Info("HTTP API listening on %s", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
				return
			}
			serveErr <- nil
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-serveErr
}
