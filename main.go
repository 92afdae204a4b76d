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

	"github.com/example/learnstats/internal/analytics"
	"github.com/example/learnstats/internal/config"
	"github.com/example/learnstats/internal/database"
	"github.com/example/learnstats/internal/lock"
	"github.com/example/learnstats/internal/logging"
	"github.com/example/learnstats/internal/metrics"
	"github.com/example/learnstats/internal/ops"
	"github.com/example/learnstats/internal/quiz"
	"github.com/example/learnstats/internal/scheduler"
	"github.com/example/learnstats/internal/spaced_repetition"
	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type options struct {
	configPath string
	mode       string
	from       string
	to         string
	userID     int64
	itemID     int64
	knew       bool
	timeZone   string
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&o.mode, "mode", "serve", "serve, maintain, overview, dashboard or review")
	flag.StringVar(&o.from, "from", "", "first day of the overview (YYYY-MM-DD)")
	flag.StringVar(&o.to, "to", "", "last day of the overview (YYYY-MM-DD)")
	flag.Int64Var(&o.userID, "user", 0, "user id for the dashboard or review")
	flag.Int64Var(&o.itemID, "item", 0, "vocab item id for review")
	flag.BoolVar(&o.knew, "knew", true, "whether the reviewed item was known")
	flag.StringVar(&o.timeZone, "tz", "", "IANA zone for the dashboard, defaults to the user's zone")
	flag.Parse()
	return o
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("learnstats stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *zap.Logger) error {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	backend := cfg.LockBackend()
	locker, closeLocker, err := lock.New(ctx, cfg.Lock, backend, db)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLocker(); err != nil {
			logger.Warn("failed to close lock backend", zap.Error(err))
		}
	}()
	logger.Info("storage ready", zap.String("database", cfg.Database.Type), zap.String("lock_backend", backend))

	m := metrics.NewMetrics()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := m.Register(reg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	maintenance := analytics.NewMaintenance(db, locker, cfg.Lock.Name, analytics.NewRetention(), logger, m)
	reader := analytics.NewReader(db, maintenance)
	quizzes := newQuizService(cfg, db, maintenance, logger, m)

	switch opts.mode {
	case "maintain":
		res, err := maintenance.EnsureRun(ctx)
		if err != nil {
			return err
		}
		return printJSON(res)
	case "overview":
		overview, err := reader.AnalyticsOverview(ctx, opts.from, opts.to)
		if err != nil {
			return err
		}
		return printJSON(overview)
	case "dashboard":
		dashboard, err := reader.DashboardLearningMetrics(ctx, opts.userID, opts.timeZone)
		if err != nil {
			return err
		}
		return printJSON(dashboard)
	case "review":
		res, err := quizzes.Review(ctx, quiz.AnswerInput{UserID: opts.userID, ItemID: opts.itemID, Knew: opts.knew})
		if err != nil {
			return err
		}
		return printJSON(res)
	case "serve":
		return serve(ctx, cfg, db, locker, maintenance, reg, logger)
	default:
		return fmt.Errorf("unknown mode %q", opts.mode)
	}
}

// newQuizService builds the quiz lifecycle service around a ledger using the
// configured active threshold
func newQuizService(cfg *config.Config, db *sqlx.DB, maintenance *analytics.Maintenance, logger *zap.Logger, m *metrics.Metrics) *quiz.Service {
	ledger := analytics.NewLedger(cfg.Analytics.ActiveReviewThreshold)
	logging.OrNop(logger).Info("ledger ready", zap.Int("active_review_threshold", ledger.Threshold()))
	return quiz.NewService(db, ledger, analytics.NewTracker(), spaced_repetition.NewLadder(), maintenance, logger, m)
}

func serve(ctx context.Context, cfg *config.Config, db *sqlx.DB, locker lock.Locker, maintenance *analytics.Maintenance, reg *prometheus.Registry, logger *zap.Logger) error {
	// catch up once at boot, then leave the rest to the sweeper and request paths
	maintenance.Trigger(ctx)

	sweeper := scheduler.New(maintenance, cfg.Maintenance.SweepInterval, logger)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	var server *http.Server
	serverErr := make(chan error, 1)
	if cfg.Metrics.Addr != "" {
		checks := map[string]ops.Check{"database": db.PingContext}
		if pinger, ok := locker.(interface{ Ping(context.Context) error }); ok {
			checks["lock"] = pinger.Ping
		}
		server = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           ops.NewRouter(reg, checks, maintenance, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("ops listener started", zap.String("addr", cfg.Metrics.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	logger.Info("learnstats started, press Ctrl+C to stop")
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("ops listener failed: %w", err)
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error during shutdown", zap.Error(err))
		}
	}
	logger.Info("learnstats stopped")
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
