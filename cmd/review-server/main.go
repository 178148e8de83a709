package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shiroinekotfs/DanesfieldApp/internal/api"
	"github.com/shiroinekotfs/DanesfieldApp/internal/backend"
	"github.com/shiroinekotfs/DanesfieldApp/internal/bounds"
	"github.com/shiroinekotfs/DanesfieldApp/internal/bounds/snapshot"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/config"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/httpclient"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/observability"
	"github.com/shiroinekotfs/DanesfieldApp/internal/core/server"
	"github.com/shiroinekotfs/DanesfieldApp/internal/logger"
	"github.com/shiroinekotfs/DanesfieldApp/internal/metrics"
	"github.com/shiroinekotfs/DanesfieldApp/internal/refresh"
	"github.com/shiroinekotfs/DanesfieldApp/internal/session"
	"github.com/shiroinekotfs/DanesfieldApp/internal/views/cellcover"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	_ = godotenv.Load()

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Service:   "review-server",
		Component: "main",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting review server",
		"addr", cfg.Addr,
		"version", Version,
		"backend", cfg.BackendURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		buildVersion := os.Getenv("BUILD_VERSION")
		if buildVersion == "" {
			buildVersion = Version
		}
		p := metrics.Init(metrics.Config{
			Build: metrics.BuildInfo{
				Version:   buildVersion,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		observability.Init(p.Registerer(), true)
		metricsHandler = p.Handler()
	} else {
		observability.Init(nil, false)
	}

	httpClient := httpclient.NewOutbound(cfg.BackendTimeout)
	be, err := backend.New(appLog, httpClient, cfg.BackendURL)
	if err != nil {
		appLog.Error("platform client init failed", "err", err)
		return 1
	}

	// The snapshot store is a convenience, not a dependency: a dead Redis
	// only costs the warm start.
	var store bounds.SnapshotStore
	if cfg.RedisAddr != "" {
		s, err := snapshot.New(ctx, cfg.RedisAddr, snapshot.WithTTL(cfg.SnapshotTTL))
		if err != nil {
			appLog.Warn("bounds snapshot store unavailable", "err", err)
		} else {
			defer func() { _ = s.Close() }()
			store = s
		}
	}

	repo := bounds.NewRepository(appLog, be, store)
	repo.WarmStart(ctx)
	if cfg.LoadOnStart {
		if _, err := repo.Load(ctx); err != nil {
			appLog.Warn("initial bounds load failed, serving without data", "err", err)
		}
	}

	cover, err := cellcover.New(appLog, cfg.CellRes, cfg.CellResMin, cfg.CellResMax, cfg.CellCoverCache)
	if err != nil {
		appLog.Error("cell cover init failed", "err", err)
		return 1
	}

	sess := session.New(appLog)
	wsState := session.NewWorkingSetState(appLog)

	consumer := refresh.New(cfg.Refresh, appLog, repo)
	if err := consumer.Start(ctx); err != nil {
		appLog.Error("refresh consumer start failed", "err", err)
		return 1
	}
	defer consumer.Stop()

	deps := server.Deps{
		API:     api.New(appLog, sess, wsState, repo, be, cover),
		Ready:   repo,
		Metrics: metricsHandler,
	}
	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
