// Command foxelfs wires the engine's components into a runnable process:
// the adapter registry, path router, virtual filesystem facade, task
// queue, automation matcher, thumbnail cache, processor registry, and the
// two HTTP surfaces the engine exposes at the wire level — a WebDAV
// server and a temp-link GET endpoint.
package main

import (
	"context"
	goerrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/objectfs/objectfs/internal/adapter"
	"github.com/objectfs/objectfs/internal/automation"
	"github.com/objectfs/objectfs/internal/config"
	"github.com/objectfs/objectfs/internal/metrics"
	"github.com/objectfs/objectfs/internal/processor"
	"github.com/objectfs/objectfs/internal/router"
	"github.com/objectfs/objectfs/internal/store"
	"github.com/objectfs/objectfs/internal/taskqueue"
	"github.com/objectfs/objectfs/internal/templink"
	"github.com/objectfs/objectfs/internal/thumbnail"
	"github.com/objectfs/objectfs/internal/vfs"
	"github.com/objectfs/objectfs/internal/webdavserver"
	"github.com/objectfs/objectfs/pkg/api"
	"github.com/objectfs/objectfs/pkg/errors"
	"github.com/objectfs/objectfs/pkg/health"
	"github.com/objectfs/objectfs/pkg/status"

	_ "github.com/objectfs/objectfs/internal/backends/local"
	_ "github.com/objectfs/objectfs/internal/backends/onedrive"
	_ "github.com/objectfs/objectfs/internal/backends/quark"
	_ "github.com/objectfs/objectfs/internal/backends/s3"
	_ "github.com/objectfs/objectfs/internal/backends/telegram"
	_ "github.com/objectfs/objectfs/internal/backends/webdavsrc"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	listenAddr := flag.String("listen", ":8443", "HTTP listen address")
	flag.Parse()

	cfg := config.NewDefault()
	if *configPath != "" {
		if err := cfg.LoadFromFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to apply env overrides: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Global.LogLevel, cfg.Global.LogFile)
	slog.SetDefault(logger)

	db, err := store.Open(cfg.Global.StoreFile)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	healthTracker := health.NewTracker(health.DefaultConfig())
	statusTracker := status.NewTracker(status.DefaultTrackerConfig())

	collectorCfg := &metrics.Config{
		Enabled:   cfg.Global.MetricsPort > 0,
		Port:      cfg.Global.MetricsPort,
		Path:      "/metrics",
		Namespace: "foxelfs",
	}
	collector, err := metrics.NewCollector(collectorCfg)
	if err != nil {
		logger.Error("failed to create metrics collector", "error", err)
		os.Exit(1)
	}

	registry := adapter.New(db, logger)
	registry.SetMetricsCollector(collector)
	registry.SetHealthTracker(healthTracker)
	if err := registry.Refresh(); err != nil {
		logger.Error("failed to load adapters", "error", err)
		os.Exit(1)
	}

	rtr := router.New(registry)

	queue := taskqueue.New(256)
	matcher := automation.New(db, queue, logger)

	facade := vfs.New(rtr, matcher)

	// No embedder is configured: vector_index stays registered for its
	// create/destroy lifecycle calls, and "index"/"remove" actions return
	// NotImplemented until a description/embedding backend is wired in.
	processor.RegisterAll(facade, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := queue.StartWorker(ctx); err != nil {
		logger.Error("failed to start task queue worker", "error", err)
		os.Exit(1)
	}
	defer queue.StopWorker()

	if err := collector.Start(ctx); err != nil {
		logger.Error("failed to start metrics collector", "error", err)
		os.Exit(1)
	}
	defer collector.Stop(context.Background())

	adminServer := api.NewServer(api.ServerConfig{
		Address:    fmt.Sprintf(":%d", cfg.Global.HealthPort),
		EnableCORS: true,
	}, statusTracker, healthTracker)
	adminServer.StartBackground()
	defer adminServer.Shutdown(context.Background())

	_ = thumbnail.New(cfg.Global.ThumbCacheDir) // reserved for a future thumbnail HTTP route

	signer := templink.New(cfg.Global.TempLinkSecretKey)

	mux := http.NewServeMux()
	mux.Handle(cfg.Global.WebDAVPrefix+"/", webdavserver.New(facade, cfg.Global.WebDAVPrefix, logger))
	mux.HandleFunc("/api/fs/public/", publicLinkHandler(facade, signer, logger))

	srv := &http.Server{Addr: *listenAddr, Handler: mux}

	go func() {
		logger.Info("foxelfs listening", "addr", *listenAddr)
		if err := srv.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
	_ = srv.Close()
}

func publicLinkHandler(facade *vfs.Facade, signer *templink.Signer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Path[len("/api/fs/public/"):]
		p, err := signer.Verify(token)
		if err != nil {
			writeError(w, err)
			return
		}

		resp, err := facade.StreamFile(r.Context(), p, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		defer resp.Body.Close()

		if resp.ContentLength > 0 {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", resp.ContentLength))
		}
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, resp.Body); err != nil {
			logger.Warn("failed to stream public link body", "error", err)
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	var ofe *errors.ObjectFSError
	if goerrors.As(err, &ofe) {
		http.Error(w, ofe.Message, errors.GetDefaultHTTPStatus(ofe.Code))
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func newLogger(level, file string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	out := io.Writer(os.Stdout)
	if file != "" {
		if f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		}
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: lvl}))
}
