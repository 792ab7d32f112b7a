// Package runtime wires configuration, telemetry, the engine, storage, the
// optional event bus, and the HTTP server into one process lifecycle.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chimeworks/chime/internal/bus"
	"github.com/chimeworks/chime/internal/config"
	"github.com/chimeworks/chime/internal/engine"
	"github.com/chimeworks/chime/internal/history"
	"github.com/chimeworks/chime/internal/natsserver"
	"github.com/chimeworks/chime/internal/server"
	"github.com/chimeworks/chime/internal/synth"
)

type Runtime struct {
	cfg     config.Config
	version string
	logger  *slog.Logger

	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, version string, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:     cfg,
		version: version,
		logger:  logger,
	}
}

// Start runs the service until ctx is cancelled, then shuts everything down
// gracefully.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry
	defer r.closeTelemetry()

	hist, err := history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer hist.Close()

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	var busClient *bus.Client
	if r.cfg.Bus.Enabled {
		busClient, err = bus.Connect(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		defer busClient.Close()
	}

	recorders := synth.MultiRecorder{hist}
	if busClient != nil {
		recorders = append(recorders, busClient)
	}

	engCfg := r.cfg.Engine
	lazyEngine := engine.NewLazy(
		engine.Info{ModelID: engCfg.ModelID, Device: engCfg.Device},
		func() (engine.Engine, error) { return engine.New(engCfg) },
		r.logger,
	)
	gateway := synth.NewGateway(r.cfg.Synthesis, lazyEngine, recorders, r.logger)

	api := server.New(r.cfg, r.version, gateway, lazyEngine, hist, r.logger)
	mux := http.NewServeMux()
	api.Register(mux)
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.Server.Bind, r.cfg.Server.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           server.WithCORS(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("engine", engCfg.Mode))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	return nil
}

// closeTelemetry flushes and releases the tracer and meter providers. Start
// defers it right after telemetry setup so the providers are shut down on
// every exit path, including setup failures further down.
func (r *Runtime) closeTelemetry() {
	if r.tracerClose == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.tracerClose(ctx); err != nil {
		r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
	}
	r.tracerClose = nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
