// Command odin-feed connects to one WebSocket session per configured
// (exchange, symbol-group) pair, normalizes exchange JSON into canonical
// records, and re-emits them as fixed-layout binary datagrams over UDP
// multicast.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/sicarius01/CryptoFeeder/internal/builder"
	"github.com/sicarius01/CryptoFeeder/internal/bufpool"
	"github.com/sicarius01/CryptoFeeder/internal/canonical"
	"github.com/sicarius01/CryptoFeeder/internal/config"
	"github.com/sicarius01/CryptoFeeder/internal/emitter"
	"github.com/sicarius01/CryptoFeeder/internal/logging"
	"github.com/sicarius01/CryptoFeeder/internal/metrics"
	"github.com/sicarius01/CryptoFeeder/internal/normalize"
	"github.com/sicarius01/CryptoFeeder/internal/seqcounter"
	"github.com/sicarius01/CryptoFeeder/internal/session"
	"github.com/sicarius01/CryptoFeeder/internal/sysinfo"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "odin-feed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:    cfg.Primary.LogLevel,
		FilePath: cfg.Primary.LogFilePath,
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logger.Sync() // nolint:errcheck

	if _, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof)); err != nil {
		logger.Warn("automaxprocs: failed to detect cgroup CPU quota", zap.Error(err))
	}
	if cfg.Primary.RuntimeThreads > 0 {
		runtime.GOMAXPROCS(int(cfg.Primary.RuntimeThreads))
	}
	logger.Info("runtime threads configured", zap.Int("gomaxprocs", runtime.GOMAXPROCS(0)))

	var metricsRegistry *metrics.Registry
	if cfg.Primary.MetricsEnabled {
		metricsRegistry = metrics.NewRegistry()
	}

	pool := bufpool.NewDefault()
	seq := seqcounter.New()
	emit, err := emitter.New(cfg.Primary.MulticastAddr, cfg.Primary.Port, cfg.Primary.InterfaceAddr)
	if err != nil {
		return fmt.Errorf("emitter: %w", err)
	}
	defer emit.Close()
	if metricsRegistry != nil {
		emit.SetDropCounter(metricsRegistry.DatagramsDropped)
	}

	tracker := session.NewTracker()
	pipeline := session.Pipeline{
		Normalizer: normalize.New(),
		Builder:    builder.New(seq, pool),
		Emitter:    emit,
		Tracker:    tracker,
		Metrics:    metricsRegistry,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if seconds, ok := config.RunDurationSeconds(os.Args); ok {
		durationCtx, cancel := context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
		defer cancel()
		ctx = durationCtx
		logger.Info("run duration configured", zap.Int("seconds", seconds))
	}

	supervisors := buildSupervisors(cfg, pipeline, logger)
	if len(supervisors) == 0 {
		return fmt.Errorf("no sessions to run")
	}

	var wg sync.WaitGroup
	sessionErrCh := make(chan error, len(supervisors))
	for _, sup := range supervisors {
		wg.Add(1)
		go func(sup *session.Supervisor) {
			defer wg.Done()
			if err := sup.Run(ctx); err != nil {
				sessionErrCh <- err
			}
		}(sup)
	}

	if metricsRegistry != nil {
		go runMetricsHTTP(ctx, cfg, metricsRegistry, logger)
	}

	sampler, samplerErr := sysinfo.New()
	if samplerErr != nil {
		logger.Warn("sysinfo sampler unavailable, heartbeats only", zap.Error(samplerErr))
		sampler = nil
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		runOpsLoop(ctx, sampler, pipeline, tracker, seq, cfg, logger)
	}()

	wg.Wait()
	close(sessionErrCh)

	var firstErr error
	for err := range sessionErrCh {
		logger.Error("session terminated permanently", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	logger.Info("shutdown complete",
		zap.Uint64("packets_sent", emit.PacketsSent()),
		zap.Uint64("bytes_sent", emit.BytesSent()))

	return firstErr
}

// buildSupervisors pairs every configured session with its endpoint and a
// per-session destination port: the primary port for the first session
// configured per exchange, consecutive ports for BTC-isolated sessions
// thereafter.
func buildSupervisors(cfg config.Config, pipeline session.Pipeline, logger *zap.Logger) []*session.Supervisor {
	portByExchange := make(map[string]int)
	nextPort := cfg.Primary.Port + 1

	supervisors := make([]*session.Supervisor, 0, len(cfg.Sessions))
	for _, spec := range cfg.Sessions {
		endpoint, ok := cfg.Endpoints[spec.Exchange]
		if !ok || !endpoint.Enabled {
			logger.Warn("skipping session: no enabled endpoint configured", zap.String("exchange", spec.Exchange))
			continue
		}

		port, seen := portByExchange[spec.Exchange]
		if !seen {
			port = cfg.Primary.Port
			portByExchange[spec.Exchange] = port
		} else if spec.IsBTCSession {
			// BTC sessions get their own destination port for latency
			// isolation from the rest of the exchange's symbol groups.
			port = nextPort
			nextPort++
		}

		supervisors = append(supervisors, session.New(spec, endpoint, pipeline, logger, port))
	}

	return supervisors
}

// runOpsLoop periodically emits the Heartbeat operational event (uptime,
// live session count, packets sent) and, when a sysinfo sampler is
// available, a SystemStats event with this process's CPU/memory usage and
// interval-delta packet/byte rates. Both travel the same build-and-send
// path as market data.
func runOpsLoop(ctx context.Context, sampler *sysinfo.Sampler, pipeline session.Pipeline, tracker *session.Tracker, seq *seqcounter.Counter, cfg config.Config, logger *zap.Logger) {
	interval := time.Duration(cfg.Primary.MetricsIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prevPackets, prevBytes uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			packets := pipeline.Emitter.PacketsSent()
			bytes := pipeline.Emitter.BytesSent()
			pps := uint32(float64(packets-prevPackets) / interval.Seconds())
			bps := uint32(float64(bytes-prevBytes) / interval.Seconds())
			prevPackets, prevBytes = packets, bytes

			if pipeline.Metrics != nil {
				pipeline.Metrics.SequenceHighWater.Set(float64(seq.Load()))
			}

			emitOpsEvent(pipeline, canonical.SystemEvent{
				Kind: canonical.Heartbeat,
				Heartbeat: &canonical.HeartbeatData{
					UptimeSeconds: tracker.UptimeSeconds(),
					ActiveConns:   tracker.ActiveConns(),
					PacketsSent:   uint32(packets),
				},
			}, logger)

			if sampler != nil {
				cpuPercent, memMB, err := sampler.Sample()
				if err != nil {
					logger.Debug("sysinfo sample failed", zap.Error(err))
					continue
				}
				emitOpsEvent(pipeline, sysinfo.BuildStatsEvent(cpuPercent, memMB, pps, bps), logger)
			}
		}
	}
}

func emitOpsEvent(pipeline session.Pipeline, evt canonical.SystemEvent, logger *zap.Logger) {
	datagrams, err := pipeline.Builder.Build(evt)
	if err != nil {
		logger.Debug("operational event build failed", zap.Error(err))
		return
	}
	for _, buf := range datagrams {
		if err := pipeline.Emitter.Send(*buf); err != nil {
			logger.Debug("operational event send failed", zap.Error(err))
		}
		pipeline.Builder.Release(buf)
	}
}

func runMetricsHTTP(ctx context.Context, cfg config.Config, registry *metrics.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", registry.Handler())

	addr := cfg.Primary.MetricsListenAddr
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics http server starting", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics http server shutdown error", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("metrics http server error", zap.Error(err))
		}
	}
}
