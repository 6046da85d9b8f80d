package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	nomadapi "github.com/hashicorp/nomad/api"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/flowmesh/placement-core/internal/appmanager"
	"github.com/flowmesh/placement-core/internal/cfg"
	"github.com/flowmesh/placement-core/internal/farseeing"
	"github.com/flowmesh/placement-core/internal/fleet"
	"github.com/flowmesh/placement-core/internal/logging"
	"github.com/flowmesh/placement-core/internal/monitor"
	"github.com/flowmesh/placement-core/internal/orchestrator/placement"
	"github.com/flowmesh/placement-core/internal/registry"
	"github.com/flowmesh/placement-core/internal/requirement"
	"github.com/flowmesh/placement-core/internal/server"
	"github.com/flowmesh/placement-core/internal/store"
)

const (
	shutdownGrace   = 30 * time.Second
	nomadSyncPeriod = 15 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background()) // root context
	defer cancel()

	var debug string
	flag.StringVar(&debug, "debug", "false", "is debug")
	flag.Parse()

	config, err := cfg.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse config:", err)

		return 1
	}

	log, err := logging.New(config.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build logger:", err)

		return 1
	}
	defer log.Sync() //nolint:errcheck

	if debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	nodeID := config.ServiceName + "-" + instanceSuffix()

	reg, locker, closeRegistry, err := buildRegistry(config, log)
	if err != nil {
		log.Error("build registry", zap.Error(err))

		return 1
	}

	var cleanupFns []func(context.Context) error
	exitCode := &atomic.Int32{}
	cleanupOp := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		cwg := &sync.WaitGroup{}

		for idx := range cleanupFns {
			if fn := cleanupFns[idx]; fn != nil {
				cwg.Add(1)

				go func(op func(context.Context) error, idx int) {
					defer cwg.Done()

					if err := op(ctx); err != nil {
						exitCode.Add(1)
						log.Error("cleanup operation error", zap.Int("index", idx), zap.Error(err))
					}
				}(fn, idx)
			}
		}

		cwg.Wait()
	}
	cleanupOnce := &sync.Once{}
	cleanup := func() { cleanupOnce.Do(cleanupOp) }
	defer cleanup()

	cleanupFns = append(cleanupFns, func(context.Context) error { closeRegistry(); return nil })

	fl := fleet.New(reg, log)
	cleanupFns = append(cleanupFns, func(context.Context) error { fl.Close(); return nil })

	if config.NomadAddress != "" {
		nomadClient, err := nomadapi.NewClient(&nomadapi.Config{Address: config.NomadAddress})
		if err != nil {
			log.Error("nomad client", zap.Error(err))

			return 1
		}

		fl.WithNomad(nomadClient)
		go fl.RunSync(ctx, nomadSyncPeriod)
	}

	matcher := requirement.NewMatcher(reg)
	planner := placement.NewPlanner(reg, matcher, locker, fl, config)

	var st *store.Store
	if config.PostgresDSN != "" {
		st, err = store.New(ctx, config.PostgresDSN)
		if err != nil {
			log.Error("connect store", zap.Error(err))

			return 1
		}

		cleanupFns = append(cleanupFns, func(context.Context) error { st.Close(); return nil })
	}

	mgr := appmanager.New(st, reg, planner, fl, log)

	leadTime := time.Duration(config.OracleLeadSeconds) * time.Second
	_ = farseeing.NewScheduler(ctx, mgr, leadTime, log)

	cpu := monitor.NewCPU(reg, nodeID)
	ram := monitor.NewRAM(reg, nodeID)
	linkMon := monitor.NewLink(reg, nodeID)

	cleanupFns = append(cleanupFns, func(ctx context.Context) error {
		return errors.Join(cpu.Stop(ctx), ram.Stop(ctx), linkMon.Stop(ctx))
	})

	handlers := &server.Handlers{
		NodeID:   nodeID,
		CPU:      cpu.Avail,
		RAM:      ram.Avail,
		Link:     linkMon,
		Registry: reg,
		Log:      log,
	}

	tracerProvider := otel.GetTracerProvider()
	meter := otel.GetMeterProvider().Meter(config.ServiceName)

	router := server.NewRouter(handlers, tracerProvider, meter, config.ServiceName)
	httpServer := server.NewHTTPServer(fmt.Sprintf("0.0.0.0:%d", config.Port), router)

	signalCtx, sigCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer sigCancel()

	wg := &sync.WaitGroup{}
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		log.Info("placement-core listening", zap.Int("port", config.Port), zap.String("node_id", nodeID))

		err := httpServer.ListenAndServe()

		switch {
		case errors.Is(err, http.ErrServerClosed):
			log.Info("http service shutdown successfully", zap.Int("port", config.Port))
		case err != nil:
			exitCode.Add(1)
			log.Error("http service encountered error", zap.Int("port", config.Port), zap.Error(err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		<-signalCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			exitCode.Add(1)
			log.Error("http service shutdown error", zap.Int("port", config.Port), zap.Error(err))
		}
	}()

	wg.Wait()

	cleanup()

	return int(exitCode.Load())
}

func buildRegistry(config cfg.Config, log *zap.Logger) (registry.Registry, registry.Locker, func(), error) {
	switch config.StorageType {
	case cfg.StorageRedis:
		opts, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parse redis url: %w", err)
		}

		client := redis.NewClient(opts)

		return registry.NewRedisRegistry(client), registry.NewRedisLocker(client), func() { _ = client.Close() }, nil
	default:
		log.Info("using in-memory registry", zap.String("storage_type", string(config.StorageType)))

		return registry.NewMemoryRegistry(), registry.NewMemoryLocker(), func() {}, nil
	}
}

func instanceSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano()%1_000_000)
}
