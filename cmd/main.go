package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"harvester/internal/config"
	"harvester/internal/core/behavior"
	"harvester/internal/core/device"
	"harvester/internal/core/job"
	"harvester/internal/core/orchestrator"
	"harvester/internal/core/proxy"
	"harvester/internal/core/queue"
	"harvester/internal/core/ratelimit"
	"harvester/internal/core/session"
	"harvester/internal/core/strategy"
	"harvester/internal/core/validate"
	"harvester/internal/logger"
	"harvester/internal/platform/browser"
	rds "harvester/internal/platform/redis"
	tasks "harvester/internal/platform/tasks"
	"harvester/internal/server"
	"harvester/internal/worker"
)

func main() {
	cfg := config.Load()
	log.Printf("[harvester] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer redisSvc.Close()

	// Asynq client and server
	taskClient := tasks.New(redisSvc)
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{"default": 1},
	})

	// Policy data: built-in defaults, optionally replaced from a YAML file.
	rules := validate.DefaultRules()
	var profiles []device.Profile
	strategies := strategy.DefaultStrategies()
	behaviorCfg := behavior.DefaultConfig()
	if cfg.RulesPath != "" {
		overrides, err := config.LoadOverrides(cfg.RulesPath)
		if err != nil {
			log.Fatalf("failed to load overrides from %s: %v", cfg.RulesPath, err)
		}
		if overrides.Validation != nil {
			rules = *overrides.Validation
		}
		if len(overrides.Devices) > 0 {
			profiles = overrides.Devices
		}
		if len(overrides.Strategies) > 0 {
			strategies = overrides.Strategies
		}
		if overrides.Behavior != nil {
			behaviorCfg = *overrides.Behavior
		}
	}

	// Core services
	limiter := ratelimit.New(cfg.MaxConcurrent, cfg.MaxRequestsPerMin, cfg.AcquireTimeout)
	pool := proxy.NewPool(proxy.Config{
		FailureThreshold: cfg.ProxyFailureThreshold,
		Cooldown:         cfg.ProxyCooldown,
		ProbeTimeout:     cfg.ProxyProbeTimeout,
		ProbeURL:         cfg.ProxyProbeURL,
	}, nil)
	sessions := session.NewManager(cfg.SessionRotateEvery)
	devices := device.NewRegistry(profiles)
	selector := strategy.NewSelector(strategies)
	selector.SetBackoff(cfg.RetryBackoff)
	validator := validate.New(rules)

	engine, err := browser.NewPlaywrightEngine()
	if err != nil {
		log.Fatalf("failed to start browser engine: %v", err)
	}
	defer engine.Close()

	orchSvc := orchestrator.New(orchestrator.Deps{
		Engine:    engine,
		Limiter:   limiter,
		Proxies:   pool,
		Sessions:  sessions,
		Devices:   devices,
		Behavior:  behavior.New(behaviorCfg),
		Validator: validator,
		Selector:  selector,
	})
	jobSvc := job.NewService(redisSvc)

	// Backlog queue drains through the orchestrator and mirrors results
	// into the job store so GET /v1/jobs/:jobId sees them too.
	backlog := queue.New(func(ctx context.Context, j *job.Job) error {
		_ = jobSvc.SetProcessing(ctx, *j)
		res, err := orchSvc.Scrape(ctx, *j, j.Options)
		_ = jobSvc.Complete(ctx, *j, res)
		return err
	})
	defer backlog.Stop()

	// Worker mux
	scrapeHandler := orchestrator.NewHandler(orchSvc, jobSvc, taskClient)
	mux := worker.NewMux()
	mux.HandleFunc(orchestrator.TaskTypeScrape, scrapeHandler.HandleScrapeTask)

	// Start worker
	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	// Maintenance loop: expire old sessions, bench strategies that keep
	// failing and give cooled-down ones another chance.
	maintCtx, maintCancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(cfg.MaintenanceInterval)
		defer ticker.Stop()
		for {
			select {
			case <-maintCtx.Done():
				return
			case <-ticker.C:
				if n := sessions.Sweep(cfg.SessionMaxAge); n > 0 {
					logr.LogInfof("swept %d expired sessions", n)
				}
				if disabled := selector.DisableLowPerforming(cfg.StrategyDisableBelow); len(disabled) > 0 {
					logr.LogWarnf("disabled low-performing strategies: %v", disabled)
				}
				if revived := selector.ReenableAfterCooldown(cfg.StrategyCooldown); len(revived) > 0 {
					logr.LogInfof("re-enabled strategies after cooldown: %v", revived)
				}
			}
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Harvester Engine",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	deps := server.Dependencies{
		Scrape:  scrapeHandler,
		Queue:   queue.NewHandler(backlog),
		Proxies: proxy.NewHandler(pool),
		Limiter: limiter,
		Redis:   redisSvc,
	}
	healthHandler := server.RegisterRoutes(app, deps)

	// Mark application as ready after all services are initialized
	go func() {
		time.Sleep(5 * time.Second)
		healthHandler.SetReady()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		maintCancel()
		asynqServer.Shutdown()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
