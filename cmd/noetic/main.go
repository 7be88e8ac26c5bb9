package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/antigravity-dev/noetic/internal/config"
	"github.com/antigravity-dev/noetic/internal/eventbus"
	"github.com/antigravity-dev/noetic/internal/health"
	"github.com/antigravity-dev/noetic/internal/ledger"
	"github.com/antigravity-dev/noetic/internal/pathway"
	"github.com/antigravity-dev/noetic/internal/pipeline"
	"github.com/antigravity-dev/noetic/internal/researchindex"
	"github.com/antigravity-dev/noetic/internal/sourcematcher"
	"github.com/antigravity-dev/noetic/internal/sources"
	"github.com/antigravity-dev/noetic/internal/store"
	"github.com/antigravity-dev/noetic/internal/strategos"
)

func configureLogger(logLevel string, useDev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if useDev {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func main() {
	configPath := flag.String("config", "noetic.toml", "path to config file")
	dev := flag.Bool("dev", false, "use text log format (default is JSON)")
	temporalHostPort := flag.String("temporal", "127.0.0.1:7233", "Temporal frontend host:port")
	watchProject := flag.String("watch", "", "print live events for a project id and exit (diagnostic)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("noetic starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = configureLogger(cfg.General.LogLevel, *dev)
	slog.SetDefault(logger)

	st := store.New(cfg.General.DataRoot)

	led, err := ledger.Open(cfg.General.LedgerPath)
	if err != nil {
		logger.Error("failed to open ledger", "path", cfg.General.LedgerPath, "error", err)
		os.Exit(1)
	}
	defer led.Close()

	pathways, err := pathway.LoadDir(cfg.General.PathwayDir)
	if err != nil {
		logger.Error("failed to load pathway registry", "dir", cfg.General.PathwayDir, "error", err)
		os.Exit(1)
	}

	sourceRegistry, err := sources.Load(cfg.SourcesPath())
	if err != nil {
		logger.Error("failed to load source registry", "path", cfg.SourcesPath(), "error", err)
		os.Exit(1)
	}
	matcher := sourcematcher.New(sourceRegistry)

	index, err := researchindex.Load(cfg.ResearchIndexPath())
	if err != nil {
		logger.Error("failed to load research index", "path", cfg.ResearchIndexPath(), "error", err)
		os.Exit(1)
	}

	bus := eventbus.New(cfg.Pipeline.EventBufferSize)

	strategosClient := strategos.New(strategos.Options{
		BaseURL:             cfg.Strategos.BaseURL,
		Timeout:             cfg.Strategos.DefaultTimeout.Duration,
		MaxRetries:          cfg.Strategos.MaxRetries,
		InitialBackoff:      cfg.Strategos.RetryInitialBackoff.Duration,
		MaxBackoff:          cfg.Strategos.RetryMaxBackoff.Duration,
		CircuitFailureRatio: cfg.Strategos.CircuitFailureRatio,
		CircuitMinRequests:  cfg.Strategos.CircuitMinRequests,
	})

	healthMonitor := health.New(led, strategosClient, logger.With("component", "health"),
		cfg.Pipeline.PerWorkerTimeoutDefault.Duration, cfg.Pipeline.StuckGrace.Duration, time.Minute)

	acts := &pipeline.Activities{
		Dispatcher:             strategosClient,
		Pathways:               pathways,
		Store:                  st,
		Ledger:                 led,
		Bus:                    bus,
		Index:                  index,
		Logger:                 logger.With("component", "pipeline"),
		PollInterval:           2 * time.Second,
		PerWorkerTimeout:       cfg.Pipeline.PerWorkerTimeoutDefault.Duration,
		ClassifyConcurrency:    cfg.Pipeline.ClassifyConcurrency,
		InvestigationBudgetMax: cfg.Pipeline.InvestigationBudgetMax,
		PriorResearchMaxNodes:  cfg.Pipeline.PriorResearchMaxNodes,
		InputCostPerMille:      cfg.Cost.InputCostPerMille,
		OutputCostPerMille:     cfg.Cost.OutputCostPerMille,
	}

	temporalClient, err := client.Dial(client.Options{HostPort: *temporalHostPort})
	if err != nil {
		logger.Error("failed to connect to temporal", "error", err)
		os.Exit(1)
	}
	defer temporalClient.Close()

	engine := &pipeline.Engine{
		Store:   st,
		Bus:     bus,
		Sources: sourceRegistry,
		Matcher: matcher,
		Index:   index,
		Cfg:     cfg,
		Logger:  logger.With("component", "engine"),
		Start: func(ctx context.Context, projectID, fromPhase string) error {
			p, err := st.Get(projectID)
			if err != nil {
				return err
			}
			opts := client.StartWorkflowOptions{
				ID:        "research-" + projectID,
				TaskQueue: pipeline.TaskQueue,
			}
			_, err = temporalClient.ExecuteWorkflow(ctx, opts, pipeline.ResearchPipelineWorkflow, pipeline.Request{
				ProjectID: projectID,
				Topic:     p.Topic,
				Budget:    p.Config.InvestigationBudget,
				FromPhase: fromPhase,
			})
			return err
		},
		Signal: func(ctx context.Context, projectID string) error {
			return temporalClient.SignalWorkflow(ctx, "research-"+projectID, "", pipeline.PauseSignalName, nil)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *watchProject != "" {
		watch(ctx, engine, *watchProject)
		return
	}

	go healthMonitor.Start(ctx)

	go func() {
		logger.Info("starting temporal worker", "task_queue", pipeline.TaskQueue)
		if err := pipeline.StartWorker(*temporalHostPort, acts); err != nil {
			logger.Error("temporal worker stopped", "error", err)
		}
	}()

	logger.Info("noetic running", "data_root", cfg.General.DataRoot, "pathways", len(pathways.IDs()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
}

// watch is a diagnostic entry point that prints a project's event stream
// to stdout as newline-delimited JSON until interrupted.
func watch(ctx context.Context, engine *pipeline.Engine, projectID string) {
	p, status := engine.GetProject(projectID)
	if status != pipeline.StatusOK {
		fmt.Fprintf(os.Stderr, "project %s: %s\n", projectID, status)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "watching %s (topic=%q status=%s)\n", projectID, p.Topic, p.Status)

	ch, cancel := engine.SubscribeEvents(ctx, projectID)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			enc, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Println(string(enc))
		case <-sigCh:
			return
		}
	}
}
