// Command server boots the agent execution platform's HTTP API: it wires
// persistence, the event bus, the workflow engine, the Trigger Service and
// Task Orchestrator, and the reconciler sweep, following the teacher's
// convention of one explicit wiring function per main rather than a DI
// framework.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/orbitflow/agentcore/internal/agentcatalog"
	"github.com/orbitflow/agentcore/internal/config"
	"github.com/orbitflow/agentcore/internal/eventbus"
	"github.com/orbitflow/agentcore/internal/httpapi"
	"github.com/orbitflow/agentcore/internal/llm"
	"github.com/orbitflow/agentcore/internal/store"
	"github.com/orbitflow/agentcore/internal/task"
	"github.com/orbitflow/agentcore/internal/telemetry"
	"github.com/orbitflow/agentcore/internal/toolrt"
	"github.com/orbitflow/agentcore/internal/trigger"
	"github.com/orbitflow/agentcore/internal/trigger/schedule"
	"github.com/orbitflow/agentcore/internal/trigger/webhook"
	"github.com/orbitflow/agentcore/internal/workflow"
	"github.com/orbitflow/agentcore/internal/workflow/engine"
	"github.com/orbitflow/agentcore/internal/workflow/inmemengine"
	"github.com/orbitflow/agentcore/internal/workflow/temporalengine"
)

func main() {
	if err := run(); err != nil {
		zap.L().Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zapLogger, err := newZapLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = zapLogger.Sync() }()
	log := telemetry.NewZapLogger(zapLogger)

	if err := store.ApplyMigrations(ctx, cfg.DBURL); err != nil {
		return err
	}

	pool, err := store.Open(ctx, cfg.DBURL, cfg.DBPoolSize, 1, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	broker, err := eventbus.NewBroker(cfg.BrokerURL)
	if err != nil {
		return err
	}
	bus := eventbus.NewBus(eventbus.NewLog(pool), broker, log)

	var catalog *agentcatalog.Catalog
	if cfg.AgentCatalogPath != "" {
		catalog, err = agentcatalog.Load(cfg.AgentCatalogPath)
		if err != nil {
			return err
		}
	} else {
		catalog = agentcatalog.Empty()
	}

	eng, schedules, workerCtl, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}

	llmRouter, err := buildLLMRouter(ctx, cfg)
	if err != nil {
		return err
	}

	activities := &workflow.Activities{
		Agents:    catalog,
		Tools:     catalog,
		LLM:       llm.WorkflowAdapter{Router: llmRouter},
		ToolCalls: toolrt.NewRegistry(),
		Events:    workflow.NewTaskEventPublisher(bus),
	}
	if err := workflow.RegisterActivities(ctx, eng, activities); err != nil {
		return err
	}
	if err := eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
		Name:      workflow.WorkflowName,
		TaskQueue: cfg.WorkflowTaskQueueTasks,
		Handler:   workflow.AgentExecutionWorkflow,
	}); err != nil {
		return err
	}
	if workerCtl != nil {
		if err := workerCtl.Start(); err != nil {
			return err
		}
		defer workerCtl.Stop()
	}

	taskStore := task.NewStore(pool)
	orch := task.NewOrchestrator(taskStore, catalog, eng, bus)
	a2aSrv := task.NewA2AServer(orch, cfg.WebhookBaseURL)

	triggerStore := trigger.NewStore(pool)
	triggerSvc := trigger.NewService(
		triggerStore, schedules, task.NewTriggerTaskCreator(orch), catalog, bus,
		trigger.NewSimpleEvaluator(log), log,
	)

	webhookRouter := webhook.NewRouter(triggerSvc, log)

	authn := httpapi.NewAuthenticator()
	srv := httpapi.NewServer(httpapi.Dependencies{
		Triggers: triggerSvc,
		Tasks:    orch,
		A2A:      a2aSrv,
		Webhooks: webhookRouter,
		Auth:     authn,
	})

	stopReconciler := startReconciler(ctx, triggerStore, schedules, cfg.ReconcilerInterval, log)
	defer stopReconciler()

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv}
	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info(ctx, "server listening", "addr", cfg.HTTPAddr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func newZapLogger(level string) (*zap.Logger, error) {
	var lvl zap.AtomicLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

// buildEngine selects the engine backend by WORKFLOW_ENGINE_BACKEND: "memory"
// (the default, for local dev and tests) or "temporal" for a real cluster
// (spec §9: the engine abstraction exists precisely so this choice is a
// wiring decision, not a code change).
func buildEngine(cfg *config.Config, log telemetry.Logger) (engine.Engine, schedule.Manager, *temporalengine.WorkerController, error) {
	if cfg.WorkflowEngineBackend != "temporal" {
		eng := inmemengine.New(log)
		return eng, schedule.NewInMemoryManager(), nil, nil
	}

	cli, err := client.Dial(client.Options{
		HostPort:  cfg.WorkflowEngineURL,
		Namespace: cfg.WorkflowNamespace,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	eng, err := temporalengine.New(temporalengine.Options{
		Client: cli,
		WorkerOptions: temporalengine.WorkerOptions{
			TaskQueue: cfg.WorkflowTaskQueueTasks,
		},
		Logger: log,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	schedules := schedule.NewTemporalManager(cli, cfg.WorkflowTaskQueueTriggers, log)
	return eng, schedules, eng.Worker(), nil
}

func buildLLMRouter(ctx context.Context, cfg *config.Config) (*llm.Router, error) {
	var anthropic, openai llm.Invoker
	if cfg.AnthropicAPIKey != "" {
		a, err := llm.NewAnthropicAdapterFromAPIKey(cfg.AnthropicAPIKey, 4096, 0.7)
		if err != nil {
			return nil, err
		}
		anthropic = a
	}
	if cfg.OpenAIAPIKey != "" {
		o, err := llm.NewOpenAIAdapterFromAPIKey(cfg.OpenAIAPIKey, 4096, 0.7)
		if err != nil {
			return nil, err
		}
		openai = o
	}
	router := llm.NewRouter(anthropic, openai)
	if cfg.AWSBedrockRegion != "" {
		b, err := buildBedrockAdapter(ctx, cfg.AWSBedrockRegion)
		if err != nil {
			return nil, err
		}
		router.WithBedrock(b)
	}
	router.WithRateLimit(5, 10)
	return router, nil
}

// buildBedrockAdapter resolves AWS credentials through the SDK's default
// chain (env vars, shared config, instance/task role) for the given region,
// the optional third InvokeLLM provider alongside Anthropic and OpenAI.
func buildBedrockAdapter(ctx context.Context, region string) (*llm.BedrockAdapter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return llm.NewBedrockAdapter(bedrockruntime.NewFromConfig(awsCfg), 4096, 0.7)
}

// startReconciler runs the Trigger <-> Schedule drift sweep on
// RECONCILER_INTERVAL (spec §9 design note, §12): lists active cron
// triggers and removes any non-paused engine schedule whose trigger is not
// among them, since the two are only eventually consistent. Paused
// schedules (those of disabled triggers) are left in place.
func startReconciler(ctx context.Context, triggerStore *trigger.Store, schedules schedule.Manager, interval time.Duration, log telemetry.Logger) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				reconcileOnce(ctx, triggerStore, schedules, log)
			}
		}
	}()
	return func() { close(done) }
}

func reconcileOnce(ctx context.Context, st *trigger.Store, schedules schedule.Manager, log telemetry.Logger) {
	active, err := st.List(ctx, trigger.ListFilter{TriggerType: trigger.KindCron, ActiveOnly: true})
	if err != nil {
		log.Warn(ctx, "reconciler: list active cron triggers failed", "err", err)
		return
	}
	known := make(map[string]bool, len(active))
	for _, t := range active {
		known[t.ID] = true
	}
	scheduled, err := schedules.ListActive(ctx)
	if err != nil {
		log.Warn(ctx, "reconciler: list active schedules failed", "err", err)
		return
	}
	for _, scheduleID := range scheduled {
		triggerID := strings.TrimPrefix(scheduleID, "cron-trigger-")
		if !known[triggerID] {
			log.Warn(ctx, "reconciler: orphaned schedule found, removing", "trigger_id", triggerID)
			if err := schedules.Delete(ctx, triggerID); err != nil {
				log.Warn(ctx, "reconciler: failed to delete orphaned schedule", "trigger_id", triggerID, "err", err)
			}
		}
	}
}
