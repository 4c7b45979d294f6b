// Package temporalengine adapts engine.Engine onto the Temporal Go SDK,
// the durable execution backend for the Agent Execution Workflow (C7, spec
// §4.7). It manages one worker per task queue, wires OTEL tracing/metrics
// via the SDK's contrib interceptor, and tracks workflow contexts so
// activities can recover workflow-scoped telemetry.
package temporalengine

import (
	"context"
	"fmt"
	"sync"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/orbitflow/agentcore/internal/telemetry"
	"github.com/orbitflow/agentcore/internal/workflow/engine"
)

// Options configures the Temporal engine adapter.
type Options struct {
	// Client is an optional pre-configured Temporal client. If nil, one is
	// created lazily from ClientOptions.
	Client client.Client
	// ClientOptions builds the client when Client is nil.
	ClientOptions *client.Options
	// WorkerOptions configures the default task queue and SDK worker
	// settings shared by every queue this engine manages.
	WorkerOptions WorkerOptions
	// DisableTracing/DisableMetrics opt out of the automatic OTEL wiring.
	DisableTracing bool
	DisableMetrics bool

	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Tracer  telemetry.Tracer
}

// WorkerOptions configures the shared worker settings applied to every task
// queue this engine manages.
type WorkerOptions struct {
	TaskQueue string
	Options   worker.Options
}

// Engine implements engine.Engine on top of Temporal.
type Engine struct {
	client      client.Client
	closeClient bool

	defaultQueue string
	workerOpts   worker.Options

	log     telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	mu        sync.Mutex
	workers   map[string]*workerBundle
	started   bool
	workflows map[string]engine.WorkflowDefinition

	workflowContexts sync.Map // runID -> engine.WorkflowContext
}

// New constructs a Temporal engine adapter. A default task queue is
// required; either Client or ClientOptions must be provided.
func New(opts Options) (*Engine, error) {
	if opts.WorkerOptions.TaskQueue == "" {
		return nil, fmt.Errorf("temporalengine: default task queue is required")
	}
	log := opts.Logger
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}

	var tracingInterceptor interceptor.Interceptor
	var metricsHandler client.MetricsHandler
	if !opts.DisableTracing {
		ti, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{})
		if err != nil {
			return nil, fmt.Errorf("temporalengine: configure tracing interceptor: %w", err)
		}
		tracingInterceptor = ti
	}
	if !opts.DisableMetrics {
		metricsHandler = temporalotel.NewMetricsHandler(temporalotel.MetricsHandlerOptions{})
	}

	cli := opts.Client
	closeClient := false
	if cli == nil {
		if opts.ClientOptions == nil {
			return nil, fmt.Errorf("temporalengine: client options required when Client is nil")
		}
		clientOpts := *opts.ClientOptions
		if tracingInterceptor != nil {
			clientOpts.Interceptors = append(clientOpts.Interceptors, tracingInterceptor)
		}
		if metricsHandler != nil && clientOpts.MetricsHandler == nil {
			clientOpts.MetricsHandler = metricsHandler
		}
		var err error
		cli, err = client.NewLazyClient(clientOpts)
		if err != nil {
			return nil, fmt.Errorf("temporalengine: create client: %w", err)
		}
		closeClient = true
	}

	workerOpts := opts.WorkerOptions.Options
	if tracingInterceptor != nil {
		workerOpts.Interceptors = append(workerOpts.Interceptors, tracingInterceptor)
	}

	return &Engine{
		client:       cli,
		closeClient:  closeClient,
		defaultQueue: opts.WorkerOptions.TaskQueue,
		workerOpts:   workerOpts,
		log:          log,
		metrics:      metrics,
		tracer:       tracer,
		workers:      make(map[string]*workerBundle),
		workflows:    make(map[string]engine.WorkflowDefinition),
	}, nil
}

func (e *Engine) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("temporalengine: workflow name cannot be empty")
	}
	queue := def.TaskQueue
	if queue == "" {
		queue = e.defaultQueue
	}
	bundle, err := e.workerForQueue(queue)
	if err != nil {
		return err
	}
	bundle.registerWorkflow(def.Name, func(tctx workflow.Context, input any) (any, error) {
		wfCtx := newWorkflowContext(e, tctx)
		defer e.workflowContexts.Delete(wfCtx.RunID())
		return def.Handler(wfCtx, input)
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.workflows[def.Name]; exists {
		return fmt.Errorf("temporalengine: workflow %q already registered", def.Name)
	}
	e.workflows[def.Name] = def
	return nil
}

func (e *Engine) RegisterActivity(_ context.Context, def engine.ActivityDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("temporalengine: activity name cannot be empty")
	}
	queue := def.Options.Queue
	if queue == "" {
		queue = e.defaultQueue
	}
	bundle, err := e.workerForQueue(queue)
	if err != nil {
		return err
	}
	bundle.registerActivity(def.Name, func(actx context.Context, input any) (any, error) {
		if wfCtx := e.lookupWorkflowContext(actx); wfCtx != nil {
			actx = engine.WithWorkflowContext(actx, wfCtx)
		}
		return def.Handler(actx, input)
	})
	return nil
}

func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	if req.Workflow == "" {
		return nil, fmt.Errorf("temporalengine: workflow name is required")
	}
	e.mu.Lock()
	def, ok := e.workflows[req.Workflow]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("temporalengine: workflow %q is not registered", req.Workflow)
	}

	e.ensureWorkersStarted()

	queue := req.TaskQueue
	if queue == "" {
		queue = def.TaskQueue
	}
	if queue == "" {
		queue = e.defaultQueue
	}

	opts := client.StartWorkflowOptions{ID: req.ID, TaskQueue: queue}
	if rp := convertRetryPolicy(req.RetryPolicy); rp != nil {
		opts.RetryPolicy = rp
	}
	if req.Memo != nil {
		opts.Memo = req.Memo
	}
	// SearchAttributes is intentionally not forwarded: the typed search
	// attribute API requires statically declared keys registered with the
	// Temporal namespace ahead of time, which this generic adapter has no
	// way to know; callers needing it should use the Temporal client
	// directly for that workflow.

	run, err := e.client.ExecuteWorkflow(ctx, opts, def.Name, req.Input)
	if err != nil {
		return nil, err
	}
	return &workflowHandle{run: run, client: e.client}, nil
}

// GetWorkflow re-attaches a WorkflowHandle to an already-started execution,
// implementing engine.HandleLookup.
func (e *Engine) GetWorkflow(_ context.Context, workflowID string) (engine.WorkflowHandle, error) {
	run := e.client.GetWorkflow(context.Background(), workflowID, "")
	return &workflowHandle{run: run, client: e.client}, nil
}

// Worker returns a controller for starting/stopping all workers managed by
// this engine.
func (e *Engine) Worker() *WorkerController { return &WorkerController{engine: e} }

// Close shuts down the Temporal client if this engine created it.
func (e *Engine) Close() error {
	if e.closeClient && e.client != nil {
		e.client.Close()
	}
	return nil
}

func (e *Engine) workerForQueue(queue string) (*workerBundle, error) {
	if queue == "" {
		queue = e.defaultQueue
	}
	if queue == "" {
		return nil, fmt.Errorf("temporalengine: no task queue configured")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.workers[queue]; ok {
		return b, nil
	}
	w := worker.New(e.client, queue, e.workerOpts)
	b := &workerBundle{queue: queue, worker: w, log: e.log}
	e.workers[queue] = b
	if e.started {
		b.start()
	}
	return b, nil
}

func (e *Engine) ensureWorkersStarted() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	bundles := make([]*workerBundle, 0, len(e.workers))
	for _, b := range e.workers {
		bundles = append(bundles, b)
	}
	e.mu.Unlock()
	for _, b := range bundles {
		b.start()
	}
}

func (e *Engine) lookupWorkflowContext(actx context.Context) engine.WorkflowContext {
	info := activity.GetInfo(actx)
	runID := info.WorkflowExecution.RunID
	if runID == "" {
		return nil
	}
	if wf, ok := e.workflowContexts.Load(runID); ok {
		if typed, ok := wf.(engine.WorkflowContext); ok {
			return typed
		}
	}
	return nil
}

// WorkerController starts/stops all workers for an Engine.
type WorkerController struct{ engine *Engine }

func (c *WorkerController) Start() error {
	c.engine.ensureWorkersStarted()
	return nil
}

func (c *WorkerController) Stop() {
	c.engine.mu.Lock()
	bundles := make([]*workerBundle, 0, len(c.engine.workers))
	for _, b := range c.engine.workers {
		bundles = append(bundles, b)
	}
	c.engine.mu.Unlock()
	for _, b := range bundles {
		b.stop()
	}
}

type workerBundle struct {
	queue     string
	worker    worker.Worker
	log       telemetry.Logger
	startOnce sync.Once
}

func (b *workerBundle) start() {
	b.startOnce.Do(func() {
		go func() {
			if err := b.worker.Run(worker.InterruptCh()); err != nil {
				b.log.Error(context.Background(), "temporal worker exited", "queue", b.queue, "err", err)
			}
		}()
	})
}

func (b *workerBundle) stop() { b.worker.Stop() }

func (b *workerBundle) registerWorkflow(name string, fn any) {
	b.worker.RegisterWorkflowWithOptions(fn, workflow.RegisterOptions{Name: name})
}

func (b *workerBundle) registerActivity(name string, fn any) {
	b.worker.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func convertRetryPolicy(rp engine.RetryPolicy) *temporal.RetryPolicy {
	if rp.MaxAttempts == 0 && rp.InitialInterval == 0 && rp.BackoffCoefficient == 0 {
		return nil
	}
	coeff := rp.BackoffCoefficient
	if coeff < 1 {
		coeff = 1
	}
	return &temporal.RetryPolicy{
		InitialInterval:    rp.InitialInterval,
		BackoffCoefficient: coeff,
		MaximumAttempts:    int32(rp.MaxAttempts),
	}
}

type workflowHandle struct {
	run    client.WorkflowRun
	client client.Client
}

func (h *workflowHandle) Wait(ctx context.Context, result any) error {
	return h.run.Get(ctx, result)
}

func (h *workflowHandle) Signal(ctx context.Context, name string, payload any) error {
	return h.client.SignalWorkflow(ctx, h.run.GetID(), h.run.GetRunID(), name, payload)
}

func (h *workflowHandle) Cancel(ctx context.Context) error {
	return h.client.CancelWorkflow(ctx, h.run.GetID(), h.run.GetRunID())
}

func (h *workflowHandle) Query(ctx context.Context, name string, args []any, result any) error {
	val, err := h.client.QueryWorkflow(ctx, h.run.GetID(), h.run.GetRunID(), name, args...)
	if err != nil {
		return err
	}
	return val.Get(result)
}
