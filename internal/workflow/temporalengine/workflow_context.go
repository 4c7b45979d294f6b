package temporalengine

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/orbitflow/agentcore/internal/telemetry"
	"github.com/orbitflow/agentcore/internal/workflow/engine"
)

// workflowContext adapts a Temporal workflow.Context into engine.WorkflowContext.
type workflowContext struct {
	eng        *Engine
	ctx        workflow.Context
	workflowID string
	runID      string
}

func newWorkflowContext(e *Engine, ctx workflow.Context) *workflowContext {
	info := workflow.GetInfo(ctx)
	wfc := &workflowContext{
		eng:        e,
		ctx:        ctx,
		workflowID: info.WorkflowExecution.ID,
		runID:      info.WorkflowExecution.RunID,
	}
	e.workflowContexts.Store(wfc.runID, wfc)
	return wfc
}

// normalizeError translates Temporal's cancellation error into the stdlib
// context.Canceled so callers can classify cancellation without importing
// the Temporal SDK.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	if temporal.IsCanceledError(err) {
		return context.Canceled
	}
	return err
}

func (w *workflowContext) Context() context.Context {
	return engine.WithWorkflowContext(context.Background(), w)
}

func (w *workflowContext) WorkflowID() string { return w.workflowID }
func (w *workflowContext) RunID() string      { return w.runID }

func (w *workflowContext) Logger() telemetry.Logger   { return w.eng.log }
func (w *workflowContext) Metrics() telemetry.Metrics { return w.eng.metrics }
func (w *workflowContext) Tracer() telemetry.Tracer   { return w.eng.tracer }
func (w *workflowContext) Now() time.Time             { return workflow.Now(w.ctx) }

func (w *workflowContext) ExecuteActivity(_ context.Context, req engine.ActivityRequest, result any) error {
	actx := workflow.WithActivityOptions(w.ctx, w.activityOptionsFor(req))
	fut := workflow.ExecuteActivity(actx, req.Name, req.Input)
	return normalizeError(fut.Get(actx, result))
}

func (w *workflowContext) ExecuteActivityAsync(_ context.Context, req engine.ActivityRequest) (engine.Future, error) {
	actx := workflow.WithActivityOptions(w.ctx, w.activityOptionsFor(req))
	fut := workflow.ExecuteActivity(actx, req.Name, req.Input)
	return &future{future: fut, ctx: actx}, nil
}

func (w *workflowContext) SignalChannel(name string) engine.SignalChannel {
	return &signalChannel{ctx: w.ctx, ch: workflow.GetSignalChannel(w.ctx, name)}
}

// SetQueryHandler implements engine.QueryRegistrar on top of Temporal's
// native query handler registration.
func (w *workflowContext) SetQueryHandler(name string, handler engine.QueryHandler) error {
	return workflow.SetQueryHandler(w.ctx, name, func(args ...any) (any, error) {
		return handler(args...)
	})
}

func (w *workflowContext) activityOptionsFor(req engine.ActivityRequest) workflow.ActivityOptions {
	queue := req.Queue
	if queue == "" {
		queue = w.eng.defaultQueue
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	return workflow.ActivityOptions{
		ScheduleToStartTimeout: timeout,
		StartToCloseTimeout:    timeout,
		TaskQueue:              queue,
		RetryPolicy:            convertRetryPolicy(req.RetryPolicy),
	}
}

type future struct {
	future workflow.Future
	ctx    workflow.Context
}

func (f *future) Get(_ context.Context, result any) error {
	return normalizeError(f.future.Get(f.ctx, result))
}

func (f *future) IsReady() bool { return f.future.IsReady() }

type signalChannel struct {
	ctx workflow.Context
	ch  workflow.ReceiveChannel
}

// Receive blocks on the Temporal workflow context, not the provided ctx:
// Temporal signal delivery must stay on the deterministic workflow
// goroutine, so ctx is only checked before blocking.
func (s *signalChannel) Receive(ctx context.Context, dest any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.ch.Receive(s.ctx, dest)
	return nil
}

func (s *signalChannel) ReceiveAsync(dest any) bool {
	return s.ch.ReceiveAsync(dest)
}
