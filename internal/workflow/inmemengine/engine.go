// Package inmemengine provides an in-memory workflow engine for tests and
// local development. It is not durable or replay-safe and must never be
// used in production — see temporalengine for the durable adapter.
package inmemengine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/orbitflow/agentcore/internal/telemetry"
	"github.com/orbitflow/agentcore/internal/workflow/engine"
)

type Engine struct {
	mu         sync.RWMutex
	workflows  map[string]engine.WorkflowDefinition
	activities map[string]activityEntry
	handles    map[string]*handle

	log telemetry.Logger
}

type activityEntry struct {
	handler engine.ActivityFunc
	opts    engine.ActivityOptions
}

// New constructs an in-memory Engine.
func New(log telemetry.Logger) *Engine {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Engine{
		workflows:  make(map[string]engine.WorkflowDefinition),
		activities: make(map[string]activityEntry),
		handles:    make(map[string]*handle),
		log:        log,
	}
}

func (e *Engine) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("inmemengine: invalid workflow definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.workflows[def.Name]; dup {
		return fmt.Errorf("inmemengine: workflow %q already registered", def.Name)
	}
	e.workflows[def.Name] = def
	return nil
}

func (e *Engine) RegisterActivity(_ context.Context, def engine.ActivityDefinition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New("inmemengine: invalid activity definition")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.activities[def.Name]; dup {
		return fmt.Errorf("inmemengine: activity %q already registered", def.Name)
	}
	e.activities[def.Name] = activityEntry{handler: def.Handler, opts: def.Options}
	return nil
}

func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	e.mu.RLock()
	def, ok := e.workflows[req.Workflow]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inmemengine: workflow %q not registered", req.Workflow)
	}
	if req.ID == "" {
		return nil, errors.New("inmemengine: workflow id is required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	wfc := &workflowContext{
		ctx:     runCtx,
		id:      req.ID,
		runID:   req.ID,
		eng:     e,
		log:     e.log,
		sigs:    make(map[string]*signalChan),
		queries: make(map[string]engine.QueryHandler),
	}
	h := &handle{done: make(chan struct{}), cancel: cancel, wfc: wfc}

	e.mu.Lock()
	e.handles[req.ID] = h
	e.mu.Unlock()

	go func() {
		defer close(h.done)
		res, err := def.Handler(wfc, req.Input)
		h.mu.Lock()
		h.result, h.err = res, err
		h.mu.Unlock()
	}()
	return h, nil
}

// GetWorkflow re-attaches a WorkflowHandle to an already-started execution,
// implementing engine.HandleLookup. Handles are kept for the lifetime of
// the Engine; this is acceptable since inmemengine is test/dev-only.
func (e *Engine) GetWorkflow(_ context.Context, workflowID string) (engine.WorkflowHandle, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.handles[workflowID]
	if !ok {
		return nil, fmt.Errorf("inmemengine: workflow %q not found", workflowID)
	}
	return h, nil
}

type handle struct {
	mu     sync.Mutex
	done   chan struct{}
	cancel context.CancelFunc
	result any
	err    error
	wfc    *workflowContext
}

func (h *handle) Wait(ctx context.Context, result any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		assign(result, h.result)
		return h.err
	}
}

func (h *handle) Signal(ctx context.Context, name string, payload any) error {
	ch := h.wfc.signalChannel(name)
	select {
	case ch.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return errors.New("inmemengine: workflow already completed")
	}
}

func (h *handle) Cancel(ctx context.Context) error {
	h.cancel()
	return nil
}

func (h *handle) Query(ctx context.Context, name string, args []any, result any) error {
	h.wfc.queryMu.RLock()
	handler, ok := h.wfc.queries[name]
	h.wfc.queryMu.RUnlock()
	if !ok {
		return fmt.Errorf("inmemengine: query %q not registered", name)
	}
	res, err := handler(args...)
	if err != nil {
		return err
	}
	assign(result, res)
	return nil
}

type workflowContext struct {
	ctx   context.Context
	id    string
	runID string
	eng   *Engine
	log   telemetry.Logger

	sigMu sync.Mutex
	sigs  map[string]*signalChan

	queryMu sync.RWMutex
	queries map[string]engine.QueryHandler
}

// SetQueryHandler implements engine.QueryRegistrar.
func (w *workflowContext) SetQueryHandler(name string, handler engine.QueryHandler) error {
	w.queryMu.Lock()
	defer w.queryMu.Unlock()
	w.queries[name] = handler
	return nil
}

func (w *workflowContext) Context() context.Context   { return w.ctx }
func (w *workflowContext) WorkflowID() string         { return w.id }
func (w *workflowContext) RunID() string              { return w.runID }
func (w *workflowContext) Logger() telemetry.Logger   { return w.log }
func (w *workflowContext) Metrics() telemetry.Metrics { return telemetry.NewNoopMetrics() }
func (w *workflowContext) Tracer() telemetry.Tracer   { return telemetry.NewNoopTracer() }
func (w *workflowContext) Now() time.Time             { return time.Now().UTC() }

func (w *workflowContext) ExecuteActivity(ctx context.Context, req engine.ActivityRequest, result any) error {
	fut, err := w.ExecuteActivityAsync(ctx, req)
	if err != nil {
		return err
	}
	return fut.Get(ctx, result)
}

func (w *workflowContext) ExecuteActivityAsync(ctx context.Context, req engine.ActivityRequest) (engine.Future, error) {
	w.eng.mu.RLock()
	def, ok := w.eng.activities[req.Name]
	w.eng.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("inmemengine: activity %q not registered", req.Name)
	}
	f := &future{ready: make(chan struct{})}
	go func() {
		defer close(f.ready)
		actCtx := engine.WithWorkflowContext(ctx, w)
		res, err := def.handler(actCtx, req.Input)
		f.mu.Lock()
		f.result, f.err = res, err
		f.mu.Unlock()
	}()
	return f, nil
}

func (w *workflowContext) SignalChannel(name string) engine.SignalChannel {
	return w.signalChannel(name)
}

func (w *workflowContext) signalChannel(name string) *signalChan {
	w.sigMu.Lock()
	defer w.sigMu.Unlock()
	ch, ok := w.sigs[name]
	if !ok {
		ch = &signalChan{ch: make(chan any, 4)}
		w.sigs[name] = ch
	}
	return ch
}

type signalChan struct{ ch chan any }

func (s *signalChan) Receive(ctx context.Context, dest any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case v := <-s.ch:
		assign(dest, v)
		return nil
	}
}

func (s *signalChan) ReceiveAsync(dest any) bool {
	select {
	case v := <-s.ch:
		assign(dest, v)
		return true
	default:
		return false
	}
}

type future struct {
	mu     sync.Mutex
	ready  chan struct{}
	result any
	err    error
}

func (f *future) Get(ctx context.Context, result any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.ready:
		f.mu.Lock()
		defer f.mu.Unlock()
		assign(result, f.result)
		return f.err
	}
}

func (f *future) IsReady() bool {
	select {
	case <-f.ready:
		return true
	default:
		return false
	}
}

func assign(dst, src any) {
	if dst == nil || src == nil {
		return
	}
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.IsNil() {
		return
	}
	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dv.Elem().Type()) {
		dv.Elem().Set(sv)
		return
	}
	if dv.Elem().Kind() == reflect.Interface && sv.Type().Implements(dv.Elem().Type()) {
		dv.Elem().Set(sv)
	}
}
