// Package chatmesh provides a high-level façade over the engine and its
// collaborators (participant registry, session store, supervisor, logging and
// metrics) for building multi-participant chat backends. Most applications
// interact with this package by:
//  1. Creating a Mesh via New() (optionally overriding the in-memory defaults)
//  2. Registering raw models and assistant personas
//  3. Running turns asynchronously (Invoke) or synchronously (InvokeSync)
//
// Every turn streams canonical event payloads. All defaults are safe for
// local development and testing; production deployments typically supply a
// durable session store, a structured logger and a metrics registry.
package chatmesh

import (
	"context"
	"time"

	"github.com/hupe1980/chatmesh/agent"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/engine"
	"github.com/hupe1980/chatmesh/event"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
	"github.com/hupe1980/chatmesh/model"
	"github.com/hupe1980/chatmesh/orchestrator"
	"github.com/hupe1980/chatmesh/session"
	"github.com/hupe1980/chatmesh/supervisor"
)

// UnlimitedRounds as Options.MaxRounds lets group turns run until the
// supervisor stops them.
const UnlimitedRounds = orchestrator.UnlimitedRounds

// Options configures the Mesh instance.
type Options struct {
	// Engine configuration (concurrency, buffers, history window)
	EngineConfig engine.Config

	// SessionStore persists prompts and replies (defaults to in-memory).
	SessionStore core.SessionStore

	// Supervisor drives group turns (defaults to round robin).
	Supervisor supervisor.Supervisor

	// TaskTimeout bounds each participant task. Zero keeps the engine
	// default; a negative value disables the bound.
	TaskTimeout time.Duration

	// MaxParallel limits concurrent compare tasks. Zero is unlimited.
	MaxParallel int

	// MaxRounds is the default group round limit. Zero keeps the engine
	// default; UnlimitedRounds lifts the bound.
	MaxRounds int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Collector
}

// Mesh is the high-level façade aggregating the registry and the engine.
type Mesh struct {
	registry *agent.Registry
	engine   *engine.Engine
}

// New creates a new Mesh with optional overrides.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	registry := agent.NewRegistry()

	e := engine.New(registry, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.SessionStore = opts.SessionStore
		o.Supervisor = opts.Supervisor
		if opts.TaskTimeout != 0 {
			o.TaskTimeout = opts.TaskTimeout
		}
		o.MaxParallel = opts.MaxParallel
		if opts.MaxRounds != 0 {
			o.MaxRounds = opts.MaxRounds
		}
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})

	return &Mesh{registry: registry, engine: e}
}

// RegisterModel exposes m as the raw participant "model::<id>".
func (m *Mesh) RegisterModel(id string, llm model.Model) error {
	return m.registry.RegisterModel(agent.ModelEntry{ID: id, Model: llm})
}

// RegisterAssistant adds an assistant persona on top of a registered model.
func (m *Mesh) RegisterAssistant(a agent.Assistant) error {
	return m.registry.RegisterAssistant(a)
}

// Engine returns the underlying engine, e.g. to register callbacks.
func (m *Mesh) Engine() *engine.Engine { return m.engine }

// Invoke starts an asynchronous turn returning payload & error channels.
func (m *Mesh) Invoke(ctx context.Context, req engine.Request) (string, <-chan event.Payload, <-chan error, error) {
	return m.engine.Invoke(ctx, req)
}

// InvokeSync runs a turn to completion and returns every payload.
func (m *Mesh) InvokeSync(ctx context.Context, req engine.Request) (string, []event.Payload, error) {
	return m.engine.InvokeSync(ctx, req)
}

// Stop cancels a running turn.
func (m *Mesh) Stop(turnID string) error { return m.engine.StopInvocation(turnID) }

// Session returns the stored conversation of sessionID.
func (m *Mesh) Session(ctx context.Context, sessionID string) (*core.Session, error) {
	return m.engine.GetSession(ctx, sessionID)
}
