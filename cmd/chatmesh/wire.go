package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/chatmesh/agent"
	"github.com/hupe1980/chatmesh/config"
	"github.com/hupe1980/chatmesh/core"
	"github.com/hupe1980/chatmesh/engine"
	"github.com/hupe1980/chatmesh/logging"
	"github.com/hupe1980/chatmesh/metrics"
	"github.com/hupe1980/chatmesh/model"
	chatanthropic "github.com/hupe1980/chatmesh/model/anthropic"
	chatopenai "github.com/hupe1980/chatmesh/model/openai"
	"github.com/hupe1980/chatmesh/session"
	"github.com/hupe1980/chatmesh/supervisor"
)

// app bundles everything a command needs from a loaded configuration.
type app struct {
	engine   *engine.Engine
	registry *prometheus.Registry
	logger   *logging.ChatLogger
	closers  []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func newApp(cfg *config.Config, logOutput io.Writer) (*app, error) {
	lc := cfg.LoggerConfig()
	lc.Output = logOutput
	lc.Component = "chatmesh"
	logger := logging.NewLogger(lc)

	a := &app{registry: prometheus.NewRegistry(), logger: logger}

	models, err := buildModels(cfg.Models)
	if err != nil {
		return nil, err
	}

	registry, err := buildRegistry(cfg, models)
	if err != nil {
		return nil, err
	}

	sup, err := buildSupervisor(cfg.Supervisor, models)
	if err != nil {
		return nil, err
	}

	var store core.SessionStore = session.NewInMemoryStore()
	if cfg.Redis != nil {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client)
		store = session.NewRedisStore(client,
			session.WithPrefix(cfg.Redis.Prefix),
			session.WithTTL(cfg.Redis.TTL.Std()),
		)
	}

	a.engine = engine.New(registry, func(o *engine.Options) {
		o.Config = engine.Config{
			MaxConcurrentTurns: cfg.Engine.MaxConcurrentTurns,
			EventBufferSize:    cfg.Engine.EventBufferSize,
			MaxHistoryMessages: cfg.Engine.MaxHistoryMessages,
		}
		o.SessionStore = store
		o.Supervisor = sup
		o.TaskTimeout = cfg.Engine.TaskTimeout.Std()
		o.MaxParallel = cfg.Engine.MaxParallel
		o.MaxRounds = cfg.Engine.MaxRounds
		o.Logger = logger.WithComponent("engine")
		o.Metrics = metrics.NewCollector(a.registry)
		o.Callbacks = []engine.Callback{
			engine.NewLoggingCallback(engine.CallbackOnError, logger.WithComponent("callbacks")),
		}
	})

	return a, nil
}

func buildModels(cfgs []config.ModelConfig) (map[string]model.Model, error) {
	models := make(map[string]model.Model, len(cfgs))
	for _, mc := range cfgs {
		m, err := buildModel(mc)
		if err != nil {
			return nil, err
		}
		models[mc.ID] = m
	}
	return models, nil
}

func buildModel(mc config.ModelConfig) (model.Model, error) {
	switch mc.Provider {
	case config.ProviderOpenAI:
		return chatopenai.NewModel(func(o *chatopenai.Options) {
			if mc.Model != "" {
				o.Model = mc.Model
			}
			if mc.Temperature != 0 {
				o.Temperature = mc.Temperature
			}
			if mc.MaxTokens != 0 {
				o.MaxCompletionTokens = mc.MaxTokens
			}
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
		}), nil
	case config.ProviderAnthropic:
		return chatanthropic.NewModel(func(o *chatanthropic.Options) {
			if mc.Model != "" {
				o.Model = anthropic.Model(mc.Model)
			}
			if mc.Temperature != 0 {
				o.Temperature = mc.Temperature
			}
			if mc.MaxTokens != 0 {
				o.MaxTokens = mc.MaxTokens
			}
			o.APIKey = mc.APIKey
			o.BaseURL = mc.BaseURL
			o.ThinkingBudget = mc.ThinkingBudget
		}), nil
	case config.ProviderMock:
		name := mc.Name
		if name == "" {
			name = mc.ID
		}
		m := model.NewMockModel(name, config.ProviderMock)
		if mc.Response != "" {
			m.SetScript(model.Script{Chunks: model.SplitWords(mc.Response)})
		}
		return m, nil
	default:
		return nil, fmt.Errorf("model %q: unknown provider %q", mc.ID, mc.Provider)
	}
}

func buildRegistry(cfg *config.Config, models map[string]model.Model) (*agent.Registry, error) {
	registry := agent.NewRegistry()
	for _, mc := range cfg.Models {
		if err := registry.RegisterModel(agent.ModelEntry{ID: mc.ID, Model: models[mc.ID], ContextBudget: mc.ContextBudget}); err != nil {
			return nil, err
		}
	}
	for _, ac := range cfg.Assistants {
		a := agent.Assistant{ID: ac.ID, Name: ac.Name, Model: ac.Model, ContextBudget: ac.ContextBudget}
		if ac.Instruction != "" {
			a.Instruction = agent.NewInstructionFromText(ac.Instruction)
		}
		if err := registry.RegisterAssistant(a); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildSupervisor(sc config.SupervisorConfig, models map[string]model.Model) (supervisor.Supervisor, error) {
	switch sc.Type {
	case config.SupervisorRoundRobin:
		return supervisor.NewRoundRobin(func(o *supervisor.RoundRobinOptions) {
			if sc.ID != "" {
				o.ID = sc.ID
			}
			if sc.Name != "" {
				o.Name = sc.Name
			}
			o.Cycles = sc.Cycles
		}), nil
	case config.SupervisorModel:
		llm, ok := models[sc.Model]
		if !ok {
			return nil, fmt.Errorf("supervisor: unknown model %q", sc.Model)
		}
		return supervisor.NewModelSupervisor(llm, func(o *supervisor.ModelOptions) {
			if sc.ID != "" {
				o.ID = sc.ID
			}
			if sc.Name != "" {
				o.Name = sc.Name
			}
			if sc.Prompt != "" {
				o.Prompt = sc.Prompt
			}
		}), nil
	default:
		return nil, fmt.Errorf("supervisor: unknown type %q", sc.Type)
	}
}
