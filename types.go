package datastate

import "time"

// RuleContext carries the inputs of one filter evaluation. Snapshot holds the
// variables exposed to the expression; for watchers it is the change binding
// built by ChangeBinding.
type RuleContext struct {
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	Path     string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) timestamp() time.Time {
	return *ctx.withDefaultNow().Now
}

func (ctx RuleContext) pathLabel() string {
	if ctx.Path != "" {
		return ctx.Path
	}
	return "unknown"
}

func (ctx RuleContext) variables() map[string]any {
	if snapshot, ok := ctx.Snapshot.(map[string]any); ok {
		return snapshot
	}
	return map[string]any{}
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule is a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

// engineConfig carries the settings shared by evaluator engines.
type engineConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

func (cfg *engineConfig) useRegistry(registry *FunctionRegistry) {
	if registry != nil {
		cfg.registry = registry.Clone()
	}
}

// JSEvaluatorOption configures the JS evaluator. Options are accepted with or
// without the js_eval build tag.
type JSEvaluatorOption func(*engineConfig)

// JSWithProgramCache shares compiled goja programs through cache.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry exposes a copy of registry to JS expressions.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(cfg *engineConfig) {
		cfg.useRegistry(registry)
	}
}

func newJSConfig(opts []JSEvaluatorOption) engineConfig {
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
