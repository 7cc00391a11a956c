package datastate

import (
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-datastate/pkg/store"
)

// WatchOption configures a Filter or a watcher.
type WatchOption func(*watchConfig)

type watchConfig struct {
	evaluator Evaluator
	logger    EvaluatorLogger
	args      map[string]any
	metadata  map[string]any
	cache     ProgramCache
	functions *FunctionRegistry
	errs      []error
}

// WatchWithEvaluator selects the engine used to run the filter. The default
// is an expr evaluator built from the cache and function options.
func WatchWithEvaluator(evaluator Evaluator) WatchOption {
	return func(cfg *watchConfig) {
		cfg.evaluator = evaluator
	}
}

// WatchWithLogger records every evaluation.
func WatchWithLogger(logger EvaluatorLogger) WatchOption {
	return func(cfg *watchConfig) {
		cfg.logger = logger
	}
}

// WatchWithArgs exposes args to the expression as `args`.
func WatchWithArgs(args map[string]any) WatchOption {
	return func(cfg *watchConfig) {
		cfg.args = args
	}
}

// WatchWithMetadata exposes metadata to the expression as `metadata`.
func WatchWithMetadata(metadata map[string]any) WatchOption {
	return func(cfg *watchConfig) {
		cfg.metadata = metadata
	}
}

// WatchWithProgramCache shares compiled programs with the default evaluator.
func WatchWithProgramCache(cache ProgramCache) WatchOption {
	return func(cfg *watchConfig) {
		cfg.cache = cache
	}
}

// WatchWithFunctionRegistry exposes registry functions to the default
// evaluator.
func WatchWithFunctionRegistry(registry *FunctionRegistry) WatchOption {
	return func(cfg *watchConfig) {
		cfg.functions = registry
	}
}

// WatchWithFunction registers a single function for the default evaluator.
// A rejected registration makes NewFilter fail.
func WatchWithFunction(name string, fn Function) WatchOption {
	return func(cfg *watchConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		} else {
			cfg.functions = cfg.functions.Clone()
		}
		if err := cfg.functions.Register(name, fn); err != nil {
			cfg.errs = append(cfg.errs, err)
		}
	}
}

// Filter is a compiled predicate over root changes.
type Filter struct {
	expression string
	engine     string
	rule       CompiledRule
	logger     EvaluatorLogger
	args       map[string]any
	metadata   map[string]any
}

// NewFilter compiles expression. Compile errors are returned as
// *EvaluationError.
func NewFilter(expression string, opts ...WatchOption) (*Filter, error) {
	cfg := watchConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := errors.Join(cfg.errs...); err != nil {
		return nil, err
	}
	evaluator := cfg.evaluator
	if evaluator == nil {
		evaluator = NewExprEvaluator(
			ExprWithProgramCache(cfg.cache),
			ExprWithFunctionRegistry(cfg.functions),
		)
	}
	engine := engineName(evaluator)
	rule, err := evaluator.Compile(expression)
	if err != nil {
		return nil, wrapEvaluationError(engine, expression, "", err)
	}
	logger := cfg.logger
	if logger == nil {
		logger = noopEvaluatorLogger{}
	}
	return &Filter{
		expression: expression,
		engine:     engine,
		rule:       rule,
		logger:     logger,
		args:       cfg.args,
		metadata:   cfg.metadata,
	}, nil
}

// Expression returns the source the filter was compiled from.
func (f *Filter) Expression() string {
	return f.expression
}

// Engine names the evaluator backing the filter.
func (f *Filter) Engine() string {
	return f.engine
}

// Match evaluates the filter against change.
func (f *Filter) Match(change store.RootChange) (bool, error) {
	start := time.Now()
	matched, err := f.match(change)
	f.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   f.engine,
		Expr:     f.expression,
		Path:     change.Path,
		Matched:  matched,
		Duration: time.Since(start),
		Err:      err,
	})
	return matched, err
}

func (f *Filter) match(change store.RootChange) (bool, error) {
	ctx := RuleContext{
		Snapshot: ChangeBinding(change),
		Args:     f.args,
		Metadata: f.metadata,
		Path:     change.Path,
	}
	result, err := f.rule.Evaluate(ctx)
	if err != nil {
		return false, wrapEvaluationError(f.engine, f.expression, change.Path, err)
	}
	matched, ok := result.(bool)
	if !ok {
		return false, wrapEvaluationError(f.engine, f.expression, change.Path,
			fmt.Errorf("%w: got %T", ErrFilterResult, result))
	}
	return matched, nil
}

// ChangeBinding returns the variables a filter sees for change.
func ChangeBinding(change store.RootChange) map[string]any {
	kind, property, instance := SplitStatePath(change.Path)
	return map[string]any{
		"path":     change.Path,
		"reason":   change.Reason,
		"origin":   store.OriginID(change.Origin),
		"value":    change.Value,
		"state":    change.Root,
		"kind":     kind,
		"property": property,
		"instance": instance,
	}
}

type namedEvaluator interface {
	engine() string
}

func engineName(evaluator Evaluator) string {
	if named, ok := evaluator.(namedEvaluator); ok {
		return named.engine()
	}
	return "custom"
}

func (*exprEvaluator) engine() string { return "expr" }

func (*celEvaluator) engine() string { return "cel" }
