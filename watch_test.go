package datastate

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/goliatone/go-datastate/pkg/bus"
	"github.com/goliatone/go-datastate/pkg/store"
)

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []ExprEvaluatorOption{}
			if cache != nil {
				opts = append(opts, ExprWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, ExprWithFunctionRegistry(registry))
			}
			return NewExprEvaluator(opts...)
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []CELEvaluatorOption{}
			if cache != nil {
				opts = append(opts, CELWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, CELWithFunctionRegistry(registry))
			}
			return NewCELEvaluator(opts...)
		},
	},
	{
		name: "js",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []JSEvaluatorOption{}
			if cache != nil {
				opts = append(opts, JSWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, JSWithFunctionRegistry(registry))
			}
			return NewJSEvaluator(opts...)
		},
	},
}

func evaluatorOrSkip(t *testing.T, name string, evaluator Evaluator) Evaluator {
	t.Helper()
	if evaluator == nil {
		if name == "js" && !jsEvaluatorAvailable() {
			t.Skip("js evaluator requires the js_eval build tag")
		}
		t.Fatalf("%s evaluator is nil", name)
	}
	return evaluator
}

func TestWatchDeliversMatchingChanges(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := evaluatorOrSkip(t, factory.name, factory.new(nil, nil))
			s := store.New()

			var delivered []string
			_, err := Watch(s, `kind == "widget" && value.status == "ready"`, func(change store.RootChange) error {
				delivered = append(delivered, change.Path)
				return nil
			}, nil, WatchWithEvaluator(evaluator))
			if err != nil {
				t.Fatalf("Watch: %v", err)
			}

			writes := []struct {
				path   string
				status string
			}{
				{"widget.state", "idle"},
				{"widget.state", "ready"},
				{"panel.state", "ready"},
				{"widget.state.7", "ready"},
			}
			for _, w := range writes {
				if err := s.Change("test", "write", w.path, map[string]any{"status": w.status}); err != nil {
					t.Fatalf("Change(%s): %v", w.path, err)
				}
			}
			if len(delivered) != 2 || delivered[0] != "widget.state" || delivered[1] != "widget.state.7" {
				t.Fatalf("unexpected deliveries %v", delivered)
			}
		})
	}
}

func TestWatchBindsChangeMetadata(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := evaluatorOrSkip(t, factory.name, factory.new(nil, nil))
			s := store.New()
			hits := 0
			expression := `reason == "user-changed" && origin == "tooling" && property == "user" && instance == "1234" && args.min <= 2`
			_, err := Watch(s, expression, func(store.RootChange) error {
				hits++
				return nil
			}, nil, WatchWithEvaluator(evaluator), WatchWithArgs(map[string]any{"min": 1}))
			if err != nil {
				t.Fatalf("Watch: %v", err)
			}
			_ = s.Change("tooling", "user-changed", "user-widget.user.1234", map[string]any{"userName": "ann"})
			_ = s.Change("tooling", "user-changed", "user-widget.user.9876", map[string]any{"userName": "bob"})
			_ = s.Change("other", "user-changed", "user-widget.user.1234", map[string]any{"userName": "cyd"})
			if hits != 1 {
				t.Fatalf("expected one match, got %d", hits)
			}
		})
	}
}

func TestWatchNonBooleanResultFails(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := evaluatorOrSkip(t, factory.name, factory.new(nil, nil))
			s := store.New()
			_, err := Watch(s, `path`, func(store.RootChange) error {
				t.Fatalf("listener must not run")
				return nil
			}, nil, WatchWithEvaluator(evaluator))
			if err != nil {
				t.Fatalf("Watch: %v", err)
			}
			err = s.Change("test", "write", "widget.state", map[string]any{})
			if !errors.Is(err, ErrFilterResult) {
				t.Fatalf("expected ErrFilterResult, got %v", err)
			}
			var evalErr *EvaluationError
			if !errors.As(err, &evalErr) || evalErr.Engine != factory.name || evalErr.Path != "widget.state" {
				t.Fatalf("expected evaluation error metadata, got %v", err)
			}
			if _, ok := s.Get("widget.state"); !ok {
				t.Fatalf("write should commit despite filter error")
			}
		})
	}
}

func TestWatchUsesRegisteredFunctions(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("ready", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("ready expects one argument")
		}
		value, _ := args[0].(map[string]any)
		return value["status"] == "ready", nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := evaluatorOrSkip(t, factory.name, factory.new(nil, registry))
			s := store.New()
			hits := 0
			if _, err := Watch(s, `ready(value)`, func(store.RootChange) error {
				hits++
				return nil
			}, nil, WatchWithEvaluator(evaluator)); err != nil {
				t.Fatalf("Watch: %v", err)
			}
			_ = s.Change("test", "write", "widget.state", map[string]any{"status": "idle"})
			_ = s.Change("test", "write", "widget.state", map[string]any{"status": "ready"})
			if hits != 1 {
				t.Fatalf("expected one match, got %d", hits)
			}
		})
	}
}

func TestWatchDefaultEvaluatorOptions(t *testing.T) {
	s := store.New()
	cache := NewProgramCache()
	var events []EvaluatorLogEvent
	logger := EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		events = append(events, event)
	})

	for i := 0; i < 2; i++ {
		filter, err := Watch(s, `isodd(value)`, func(store.RootChange) error { return nil }, nil,
			WatchWithProgramCache(cache),
			WatchWithLogger(logger),
			WatchWithFunction("isodd", func(args ...any) (any, error) {
				n, _ := args[0].(int)
				return n%2 == 1, nil
			}),
		)
		if err != nil {
			t.Fatalf("Watch: %v", err)
		}
		if filter.Engine() != "expr" || filter.Expression() != `isodd(value)` {
			t.Fatalf("unexpected filter %s/%s", filter.Engine(), filter.Expression())
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one cached program, got %d", cache.Len())
	}

	if err := s.Change("test", "write", "counter.count", 3); err != nil {
		t.Fatalf("Change: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected two evaluations, got %d", len(events))
	}
	for _, event := range events {
		if !event.Matched || event.Path != "counter.count" || event.Engine != "expr" || event.Err != nil {
			t.Fatalf("unexpected log event %+v", event)
		}
	}
}

func TestWatchCompileErrors(t *testing.T) {
	_, err := Watch(store.New(), `path ==`, func(store.RootChange) error { return nil }, nil)
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != "expr" {
		t.Fatalf("expected expr EvaluationError, got %v", err)
	}
	if _, err := Watch(store.New(), `true`, nil, nil); !errors.Is(err, ErrNoListener) {
		t.Fatalf("expected ErrNoListener, got %v", err)
	}
}

func TestWatchRejectsInvalidFunctions(t *testing.T) {
	listener := func(store.RootChange) error { return nil }
	cases := []struct {
		name string
		opts []WatchOption
		want string
	}{
		{name: "empty name", opts: []WatchOption{WatchWithFunction("", func(...any) (any, error) { return true, nil })}, want: "name must not be empty"},
		{name: "nil function", opts: []WatchOption{WatchWithFunction("ready", nil)}, want: `function "ready" is nil`},
		{
			name: "duplicate",
			opts: []WatchOption{
				WatchWithFunction("ready", func(...any) (any, error) { return true, nil }),
				WatchWithFunction("Ready", func(...any) (any, error) { return true, nil }),
			},
			want: "already registered",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := store.New()
			filter, err := Watch(s, `true`, listener, nil, tc.opts...)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
			if filter != nil {
				t.Fatalf("expected no filter")
			}
		})
	}
}

func TestWatchPathAndCancellation(t *testing.T) {
	s := store.New()
	token := bus.NewToken()
	hits := 0
	if _, err := WatchPath(s, "widget.state", func(store.RootChange) error {
		hits++
		return nil
	}, token); err != nil {
		t.Fatalf("WatchPath: %v", err)
	}
	if s.RefCount("widget.state") != 0 {
		t.Fatalf("watchers must not own paths")
	}
	_ = s.Change("test", "write", "widget.state", map[string]any{})
	_ = s.Change("test", "write", "panel.state", map[string]any{})
	token.Cancel()
	_ = s.Change("test", "write", "widget.state", map[string]any{})
	if hits != 1 {
		t.Fatalf("expected one delivery before cancel, got %d", hits)
	}
}

func TestRuleContextDefaults(t *testing.T) {
	ctx := RuleContext{}.withDefaults()
	if ctx.Now == nil || ctx.Now.IsZero() {
		t.Fatalf("expected now to default")
	}
	if ctx.Args == nil || ctx.Metadata == nil {
		t.Fatalf("expected maps to default")
	}
	if ctx.pathLabel() != "unknown" {
		t.Fatalf("unexpected path label %q", ctx.pathLabel())
	}
}
