package eval

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry))
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry))
		},
	},
	{
		name: "js",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			return NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry))
		},
	},
}

type countingCache struct {
	programs map[string]any
	hits     int
	misses   int
}

func (c *countingCache) Get(key string) (any, bool) {
	value, ok := c.programs[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return value, ok
}

func (c *countingCache) Set(key string, value any) {
	if c.programs == nil {
		c.programs = map[string]any{}
	}
	c.programs[key] = value
}

func TestEvaluatorsReadSnapshotVariables(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skip("engine not compiled in")
			}

			ctx := RuleContext{Snapshot: map[string]any{"counter": 3, "enabled": true}}
			value, err := evaluator.Evaluate(ctx, "enabled && counter > 2")
			require.NoError(t, err)
			assert.Equal(t, true, value)
		})
	}
}

func TestCompiledRulesReuseProgramCache(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := &countingCache{}
			evaluator := factory.new(cache, nil)
			if evaluator == nil {
				t.Skip("engine not compiled in")
			}

			for i := 0; i < 3; i++ {
				_, err := evaluator.Evaluate(RuleContext{Snapshot: map[string]any{"counter": i}}, "counter >= 0")
				require.NoError(t, err)
			}
			assert.Equal(t, 1, cache.misses)
			assert.Equal(t, 2, cache.hits)
		})
	}
}

func TestEvaluatorsCallRegisteredFunctions(t *testing.T) {
	registry := NewFunctionRegistry()
	require.NoError(t, registry.Register("Double", func(args ...any) (any, error) {
		switch v := args[0].(type) {
		case int:
			return v * 2, nil
		case int64:
			return v * 2, nil
		default:
			return nil, errors.New("unsupported")
		}
	}))

	evaluator := NewExprEvaluator(ExprWithFunctionRegistry(registry))
	value, err := evaluator.Evaluate(RuleContext{Snapshot: map[string]any{"counter": 4}}, "double(counter)")
	require.NoError(t, err)
	assert.Equal(t, 8, value)

	cel := NewCELEvaluator(CELWithFunctionRegistry(registry))
	value, err = cel.Evaluate(RuleContext{Snapshot: map[string]any{"counter": 4}}, `call("double", [counter])`)
	require.NoError(t, err)
	assert.Equal(t, int64(8), value)
}

func TestFunctionRegistryRejectsDuplicatesCaseInsensitively(t *testing.T) {
	registry := NewFunctionRegistry()
	fn := func(...any) (any, error) { return nil, nil }
	require.NoError(t, registry.Register("Lookup", fn))
	require.Error(t, registry.Register("lookup", fn))
	require.Error(t, registry.Register("", fn))
	require.Error(t, registry.Register("nil", nil))
	assert.Equal(t, []string{"lookup"}, registry.Names())

	clone := registry.Clone()
	require.NoError(t, clone.Register("other", fn))
	assert.Len(t, registry.Names(), 1)

	_, err := registry.Call("missing")
	require.ErrorIs(t, err, ErrFunctionNotFound)
}

func TestFunctionRegistryChecksArity(t *testing.T) {
	registry := NewFunctionRegistry()
	require.NoError(t, registry.RegisterArity("max2", 2, func(args ...any) (any, error) {
		if args[0].(int) > args[1].(int) {
			return args[0], nil
		}
		return args[1], nil
	}))
	require.Error(t, registry.RegisterArity("bad", -2, func(...any) (any, error) { return nil, nil }))

	value, err := registry.Call("MAX2", 3, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, value)

	_, err = registry.Call("max2", 3)
	require.ErrorIs(t, err, ErrArity)
}

func TestFunctionRegistryMergeKeepsExisting(t *testing.T) {
	base := NewFunctionRegistry()
	require.NoError(t, base.Register("label", func(...any) (any, error) { return "base", nil }))

	extra := NewFunctionRegistry()
	require.NoError(t, extra.Register("label", func(...any) (any, error) { return "extra", nil }))
	require.NoError(t, extra.Register("upper", func(args ...any) (any, error) { return args, nil }))

	base.Merge(extra)
	base.Merge(nil)

	assert.Equal(t, []string{"label", "upper"}, base.Names())
	value, err := base.Call("label")
	require.NoError(t, err)
	assert.Equal(t, "base", value)
}

func TestEvaluatorsCombineFunctionRegistries(t *testing.T) {
	math := NewFunctionRegistry()
	require.NoError(t, math.RegisterArity("inc", 1, func(args ...any) (any, error) {
		return args[0].(int) + 1, nil
	}))
	labels := NewFunctionRegistry()
	require.NoError(t, labels.RegisterArity("label", 1, func(args ...any) (any, error) {
		return fmt.Sprintf("n=%v", args[0]), nil
	}))

	evaluator := NewExprEvaluator(ExprWithFunctionRegistry(math), ExprWithFunctionRegistry(labels))
	value, err := evaluator.Evaluate(RuleContext{Snapshot: map[string]any{"counter": 1}}, "label(inc(counter))")
	require.NoError(t, err)
	assert.Equal(t, "n=2", value)

	assert.Equal(t, []string{"inc"}, math.Names(), "caller registries stay untouched")
}

func TestRuleContextDefaultsNow(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ctx := RuleContext{Now: &fixed}.withDefaults()
	assert.Equal(t, fixed, ctx.timestamp())
	assert.NotNil(t, ctx.Args)
	assert.NotNil(t, ctx.Metadata)

	empty := RuleContext{}.withDefaults()
	require.NotNil(t, empty.Now)
	assert.False(t, empty.Now.IsZero())
}

func TestEmptyExpressionIsRejected(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skip("engine not compiled in")
			}
			_, err := evaluator.Evaluate(RuleContext{}, "")
			require.ErrorIs(t, err, ErrEmptyExpression)
			_, err = evaluator.Compile("")
			require.ErrorIs(t, err, ErrEmptyExpression)
		})
	}
}

func TestEngineName(t *testing.T) {
	assert.Equal(t, "expr", EngineName(NewExprEvaluator()))
	assert.Equal(t, "cel", EngineName(NewCELEvaluator()))
	assert.Equal(t, "unknown", EngineName(nil))
	if JSAvailable() {
		assert.Equal(t, "js", EngineName(NewJSEvaluator()))
	}
}

func TestWrapEvaluationErrorCreatesMetadata(t *testing.T) {
	base := errors.New("boom")
	err := wrapEvaluationError("expr", "flag && missing", "counterState", base)

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "expr", evalErr.Engine)
	assert.Equal(t, "flag && missing", evalErr.Expr)
	assert.Equal(t, "counterState", evalErr.StateType)
	assert.ErrorIs(t, err, base)
}

func TestWrapEvaluationErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{Engine: "expr", Err: base}

	err := wrapEvaluationError("cel", "rule", "counterState", existing)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "expr", existing.Engine)
	assert.Equal(t, "rule", existing.Expr)
	assert.Equal(t, "counterState", existing.StateType)
}

func TestExpectBoolRejectsOtherResults(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skip("engine not compiled in")
			}
			ctx := RuleContext{Snapshot: map[string]any{"counter": 3}, StateType: "counterState"}

			guard, err := evaluator.Compile("counter > 2", ExpectBool())
			require.NoError(t, err)
			value, err := guard.Evaluate(ctx)
			require.NoError(t, err)
			assert.Equal(t, true, value)

			notGuard, err := evaluator.Compile("counter + 1", ExpectBool())
			require.NoError(t, err)
			_, err = notGuard.Evaluate(ctx)
			require.ErrorIs(t, err, ErrUnexpectedType)

			var evalErr *EvaluationError
			require.ErrorAs(t, err, &evalErr)
			assert.Equal(t, "counterState", evalErr.StateType)
		})
	}
}

func TestCELCompileWithSampleBuildsEagerly(t *testing.T) {
	cache := &countingCache{}
	evaluator := NewCELEvaluator(CELWithProgramCache(cache))

	_, err := evaluator.Compile("missing > 1", WithSample(map[string]any{"counter": 1}))
	require.Error(t, err)

	rule, err := evaluator.Compile("counter * 2", WithSample(map[string]any{"counter": 1}))
	require.NoError(t, err)
	assert.Equal(t, 2, cache.misses)

	value, err := rule.Evaluate(RuleContext{Snapshot: map[string]any{"counter": 5}})
	require.NoError(t, err)
	assert.Equal(t, int64(10), value)
	assert.Equal(t, 2, cache.misses, "evaluation reuses the compiled program")
	assert.Equal(t, 0, cache.hits)
}

func TestCELSampleCheckAppliesPerKeySet(t *testing.T) {
	cache := NewMemoryCache()
	evaluator := NewCELEvaluator(CELWithProgramCache(cache))

	_, err := evaluator.Compile("counter > 1", WithSample(map[string]any{"counter": 1}))
	require.NoError(t, err)

	_, err = evaluator.Compile("counter > 1", WithSample(map[string]any{"total": 1}))
	require.Error(t, err)

	_, err = evaluator.Compile("counter > 1", WithSample(map[string]any{"counter": 9}))
	require.NoError(t, err)
}

func TestCELCompileReportsSyntaxErrors(t *testing.T) {
	_, err := NewCELEvaluator().Compile("counter >")
	require.Error(t, err)

	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "cel", evalErr.Engine)
}
