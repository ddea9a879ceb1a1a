package eval

import (
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrUnexpectedType is returned by rules compiled with ExpectBool when the
// expression yields something else.
var ErrUnexpectedType = errors.New("eval: unexpected result type")

// RuleContext carries inputs needed when evaluating an expression.
type RuleContext struct {
	Snapshot  any
	Now       *time.Time
	Args      map[string]any
	Metadata  map[string]any
	StateType string
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
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

func (ctx RuleContext) label() string {
	if ctx.StateType != "" {
		return ctx.StateType
	}
	return "unknown"
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct {
	expectBool bool
	sample     map[string]any
}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// ExpectBool makes the compiled rule fail with ErrUnexpectedType unless the
// expression evaluates to a bool. Guards compile with it.
func ExpectBool() CompileOption {
	return compileOptionFunc(func(cfg *compileConfig) {
		cfg.expectBool = true
	})
}

// WithSample declares snapshot variables from fields so type-checking
// engines (CEL) can build the program at compile time instead of on first
// evaluation.
func WithSample(fields map[string]any) CompileOption {
	sample := maps.Clone(fields)
	if sample == nil {
		sample = map[string]any{}
	}
	return compileOptionFunc(func(cfg *compileConfig) {
		cfg.sample = sample
	})
}

func applyCompileOptions(opts []CompileOption) compileConfig {
	cfg := compileConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyCompileOption(&cfg)
		}
	}
	return cfg
}

func (cfg compileConfig) finish(engine, expression string, rule CompiledRule) CompiledRule {
	if !cfg.expectBool {
		return rule
	}
	return boolRule{engine: engine, expression: expression, rule: rule}
}

type boolRule struct {
	engine     string
	expression string
	rule       CompiledRule
}

func (r boolRule) Evaluate(ctx RuleContext) (any, error) {
	result, err := r.rule.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := result.(bool); !ok {
		return nil, wrapEvaluationError(r.engine, r.expression, ctx.label(), fmt.Errorf("%w: got %T, want bool", ErrUnexpectedType, result))
	}
	return result, nil
}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MemoryCache is a ProgramCache safe for concurrent use.
type MemoryCache struct {
	programs sync.Map
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(key string) (any, bool) {
	return c.programs.Load(key)
}

func (c *MemoryCache) Set(key string, value any) {
	c.programs.Store(key, value)
}

// EngineName reports the engine behind e: "expr", "cel", "js" or "custom".
func EngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	default:
		if isJSEvaluator(e) {
			return "js"
		}
		return "custom"
	}
}
