//go:build js_eval

package eval

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	engineConfig
}

// NewJSEvaluator constructs an Evaluator backed by goja. Each evaluation runs
// in a fresh VM, so programs never observe state from earlier snapshots.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	return &jsEvaluator{engineConfig: applyEngineOptions(opts)}
}

// JSAvailable reports whether the goja engine was compiled in.
func JSAvailable() bool {
	return true
}

func isJSEvaluator(e Evaluator) bool {
	_, ok := e.(*jsEvaluator)
	return ok
}

func (e *jsEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

func (e *jsEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, emptyExpression("js")
	}
	program, err := e.program(expression)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, "", err)
	}
	rule := &jsCompiledRule{evaluator: e, expression: expression, program: program}
	return applyCompileOptions(opts).finish("js", expression, rule), nil
}

// program wraps expression in a function body so it can be a bare
// expression rather than a statement list.
func (e *jsEvaluator) program(expression string) (*goja.Program, error) {
	if cached, ok := e.cached(expression); ok {
		if program, ok := cached.(*goja.Program); ok {
			return program, nil
		}
	}
	program, err := goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
	if err != nil {
		return nil, err
	}
	e.store(expression, program)
	return program, nil
}

type jsCompiledRule struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (r *jsCompiledRule) Evaluate(ctx RuleContext) (any, error) {
	ctx = ctx.withDefaults()
	vm := goja.New()
	for key, value := range r.evaluator.bindings(ctx) {
		if err := vm.Set(key, value); err != nil {
			return nil, wrapEvaluationError("js", r.expression, ctx.label(), err)
		}
	}
	value, err := vm.RunProgram(r.program)
	if err != nil {
		return nil, wrapEvaluationError("js", r.expression, ctx.label(), err)
	}
	return value.Export(), nil
}
