package reactor

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-reactor/pkg/eval"
)

// RegisterExpressionReaction registers a value reaction whose projection is
// an expression evaluated against the snapshot's fields (see Fielder). The
// expression is compiled once; a nil evaluator selects the expr engine.
// Values are compared with reflect.DeepEqual.
func RegisterExpressionReaction[S Deriver](rt *Runtime, evaluator eval.Evaluator, expression string, opts ...ReactionOption) (*ValueReaction[S, any], error) {
	c, err := Lookup[S](rt)
	if err != nil {
		return nil, err
	}
	rule, err := compileRule(evaluator, expression, eval.WithSample(snapshotFields(c.Read())))
	if err != nil {
		return nil, err
	}
	projection := func(snapshot S) (any, error) {
		return rule.Evaluate(eval.RuleContext{Snapshot: snapshotFields(snapshot), StateType: c.name})
	}
	return registerValueReaction(rt, projection, func(a, b any) bool { return reflect.DeepEqual(a, b) }, opts...)
}

// WhenExpression gates a reaction on a boolean expression over the
// snapshot's fields. A non-boolean result is an error. A compile error
// surfaces when the reaction is registered.
func WhenExpression(evaluator eval.Evaluator, expression string) ReactionOption {
	rule, err := compileRule(evaluator, expression, eval.ExpectBool())
	return When(func(snapshot any) (bool, error) {
		if err != nil {
			return false, err
		}
		result, evalErr := rule.Evaluate(eval.RuleContext{Snapshot: snapshotFields(snapshot), StateType: fmt.Sprintf("%T", snapshot)})
		if evalErr != nil {
			return false, evalErr
		}
		ok, isBool := result.(bool)
		if !isBool {
			return false, fmt.Errorf("reactor: expression %q returned %T, want bool", expression, result)
		}
		return ok, nil
	})
}

func compileRule(evaluator eval.Evaluator, expression string, opts ...eval.CompileOption) (eval.CompiledRule, error) {
	if evaluator == nil {
		evaluator = eval.NewExprEvaluator()
	}
	rule, err := evaluator.Compile(expression, opts...)
	if err != nil {
		return nil, fmt.Errorf("reactor: compile %s expression: %w", eval.EngineName(evaluator), err)
	}
	return rule, nil
}

func snapshotFields(snapshot any) map[string]any {
	switch typed := snapshot.(type) {
	case Fielder:
		return typed.Fields()
	case map[string]any:
		return typed
	default:
		return FieldsJSON(snapshot)
	}
}
