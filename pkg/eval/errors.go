package eval

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyExpression is returned when a blank expression is compiled or
// evaluated.
var ErrEmptyExpression = errors.New("eval: expression must not be empty")

// EvaluationError reports which engine failed on which expression, and for
// which state type when the failure happened while evaluating a snapshot.
type EvaluationError struct {
	Engine    string
	Expr      string
	StateType string
	Err       error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString("eval: ")
	b.WriteString(e.Engine)
	if e.Expr != "" {
		fmt.Fprintf(&b, " %q", e.Expr)
	}
	if e.StateType != "" {
		fmt.Fprintf(&b, " on %s", e.StateType)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func emptyExpression(engine string) error {
	return &EvaluationError{Engine: engine, Err: ErrEmptyExpression}
}

// wrapEvaluationError attaches engine metadata to err. An EvaluationError
// already in the chain is completed in place rather than wrapped again.
func wrapEvaluationError(engine, expr, stateType string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, StateType: stateType, Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.StateType == "" {
		evalErr.StateType = stateType
	}
	return evalErr
}
