// Package eval provides expression engines used to project and guard state
// snapshots. Three engines share one Evaluator contract:
//
//   - expr, backed by github.com/expr-lang/expr (default)
//   - cel, backed by github.com/google/cel-go
//   - js, backed by github.com/dop251/goja, only built with the js_eval tag
//
// Snapshots are exposed to expressions as top-level variables. Evaluators can
// share a ProgramCache and a FunctionRegistry of custom functions.
package eval
