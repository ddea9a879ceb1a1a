// Package scenario replays a YAML description of map state, expression
// watches and change sets through a reactor runtime.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	reactor "github.com/goliatone/go-reactor"
	"github.com/goliatone/go-reactor/pkg/eval"
)

const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

var (
	ErrNoWatches     = errors.New("scenario: no watches declared")
	ErrUnknownEngine = errors.New("scenario: unknown engine")
	ErrInvalid       = errors.New("scenario: invalid")
)

var validate = validator.New()

// Scenario is the file format read by reactorctl.
type Scenario struct {
	State   map[string]any   `yaml:"state"`
	Watches []Watch          `yaml:"watches" validate:"required,min=1,dive"`
	Steps   []map[string]any `yaml:"steps"`
}

// Watch is an expression observed as a value reaction.
type Watch struct {
	Name       string   `yaml:"name" validate:"required"`
	Engine     string   `yaml:"engine" validate:"oneof=expr cel js"`
	Expression string   `yaml:"expression" validate:"required"`
	Topics     []string `yaml:"topics" validate:"dive,required"`
	When       string   `yaml:"when"`
}

// Change is one observed watch value.
type Change struct {
	Step     int
	Watch    string
	Value    any
	Revision uint64
}

// Report summarizes a run.
type Report struct {
	Changes  []Change
	Final    map[string]any
	Revision uint64
}

// Load reads and validates a scenario file.
func Load(path string) (Scenario, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	return Parse(contents)
}

// Parse decodes and validates a scenario.
func Parse(contents []byte) (Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(contents, &s); err != nil {
		return Scenario{}, fmt.Errorf("scenario: unmarshal: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Validate fills watch defaults, then checks the struct rules and that
// every engine is compiled in.
func (s *Scenario) Validate() error {
	for i := range s.Watches {
		w := &s.Watches[i]
		w.Engine = strings.ToLower(strings.TrimSpace(w.Engine))
		if w.Engine == "" {
			w.Engine = EngineExpr
		}
		if w.Name == "" {
			w.Name = fmt.Sprintf("watch-%d", i+1)
		}
	}

	if err := validate.Struct(s); err != nil {
		return translate(err)
	}
	for _, w := range s.Watches {
		if _, err := evaluatorFor(w.Engine); err != nil {
			return fmt.Errorf("scenario: watch %s: %w", w.Name, err)
		}
	}
	return nil
}

// translate maps the first validation failure onto the package sentinels.
func translate(err error) error {
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	failure := failures[0]
	switch failure.StructField() {
	case "Watches":
		return ErrNoWatches
	case "Engine":
		return fmt.Errorf("%w %q", ErrUnknownEngine, failure.Value())
	default:
		return fmt.Errorf("%w: %s fails %q", ErrInvalid, failure.Namespace(), failure.Tag())
	}
}

func evaluatorFor(engine string) (eval.Evaluator, error) {
	switch engine {
	case EngineExpr:
		return eval.NewExprEvaluator(eval.ExprWithProgramCache(eval.NewMemoryCache())), nil
	case EngineCEL:
		return eval.NewCELEvaluator(eval.CELWithProgramCache(eval.NewMemoryCache())), nil
	case EngineJS:
		if !eval.JSAvailable() {
			return nil, fmt.Errorf("%w %q: built without js_eval", ErrUnknownEngine, engine)
		}
		return eval.NewJSEvaluator(eval.JSWithProgramCache(eval.NewMemoryCache())), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEngine, engine)
	}
}

// Run registers the scenario state on a fresh runtime built from opts,
// attaches every watch and applies each step in order.
func Run(ctx context.Context, s Scenario, opts ...reactor.Option) (Report, error) {
	rt := reactor.New(opts...)
	container, err := reactor.RegisterState(rt, reactor.NewMapSnapshot(s.State))
	if err != nil {
		return Report{}, err
	}

	report := Report{}
	step := 0
	for _, w := range s.Watches {
		evaluator, err := evaluatorFor(w.Engine)
		if err != nil {
			return report, err
		}
		reactionOpts := []reactor.ReactionOption{reactor.Named(w.Name), reactor.OnTopics(topics(w.Topics)...)}
		if w.When != "" {
			reactionOpts = append(reactionOpts, reactor.WhenExpression(evaluator, w.When))
		}
		watch, err := reactor.RegisterExpressionReaction[reactor.MapSnapshot](rt, evaluator, w.Expression, reactionOpts...)
		if err != nil {
			return report, fmt.Errorf("scenario: watch %s: %w", w.Name, err)
		}
		report.Changes = append(report.Changes, Change{Watch: w.Name, Value: watch.Value()})

		name := w.Name
		watch.Listen(func(value any) {
			report.Changes = append(report.Changes, Change{
				Step:     step,
				Watch:    name,
				Value:    value,
				Revision: container.Revision(),
			})
		})
	}

	for i, changes := range s.Steps {
		step = i + 1
		if err = container.Apply(ctx, toChanges(changes)); err != nil {
			err = fmt.Errorf("scenario: step %d: %w", step, err)
			break
		}
	}

	report.Final = container.Read().Fields()
	report.Revision = container.Revision()
	return report, err
}

func topics(names []string) []reactor.Topic {
	out := make([]reactor.Topic, 0, len(names))
	for _, name := range names {
		out = append(out, reactor.Topic(name))
	}
	return out
}

func toChanges(values map[string]any) reactor.Changes {
	changes := make(reactor.Changes, len(values))
	for key, value := range values {
		changes[reactor.Topic(key)] = value
	}
	return changes
}
