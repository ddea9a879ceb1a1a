package eval

// engineConfig holds what every engine shares: a program cache and the
// helper functions expressions may call.
type engineConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// ExprEvaluatorOption configures NewExprEvaluator.
type ExprEvaluatorOption func(*engineConfig)

// CELEvaluatorOption configures NewCELEvaluator.
type CELEvaluatorOption func(*engineConfig)

// JSEvaluatorOption configures NewJSEvaluator.
type JSEvaluatorOption func(*engineConfig)

// ExprWithProgramCache stores compiled expr programs in cache.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(cfg *engineConfig) { cfg.cache = cache }
}

// ExprWithFunctionRegistry exposes the helpers of registry to expr
// expressions. Passing several registries combines them; the first
// registration of a name wins.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(cfg *engineConfig) { cfg.addFunctions(registry) }
}

// CELWithProgramCache stores checked CEL programs in cache.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(cfg *engineConfig) { cfg.cache = cache }
}

// CELWithFunctionRegistry exposes registry through CEL's call(name, [args]).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(cfg *engineConfig) { cfg.addFunctions(registry) }
}

// JSWithProgramCache stores compiled goja programs in cache.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(cfg *engineConfig) { cfg.cache = cache }
}

// JSWithFunctionRegistry exposes the helpers of registry as globals.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(cfg *engineConfig) { cfg.addFunctions(registry) }
}

func applyEngineOptions[O ~func(*engineConfig)](opts []O) engineConfig {
	cfg := engineConfig{}
	for _, opt := range opts {
		if apply := (func(*engineConfig))(opt); apply != nil {
			apply(&cfg)
		}
	}
	return cfg
}

// addFunctions snapshots registry so later registrations on the caller's
// copy do not change programs that are already compiled.
func (cfg *engineConfig) addFunctions(registry *FunctionRegistry) {
	if registry == nil {
		return
	}
	if cfg.registry == nil {
		cfg.registry = registry.Clone()
		return
	}
	cfg.registry.Merge(registry)
}

func (cfg engineConfig) cached(key string) (any, bool) {
	if cfg.cache == nil {
		return nil, false
	}
	return cfg.cache.Get(key)
}

func (cfg engineConfig) store(key string, program any) {
	if cfg.cache != nil {
		cfg.cache.Set(key, program)
	}
}

// bindings returns the variables an untyped engine exposes for ctx: the
// snapshot fields, now, args, metadata and one entry per helper plus call.
func (cfg engineConfig) bindings(ctx RuleContext) map[string]any {
	vars := map[string]any{
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
	for key, value := range snapshotAsMap(ctx.Snapshot) {
		vars[key] = value
	}
	if cfg.registry == nil {
		return vars
	}
	vars["call"] = func(name string, arguments ...any) (any, error) {
		return cfg.registry.Call(name, arguments...)
	}
	for _, name := range cfg.registry.Names() {
		vars[name] = cfg.helper(name)
	}
	return vars
}

func (cfg engineConfig) helper(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return cfg.registry.Call(name, arguments...)
	}
}
