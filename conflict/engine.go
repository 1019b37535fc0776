package conflict

import (
	"fmt"
	"sort"

	"github.com/fitvault/fitvault/logging"
)

// Engine runs detection and resolution with a configurable rule set.
// Construction is option-based; the zero configuration carries the built-in
// default rules and needs no user interaction for non-critical conflicts.
type Engine struct {
	customRules  []Rule
	defaultRules []Rule
	logger       *logging.Logger
	audit        func(Resolved)
}

// Option configures an Engine.
type Option func(*Engine)

// WithRule registers a custom rule. Custom rules are evaluated before the
// built-in defaults, in insertion order, first match wins outright.
func WithRule(rule Rule) Option {
	return func(e *Engine) { e.customRules = append(e.customRules, rule) }
}

// WithFieldRule registers a custom fixed-strategy rule matching field names
// by glob pattern.
func WithFieldRule(name, pattern string, strategy Strategy) Option {
	return func(e *Engine) {
		e.customRules = append(e.customRules, NewRule(name, FieldMatches(pattern), strategy))
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithAuditHook registers a callback invoked once per resolved conflict, for
// callers that keep a resolution audit log. Conflicts themselves are never
// persisted.
func WithAuditHook(fn func(Resolved)) Option {
	return func(e *Engine) { e.audit = fn }
}

// WithoutDefaultRules drops the built-in rule set, leaving only custom rules
// and the generic strategy priorities.
func WithoutDefaultRules() Option {
	return func(e *Engine) { e.defaultRules = nil }
}

// NewEngine constructs an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		defaultRules: DefaultRules(),
		logger:       logging.Default().WithComponent("conflict"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// suggest fills Severity-driven strategy selection for a detected conflict,
// in priority order: type mismatches always demand a user choice; then
// custom rules, then built-in rules, then the generic fallbacks.
func (e *Engine) suggest(c *Conflict) {
	c.SuggestedResolution = e.selectStrategy(*c)
	c.AutoResolvable = c.SuggestedResolution != StrategyUserChoice
}

func (e *Engine) selectStrategy(c Conflict) Strategy {
	// differing types can silently destroy data whichever side wins
	if c.Type == TypeTypeMismatch {
		return StrategyUserChoice
	}

	for _, r := range e.customRules {
		if r.Matcher != nil && r.Matcher(c) {
			return r.Select(c)
		}
	}
	for _, r := range e.defaultRules {
		if r.Matcher != nil && r.Matcher(c) {
			return r.Select(c)
		}
	}

	if isTimestampField(c.Field) {
		return StrategyUseLatestTimestamp
	}

	lt, rt := jsonType(c.LocalValue), jsonType(c.RemoteValue)
	if (lt == "array" && rt == "array") || (lt == "object" && rt == "object") {
		return StrategyMergeValues
	}

	// a field missing on one side is not a divergence of values: adopting
	// the defined side is safe even for identity-critical fields
	switch c.Type {
	case TypeMissingLocal:
		return StrategyRemoteWins
	case TypeMissingRemote:
		return StrategyLocalWins
	}

	if c.Severity == SeverityCritical {
		return StrategyUserChoice
	}

	return StrategyRemoteWins
}

// Resolve applies each conflict's suggested strategy, honoring any supplied
// user decisions. Conflicts that demand user input and have no decision are
// reported unresolved, never guessed. MergedData starts from the local field
// map and overlays every resolved value.
func (e *Engine) Resolve(local map[string]any, conflicts []Conflict, decisions map[string]Decision) Result {
	result := Result{
		MergedData: make(map[string]any, len(local)),
		Summary:    Summary{Total: len(conflicts)},
	}
	for k, v := range local {
		result.MergedData[k] = v
	}

	for _, c := range conflicts {
		strategy := c.SuggestedResolution
		userResolved := false

		if d, ok := decisions[c.Field]; ok {
			strategy = d.Strategy
			userResolved = true
			if d.Value != nil {
				e.record(&result, c, strategy, d.Value, false, true)
				continue
			}
		}

		if strategy == StrategyUserChoice {
			result.Unresolved = append(result.Unresolved, c)
			result.Summary.Unresolved++
			continue
		}

		value, omit := e.apply(strategy, c)
		e.record(&result, c, strategy, value, omit, userResolved)
	}

	result.RequiresUserInput = len(result.Unresolved) > 0
	return result
}

func (e *Engine) record(result *Result, c Conflict, strategy Strategy, value any, omit, userResolved bool) {
	resolved := Resolved{
		Conflict:     c,
		Strategy:     strategy,
		Value:        value,
		OmitField:    omit,
		UserResolved: userResolved,
	}
	result.Resolved = append(result.Resolved, resolved)
	if userResolved {
		result.Summary.UserResolved++
	} else {
		result.Summary.AutoResolved++
	}

	if omit {
		delete(result.MergedData, c.Field)
	} else {
		result.MergedData[c.Field] = value
	}

	if e.audit != nil {
		e.audit(resolved)
	}
}

// apply is the pure mapping from (strategy, conflict) to a resolved value.
// The second return marks skip_field, which omits the field entirely.
func (e *Engine) apply(strategy Strategy, c Conflict) (any, bool) {
	switch strategy {
	case StrategyLocalWins:
		return c.LocalValue, false
	case StrategyRemoteWins:
		return c.RemoteValue, false
	case StrategyMergeValues:
		return mergeValues(c.LocalValue, c.RemoteValue), false
	case StrategyUseLatestTimestamp:
		if c.Context.LastModifiedLocal.After(c.Context.LastModifiedRemote) {
			return c.LocalValue, false
		}
		return c.RemoteValue, false
	case StrategyCreateNew:
		return synthesize(c.LocalValue, c.RemoteValue), false
	case StrategySkipField:
		return nil, true
	default:
		// unknown strategies keep the remote side, the authority absent
		// any other signal
		return c.RemoteValue, false
	}
}

// mergeValues combines two values of the same shape: arrays union with
// duplicates removed (local order first), objects shallow-merge with local
// precedence on overlapping keys. Anything else keeps the remote value.
func mergeValues(local, remote any) any {
	la, lok := toAnySlice(local)
	ra, rok := toAnySlice(remote)
	if lok && rok {
		merged := make([]any, 0, len(la)+len(ra))
		for _, v := range la {
			if !containsValue(merged, v) {
				merged = append(merged, v)
			}
		}
		for _, v := range ra {
			if !containsValue(merged, v) {
				merged = append(merged, v)
			}
		}
		return merged
	}

	lm, lok2 := local.(map[string]any)
	rm, rok2 := remote.(map[string]any)
	if lok2 && rok2 {
		merged := make(map[string]any, len(lm)+len(rm))
		for k, v := range rm {
			merged[k] = v
		}
		for k, v := range lm {
			merged[k] = v
		}
		return merged
	}

	return remote
}

func toAnySlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out, true
	default:
		return nil, false
	}
}

func containsValue(list []any, v any) bool {
	for _, e := range list {
		if deepEqual(e, v) {
			return true
		}
	}
	return false
}

// synthesize is the create_new last resort: it combines both inputs into one
// value that preserves them for manual follow-up.
func synthesize(local, remote any) any {
	ls, lok := local.(string)
	rs, rok := remote.(string)
	if lok && rok {
		return ls + " / " + rs
	}

	lf, lok2 := toFloat(local)
	rf, rok2 := toFloat(remote)
	if lok2 && rok2 {
		return (lf + rf) / 2
	}

	return map[string]any{"local": local, "remote": remote}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// SortByField orders conflicts by field name in place, for stable reporting.
func SortByField(conflicts []Conflict) {
	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Field < conflicts[j].Field
	})
}

// String implements fmt.Stringer for logs and audit entries.
func (c Conflict) String() string {
	return fmt.Sprintf("%s on %q (%s)", c.Type, c.Field, c.Severity)
}
