package conflict

import (
	"path"
	"strings"
)

// Spec is a predicate used to match conflicts to rules. Combinators allow
// building match logic from small, testable pieces.
type Spec func(Conflict) bool

// And returns a spec that requires both specs to match.
func And(a, b Spec) Spec { return func(c Conflict) bool { return a != nil && b != nil && a(c) && b(c) } }

// Or returns a spec that requires at least one spec to match.
func Or(a, b Spec) Spec {
	return func(c Conflict) bool { return (a != nil && a(c)) || (b != nil && b(c)) }
}

// Not returns a spec that negates the provided spec.
func Not(a Spec) Spec { return func(c Conflict) bool { return a == nil || !a(c) } }

// FieldIs matches an exact field name.
func FieldIs(name string) Spec {
	return func(c Conflict) bool { return c.Field == name }
}

// FieldMatches matches the field name against a glob pattern ("*_at",
// "settings*"). A malformed pattern matches nothing.
func FieldMatches(pattern string) Spec {
	return func(c Conflict) bool {
		ok, err := path.Match(pattern, strings.ToLower(c.Field))
		return err == nil && ok
	}
}

// FieldContains matches when the field name contains the fragment.
func FieldContains(fragment string) Spec {
	return func(c Conflict) bool {
		return strings.Contains(strings.ToLower(c.Field), strings.ToLower(fragment))
	}
}

// TableIs matches conflicts from a specific remote table.
func TableIs(table string) Spec {
	return func(c Conflict) bool { return c.Context.Table == table }
}

// SeverityIs matches conflicts of a specific severity.
func SeverityIs(s Severity) Spec {
	return func(c Conflict) bool { return c.Severity == s }
}

// Rule binds a matcher Spec to a strategy selector. Rules are evaluated in
// insertion order with first-match-wins semantics.
type Rule struct {
	Name    string
	Matcher Spec
	// Select picks the strategy for a matched conflict. Most rules return a
	// fixed strategy; built-in rules inspect the values.
	Select func(Conflict) Strategy
}

// NewRule builds a rule with a fixed strategy.
func NewRule(name string, matcher Spec, strategy Strategy) Rule {
	return Rule{
		Name:    name,
		Matcher: matcher,
		Select:  func(Conflict) Strategy { return strategy },
	}
}

// DefaultRules returns the built-in rule set:
//   - fields ending in _at / containing timestamp resolve by latest timestamp
//   - preferences, tags and categories merge when both sides are arrays,
//     else the remote side wins
//   - settings keep local customization over server defaults
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "timestamps-use-latest",
			Matcher: func(c Conflict) bool {
				return isTimestampField(c.Field)
			},
			Select: func(Conflict) Strategy { return StrategyUseLatestTimestamp },
		},
		{
			Name: "collections-merge",
			Matcher: Or(FieldContains("preference"),
				Or(FieldContains("tag"), FieldContains("categor"))),
			Select: func(c Conflict) Strategy {
				if jsonType(c.LocalValue) == "array" && jsonType(c.RemoteValue) == "array" {
					return StrategyMergeValues
				}
				return StrategyRemoteWins
			},
		},
		NewRule("settings-keep-local", FieldContains("settings"), StrategyLocalWins),
	}
}
