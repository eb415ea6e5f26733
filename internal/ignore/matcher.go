package ignore

import "strings"

// Decision is the outcome of matching a path against the rule stack.
type Decision struct {
	// Excluded reports whether the path should be skipped.
	Excluded bool

	// Rule is the rule that decided the outcome, or nil when no rule
	// matched.
	Rule *Rule
}

// Matcher evaluates layered rule sets against root-relative paths.
//
// Sets are pushed in traversal order, so a directory's rules sit above its
// ancestors'. Within a set, later rules win; across sets, deeper sets win.
// The matcher expects callers to prune excluded directories: it is never
// asked about paths beneath one, which is what makes negation inside an
// excluded directory ineffective, exactly as in git.
type Matcher struct {
	sets []*RuleSet
}

// NewMatcher creates a matcher, optionally pre-loaded with rule sets
// ordered from shallowest to deepest.
func NewMatcher(sets ...*RuleSet) *Matcher {
	m := &Matcher{}
	for _, set := range sets {
		m.Push(set)
	}
	return m
}

// Push adds a rule set to the top of the stack. Nil and empty sets are
// kept so Len/Truncate stay in step with traversal depth.
func (m *Matcher) Push(set *RuleSet) {
	m.sets = append(m.sets, set)
}

// Len returns the number of pushed sets.
func (m *Matcher) Len() int {
	return len(m.sets)
}

// Truncate drops sets from the top of the stack until n remain. It is the
// bulk inverse of Push, used when traversal leaves a directory.
func (m *Matcher) Truncate(n int) {
	if n < 0 || n > len(m.sets) {
		return
	}
	m.sets = m.sets[:n]
}

// Match decides whether the root-relative slash path rel, which is a
// directory when isDir is true, is excluded. The last matching rule across
// the whole stack wins.
func (m *Matcher) Match(rel string, isDir bool) Decision {
	if rel == "" {
		return Decision{}
	}
	segs := strings.Split(rel, "/")

	var decision Decision
	for _, set := range m.sets {
		if set.Empty() {
			continue
		}

		base := set.baseSegs
		if base == nil && set.Base != "" {
			base = splitBase(set.Base)
		}
		local, ok := relativeTo(segs, base)
		if !ok {
			continue
		}

		for i := range set.Rules {
			rule := &set.Rules[i]
			if rule.match(local, isDir) {
				decision = Decision{Excluded: !rule.Negate, Rule: rule}
			}
		}
	}
	return decision
}

// relativeTo strips base from the front of segs. ok is false when segs is
// not strictly below base.
func relativeTo(segs, base []string) ([]string, bool) {
	if len(segs) <= len(base) {
		return nil, false
	}
	for i, b := range base {
		if segs[i] != b {
			return nil, false
		}
	}
	return segs[len(base):], true
}
