package builtin

import (
	"fmt"
	"regexp"
	"strings"

	"lodging/internal/table"
)

// RuleKind tags a normalization rule.
type RuleKind int

const (
	// Literal replaces a cell that equals From exactly.
	Literal RuleKind = iota
	// Prefix replaces a cell that starts with From.
	Prefix
	// Pattern replaces a cell matched by the regular expression From. The
	// expression carries its own anchoring: "^X.*$" is a full match, an
	// unanchored expression matches anywhere in the cell.
	Pattern
)

func (k RuleKind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Prefix:
		return "prefix"
	case Pattern:
		return "pattern"
	default:
		return fmt.Sprintf("RuleKind(%d)", int(k))
	}
}

// ParseRuleKind maps the config spelling of a rule kind.
func ParseRuleKind(s string) (RuleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "literal", "exact":
		return Literal, nil
	case "prefix":
		return Prefix, nil
	case "pattern", "regex":
		return Pattern, nil
	default:
		return 0, fmt.Errorf("unknown rule kind %q (want literal, prefix or pattern)", s)
	}
}

// Rule is one substitution. A matching cell is replaced by To as a whole;
// there is no partial rewrite.
type Rule struct {
	Kind RuleKind
	From string
	To   string
}

// compiledRule is a Rule with its matcher built.
type compiledRule struct {
	Rule
	re *regexp.Regexp
}

func (r compiledRule) match(s string) bool {
	switch r.Kind {
	case Literal:
		return s == r.From
	case Prefix:
		return strings.HasPrefix(s, r.From)
	case Pattern:
		return r.re.MatchString(s)
	}
	return false
}

// RuleSet is an ordered, compiled list of rules.
type RuleSet struct {
	rules []compiledRule
}

// CompileRules validates and compiles rules in order. Invalid expressions
// and empty Literal/Prefix sources are rejected here, before any data is
// touched.
func CompileRules(rules ...Rule) (RuleSet, error) {
	out := make([]compiledRule, len(rules))
	for i, r := range rules {
		cr := compiledRule{Rule: r}
		switch r.Kind {
		case Literal:
		case Prefix:
			if r.From == "" {
				return RuleSet{}, fmt.Errorf("rule %d: empty prefix matches every cell", i)
			}
		case Pattern:
			re, err := regexp.Compile(r.From)
			if err != nil {
				return RuleSet{}, fmt.Errorf("rule %d: %w", i, err)
			}
			cr.re = re
		default:
			return RuleSet{}, fmt.Errorf("rule %d: unknown kind %v", i, r.Kind)
		}
		out[i] = cr
	}
	return RuleSet{rules: out}, nil
}

// MustCompileRules is CompileRules that panics; for static rule sets.
func MustCompileRules(rules ...Rule) RuleSet {
	rs, err := CompileRules(rules...)
	if err != nil {
		panic(err)
	}
	return rs
}

// Len returns the number of rules.
func (rs RuleSet) Len() int { return len(rs.rules) }

// Rewrite runs s through every rule in order; later rules see the output of
// earlier ones.
func (rs RuleSet) Rewrite(s string) string {
	for _, r := range rs.rules {
		if r.match(s) {
			s = r.To
		}
	}
	return s
}

// Match reports whether any rule matches s.
func (rs RuleSet) Match(s string) bool {
	for _, r := range rs.rules {
		if r.match(s) {
			return true
		}
	}
	return false
}

// Normalize rewrites the string column Column through Rules. Missing cells
// stay missing. The output has the same shape as the input.
type Normalize struct {
	Column string
	Rules  RuleSet
}

// Apply implements transformer.Transformer.
func (n Normalize) Apply(in *table.Table) (*table.Table, error) {
	c, err := in.Index(n.Column)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	if col := in.Columns()[c]; col.Kind != table.String {
		return nil, fmt.Errorf("normalize: column %q is %s: %w", n.Column, col.Kind, table.ErrColumnKind)
	}

	rows := make([]table.Row, in.Len())
	for i := range rows {
		src := in.Row(i)
		s, ok := src[c].(string)
		if !ok {
			rows[i] = src
			continue
		}
		if out := n.Rules.Rewrite(s); out != s {
			r := make(table.Row, len(src))
			copy(r, src)
			r[c] = out
			rows[i] = r
			continue
		}
		rows[i] = src
	}
	return table.New(in.Columns(), rows)
}
