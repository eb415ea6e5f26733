// Package ignore implements gitignore-style exclusion rules.
//
// Rules are parsed from ignore files discovered during traversal and from
// explicitly supplied patterns. The supported syntax is the common subset
// of gitignore:
//
//   - blank lines and lines starting with '#' are skipped
//   - '*' matches any run of characters within a path segment
//   - '?' matches a single character within a path segment
//   - '**' spans any number of path segments
//   - a trailing '/' restricts the rule to directories
//   - a leading '!' negates the rule, re-including matched paths
//   - a leading or interior '/' anchors the rule to the directory the
//     ignore file lives in; all other rules match at any depth
//
// Character classes and backslash escapes are not supported; lines using
// them are skipped with a warning rather than silently misapplied.
package ignore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
)

// Rule is a single parsed ignore pattern.
type Rule struct {
	// Pattern is the pattern text after stripping negation, anchoring and
	// directory markers.
	Pattern string

	// Negate re-includes paths matched by an earlier rule.
	Negate bool

	// DirOnly restricts the rule to directories (trailing '/').
	DirOnly bool

	// Anchored restricts the rule to the directory of its ignore file
	// rather than matching at any depth.
	Anchored bool

	// Source identifies where the rule came from, as "file:line".
	Source string

	segs []string
}

// RuleSet holds the rules of one ignore file, in file order.
type RuleSet struct {
	// Base is the root-relative slash path of the directory the rules
	// apply to. Empty for the source root.
	Base string

	// Rules are the parsed rules in the order they appeared.
	Rules []Rule

	baseSegs []string
}

// Empty reports whether the set contains no rules.
func (s *RuleSet) Empty() bool {
	return s == nil || len(s.Rules) == 0
}

// Warning describes a malformed pattern line that was skipped.
type Warning struct {
	// Source identifies the offending line as "file:line".
	Source string

	// Line is the raw text of the line.
	Line string

	// Reason explains why the line was rejected.
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: skipping pattern %q: %s", w.Source, w.Line, w.Reason)
}

// Load reads the ignore file at path and returns its rules. base is the
// root-relative slash path of the directory the file lives in ("" for the
// source root). A missing file yields an empty set; an unreadable file
// yields an empty set plus a warning. Malformed lines are skipped with
// warnings, never failing the load.
func Load(path, base string) (*RuleSet, []Warning) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RuleSet{Base: base, baseSegs: splitBase(base)}, nil
		}
		return &RuleSet{Base: base, baseSegs: splitBase(base)}, []Warning{{
			Source: path,
			Reason: err.Error(),
		}}
	}
	defer f.Close()

	return Parse(f, path, base)
}

// Parse reads ignore rules from r. source names the origin for diagnostics
// and base is the root-relative directory the rules apply to.
func Parse(r io.Reader, source, base string) (*RuleSet, []Warning) {
	set := &RuleSet{Base: base, baseSegs: splitBase(base)}
	var warnings []Warning

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		origin := fmt.Sprintf("%s:%d", source, lineNo)

		rule, err := parseLine(line)
		if err != nil {
			warnings = append(warnings, Warning{
				Source: origin,
				Line:   strings.TrimSpace(line),
				Reason: err.Error(),
			})
			continue
		}
		if rule == nil {
			continue
		}

		rule.Source = origin
		set.Rules = append(set.Rules, *rule)
	}
	if err := scanner.Err(); err != nil {
		warnings = append(warnings, Warning{Source: source, Reason: err.Error()})
	}

	return set, warnings
}

// FromPatterns builds a root-level rule set from explicitly supplied
// patterns, such as those configured in a tree options file. source names
// the origin for diagnostics.
func FromPatterns(patterns []string, source string) (*RuleSet, []Warning) {
	return Parse(strings.NewReader(strings.Join(patterns, "\n")), source, "")
}

// parseLine parses one ignore file line. It returns (nil, nil) for blank
// lines and comments, and an error for syntax the engine does not support.
func parseLine(line string) (*Rule, error) {
	text := strings.TrimSpace(line)
	if text == "" || strings.HasPrefix(text, "#") {
		return nil, nil
	}

	rule := &Rule{}

	if strings.HasPrefix(text, "!") {
		rule.Negate = true
		text = text[1:]
		if text == "" {
			return nil, errors.New("negation without pattern")
		}
	}

	if strings.Contains(text, "\\") {
		return nil, errors.New("backslash escapes are not supported")
	}
	if strings.ContainsAny(text, "[]") {
		return nil, errors.New("character classes are not supported")
	}

	if strings.HasSuffix(text, "/") {
		rule.DirOnly = true
		text = strings.TrimSuffix(text, "/")
	}

	if strings.HasPrefix(text, "/") {
		rule.Anchored = true
		text = strings.TrimPrefix(text, "/")
	}
	if text == "" {
		return nil, errors.New("empty pattern")
	}

	// An interior slash also anchors the rule to its directory.
	if strings.Contains(text, "/") {
		rule.Anchored = true
	}

	segs := strings.Split(text, "/")
	for _, seg := range segs {
		if seg == "" {
			return nil, errors.New("empty path segment")
		}
	}

	rule.Pattern = text
	rule.segs = segs
	return rule, nil
}

func splitBase(base string) []string {
	if base == "" {
		return nil
	}
	return strings.Split(base, "/")
}
