package ignore

// match reports whether the rule matches a path given as segments relative
// to the rule's own directory. Rules without anchoring match at any depth,
// which is equivalent to an implicit leading "**/".
func (r *Rule) match(segs []string, isDir bool) bool {
	if r.DirOnly && !isDir {
		return false
	}

	pats := r.segs
	if !r.Anchored {
		pats = append([]string{"**"}, pats...)
	}
	return matchSegs(pats, segs)
}

// matchSegs matches pattern segments against name segments. "**" spans any
// number of name segments, including zero.
func matchSegs(pats, names []string) bool {
	for len(pats) > 0 {
		if pats[0] == "**" {
			rest := pats[1:]
			if len(rest) == 0 {
				// A trailing "**" matches everything inside, not the
				// directory itself.
				return len(names) > 0
			}
			for i := 0; i <= len(names); i++ {
				if matchSegs(rest, names[i:]) {
					return true
				}
			}
			return false
		}

		if len(names) == 0 {
			return false
		}
		if !matchSegment(pats[0], names[0]) {
			return false
		}
		pats = pats[1:]
		names = names[1:]
	}
	return len(names) == 0
}

// matchSegment matches a single pattern segment against a single path
// segment. '*' matches any run of characters, '?' matches one character.
// Matching is rune-based so multi-byte names behave sensibly.
func matchSegment(pattern, name string) bool {
	p := []rune(pattern)
	n := []rune(name)

	pi, ni := 0, 0
	star, mark := -1, 0

	for ni < len(n) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == n[ni]):
			pi++
			ni++
		case pi < len(p) && p[pi] == '*':
			star = pi
			mark = ni
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ni = mark
		default:
			return false
		}
	}

	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
