package requirement

// Equals reports whether two requirements are structurally identical.
// Requirements built with And/Or compare equal regardless of child order.
func Equals(a, b Requirement) bool {
	return a.Key() == b.Key()
}

// StrictlyBetterThan reports whether a is provably no harder to satisfy than
// b and is not the same requirement. The relation is a sound but incomplete
// heuristic: false does not mean a is harder. Use it to prune dominated
// states, never to decide reachability.
func StrictlyBetterThan(a, b Requirement) bool {
	return impliedBy(a, b) && !Equals(a, b)
}

// impliedBy reports whether every Capabilities satisfying b also satisfies a
func impliedBy(a, b Requirement) bool {
	if _, ok := a.(Possible); ok {
		return true
	}
	if _, ok := b.(Impossible); ok {
		return true
	}
	if _, ok := a.(Impossible); ok {
		return false
	}
	if _, ok := b.(Possible); ok {
		return false
	}

	if bd, ok := b.(Disjunction); ok {
		for _, c := range bd.Children {
			if !impliedBy(a, c) {
				return false
			}
		}
		return true
	}
	if ac, ok := a.(Conjunction); ok {
		for _, c := range ac.Children {
			if !impliedBy(c, b) {
				return false
			}
		}
		return true
	}
	if ad, ok := a.(Disjunction); ok {
		for _, c := range ad.Children {
			if impliedBy(c, b) {
				return true
			}
		}
		return false
	}
	if bc, ok := b.(Conjunction); ok {
		for _, c := range bc.Children {
			if impliedBy(a, c) {
				return true
			}
		}
		return false
	}

	switch a := a.(type) {
	case DashRequirement:
		bd, ok := b.(DashRequirement)
		return ok && a.Dashes <= bd.Dashes
	case SkillRequirement:
		bs, ok := b.(SkillRequirement)
		return ok && a.Difficulty <= bs.Difficulty
	case KeyRequirement:
		bk, ok := b.(KeyRequirement)
		return ok && a.KeyholeID == bk.KeyholeID
	case FlagRequirement:
		bf, ok := b.(FlagRequirement)
		return ok && a == bf
	}
	return false
}
