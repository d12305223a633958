package requirement

import "sort"

// And builds the normalised conjunction of reqs. Nested conjunctions are
// flattened, Possible children dropped, duplicates merged and children
// sorted by Key. Any Impossible child makes the result Impossible. Dash and
// skill atoms collapse to the strictest one.
func And(reqs ...Requirement) Requirement {
	var flat []Requirement
	if !collect(reqs, true, &flat) {
		return Impossible{}
	}
	flat = mergeAtoms(flat, true)
	flat = sortUnique(flat)

	switch len(flat) {
	case 0:
		return Possible{}
	case 1:
		return flat[0]
	}
	return Conjunction{Children: flat}
}

// Or builds the normalised disjunction of reqs, with the laws of And
// mirrored: Impossible children are dropped and any Possible child makes
// the result Possible. Dash and skill atoms collapse to the weakest one.
func Or(reqs ...Requirement) Requirement {
	var flat []Requirement
	if !collect(reqs, false, &flat) {
		return Possible{}
	}
	flat = mergeAtoms(flat, false)
	flat = sortUnique(flat)

	switch len(flat) {
	case 0:
		return Impossible{}
	case 1:
		return flat[0]
	}
	return Disjunction{Children: flat}
}

// collect flattens reqs into out. It returns false when a short-circuiting
// child was found (Impossible for a conjunction, Possible for a disjunction).
func collect(reqs []Requirement, conj bool, out *[]Requirement) bool {
	for _, r := range reqs {
		switch r := r.(type) {
		case nil:
			continue
		case Possible:
			if !conj {
				return false
			}
		case Impossible:
			if conj {
				return false
			}
		case Conjunction:
			if conj {
				if !collect(r.Children, conj, out) {
					return false
				}
				continue
			}
			if !appendNormalised(And(r.Children...), conj, out) {
				return false
			}
		case Disjunction:
			if !conj {
				if !collect(r.Children, conj, out) {
					return false
				}
				continue
			}
			if !appendNormalised(Or(r.Children...), conj, out) {
				return false
			}
		default:
			*out = append(*out, r)
		}
	}
	return true
}

// appendNormalised adds an already normalised child, applying the
// short-circuit rules if normalisation collapsed it to a constant.
func appendNormalised(r Requirement, conj bool, out *[]Requirement) bool {
	switch r.(type) {
	case Possible:
		return conj
	case Impossible:
		return !conj
	}
	*out = append(*out, r)
	return true
}

// mergeAtoms keeps a single dash and a single skill atom. In a conjunction
// the strictest wins, in a disjunction the weakest.
func mergeAtoms(reqs []Requirement, strictest bool) []Requirement {
	var dash *DashRequirement
	var skill *SkillRequirement
	out := reqs[:0:0]

	for _, r := range reqs {
		switch r := r.(type) {
		case DashRequirement:
			if dash == nil || (r.Dashes > dash.Dashes) == strictest {
				d := r
				dash = &d
			}
		case SkillRequirement:
			if skill == nil || (r.Difficulty > skill.Difficulty) == strictest {
				s := r
				skill = &s
			}
		default:
			out = append(out, r)
		}
	}

	if dash != nil {
		out = append(out, *dash)
	}
	if skill != nil {
		out = append(out, *skill)
	}
	return out
}

func sortUnique(reqs []Requirement) []Requirement {
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].Key() < reqs[j].Key()
	})

	out := reqs[:0]
	for _, r := range reqs {
		if len(out) > 0 && r.Key() == out[len(out)-1].Key() {
			continue
		}
		out = append(out, r)
	}
	return out
}
