package domain

// HasAllTags reports whether every tag in want is present in have. An
// empty want is always satisfied.
func HasAllTags(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	if len(have) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// HasAnyTag reports whether have and others share at least one tag.
func HasAnyTag(have, others []string) bool {
	for _, a := range others {
		for _, h := range have {
			if a == h {
				return true
			}
		}
	}
	return false
}

// MergeTags appends the tags of add not already in base, keeping order.
func MergeTags(base, add []string) []string {
	out := make([]string, 0, len(base)+len(add))
	seen := make(map[string]struct{}, len(base)+len(add))
	for _, list := range [][]string{base, add} {
		for _, t := range list {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// RemoveTags returns base without any tag in remove.
func RemoveTags(base, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, t := range remove {
		drop[t] = struct{}{}
	}
	out := make([]string, 0, len(base))
	for _, t := range base {
		if _, ok := drop[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
