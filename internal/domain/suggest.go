package domain

// MergeSuggestions concatenates titles then category names, keeping the
// first occurrence of each exact string, and truncates to limit.
func MergeSuggestions(limit int, titles, categoryNames []string) []string {
	out := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	for _, source := range [][]string{titles, categoryNames} {
		for _, s := range source {
			if len(out) == limit {
				return out
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
