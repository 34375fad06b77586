package sanitizer

// uniqueNormalized maps items through normalize and keeps the first
// occurrence of each non-empty result. Never returns nil.
func uniqueNormalized(items []string, normalize func(string) string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, item := range items {
		v := normalize(item)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}

// NormalizeTimeLabels trims and pads each label, dropping blanks and repeats.
// The first occurrence of a label keeps its position.
func NormalizeTimeLabels(labels []string) []string {
	return uniqueNormalized(labels, NormalizeTimeLabel)
}
