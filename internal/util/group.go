package util

import "strings"

// NormalizeGroupID trims whitespace and zero-width characters that sneak in
// when group ids are copied from the WhatsApp UI.
func NormalizeGroupID(raw string) string {
	s := strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			return -1
		}
		return r
	}, raw)
	return strings.TrimSpace(s)
}

// UniqueGroupIDs normalizes ids, dropping blanks and duplicates while keeping order.
func UniqueGroupIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = NormalizeGroupID(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
