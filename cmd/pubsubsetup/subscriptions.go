package main

import "strings"

// subscriptionIDs returns the configured subscription followed by the extra ones, without
// blanks or duplicates.
func subscriptionIDs(configured, extra string) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, id := range append([]string{configured}, strings.Split(extra, ",")...) {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
