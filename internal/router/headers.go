package router

import (
	"strings"

	"github.com/iridium2/h2d/internal/h2session"
)

// mergeHeaders lowercases and flattens one or more name/value maps into an
// ordered HeaderKV slice suitable for h2session.SubmitResponse. HTTP/2
// requires lowercase header field names; this is the one place response
// headers get assembled, so normalisation happens here rather than at
// every call site.
func mergeHeaders(maps ...map[string]string) []h2session.HeaderKV {
	seen := make(map[string]bool)
	out := make([]h2session.HeaderKV, 0, 4)
	for _, m := range maps {
		for k, v := range m {
			k = strings.ToLower(strings.TrimSpace(k))
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, h2session.HeaderKV{Name: k, Value: v})
		}
	}
	return out
}
