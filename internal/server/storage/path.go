package storage

import (
	"net/url"
	"strings"
)

// JoinPath joins base and rel into a slash-separated path with empty
// segments dropped.
func JoinPath(base, rel string) string {
	return strings.Join(segments(base, rel), "/")
}

// EncodePath escapes each segment of base/rel on its own and keeps the
// separators, so nested paths stay navigable. Colons are escaped too since
// Graph uses them to delimit item addresses.
func EncodePath(base, rel string) string {
	segs := segments(base, rel)
	for i, s := range segs {
		segs[i] = strings.ReplaceAll(url.PathEscape(s), ":", "%3A")
	}
	return strings.Join(segs, "/")
}

func segments(parts ...string) []string {
	var out []string
	for _, p := range parts {
		for _, s := range strings.Split(p, "/") {
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
