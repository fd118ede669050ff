// Package contentrange parses and formats the "bytes <start>-<end>/<total>"
// form of the Content-Range header used by chunked uploads.
package contentrange

import (
	"fmt"
	"strconv"
	"strings"
)

// Range is an inclusive byte range of a resource of Total bytes.
type Range struct {
	Start int64
	End   int64
	Total int64
}

// Len is the number of bytes covered.
func (r Range) Len() int64 { return r.End - r.Start + 1 }

// Final reports whether the range ends at the last byte of the resource.
func (r Range) Final() bool { return r.End+1 == r.Total }

func (r Range) String() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// For returns the range of length n starting at start, clipped to total.
func For(start, n, total int64) Range {
	end := start + n - 1
	if end >= total {
		end = total - 1
	}
	return Range{Start: start, End: end, Total: total}
}

// Parse accepts exactly "bytes <start>-<end>/<total>" after trimming
// surrounding whitespace. Unknown totals ("*"), multiple ranges, signs,
// overflow, end < start and total <= 0 are rejected.
func Parse(value string) (Range, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(value), "bytes ")
	if !ok {
		return Range{}, false
	}
	span, totalPart, ok := strings.Cut(rest, "/")
	if !ok {
		return Range{}, false
	}
	startPart, endPart, ok := strings.Cut(span, "-")
	if !ok {
		return Range{}, false
	}

	start, ok := parseDigits(startPart)
	if !ok {
		return Range{}, false
	}
	end, ok := parseDigits(endPart)
	if !ok {
		return Range{}, false
	}
	total, ok := parseDigits(totalPart)
	if !ok {
		return Range{}, false
	}

	if end < start || total <= 0 {
		return Range{}, false
	}
	return Range{Start: start, End: end, Total: total}, true
}

// parseDigits accepts only ASCII decimal digits, so "+1", "-1" and " 1"
// fail where strconv alone would let some through.
func parseDigits(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
