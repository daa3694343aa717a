package common

import (
	"errors"
	"strconv"
	"strings"
)

// QuantityParam parses a query-string count the way browsers' parseInt does:
// surrounding space and anything after the leading digits are ignored, so
// "3.5" reads as 3 and "12abc" as 12. Values without leading digits, and
// negative values, yield def. Values above limit are clamped to it.
func QuantityParam(raw string, def, limit int) int {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return def
	}
	n, err := strconv.Atoi(s[:end])
	switch {
	case errors.Is(err, strconv.ErrRange) && s[0] != '-':
		return limit
	case err != nil || n < 0:
		return def
	case n > limit:
		return limit
	}
	return n
}
