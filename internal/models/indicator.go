package models

import (
	"fmt"
	"strconv"
	"strings"
)

// IndicatorColor renders an RGB triple the way snapshots carry the status LED colour.
func IndicatorColor(r, g, b uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// ParseIndicator accepts "#rrggbb" in either case and returns it lower-cased.
func ParseIndicator(s string) (string, bool) {
	if len(s) != 7 || s[0] != '#' {
		return "", false
	}
	if _, err := strconv.ParseUint(s[1:], 16, 32); err != nil {
		return "", false
	}
	return strings.ToLower(s), true
}
