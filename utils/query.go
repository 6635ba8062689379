package utils

import (
	"strconv"
	"strings"
)

// ParseIntDefault parses a non-negative query parameter, falling back to def.
func ParseIntDefault(s string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v >= 0 {
		return v
	}
	return def
}
