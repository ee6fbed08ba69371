package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseFlag parses a 0/1 field as printed by the solver.
func ParseFlag(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid flag %q (expected 0 or 1)", s)
	}
}

// FormatFlag renders a bool as 0/1.
func FormatFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// FormatFloat renders a float without trailing zeros.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatOptional renders an optional float, empty when absent.
func FormatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return FormatFloat(*f)
}
