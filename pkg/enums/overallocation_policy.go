package enums

import (
	"fmt"
	"strings"
)

// OverallocationPolicy decides what a staffing write does when it would push a
// person past the allocation ceiling.
type OverallocationPolicy string

const (
	// OverallocationReject fails the write.
	OverallocationReject OverallocationPolicy = "reject"
	// OverallocationWarn persists the write and reports a warning.
	OverallocationWarn OverallocationPolicy = "warn"
)

func (p OverallocationPolicy) String() string {
	return string(p)
}

func (p OverallocationPolicy) IsValid() bool {
	return p == OverallocationReject || p == OverallocationWarn
}

// ParseOverallocationPolicy converts raw input (case-insensitive) into a policy.
func ParseOverallocationPolicy(value string) (OverallocationPolicy, error) {
	normalized := OverallocationPolicy(strings.ToLower(strings.TrimSpace(value)))
	if normalized.IsValid() {
		return normalized, nil
	}
	return "", fmt.Errorf("invalid overallocation policy %q", value)
}
