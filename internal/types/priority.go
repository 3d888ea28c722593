// internal/types/priority.go
package types

import (
	"fmt"
	"strings"
)

// PriorityLevel is the urgency tier passed to the fee oracle.
type PriorityLevel string

const (
	PriorityMin       PriorityLevel = "Min"
	PriorityLow       PriorityLevel = "Low"
	PriorityMedium    PriorityLevel = "Medium"
	PriorityHigh      PriorityLevel = "High"
	PriorityVeryHigh  PriorityLevel = "VeryHigh"
	PriorityUnsafeMax PriorityLevel = "UnsafeMax"
)

// DefaultPriorityLevel используется, если уровень не задан.
const DefaultPriorityLevel = PriorityMedium

var priorityLevels = []PriorityLevel{
	PriorityMin,
	PriorityLow,
	PriorityMedium,
	PriorityHigh,
	PriorityVeryHigh,
	PriorityUnsafeMax,
}

// ParsePriorityLevel accepts the oracle tier names case-insensitively.
// An empty string yields DefaultPriorityLevel.
func ParsePriorityLevel(s string) (PriorityLevel, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPriorityLevel, nil
	}
	for _, level := range priorityLevels {
		if strings.EqualFold(string(level), s) {
			return level, nil
		}
	}
	return "", fmt.Errorf("unknown priority level: %s", s)
}

// OrDefault returns the level itself or DefaultPriorityLevel when unset.
func (p PriorityLevel) OrDefault() PriorityLevel {
	if p == "" {
		return DefaultPriorityLevel
	}
	return p
}

func (p PriorityLevel) String() string {
	return string(p)
}
