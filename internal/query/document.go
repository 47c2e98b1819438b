package query

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Document is one schemaless record flowing through a pipeline. Sources build
// a fresh Document per record per snapshot, so stages may attach fields
// without synchronization.
type Document map[string]any

var foldCaser = cases.Fold()

func foldString(s string) string {
	return foldCaser.String(s)
}

func (m Match) matches(doc Document) bool {
	if len(m.Conditions) == 0 {
		return true
	}
	for _, cond := range m.Conditions {
		ok := cond.matches(doc)
		if m.MatchAny && ok {
			return true
		}
		if !m.MatchAny && !ok {
			return false
		}
	}
	return !m.MatchAny
}

func (c Condition) matches(doc Document) bool {
	value, ok := doc[c.Field]
	if !ok {
		return false
	}
	switch c.Op {
	case OpContains:
		haystack, hok := value.(string)
		needle, nok := c.Value.(string)
		if !hok || !nok {
			return false
		}
		if c.FoldCase {
			return strings.Contains(foldString(haystack), foldString(needle))
		}
		return strings.Contains(haystack, needle)
	default:
		if c.FoldCase {
			left, lok := value.(string)
			right, rok := c.Value.(string)
			if lok && rok {
				return foldString(left) == foldString(right)
			}
		}
		return equalValues(value, c.Value)
	}
}

func equalValues(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	if at, aok := a.(time.Time); aok {
		bt, bok := b.(time.Time)
		return bok && at.Equal(bt)
	}
	return a == b
}

// compareValues orders two field values, with unknown types comparing equal.
func compareValues(a, b any) int {
	switch left := a.(type) {
	case string:
		if right, ok := b.(string); ok {
			return strings.Compare(left, right)
		}
	case bool:
		if right, ok := b.(bool); ok {
			switch {
			case left == right:
				return 0
			case right:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if right, ok := b.(time.Time); ok {
			return left.Compare(right)
		}
	}
	if left, ok := toFloat(a); ok {
		if right, rok := toFloat(b); rok {
			switch {
			case left < right:
				return -1
			case left > right:
				return 1
			default:
				return 0
			}
		}
	}
	return 0
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}
