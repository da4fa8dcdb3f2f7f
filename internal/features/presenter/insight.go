package presenter

import (
	"fmt"
	"sort"
	"strings"
)

// Insights are free-form named metrics: the value may be a scalar, a
// sequence, or a nested mapping. Rendering classifies the value into
// one of those three variants and applies one rule per variant, with
// recursion bounded at two levels.

type insightClass int

const (
	classGeneric insightClass = iota
	classPercentage
	classTimeLike
)

func classifyKey(key string) insightClass {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "rate"), strings.Contains(k, "percentage"), strings.Contains(k, "compliance"):
		return classPercentage
	case strings.Contains(k, "time"), strings.Contains(k, "duration"):
		return classTimeLike
	default:
		return classGeneric
	}
}

const maxInsightDepth = 2

// FormatInsight renders one named insight value for display.
func FormatInsight(key string, value any) string {
	switch v := value.(type) {
	case []any:
		return renderSequence(v, 0)
	case map[string]any:
		return renderMapping(v, 0)
	default:
		return renderScalar(classifyKey(key), value)
	}
}

func renderScalar(class insightClass, value any) string {
	switch v := value.(type) {
	case nil:
		return "N/A"
	case string:
		return v
	case float64:
		return renderNumber(class, v)
	case int:
		return renderNumber(class, float64(v))
	case int64:
		return renderNumber(class, float64(v))
	default:
		return FormatValue(value)
	}
}

func renderNumber(class insightClass, v float64) string {
	switch class {
	case classPercentage:
		return fmt.Sprintf("%.1f%%", v)
	case classTimeLike:
		return FormatDuration(v)
	default:
		return formatNumber(v)
	}
}

func renderSequence(items []any, depth int) string {
	if len(items) == 0 {
		return "N/A"
	}
	if _, ok := items[0].(map[string]any); ok {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				parts = append(parts, renderItem(m, depth+1))
			} else {
				parts = append(parts, FormatValue(item))
			}
		}
		return strings.Join(parts, "; ")
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, FormatValue(item))
	}
	return strings.Join(parts, ", ")
}

// renderItem summarizes one mapping inside a sequence. A 2-entry
// mapping is read as {label, value} regardless of key names.
func renderItem(m map[string]any, depth int) string {
	keys := sortedKeys(m)
	if len(keys) == 2 {
		labelKey, valueKey := keys[0], keys[1]
		// Decoded JSON loses entry order, so pick the string-valued
		// entry as the label when only one qualifies.
		_, firstIsString := m[labelKey].(string)
		_, secondIsString := m[valueKey].(string)
		if !firstIsString && secondIsString {
			labelKey, valueKey = valueKey, labelKey
		}
		label := FormatValue(m[labelKey])
		if nested, ok := m[valueKey].(map[string]any); ok && depth < maxInsightDepth {
			return fmt.Sprintf("%s: %s", label, joinPairs(nested))
		}
		return fmt.Sprintf("%s: %s", label, FormatValue(m[valueKey]))
	}
	return renderMapping(m, depth)
}

func renderMapping(m map[string]any, depth int) string {
	if len(m) > 3 || depth >= maxInsightDepth {
		return fmt.Sprintf("%d items", len(m))
	}
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		if nested, ok := m[k].(map[string]any); ok {
			parts = append(parts, fmt.Sprintf("%s: %s", k, joinPairs(nested)))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k, FormatValue(m[k])))
	}
	return strings.Join(parts, "; ")
}

// joinPairs flattens one nested mapping into "k: v, k: v" text; this
// is the recursion floor.
func joinPairs(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s: %s", k, FormatValue(m[k])))
	}
	return strings.Join(parts, ", ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
