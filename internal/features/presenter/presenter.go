// Package presenter derives display-ready values from raw report
// records. Every function is pure and total over the known type tags,
// degrading to a generic label or sentinel on unknown input.
package presenter

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	common_models "go-helpdesk/internal/common/models"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// TypeMeta bundles the display attributes of one report type tag.
type TypeMeta struct {
	Label string `json:"label"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

var typeMeta = map[common_models.ReportType]TypeMeta{
	common_models.ReportTypeTicket:     {Label: "Ticket Report", Color: "primary", Icon: "confirmation_number"},
	common_models.ReportTypeTask:       {Label: "Task Report", Color: "info", Icon: "assignment"},
	common_models.ReportTypeUser:       {Label: "User Report", Color: "success", Icon: "person"},
	common_models.ReportTypeDepartment: {Label: "Department Report", Color: "warning", Icon: "business"},
	common_models.ReportTypeCustom:     {Label: "Custom Report", Color: "secondary", Icon: "tune"},
}

var defaultTypeMeta = TypeMeta{Label: "Report", Color: "default", Icon: "description"}

// TypeInfo returns the label, color tag and icon tag for a type.
func TypeInfo(t common_models.ReportType) TypeMeta {
	if meta, ok := typeMeta[t]; ok {
		return meta
	}
	return defaultTypeMeta
}

// StatusColor maps a free-form status string onto a color tag.
func StatusColor(status string) string {
	switch strings.ToLower(status) {
	case "completed", "resolved":
		return "success"
	case "pending":
		return "warning"
	case "in_progress":
		return "info"
	case "declined", "overdue":
		return "error"
	default:
		return "default"
	}
}

// PriorityColor maps a priority string onto a color tag.
func PriorityColor(priority string) string {
	switch strings.ToLower(priority) {
	case "critical":
		return "error"
	case "high":
		return "warning"
	case "medium":
		return "info"
	case "low":
		return "success"
	default:
		return "default"
	}
}

// titleTarget matches the "<Kind> Report - <name> -" naming convention
// used by auto-generated titles.
var titleTarget = regexp.MustCompile(` Report - (.+?) -`)

// TargetDescription says what a report was generated against.
func TargetDescription(r *common_models.Report) string {
	switch r.Type {
	case common_models.ReportTypeUser:
		if name := r.ParamString("userName"); name != "" {
			return name
		}
		if m := titleTarget.FindStringSubmatch(r.DisplayName()); m != nil {
			return m[1]
		}
		return "Unknown"
	case common_models.ReportTypeDepartment:
		if name := r.ParamString("departmentName"); name != "" {
			return name
		}
		if m := titleTarget.FindStringSubmatch(r.DisplayName()); m != nil {
			return m[1]
		}
		return "Unknown"
	case common_models.ReportTypeTask, common_models.ReportTypeTicket:
		if truthy(r.Parameters["global"]) {
			return "All Departments"
		}
		return "Filtered"
	case common_models.ReportTypeCustom:
		return "Custom Scope"
	default:
		return "N/A"
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != "" && x != "false" && x != "0"
	case float64:
		return x != 0
	case int:
		return x != 0
	default:
		return false
	}
}

const dateLayout = "Jan 2, 2006, 3:04 PM"

var dateInputLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatDate renders a timestamp like "Mar 5, 2024, 2:30 PM". Missing
// input yields "N/A", unparseable input yields "Invalid Date"; it
// never fails.
func FormatDate(v any) string {
	switch t := v.(type) {
	case nil:
		return "N/A"
	case time.Time:
		if t.IsZero() {
			return "N/A"
		}
		return t.Format(dateLayout)
	case string:
		if t == "" {
			return "N/A"
		}
		for _, layout := range dateInputLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.Format(dateLayout)
			}
		}
		return "Invalid Date"
	default:
		return "Invalid Date"
	}
}

// FormatDuration renders a fractional day count as "2d 5h" style text.
// Minutes only show when there is no day component; a positive value
// too small for any unit becomes "< 1m".
func FormatDuration(days float64) string {
	if math.IsNaN(days) || math.IsInf(days, 0) || days < 0 {
		return "No data"
	}
	if days == 0 {
		return "0 days"
	}

	totalMinutes := int(days * 24 * 60)
	d := int(days)
	h := int(days*24) % 24
	m := totalMinutes % 60

	var parts []string
	if d > 0 {
		parts = append(parts, fmt.Sprintf("%dd", d))
	}
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if d == 0 && m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if len(parts) == 0 {
		return "< 1m"
	}
	return strings.Join(parts, " ")
}

var localePrinter = message.NewPrinter(language.AmericanEnglish)

// FormatValue renders an arbitrary report value for display: numbers
// with locale grouping, collections as their size, strings unchanged.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "N/A"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return localePrinter.Sprintf("%d", x)
	case int64:
		return localePrinter.Sprintf("%d", x)
	case float64:
		return formatNumber(x)
	case []any:
		return strconv.Itoa(len(x))
	case map[string]any:
		return strconv.Itoa(len(x))
	default:
		return fmt.Sprintf("%v", x)
	}
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return localePrinter.Sprintf("%d", int64(f))
	}
	return localePrinter.Sprintf("%.1f", f)
}

// PrettifyKey turns a camelCase key into capitalized words:
// "averageTaskCompletionTime" -> "Average Task Completion Time".
func PrettifyKey(key string) string {
	if key == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range key {
		if i == 0 {
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		if unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
