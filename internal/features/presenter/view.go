package presenter

import (
	"fmt"

	common_models "go-helpdesk/internal/common/models"
)

// DisplayReport is a report record decorated with the mapper-derived
// attributes a list view needs.
type DisplayReport struct {
	common_models.Report
	TypeLabel        string `json:"typeLabel"`
	TypeColor        string `json:"typeColor"`
	TypeIcon         string `json:"typeIcon"`
	StatusColorTag   string `json:"statusColor"`
	Target           string `json:"target"`
	CreatedAtDisplay string `json:"createdAtDisplay"`
}

func Decorate(r common_models.Report) DisplayReport {
	meta := TypeInfo(r.Type)
	return DisplayReport{
		Report:           r,
		TypeLabel:        meta.Label,
		TypeColor:        meta.Color,
		TypeIcon:         meta.Icon,
		StatusColorTag:   StatusColor(r.Status),
		Target:           TargetDescription(&r),
		CreatedAtDisplay: FormatDate(r.CreatedAt),
	}
}

// KV is one prettified key/value line of a flat metric section.
type KV struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// BreakdownRow is one slice of a status or priority breakdown.
type BreakdownRow struct {
	Label      string `json:"label"`
	Count      string `json:"count"`
	Percentage string `json:"percentage,omitempty"`
	Color      string `json:"color"`
}

// DetailView is the full display model of one fetched report body.
type DetailView struct {
	DisplayReport
	Summary           []KV             `json:"summary,omitempty"`
	StatusBreakdown   []BreakdownRow   `json:"statusBreakdown,omitempty"`
	PriorityBreakdown []BreakdownRow   `json:"priorityBreakdown,omitempty"`
	Profile           []KV             `json:"profile,omitempty"`
	CustomMetrics     []KV             `json:"customMetrics,omitempty"`
	Insights          []KV             `json:"insights,omitempty"`
	Columns           []string         `json:"columns,omitempty"`
	Rows              []map[string]any `json:"rows,omitempty"`
	FiltersApplied    []KV             `json:"filtersAppliedDisplay,omitempty"`
}

// BuildDetail derives the type-specific display model from a merged
// detail record.
func BuildDetail(r *common_models.Report) *DetailView {
	view := &DetailView{DisplayReport: Decorate(*r)}
	body := r.Body()
	if body == nil {
		return view
	}

	view.Summary = flatSection(body["summary"], FormatValue)
	view.StatusBreakdown = breakdownRows(body["statusBreakdown"], "status", StatusColor)
	view.PriorityBreakdown = breakdownRows(body["priorityBreakdown"], "priority", PriorityColor)

	switch r.Type {
	case common_models.ReportTypeUser:
		view.Profile = flatSection(body["userProfile"], FormatValue)
	case common_models.ReportTypeDepartment:
		view.Profile = flatSection(body["departmentProfile"], FormatValue)
	case common_models.ReportTypeCustom:
		view.CustomMetrics = flatSection(body["customMetrics"], FormatValue)
	}

	if insights, ok := body["insights"].(map[string]any); ok {
		for _, k := range sortedKeys(insights) {
			view.Insights = append(view.Insights, KV{
				Key:   k,
				Label: PrettifyKey(k),
				Value: FormatInsight(k, insights[k]),
			})
		}
	}

	view.Columns, view.Rows = TabularRows(r)
	view.FiltersApplied = flatSection(r.FiltersApplied, FormatValue)
	return view
}

// detailRowKeys lists where row-shaped data may live, in precedence
// order; the entity lists are only populated for custom reports.
var detailRowKeys = []string{"details", "activity", "tasks", "tickets", "users", "departments"}

// TabularRows extracts the first row-shaped section of a report body
// along with its column set.
func TabularRows(r *common_models.Report) ([]string, []map[string]any) {
	body := r.Body()
	if body == nil {
		return nil, nil
	}
	for _, key := range detailRowKeys {
		items, ok := body[key].([]any)
		if !ok || len(items) == 0 {
			continue
		}
		rows := make([]map[string]any, 0, len(items))
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				rows = append(rows, m)
			}
		}
		if len(rows) == 0 {
			continue
		}
		return sortedKeys(rows[0]), rows
	}
	return nil, nil
}

func flatSection(v any, format func(any) string) []KV {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make([]KV, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, KV{Key: k, Label: PrettifyKey(k), Value: format(m[k])})
	}
	return out
}

func breakdownRows(v any, labelKey string, color func(string) string) []BreakdownRow {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]BreakdownRow, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		label, _ := m[labelKey].(string)
		row := BreakdownRow{
			Label: label,
			Count: FormatValue(m["count"]),
			Color: color(label),
		}
		if pct, ok := m["percentage"].(float64); ok {
			row.Percentage = fmt.Sprintf("%.1f%%", pct)
		}
		out = append(out, row)
	}
	return out
}
