package models

import (
	"encoding/json"
	"strings"
	"time"
)

type ReportType string

const (
	ReportTypeTicket     ReportType = "ticket"
	ReportTypeTask       ReportType = "task"
	ReportTypeUser       ReportType = "user"
	ReportTypeDepartment ReportType = "department"
	ReportTypeCustom     ReportType = "custom"
)

// Report is one generated report as delivered by the compute backend.
// Parameters and Data carry type-dependent shapes, so they stay as maps.
type Report struct {
	ID             string         `json:"id"`
	Title          string         `json:"title,omitempty"`
	Name           string         `json:"name,omitempty"`
	Type           ReportType     `json:"type"`
	Description    string         `json:"description,omitempty"`
	CreatedBy      string         `json:"createdBy,omitempty"`
	GeneratedBy    string         `json:"generatedBy,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	Status         string         `json:"status,omitempty"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	Metrics        map[string]any `json:"metrics,omitempty"`
	FiltersApplied map[string]any `json:"filtersApplied,omitempty"`
}

// DisplayName prefers the title over the internal name.
func (r *Report) DisplayName() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// Creator prefers the explicit attribution over the generator field.
func (r *Report) Creator() string {
	if r.CreatedBy != "" {
		return r.CreatedBy
	}
	return r.GeneratedBy
}

// Body returns the computed report body, wherever the backend put it.
func (r *Report) Body() map[string]any {
	if r.Data != nil {
		return r.Data
	}
	return r.Metrics
}

// ParamString reads a string-valued generation parameter.
func (r *Report) ParamString(key string) string {
	if r.Parameters == nil {
		return ""
	}
	s, _ := r.Parameters[key].(string)
	return s
}

// DedupKey identifies "the same report" beyond the raw id. The backend
// may return transient duplicates for in-flight generation requests;
// records sharing a key are collapsed to the latest one.
func (r *Report) DedupKey() string {
	params := ""
	if len(r.Parameters) > 0 {
		// encoding/json sorts map keys, so this is canonical
		if b, err := json.Marshal(r.Parameters); err == nil {
			params = string(b)
		}
	}
	return strings.Join([]string{r.DisplayName(), string(r.Type), r.Creator(), params}, "\x1f")
}

// CreatePayload is what the compute backend expects for a generation
// request.
type CreatePayload struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        ReportType     `json:"type"`
	Parameters  map[string]any `json:"parameters"`
}
