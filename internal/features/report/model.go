package report

import (
	"strings"
	"time"

	common_models "go-helpdesk/internal/common/models"
)

// Deduplicate collapses records sharing a dedup key, keeping the one
// with the latest CreatedAt. First-occurrence order is preserved.
func Deduplicate(reports []common_models.Report) []common_models.Report {
	winners := make(map[string]int, len(reports))
	out := make([]common_models.Report, 0, len(reports))
	for _, r := range reports {
		key := r.DedupKey()
		if i, ok := winners[key]; ok {
			if r.CreatedAt.After(out[i].CreatedAt) {
				out[i] = r
			}
			continue
		}
		winners[key] = len(out)
		out = append(out, r)
	}
	return out
}

// Filter narrows the collection by type, status and creation date.
// Zero values ("all", empty time) leave the predicate open; all
// predicates are AND-combined.
type Filter struct {
	Type   string
	Status string
	From   time.Time
	To     time.Time
}

func (f Filter) Matches(r *common_models.Report) bool {
	if f.Type != "" && f.Type != "all" && string(r.Type) != f.Type {
		return false
	}
	if f.Status != "" && f.Status != "all" && r.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() {
		// To is a date, the range is inclusive of that whole day
		if !r.CreatedAt.Before(f.To.AddDate(0, 0, 1)) {
			return false
		}
	}
	return true
}

type Tab string

const (
	TabAll               Tab = "all"
	TabRecent            Tab = "recent"
	TabDepartmentSummary Tab = "department-summary"
)

const recentWindow = 7 * 24 * time.Hour

const (
	RoleAdmin          = "admin"
	RoleDepartmentHead = "department_head"
)

// Actor is the requesting user as extracted from the session claims.
type Actor struct {
	ID           string
	Name         string
	Role         string
	DepartmentID string
}

// visibleTo applies role scoping: admins see everything, department
// heads see their department's reports plus their own, everyone else
// sees only what they created.
func visibleTo(r *common_models.Report, actor Actor) bool {
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleDepartmentHead:
		if r.ParamString("departmentId") == actor.DepartmentID {
			return true
		}
	}
	creator := r.Creator()
	return creator != "" && (creator == actor.ID || creator == actor.Name)
}

func inTab(r *common_models.Report, tab Tab, now time.Time) bool {
	switch tab {
	case TabRecent:
		return now.Sub(r.CreatedAt) <= recentWindow
	case TabDepartmentSummary:
		return r.Type == common_models.ReportTypeDepartment
	default:
		return true
	}
}

// CreateInput is the creation form as submitted by the caller.
type CreateInput struct {
	Title                string                   `json:"title"`
	Description          string                   `json:"description,omitempty"`
	Type                 common_models.ReportType `json:"type"`
	UserID               string                   `json:"userId,omitempty"`
	SelectedDepartmentID string                   `json:"selectedDepartmentId,omitempty"`
	SelectedFields       []string                 `json:"selectedFields,omitempty"`
	DepartmentID         string                   `json:"departmentId,omitempty"`
	Parameters           map[string]any           `json:"parameters,omitempty"`
}

// buildPayload merges the form parameters with the resolved department
// and the type-conditional target fields.
func buildPayload(input CreateInput, departmentID string) common_models.CreatePayload {
	params := make(map[string]any, len(input.Parameters)+3)
	for k, v := range input.Parameters {
		params[k] = v
	}
	params["departmentId"] = departmentID
	if input.Type == common_models.ReportTypeUser {
		params["userId"] = input.UserID
	}
	if input.Type != common_models.ReportTypeDepartment && input.Type != common_models.ReportTypeTicket && input.SelectedDepartmentID != "" {
		params["selectedDepartmentId"] = input.SelectedDepartmentID
	}
	if input.Type == common_models.ReportTypeCustom {
		params["selectedFields"] = input.SelectedFields
	}
	return common_models.CreatePayload{
		Name:        input.Title,
		Description: input.Description,
		Type:        input.Type,
		Parameters:  params,
	}
}

// ValidationError is a field-level rejection raised before any network
// call is made.
type ValidationError struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validateCreate(input CreateInput, departmentID string) *ValidationError {
	if strings.TrimSpace(input.Title) == "" {
		return &ValidationError{Field: "title", Msg: "Title is required"}
	}
	if departmentID == "" {
		return &ValidationError{Field: "departmentId", Msg: "Department could not be resolved"}
	}
	if input.Type == common_models.ReportTypeUser && input.UserID == "" {
		return &ValidationError{Field: "userId", Msg: "A user must be selected for user reports"}
	}
	if input.Type == common_models.ReportTypeCustom && len(input.SelectedFields) == 0 {
		return &ValidationError{Field: "selectedFields", Msg: "Select at least one field"}
	}
	return nil
}
