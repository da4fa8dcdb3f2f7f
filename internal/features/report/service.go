package report

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	common_models "go-helpdesk/internal/common/models"

	"go.uber.org/zap"
)

// Upstream is the compute backend contract consumed by this service.
// The backend computes report bodies; we never do.
type Upstream interface {
	ListReports(ctx context.Context) ([]common_models.Report, error)
	GetReport(ctx context.Context, id string) (*common_models.Report, error)
	CreateReport(ctx context.Context, payload common_models.CreatePayload) error
	DeleteReport(ctx context.Context, id string) error
	ExportReport(ctx context.Context, id string, format string) ([]byte, string, error)
}

// Exporter renders a fetched report body locally, used as a fallback
// when the upstream export endpoint is unavailable.
type Exporter interface {
	Render(r *common_models.Report, format string) ([]byte, string, error)
}

// Notifier receives create/delete outcome events.
type Notifier interface {
	Notify(event, reportID, severity, message string)
}

// Status is the controller state surfaced to clients so they can
// disable the matching controls.
type Status struct {
	Loading         bool   `json:"loading"`
	Creating        bool   `json:"creating"`
	ViewLoading     bool   `json:"viewLoading"`
	DeletingID      string `json:"deletingReportId,omitempty"`
	Error           string `json:"error,omitempty"`
	Message         string `json:"message,omitempty"`
	MessageSeverity string `json:"messageSeverity,omitempty"`
}

type ReportService interface {
	Load(ctx context.Context) error
	Reports(actor Actor, tab Tab, filter Filter) []common_models.Report
	Collection() []common_models.Report
	Status() Status
	Create(ctx context.Context, actor Actor, input CreateInput) error
	Delete(ctx context.Context, id string) error
	View(ctx context.Context, id string) (*common_models.Report, error)
	Export(ctx context.Context, id, filename, format string, local bool) ([]byte, string, string, error)
}

type ReportServiceImpl struct {
	upstream Upstream
	exporter Exporter
	notifier Notifier
	log      *zap.Logger

	mu          sync.Mutex
	reports     []common_models.Report
	keys        map[string]struct{}
	loading     bool
	generation  uint64
	creating    bool
	viewLoading bool
	deleting    map[string]struct{}

	lastErr         string
	message         string
	messageSeverity string
	messageAt       time.Time

	now func() time.Time
}

// messageTTL matches the auto-dismiss interval of the transient
// notification banner.
const messageTTL = 6 * time.Second

func NewReportService(upstream Upstream, exporter Exporter, notifier Notifier, log *zap.Logger) ReportService {
	return &ReportServiceImpl{
		upstream: upstream,
		exporter: exporter,
		notifier: notifier,
		log:      log,
		keys:     make(map[string]struct{}),
		deleting: make(map[string]struct{}),
		now:      time.Now,
	}
}

// Load fetches the full collection. A load already in flight is not
// restarted; the second call is a no-op. On success the deduplicated
// result replaces local state only when the dedup-key set actually
// changed, so unchanged reloads keep the existing slice. On failure
// prior state is left intact.
func (s *ReportServiceImpl) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	fetched, err := s.upstream.ListReports(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if gen != s.generation {
		// A later load superseded this one; discard the stale result.
		return nil
	}
	if err != nil {
		s.log.Warn("report list fetch failed", zap.Error(err))
		s.lastErr = "Failed to load reports."
		return err
	}

	deduped := Deduplicate(fetched)
	keys := make(map[string]struct{}, len(deduped))
	for i := range deduped {
		keys[deduped[i].DedupKey()] = struct{}{}
	}
	if !sameKeySet(s.keys, keys) {
		s.reports = deduped
		s.keys = keys
	}
	s.lastErr = ""
	return nil
}

func sameKeySet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// Collection returns the deduplicated collection. Callers must treat
// it as read-only.
func (s *ReportServiceImpl) Collection() []common_models.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports
}

// Reports returns the actor-visible slice of the collection for one
// tab, narrowed by the filter.
func (s *ReportServiceImpl) Reports(actor Actor, tab Tab, filter Filter) []common_models.Report {
	s.mu.Lock()
	snapshot := s.reports
	s.mu.Unlock()

	now := s.now()
	out := make([]common_models.Report, 0, len(snapshot))
	for i := range snapshot {
		r := &snapshot[i]
		if !visibleTo(r, actor) || !inTab(r, tab, now) || !filter.Matches(r) {
			continue
		}
		out = append(out, *r)
	}
	return out
}

func (s *ReportServiceImpl) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.message != "" && s.now().Sub(s.messageAt) > messageTTL {
		s.message = ""
		s.messageSeverity = ""
	}
	return Status{
		Loading:         s.loading,
		Creating:        s.creating,
		ViewLoading:     s.viewLoading,
		DeletingID:      s.deletingInFlight(),
		Error:           s.lastErr,
		Message:         s.message,
		MessageSeverity: s.messageSeverity,
	}
}

// deletingInFlight picks the id surfaced in the status. Overlapping
// deletes are rare; the lowest id keeps the choice deterministic.
// Callers hold s.mu.
func (s *ReportServiceImpl) deletingInFlight() string {
	ids := make([]string, 0, len(s.deleting))
	for id := range s.deleting {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	return ids[0]
}

func (s *ReportServiceImpl) setMessage(severity, message string) {
	s.mu.Lock()
	s.message = message
	s.messageSeverity = severity
	s.messageAt = s.now()
	s.mu.Unlock()
}

// Create validates the form locally, fails fast with a field-level
// error, and only then submits the generation request. On success the
// collection is reloaded.
func (s *ReportServiceImpl) Create(ctx context.Context, actor Actor, input CreateInput) error {
	departmentID := input.DepartmentID
	if departmentID == "" {
		departmentID = actor.DepartmentID
	}
	if verr := validateCreate(input, departmentID); verr != nil {
		return verr
	}

	s.mu.Lock()
	s.creating = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.creating = false
		s.mu.Unlock()
	}()

	if err := s.upstream.CreateReport(ctx, buildPayload(input, departmentID)); err != nil {
		msg := displayError(err, "create")
		s.log.Warn("report creation failed", zap.String("title", input.Title), zap.Error(err))
		s.setMessage("error", msg)
		s.notify("report.create", "", "error", msg)
		return errors.New(msg)
	}

	_ = s.Load(ctx)
	s.setMessage("success", "Report created successfully.")
	s.notify("report.create", "", "success", "Report created successfully.")
	return nil
}

// Delete removes one report. A second call for the same id while the
// first is in flight is a no-op.
func (s *ReportServiceImpl) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, inFlight := s.deleting[id]; inFlight {
		s.mu.Unlock()
		return nil
	}
	s.deleting[id] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.deleting, id)
		s.mu.Unlock()
	}()

	if err := s.upstream.DeleteReport(ctx, id); err != nil {
		msg := displayError(err, "delete")
		s.log.Warn("report deletion failed", zap.String("id", id), zap.Error(err))
		s.setMessage("error", msg)
		s.notify("report.delete", id, "error", msg)
		return errors.New(msg)
	}

	_ = s.Load(ctx)
	s.setMessage("success", "Report deleted.")
	s.notify("report.delete", id, "success", "Report deleted.")
	return nil
}

// View fetches the full detail payload for one record. Envelope
// resolution happens in the upstream client; what comes back here is
// always one merged record.
func (s *ReportServiceImpl) View(ctx context.Context, id string) (*common_models.Report, error) {
	s.mu.Lock()
	s.viewLoading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.viewLoading = false
		s.mu.Unlock()
	}()

	rep, err := s.upstream.GetReport(ctx, id)
	if err != nil {
		s.log.Warn("report detail fetch failed", zap.String("id", id), zap.Error(err))
		return nil, &opError{msg: displayError(err, "load"), err: err}
	}
	return rep, nil
}

var exportFormats = map[string]string{
	"pdf":   "pdf",
	"excel": "xlsx",
	"csv":   "csv",
}

// Export requests an export blob from the backend. For csv and excel a
// failed upstream export falls back to rendering the fetched body
// locally; local=true skips the backend and renders directly. Returns
// the blob, the filename and the content type.
func (s *ReportServiceImpl) Export(ctx context.Context, id, filename, format string, local bool) ([]byte, string, string, error) {
	if format == "" {
		format = "pdf"
	}
	ext, ok := exportFormats[format]
	if !ok {
		return nil, "", "", fmt.Errorf("unsupported format: %s", format)
	}

	renderable := s.exporter != nil && (format == "csv" || format == "excel")
	if local && !renderable {
		return nil, "", "", fmt.Errorf("no local renderer for format: %s", format)
	}

	var data []byte
	var contentType string
	var err error
	if !local {
		data, contentType, err = s.upstream.ExportReport(ctx, id, format)
		if err != nil && renderable {
			s.log.Warn("upstream export failed, rendering locally", zap.String("id", id), zap.Error(err))
			local = true
		}
	}
	if local {
		var rep *common_models.Report
		if rep, err = s.upstream.GetReport(ctx, id); err == nil {
			data, contentType, err = s.exporter.Render(rep, format)
		}
	}
	if err != nil {
		return nil, "", "", errors.New(displayError(err, "export"))
	}

	if filename == "" {
		filename = s.exportFilename(id, ext)
	}
	return data, filename, contentType, nil
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9]`)

func (s *ReportServiceImpl) exportFilename(id, ext string) string {
	title := ""
	s.mu.Lock()
	for i := range s.reports {
		if s.reports[i].ID == id {
			title = s.reports[i].DisplayName()
			break
		}
	}
	s.mu.Unlock()

	safe := unsafeFilename.ReplaceAllString(title, "")
	if safe == "" {
		return fmt.Sprintf("report-%s.%s", id, ext)
	}
	return fmt.Sprintf("%s_%s.%s", safe, s.now().Format("2006-01-02"), ext)
}

func (s *ReportServiceImpl) notify(event, reportID, severity, message string) {
	if s.notifier != nil {
		s.notifier.Notify(event, reportID, severity, message)
	}
}

// messager is implemented by upstream errors that carry backend
// rejection details worth showing verbatim.
type messager interface {
	DisplayMessages() []string
}

// opError carries the user-facing message while keeping the original
// failure reachable for errors.As, so handlers can map upstream
// statuses.
type opError struct {
	msg string
	err error
}

func (e *opError) Error() string { return e.msg }

func (e *opError) Unwrap() error { return e.err }

// displayError turns an operation failure into the user-facing string:
// structured validation messages are joined, a single backend error
// string is shown verbatim, anything else collapses to a generic
// failure message.
func displayError(err error, action string) string {
	var m messager
	if errors.As(err, &m) {
		if msgs := m.DisplayMessages(); len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return fmt.Sprintf("Failed to %s report.", action)
}
