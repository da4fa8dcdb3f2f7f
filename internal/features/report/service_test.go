package report

import (
	"context"
	"sync"
	"testing"
	"time"

	common_models "go-helpdesk/internal/common/models"
	"go-helpdesk/internal/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUpstream struct {
	mu           sync.Mutex
	reports      []common_models.Report
	listCalls    int
	listErr      error
	listBlock    chan struct{}
	created      []common_models.CreatePayload
	createErr    error
	deleted      []string
	deleteErr    error
	deleteBlock  chan struct{}
	deleteBlocks map[string]chan struct{}
	detail       *common_models.Report
	detailErr    error
	exportData   []byte
	exportErr    error
	exportCalls  int
}

func (f *fakeUpstream) ListReports(ctx context.Context) ([]common_models.Report, error) {
	f.mu.Lock()
	f.listCalls++
	block := f.listBlock
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]common_models.Report, len(f.reports))
	copy(out, f.reports)
	return out, nil
}

func (f *fakeUpstream) GetReport(ctx context.Context, id string) (*common_models.Report, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return f.detail, nil
}

func (f *fakeUpstream) CreateReport(ctx context.Context, payload common_models.CreatePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, payload)
	return nil
}

func (f *fakeUpstream) DeleteReport(ctx context.Context, id string) error {
	f.mu.Lock()
	block := f.deleteBlock
	if b, ok := f.deleteBlocks[id]; ok {
		block = b
	}
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUpstream) ExportReport(ctx context.Context, id string, format string) ([]byte, string, error) {
	f.mu.Lock()
	f.exportCalls++
	f.mu.Unlock()
	if f.exportErr != nil {
		return nil, "", f.exportErr
	}
	return f.exportData, "application/pdf", nil
}

func (f *fakeUpstream) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func newTestService(f *fakeUpstream) *ReportServiceImpl {
	return NewReportService(f, nil, nil, zap.NewNop()).(*ReportServiceImpl)
}

func TestLoadDeduplicates(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	fake := &fakeUpstream{reports: []common_models.Report{
		mkReport("r1", "Weekly", common_models.ReportTypeTicket, "u1", base, nil),
		mkReport("r2", "Weekly", common_models.ReportTypeTicket, "u1", base.Add(time.Hour), nil),
	}}
	svc := newTestService(fake)

	require.NoError(t, svc.Load(context.Background()))
	got := svc.Collection()
	require.Len(t, got, 1)
	assert.Equal(t, "r2", got[0].ID)
}

func TestLoadKeepsCollectionWhenUnchanged(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	fake := &fakeUpstream{reports: []common_models.Report{
		mkReport("r1", "Weekly", common_models.ReportTypeTicket, "u1", base, nil),
		mkReport("r2", "Monthly", common_models.ReportTypeTask, "u1", base, nil),
	}}
	svc := newTestService(fake)

	require.NoError(t, svc.Load(context.Background()))
	first := svc.Collection()
	require.Len(t, first, 2)

	require.NoError(t, svc.Load(context.Background()))
	second := svc.Collection()

	// Same dedup-key set: the slice must not have been replaced
	assert.Same(t, &first[0], &second[0])
}

func TestLoadReplacesCollectionWhenChanged(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	fake := &fakeUpstream{reports: []common_models.Report{
		mkReport("r1", "Weekly", common_models.ReportTypeTicket, "u1", base, nil),
	}}
	svc := newTestService(fake)
	require.NoError(t, svc.Load(context.Background()))

	fake.mu.Lock()
	fake.reports = append(fake.reports, mkReport("r2", "Monthly", common_models.ReportTypeTask, "u1", base, nil))
	fake.mu.Unlock()

	require.NoError(t, svc.Load(context.Background()))
	assert.Len(t, svc.Collection(), 2)
}

func TestLoadGuard(t *testing.T) {
	block := make(chan struct{})
	fake := &fakeUpstream{listBlock: block}
	svc := newTestService(fake)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Load(context.Background())
	}()

	require.Eventually(t, func() bool { return fake.calls() == 1 }, time.Second, time.Millisecond)

	// Second invocation while the first is outstanding: no-op, no request
	require.NoError(t, svc.Load(context.Background()))
	assert.Equal(t, 1, fake.calls())

	close(block)
	<-done
	assert.Equal(t, 1, fake.calls())
}

func TestLoadFailureKeepsPriorState(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	fake := &fakeUpstream{reports: []common_models.Report{
		mkReport("r1", "Weekly", common_models.ReportTypeTicket, "u1", base, nil),
	}}
	svc := newTestService(fake)
	require.NoError(t, svc.Load(context.Background()))

	fake.listErr = assert.AnError
	require.Error(t, svc.Load(context.Background()))

	assert.Len(t, svc.Collection(), 1, "prior state intact")
	assert.Equal(t, "Failed to load reports.", svc.Status().Error)
}

func TestCreateValidationSkipsNetwork(t *testing.T) {
	fake := &fakeUpstream{}
	svc := newTestService(fake)
	actor := Actor{ID: "u1", Role: "agent", DepartmentID: "d1"}

	err := svc.Create(context.Background(), actor, CreateInput{
		Title: "Custom",
		Type:  common_models.ReportTypeCustom,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "selectedFields", verr.Field)
	assert.Empty(t, fake.created)
	assert.Equal(t, 0, fake.calls())
}

func TestCreateSubmitsAndReloads(t *testing.T) {
	fake := &fakeUpstream{}
	svc := newTestService(fake)
	actor := Actor{ID: "u1", Role: "agent", DepartmentID: "d1"}

	err := svc.Create(context.Background(), actor, CreateInput{
		Title:          "Custom",
		Type:           common_models.ReportTypeCustom,
		SelectedFields: []string{"status"},
	})
	require.NoError(t, err)

	require.Len(t, fake.created, 1)
	assert.Equal(t, "d1", fake.created[0].Parameters["departmentId"])
	assert.Equal(t, 1, fake.calls(), "collection reloaded after creation")
	assert.Equal(t, "success", svc.Status().MessageSeverity)
}

type fakeAPIErr struct {
	msgs []string
}

func (e *fakeAPIErr) Error() string { return "rejected" }

func (e *fakeAPIErr) DisplayMessages() []string { return e.msgs }

func TestCreateErrorExtraction(t *testing.T) {
	actor := Actor{ID: "u1", Role: "agent", DepartmentID: "d1"}
	input := CreateInput{Title: "T", Type: common_models.ReportTypeTicket}

	t.Run("structured messages are joined", func(t *testing.T) {
		fake := &fakeUpstream{createErr: &fakeAPIErr{msgs: []string{"name taken", "bad range"}}}
		svc := newTestService(fake)

		err := svc.Create(context.Background(), actor, input)
		require.Error(t, err)
		assert.Equal(t, "name taken; bad range", err.Error())
	})

	t.Run("bare failure collapses to generic message", func(t *testing.T) {
		fake := &fakeUpstream{createErr: assert.AnError}
		svc := newTestService(fake)

		err := svc.Create(context.Background(), actor, input)
		require.Error(t, err)
		assert.Equal(t, "Failed to create report.", err.Error())
		assert.Equal(t, "error", svc.Status().MessageSeverity)
	})
}

func TestDeleteDoubleClickIsNoOp(t *testing.T) {
	block := make(chan struct{})
	fake := &fakeUpstream{deleteBlock: block}
	svc := newTestService(fake)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Delete(context.Background(), "r1")
	}()

	require.Eventually(t, func() bool { return svc.Status().DeletingID == "r1" }, time.Second, time.Millisecond)

	require.NoError(t, svc.Delete(context.Background(), "r1"))

	close(block)
	<-done

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"r1"}, fake.deleted, "only one delete issued")
}

func TestOverlappingDeletesGuardIndependently(t *testing.T) {
	block1 := make(chan struct{})
	block2 := make(chan struct{})
	fake := &fakeUpstream{deleteBlocks: map[string]chan struct{}{
		"r1": block1,
		"r2": block2,
	}}
	svc := newTestService(fake)

	var wg sync.WaitGroup
	for _, id := range []string{"r1", "r2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = svc.Delete(context.Background(), id)
		}(id)
	}

	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.deleting) == 2
	}, time.Second, time.Millisecond)

	// r1 finishing must not drop the guard on the still-running r2
	close(block1)
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		_, inFlight := svc.deleting["r1"]
		return !inFlight
	}, time.Second, time.Millisecond)

	require.NoError(t, svc.Delete(context.Background(), "r2"))

	close(block2)
	wg.Wait()

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.ElementsMatch(t, []string{"r1", "r2"}, fake.deleted, "each id deleted exactly once")
}

func TestTransientMessageExpires(t *testing.T) {
	fake := &fakeUpstream{}
	svc := newTestService(fake)

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.Delete(context.Background(), "r1"))
	assert.Equal(t, "Report deleted.", svc.Status().Message)

	now = now.Add(messageTTL + time.Second)
	assert.Empty(t, svc.Status().Message)
}

func TestExportFilename(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	fake := &fakeUpstream{
		reports:    []common_models.Report{mkReport("r1", "Weekly Ticket Report!", common_models.ReportTypeTicket, "u1", base, nil)},
		exportData: []byte("%PDF"),
	}
	svc := newTestService(fake)
	svc.now = func() time.Time { return base }
	require.NoError(t, svc.Load(context.Background()))

	t.Run("derived from sanitized title and date", func(t *testing.T) {
		_, name, _, err := svc.Export(context.Background(), "r1", "", "pdf", false)
		require.NoError(t, err)
		assert.Equal(t, "WeeklyTicketReport_2024-03-01.pdf", name)
	})

	t.Run("excel uses xlsx extension", func(t *testing.T) {
		_, name, _, err := svc.Export(context.Background(), "r1", "", "excel", false)
		require.NoError(t, err)
		assert.Equal(t, "WeeklyTicketReport_2024-03-01.xlsx", name)
	})

	t.Run("unknown report falls back to id", func(t *testing.T) {
		_, name, _, err := svc.Export(context.Background(), "zzz", "", "csv", false)
		require.NoError(t, err)
		assert.Equal(t, "report-zzz.csv", name)
	})

	t.Run("caller filename wins", func(t *testing.T) {
		_, name, _, err := svc.Export(context.Background(), "r1", "mine.pdf", "pdf", false)
		require.NoError(t, err)
		assert.Equal(t, "mine.pdf", name)
	})

	t.Run("unsupported format rejected", func(t *testing.T) {
		_, _, _, err := svc.Export(context.Background(), "r1", "", "docx", false)
		assert.Error(t, err)
	})
}

type fakeExporter struct {
	data []byte
}

func (f *fakeExporter) Render(r *common_models.Report, format string) ([]byte, string, error) {
	return f.data, "text/csv", nil
}

func TestExportFallsBackToLocalRender(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rep := mkReport("r1", "Weekly", common_models.ReportTypeTicket, "u1", base, nil)
	fake := &fakeUpstream{exportErr: assert.AnError, detail: &rep}
	svc := NewReportService(fake, &fakeExporter{data: []byte("a,b\n")}, nil, zap.NewNop()).(*ReportServiceImpl)

	data, _, contentType, err := svc.Export(context.Background(), "r1", "", "csv", false)
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b\n"), data)
	assert.Equal(t, "text/csv", contentType)

	// pdf has no local fallback
	_, _, _, err = svc.Export(context.Background(), "r1", "", "pdf", false)
	assert.Error(t, err)
}

func TestExportLocalSkipsUpstream(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rep := mkReport("r1", "Weekly", common_models.ReportTypeTicket, "u1", base, nil)
	fake := &fakeUpstream{exportData: []byte("%PDF"), detail: &rep}
	svc := NewReportService(fake, &fakeExporter{data: []byte("a,b\n")}, nil, zap.NewNop()).(*ReportServiceImpl)

	data, _, contentType, err := svc.Export(context.Background(), "r1", "", "csv", true)
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b\n"), data)
	assert.Equal(t, "text/csv", contentType)

	fake.mu.Lock()
	assert.Equal(t, 0, fake.exportCalls, "backend export endpoint never hit")
	fake.mu.Unlock()

	// pdf cannot be rendered locally
	_, _, _, err = svc.Export(context.Background(), "r1", "", "pdf", true)
	assert.Error(t, err)
}

func TestViewKeepsUpstreamStatusReachable(t *testing.T) {
	fake := &fakeUpstream{detailErr: &upstream.APIError{Status: 404}}
	svc := newTestService(fake)

	_, err := svc.View(context.Background(), "r1")
	require.Error(t, err)
	assert.Equal(t, "Failed to load report.", err.Error())

	var apiErr *upstream.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(event, reportID, severity, message string) {
	n.mu.Lock()
	n.events = append(n.events, event+":"+severity)
	n.mu.Unlock()
}

func TestOutcomesAreBroadcast(t *testing.T) {
	fake := &fakeUpstream{}
	notifier := &recordingNotifier{}
	svc := NewReportService(fake, nil, notifier, zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "r1"))
	require.Error(t, svc.Create(context.Background(), Actor{DepartmentID: "d1"}, CreateInput{Title: "T", Type: common_models.ReportTypeUser}))

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	assert.Equal(t, []string{"report.delete:success"}, notifier.events,
		"validation failures never reach the notifier")
}
