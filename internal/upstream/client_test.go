package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	common_models "go-helpdesk/internal/common/models"
	"go-helpdesk/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.Config{
		UpstreamURL:     srv.URL,
		UpstreamToken:   "svc-token",
		UpstreamTimeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestListReports(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reports", r.URL.Path)
		assert.Equal(t, "Bearer svc-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"r1","title":"Weekly","type":"ticket","createdAt":"2024-03-05T14:30:00Z"},
			{"id":"r2","name":"Monthly","type":"task","createdAt":"2024-03-01T09:00:00Z"}
		]`))
	}))

	reports, err := client.ListReports(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "Weekly", reports[0].Title)
	assert.Equal(t, common_models.ReportTypeTask, reports[1].Type)
	assert.Equal(t, 2024, reports[0].CreatedAt.Year())
}

func TestGetReportFlatShape(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"r1","title":"Weekly","type":"ticket","createdAt":"2024-03-05T14:30:00Z",
			"data":{"summary":{"total":5}},"filtersApplied":{"range":"7d"}}`))
	}))

	rep, err := client.GetReport(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", rep.ID)
	assert.Equal(t, map[string]any{"range": "7d"}, rep.FiltersApplied)
}

func TestGetReportEnvelopeShape(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"report":{"id":"r1","title":"Weekly","type":"ticket","createdAt":"2024-03-05T14:30:00Z",
				"filtersApplied":{"range":"30d"}},
			"data":{"summary":{"total":5},"filtersApplied":{"range":"7d"}}
		}`))
	}))

	rep, err := client.GetReport(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", rep.ID)
	assert.Contains(t, rep.Data, "summary")

	// the data side's filtersApplied wins and is lifted out of the body
	assert.Equal(t, map[string]any{"range": "7d"}, rep.FiltersApplied)
	assert.NotContains(t, rep.Data, "filtersApplied")
}

func TestGetReportEnvelopeKeepsReportFilters(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"report":{"id":"r1","type":"ticket","createdAt":"2024-03-05T14:30:00Z",
				"filtersApplied":{"range":"30d"}},
			"data":{"summary":{"total":5}}
		}`))
	}))

	rep, err := client.GetReport(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"range": "30d"}, rep.FiltersApplied)
}

func TestCreateReportErrorShapes(t *testing.T) {
	t.Run("validation entries", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"errors":[{"msg":"name is taken"},{"msg":"range too wide"}]}`))
		}))

		err := client.CreateReport(context.Background(), common_models.CreatePayload{Name: "X"})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
		assert.Equal(t, []string{"name is taken", "range too wide"}, apiErr.DisplayMessages())
	})

	t.Run("single error string", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"quota exceeded"}`))
		}))

		err := client.CreateReport(context.Background(), common_models.CreatePayload{Name: "X"})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, []string{"quota exceeded"}, apiErr.DisplayMessages())
	})

	t.Run("unusable body", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`boom`))
		}))

		err := client.CreateReport(context.Background(), common_models.CreatePayload{Name: "X"})
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Empty(t, apiErr.DisplayMessages())
	})
}

func TestCreateReportSendsPayload(t *testing.T) {
	var gotBody string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.WriteHeader(http.StatusCreated)
	}))

	err := client.CreateReport(context.Background(), common_models.CreatePayload{
		Name: "Weekly",
		Type: common_models.ReportTypeTicket,
		Parameters: map[string]any{
			"departmentId": "d1",
		},
	})
	require.NoError(t, err)
	assert.Contains(t, gotBody, `"departmentId":"d1"`)
}

func TestDeleteReport(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/reports/r1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.DeleteReport(context.Background(), "r1"))
}

func TestExportReport(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "csv", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("a,b\n1,2\n"))
	}))

	data, contentType, err := client.ExportReport(context.Background(), "r1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}
