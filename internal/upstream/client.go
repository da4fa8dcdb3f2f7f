// Package upstream is the HTTP client for the report compute backend.
// The gateway consumes this contract; it never computes report bodies
// itself.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	common_models "go-helpdesk/internal/common/models"
	"go-helpdesk/internal/config"

	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.UpstreamURL,
		token:   cfg.UpstreamToken,
		http:    &http.Client{Timeout: cfg.UpstreamTimeout},
		log:     log,
	}
}

// APIError carries a backend rejection. Messages holds either the
// per-field validation messages or the backend's single error string.
type APIError struct {
	Status   int
	Messages []string
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("upstream rejected request (%d): %s", e.Status, e.Messages[0])
	}
	return fmt.Sprintf("upstream request failed with status %d", e.Status)
}

func (e *APIError) DisplayMessages() []string {
	return e.Messages
}

// ListReports fetches the full collection. The backend filters by the
// service credential's scope; no client query parameters exist.
func (c *Client) ListReports(ctx context.Context) ([]common_models.Report, error) {
	var reports []common_models.Report
	if err := c.doJSON(ctx, http.MethodGet, "/api/reports", nil, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// detailEnvelope is the split response shape some backend versions
// return for a detail fetch. The presence of the report side is the
// discriminant.
type detailEnvelope struct {
	Report         *common_models.Report `json:"report"`
	Data           map[string]any        `json:"data"`
	FiltersApplied map[string]any        `json:"filtersApplied"`
}

// GetReport fetches the detail payload for one record. The response is
// either a flat record or a {report, data} envelope; an envelope is
// merged into one record, with filtersApplied from the data side
// taking precedence.
func (c *Client) GetReport(ctx context.Context, id string) (*common_models.Report, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/reports/"+id, nil)
	if err != nil {
		return nil, err
	}

	var env detailEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Report != nil {
		return mergeEnvelope(&env), nil
	}

	var rep common_models.Report
	if err := json.Unmarshal(body, &rep); err != nil {
		return nil, fmt.Errorf("decode report detail: %w", err)
	}
	return &rep, nil
}

func mergeEnvelope(env *detailEnvelope) *common_models.Report {
	rep := *env.Report
	if env.Data != nil {
		if rep.Data == nil {
			rep.Data = make(map[string]any, len(env.Data))
		}
		for k, v := range env.Data {
			rep.Data[k] = v
		}
	}
	if fa, ok := rep.Data["filtersApplied"].(map[string]any); ok {
		rep.FiltersApplied = fa
		delete(rep.Data, "filtersApplied")
	} else if env.FiltersApplied != nil {
		rep.FiltersApplied = env.FiltersApplied
	}
	return &rep
}

func (c *Client) CreateReport(ctx context.Context, payload common_models.CreatePayload) error {
	return c.doJSON(ctx, http.MethodPost, "/api/reports", payload, nil)
}

func (c *Client) DeleteReport(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/reports/"+id, nil)
	return err
}

// ExportReport requests an export blob. Returns the bytes and the
// content type reported by the backend.
func (c *Client) ExportReport(ctx context.Context, id string, format string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/reports/%s/export?format=%s", id, format), nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", decodeAPIError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	body, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	return nil
}

// decodeAPIError extracts whatever rejection detail the backend sent:
// a sequence of {msg} validation entries, a single error string, or
// nothing usable.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}

	var parsed struct {
		Errors []struct {
			Msg string `json:"msg"`
		} `json:"errors"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return apiErr
	}
	for _, e := range parsed.Errors {
		if e.Msg != "" {
			apiErr.Messages = append(apiErr.Messages, e.Msg)
		}
	}
	if len(apiErr.Messages) == 0 && parsed.Error != "" {
		apiErr.Messages = []string{parsed.Error}
	}
	return apiErr
}
