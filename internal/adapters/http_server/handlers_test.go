package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "phenohub/internal/adapters/http_server"
	"phenohub/internal/app"
	"phenohub/internal/domain"
	"phenohub/internal/media"
	"phenohub/internal/storage/unavailable"
)

const adminToken = "s3cret"

type fakeReports struct {
	mu      sync.Mutex
	nextID  int64
	created []domain.Report
	status  map[int64]domain.ReportStatus
}

func (f *fakeReports) CreateReport(_ context.Context, r domain.Report) (domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ProviderID > 100 {
		return domain.Report{}, domain.ErrNotFound
	}
	f.nextID++
	r.ID = f.nextID
	r.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.created = append(f.created, r)
	return r, nil
}

func (f *fakeReports) SetReportStatus(_ context.Context, id int64, st domain.ReportStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == 404 {
		return domain.ErrNotFound
	}
	if f.status == nil {
		f.status = map[int64]domain.ReportStatus{}
	}
	f.status[id] = st
	return nil
}

func (f *fakeReports) statusOf(id int64) domain.ReportStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[id]
}

// DeleteReports pretends only even ids exist.
func (f *fakeReports) DeleteReports(_ context.Context, ids []int64) (int64, error) {
	var n int64
	for _, id := range ids {
		if id%2 == 0 {
			n++
		}
	}
	return n, nil
}

func (f *fakeReports) PurgeReports(context.Context, domain.PurgeFilter) (int64, error) {
	return 0, nil
}

type fakeAgg struct {
	calls atomic.Int32
	err   error
}

func (a *fakeAgg) RecalcAll(context.Context) error {
	a.calls.Add(1)
	return a.err
}

type harness struct {
	ts      *httptest.Server
	reports *fakeReports
	agg     *fakeAgg
}

func newHarness(t *testing.T, token string) *harness {
	t.Helper()
	h := &harness{reports: &fakeReports{}, agg: &fakeAgg{}}
	n := media.Normalizer{}
	srv := httpserver.New(5 * time.Second)
	srv.MountHandlers(&httpserver.Handlers{
		Q:          app.NewQueryService(unavailable.New(), nil, time.Minute, n),
		R:          app.NewReportService(h.reports, h.agg, n),
		Agg:        h.agg,
		AdminToken: token,
		Ready:      func() bool { return false },
	})
	h.ts = httptest.NewServer(srv.Mux())
	t.Cleanup(h.ts.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path, body string, hdr map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, h.ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

var adult = map[string]string{httpserver.AgeConsentHeader: "1"}

func admin() map[string]string { return map[string]string{httpserver.AdminTokenHeader: adminToken} }

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

type problemBody struct {
	Title  string   `json:"title"`
	Status int      `json:"status"`
	Errors []string `json:"errors"`
}

func TestAgeGate(t *testing.T) {
	h := newHarness(t, adminToken)

	res := h.do(t, http.MethodGet, "/v1/providers", "", nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))

	res = h.do(t, http.MethodGet, "/v1/providers", "", adult)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, h.ts.URL+"/v1/cultivars", nil)
	req.AddCookie(&http.Cookie{Name: httpserver.AgeConsentCookie, Value: "1"})
	res2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusOK, res2.StatusCode)

	res = h.do(t, http.MethodGet, "/v1/providers", "", map[string]string{httpserver.AgeConsentHeader: "0"})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestListProviders_NormalizesLogos(t *testing.T) {
	h := newHarness(t, adminToken)

	res := h.do(t, http.MethodGet, "/v1/providers?limit=2", "", adult)
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decode[[]app.ProviderView](t, res)
	require.Len(t, out, 2)
	assert.Equal(t, "Emerald Cuttings", out[0].Name)
	assert.Equal(t, "https://tmpfiles.org/dl/1001/emerald.png", out[0].Logo.Direct)
	assert.Equal(t, "https://tmpfiles.org/1001/emerald.png", out[0].Logo.Preview)
	assert.Empty(t, out[1].Logo.Direct)
}

func TestGetCultivar_ETag(t *testing.T) {
	h := newHarness(t, adminToken)

	res := h.do(t, http.MethodGet, "/v1/cultivars/1", "", adult)
	require.Equal(t, http.StatusOK, res.StatusCode)
	etag := res.Header.Get("ETag")
	require.NotEmpty(t, etag)

	hdr := map[string]string{httpserver.AgeConsentHeader: "1", "If-None-Match": etag}
	res = h.do(t, http.MethodGet, "/v1/cultivars/1", "", hdr)
	assert.Equal(t, http.StatusNotModified, res.StatusCode)
}

func TestCatalog_BadInput(t *testing.T) {
	h := newHarness(t, adminToken)
	cases := []struct {
		path string
		want int
	}{
		{"/v1/providers/abc", http.StatusBadRequest},
		{"/v1/providers/0", http.StatusBadRequest},
		{"/v1/providers?limit=0", http.StatusBadRequest},
		{"/v1/providers?limit=201", http.StatusBadRequest},
		{"/v1/cultivars?limit=x", http.StatusBadRequest},
		{"/v1/providers/77", http.StatusNotFound},
		{"/v1/cultivars/77", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			res := h.do(t, http.MethodGet, tc.path, "", adult)
			assert.Equal(t, tc.want, res.StatusCode)
		})
	}
}

func TestSubmitReport(t *testing.T) {
	h := newHarness(t, adminToken)

	body := `{"provider_id":1,"cultivar_id":2,"overall":4.5,"shipping":0,"vitality":5,
		"image_url":"http://tmpfiles.org/555/bud.jpg"}`
	res := h.do(t, http.MethodPost, "/v1/reports", body, adult)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	out := decode[app.ReportView](t, res)
	assert.Equal(t, domain.StatusPending, out.Status)
	assert.Equal(t, 0.0, out.Shipping)
	assert.Equal(t, "https://tmpfiles.org/dl/555/bud.jpg", out.Image.Direct)
	assert.Zero(t, h.agg.calls.Load(), "pending reports do not trigger a recalc")
}

func TestSubmitReport_Invalid(t *testing.T) {
	h := newHarness(t, adminToken)

	res := h.do(t, http.MethodPost, "/v1/reports", `{"provider_id":1,"cultivar_id":2,"overall":7,"vitality":1}`, adult)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	p := decode[problemBody](t, res)
	assert.Contains(t, p.Errors, "field 'overall' must be less than or equal to 5")
	assert.Contains(t, p.Errors, "field 'shipping' is required")

	res = h.do(t, http.MethodPost, "/v1/reports", `{"provider_id":1,`, adult)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = h.do(t, http.MethodPost, "/v1/reports",
		`{"provider_id":500,"cultivar_id":2,"overall":1,"shipping":1,"vitality":1}`, adult)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestAdmin_RequiresToken(t *testing.T) {
	h := newHarness(t, adminToken)

	res := h.do(t, http.MethodPost, "/v1/admin/metrics/recalc", "", nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = h.do(t, http.MethodPost, "/v1/admin/metrics/recalc", "", map[string]string{httpserver.AdminTokenHeader: "nope"})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = h.do(t, http.MethodPost, "/v1/admin/metrics/recalc", "", map[string]string{"Authorization": "Bearer " + adminToken})
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.EqualValues(t, 1, h.agg.calls.Load())
}

func TestAdmin_DisabledWithoutToken(t *testing.T) {
	h := newHarness(t, "")
	res := h.do(t, http.MethodPost, "/v1/admin/metrics/recalc", "", map[string]string{httpserver.AdminTokenHeader: ""})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Zero(t, h.agg.calls.Load())
}

func TestAdmin_ModerateReport(t *testing.T) {
	h := newHarness(t, adminToken)

	res := h.do(t, http.MethodPatch, "/v1/admin/reports/12", `{"status":"PUBLISHED"}`, admin())
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, domain.StatusPublished, h.reports.statusOf(12))
	assert.EqualValues(t, 1, h.agg.calls.Load())

	res = h.do(t, http.MethodPatch, "/v1/admin/reports/12", `{"status":"LOST"}`, admin())
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = h.do(t, http.MethodPatch, "/v1/admin/reports/404", `{"status":"REJECTED"}`, admin())
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.EqualValues(t, 1, h.agg.calls.Load())
}

func TestAdmin_ModerateReport_StatusIgnoresCase(t *testing.T) {
	h := newHarness(t, adminToken)

	res := h.do(t, http.MethodPatch, "/v1/admin/reports/12", `{"status":"published"}`, admin())
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, domain.StatusPublished, h.reports.statusOf(12))
	out := decode[map[string]any](t, res)
	assert.Equal(t, "PUBLISHED", out["status"])

	res = h.do(t, http.MethodPatch, "/v1/admin/reports/12", `{"status":"lost"}`, admin())
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = h.do(t, http.MethodPatch, "/v1/admin/reports/12", `{}`, admin())
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.EqualValues(t, 1, h.agg.calls.Load())
}

func TestAdmin_RecalcFailureIs500(t *testing.T) {
	h := newHarness(t, adminToken)
	h.agg.err = errors.New("write failed")

	res := h.do(t, http.MethodPatch, "/v1/admin/reports/3", `{"status":"PUBLISHED"}`, admin())
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

	res = h.do(t, http.MethodPost, "/v1/admin/metrics/recalc", "", admin())
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

func TestAdmin_DeleteReports(t *testing.T) {
	h := newHarness(t, adminToken)

	res := h.do(t, http.MethodDelete, "/v1/admin/reports", `{"ids":[1,2,4]}`, admin())
	require.Equal(t, http.StatusOK, res.StatusCode)
	out := decode[app.DeleteResult](t, res)
	assert.Equal(t, app.DeleteResult{Deleted: 2, Recalculated: true}, out)

	res = h.do(t, http.MethodDelete, "/v1/admin/reports", `{"ids":[3]}`, admin())
	require.Equal(t, http.StatusOK, res.StatusCode)
	out = decode[app.DeleteResult](t, res)
	assert.Equal(t, app.DeleteResult{Deleted: 0, Recalculated: false}, out)
	assert.EqualValues(t, 1, h.agg.calls.Load())

	res = h.do(t, http.MethodDelete, "/v1/admin/reports", `{"ids":[]}`, admin())
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

func TestAdmin_ModerationQueueBadStatus(t *testing.T) {
	h := newHarness(t, adminToken)

	res := h.do(t, http.MethodGet, "/v1/admin/reports?status=lost", "", admin())
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = h.do(t, http.MethodGet, "/v1/admin/reports?status=published", "", admin())
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, decode[[]app.ReportView](t, res))
}

func TestDegradedStore(t *testing.T) {
	store := unavailable.New()
	agg := app.NewMetricsAggregator(store)
	srv := httpserver.New(0)
	srv.MountHandlers(&httpserver.Handlers{
		Q:          app.NewQueryService(store, nil, time.Minute, media.Normalizer{}),
		R:          app.NewReportService(store, agg, media.Normalizer{}),
		Agg:        agg,
		AdminToken: adminToken,
		Ready:      store.Live,
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()
	h := &harness{ts: ts}

	res := h.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	res = h.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res = h.do(t, http.MethodPost, "/v1/admin/metrics/recalc", "", admin())
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	res = h.do(t, http.MethodPost, "/v1/reports",
		`{"provider_id":1,"cultivar_id":1,"overall":1,"shipping":1,"vitality":1}`, adult)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}
