package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/trustfeed/internal/gate"
	"github.com/sells-group/trustfeed/internal/model"
	"github.com/sells-group/trustfeed/internal/monitoring"
	"github.com/sells-group/trustfeed/internal/pipeline"
	"github.com/sells-group/trustfeed/internal/store"
	"github.com/sells-group/trustfeed/internal/verify"
)

type fakeSource struct {
	batch []model.Candidate
	err   error
}

func (f *fakeSource) Fetch(context.Context) ([]model.Candidate, error) {
	return f.batch, f.err
}

type fakeVerifier struct {
	outcomes map[string]verify.Outcome
	err      error
}

func (f *fakeVerifier) Verify(_ context.Context, title, _, _ string) (verify.Outcome, error) {
	if f.err != nil {
		return verify.Outcome{}, f.err
	}
	return f.outcomes[title], nil
}

type fakeNews struct {
	created []model.NewNews
	records map[string]*model.SubmittedNews
	filter  store.NewsFilter
	pingErr error
}

func newFakeNews() *fakeNews {
	return &fakeNews{records: make(map[string]*model.SubmittedNews)}
}

func (f *fakeNews) CreateNews(_ context.Context, n model.NewNews) (*model.SubmittedNews, error) {
	f.created = append(f.created, n)
	rec := &model.SubmittedNews{
		ID:          "news-" + n.Title,
		Title:       n.Title,
		Description: n.Description,
		Author:      n.Author,
		TrustScore:  n.TrustScore,
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.records[rec.ID] = rec
	return rec, nil
}

func (f *fakeNews) GetNews(_ context.Context, id string) (*model.SubmittedNews, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeNews) ListNews(_ context.Context, filter store.NewsFilter) ([]model.SubmittedNews, error) {
	f.filter = filter
	var out []model.SubmittedNews
	for _, rec := range f.records {
		out = append(out, *rec)
	}
	return out, nil
}

func (f *fakeNews) Ping(context.Context) error { return f.pingErr }

type fakeStats struct {
	hours int
}

func (f *fakeStats) Collect(_ context.Context, hours int) (*monitoring.Snapshot, error) {
	f.hours = hours
	return &monitoring.Snapshot{Store: &store.Stats{Total: 1}, LookbackHours: hours}, nil
}

type fakeOracle struct{ err error }

func (f fakeOracle) Health(context.Context) error { return f.err }

type harness struct {
	source   *fakeSource
	verifier *fakeVerifier
	news     *fakeNews
	stats    *fakeStats
	session  *pipeline.Session
	handler  http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		source: &fakeSource{batch: []model.Candidate{
			{Title: "A", Description: "B", SourceReference: "http://x"},
			{Title: "C", Description: "D", SourceReference: "http://y"},
		}},
		verifier: &fakeVerifier{outcomes: map[string]verify.Outcome{
			"A": {Percent: 82, Result: model.VerificationResult{ConfidenceScore: 0.82, IsVerified: true, MatchingDetails: []string{"wire"}}},
			"C": {Percent: 40, Result: model.VerificationResult{ConfidenceScore: 0.4, Discrepancies: []string{"dates"}}},
		}},
		news:  newFakeNews(),
		stats: &fakeStats{},
	}
	h.session = pipeline.NewSession(h.source, h.verifier, h.news, gate.New(70), pipeline.Options{Author: "fetch from middleware"})
	h.handler = New(Deps{
		Session: h.session,
		News:    h.news,
		Stats:   h.stats,
		Oracle:  fakeOracle{},
	}).Handler()
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])

	h.news.pingErr = errors.New("db down")
	rec = h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth_OracleDegraded(t *testing.T) {
	h := newHarness(t)
	h.handler = New(Deps{Session: h.session, News: h.news, Stats: h.stats, Oracle: fakeOracle{err: errors.New("timeout")}}).Handler()

	rec := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode[map[string]any](t, rec)["status"])
}

func TestTriageFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/candidates/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	refresh := decode[pipeline.RefreshResult](t, rec)
	assert.Equal(t, 2, refresh.Fetched)
	assert.Equal(t, 2, refresh.Pending)

	rec = h.do(t, http.MethodGet, "/candidates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[candidatesResponse](t, rec)
	assert.Equal(t, 70, list.Threshold)
	require.Len(t, list.Candidates, 2)

	rec = h.do(t, http.MethodPost, "/decisions", decisionRequest{Title: "A", Action: "accept"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[decisionResponse](t, rec).Applied)

	rec = h.do(t, http.MethodPost, "/submit", titleRequest{Title: "A"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "verify first")
	assert.Empty(t, h.news.created)

	rec = h.do(t, http.MethodPost, "/verify", titleRequest{Title: "A"})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[verifyResponse](t, rec)
	assert.Equal(t, 82, v.Percent)
	assert.True(t, v.Admitted)
	assert.True(t, v.IsVerified)
	assert.Equal(t, []string{"wire"}, v.MatchingDetails)
	assert.Equal(t, []string{}, v.Discrepancies)

	rec = h.do(t, http.MethodPost, "/submit", titleRequest{Title: "A"})
	require.Equal(t, http.StatusOK, rec.Code)
	sub := decode[submitResponse](t, rec)
	assert.Equal(t, "news-A", sub.ID)
	assert.Equal(t, 82, sub.TrustScore)
	require.Len(t, h.news.created, 1)
	assert.Equal(t, 82, h.news.created[0].TrustScore)

	rec = h.do(t, http.MethodGet, "/news/news-A", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "A", decode[model.SubmittedNews](t, rec).Title)
}

func TestSubmitBelowThreshold(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/candidates/refresh", nil)
	h.do(t, http.MethodPost, "/decisions", decisionRequest{Title: "C", Action: "accept"})

	rec := h.do(t, http.MethodPost, "/verify", titleRequest{Title: "C"})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[verifyResponse](t, rec)
	assert.Equal(t, 40, v.Percent)
	assert.False(t, v.Admitted)

	rec = h.do(t, http.MethodPost, "/submit", titleRequest{Title: "C"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, h.news.created)
}

func TestVerifyFailure(t *testing.T) {
	h := newHarness(t)
	h.verifier.err = eris.Wrap(model.ErrVerificationFailure, "oracle: connection refused")
	h.do(t, http.MethodPost, "/candidates/refresh", nil)
	h.do(t, http.MethodPost, "/decisions", decisionRequest{Title: "A", Action: "accept"})

	rec := h.do(t, http.MethodPost, "/verify", titleRequest{Title: "A"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "verification failure")
}

func TestRefreshFailure(t *testing.T) {
	h := newHarness(t)
	h.source.err = errors.New("dial tcp: timeout")

	rec := h.do(t, http.MethodPost, "/candidates/refresh", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDecisions(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/candidates/refresh", nil)

	rec := h.do(t, http.MethodPost, "/decisions", decisionRequest{Title: "A", Action: "reject"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[decisionResponse](t, rec).Applied)

	rec = h.do(t, http.MethodPost, "/decisions", decisionRequest{Title: "A", Action: "accept"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[decisionResponse](t, rec).Applied)

	rec = h.do(t, http.MethodPost, "/decisions", decisionRequest{Title: "C", Action: "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/decisions", decisionRequest{Action: "accept"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidBody(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClaims(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/claims", claimRequest{Title: "Manual", Description: "claim", SourceURL: "http://m"})
	require.Equal(t, http.StatusCreated, rec.Code)
	review := decode[model.Review](t, rec)
	assert.Equal(t, model.DecisionUnscored, review.State)
	assert.Equal(t, "manual", review.Candidate.SourceName)

	rec = h.do(t, http.MethodPost, "/claims", claimRequest{Title: "Manual", Description: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/claims", claimRequest{Title: "No description"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownCandidate(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/verify", titleRequest{Title: "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetNewsNotFound(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/news/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListNews_Filters(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/news?min_trust_score=80&q=Fed&limit=500&offset=-3&since=2026-01-01T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []any{}, body["news"])

	assert.Equal(t, 80, h.news.filter.MinTrustScore)
	assert.Equal(t, "Fed", h.news.filter.TitleContains)
	assert.Equal(t, 100, h.news.filter.Limit)
	assert.Equal(t, 0, h.news.filter.Offset)
	require.NotNil(t, h.news.filter.Since)

	rec = h.do(t, http.MethodGet, "/news?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 24, h.stats.hours)

	h.do(t, http.MethodGet, "/stats?hours=6", nil)
	assert.Equal(t, 6, h.stats.hours)
}

type fakeSnapshots struct{ snap *monitoring.Snapshot }

func (f fakeSnapshots) Latest() *monitoring.Snapshot { return f.snap }

func TestStats_ServesCachedSnapshot(t *testing.T) {
	h := newHarness(t)
	cached := &monitoring.Snapshot{Store: &store.Stats{Total: 9}, LookbackHours: 24}
	handler := New(Deps{Session: h.session, News: h.news, Stats: h.stats, Snapshots: fakeSnapshots{snap: cached}}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 9, decode[monitoring.Snapshot](t, rec).Store.Total)
	assert.Zero(t, h.stats.hours, "collector not called")

	// An explicit window always collects.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats?hours=6", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, h.stats.hours)
}

func TestStats_NoSnapshotYetCollects(t *testing.T) {
	h := newHarness(t)
	handler := New(Deps{Session: h.session, News: h.news, Stats: h.stats, Snapshots: fakeSnapshots{}}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 24, h.stats.hours)
}

func TestRequestIDHeaderAndCORS(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodOptions, "/candidates", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{pipeline.ErrInvalidCandidate, http.StatusBadRequest},
		{eris.Wrap(pipeline.ErrUnknownCandidate, "x"), http.StatusNotFound},
		{store.ErrNotFound, http.StatusNotFound},
		{eris.Wrap(pipeline.ErrNotVerified, "x"), http.StatusConflict},
		{pipeline.ErrInFlight, http.StatusConflict},
		{pipeline.ErrStale, http.StatusConflict},
		{pipeline.ErrBelowThreshold, http.StatusUnprocessableEntity},
		{eris.Wrap(model.ErrSourceUnavailable, "x"), http.StatusBadGateway},
		{model.ErrVerificationFailure, http.StatusBadGateway},
		{eris.Wrap(model.ErrPersistence, "x"), http.StatusInternalServerError},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
