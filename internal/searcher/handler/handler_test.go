package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/document"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/query"
	"github.com/Adithya-Monish-Kumar-K/positional-index/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/positional-index/pkg/metrics"
)

func newServer(t *testing.T, positions bool) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	b, err := indexer.NewEngine(indexer.Options{TrackPositions: positions})
	require.NoError(t, err)
	res, err := b.Build(context.Background(), []document.Document{
		{ID: 1, Title: "Preliminary Report", Body: "A B A"},
		{ID: 2, Title: "Second", Body: "c a"},
	})
	require.NoError(t, err)
	e, err := query.New(segment.NewSnapshot(res))
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	r := chi.NewRouter()
	New(reload.NewHolder(e), nil, 1).WithMetrics(m).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, m
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestTermLookup(t *testing.T) {
	srv, m := newServer(t, true)

	var res query.TermResult
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/terms/A", &res))
	assert.Equal(t, "a", res.Term)
	assert.Equal(t, 2, res.DocumentFrequency)
	assert.Equal(t, 3, res.Frequency)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, []int{0, 2}, res.Hits[0].Positions)
	assert.Equal(t, "Preliminary Report", res.Hits[0].Title)

	var errBody map[string]string
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/v1/terms/zebra", &errBody))
	assert.Contains(t, errBody["error"], "term not found")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LookupsTotal.WithLabelValues("miss")))
}

func TestTermInDocument(t *testing.T) {
	srv, _ := newServer(t, true)

	var resp termInDocumentResponse
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/terms/a/documents/1", &resp))
	assert.Equal(t, 2, resp.Frequency)
	assert.Equal(t, []int{0, 2}, resp.Positions)
	assert.Equal(t, "[a] b", resp.Text)

	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/v1/terms/b/documents/2", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/terms/a/documents/0", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/terms/a/documents/x", nil))
}

func TestTermInDocumentWithoutPositions(t *testing.T) {
	srv, _ := newServer(t, false)

	var resp termInDocumentResponse
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/terms/a/documents/1", &resp))
	assert.Equal(t, 2, resp.Frequency)
	assert.Nil(t, resp.Positions)
	assert.Nil(t, resp.Summary)
}

func TestDocumentEndpoints(t *testing.T) {
	srv, _ := newServer(t, true)

	var doc document.Document
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/documents/2", &doc))
	assert.Equal(t, "Second", doc.Title)

	var terms struct {
		Terms []string `json:"terms"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/documents/1/terms", &terms))
	assert.Equal(t, []string{"a", "b"}, terms.Terms)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/v1/documents/3/terms", nil))

	var ctx struct {
		Summary string `json:"summary"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/documents/1/context?position=2", &ctx))
	assert.Equal(t, "b [a]", ctx.Summary)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/v1/documents/1/context?position=9", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/documents/1/context", nil))
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/documents/1/context?position=1&radius=-2", nil))
}

func TestSnapshotAndCacheDisabled(t *testing.T) {
	srv, _ := newServer(t, true)

	var info map[string]any
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/snapshot", &info))
	assert.Equal(t, 3.0, info["terms"])
	assert.Equal(t, 2.0, info["documents"])
	assert.Equal(t, true, info["positions"])

	var stats map[string]string
	require.Equal(t, http.StatusOK, get(t, srv, "/api/v1/cache/stats", &stats))
	assert.Equal(t, "disabled", stats["status"])

	resp, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
