package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/projects/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/"+id, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/projects/{id}", "418"))
	assert.Equal(t, 2.0, count)
}

func TestObserveUpload(t *testing.T) {
	m := New()
	m.ObserveUpload("photo", "stored")
	m.ObserveUpload("photo", "stored")
	m.ObserveUpload("other", "rejected")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AttachmentUploads.WithLabelValues("photo", "stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttachmentUploads.WithLabelValues("other", "rejected")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveUpload("document", "stored")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "monitor_attachment_uploads_total"))
}
