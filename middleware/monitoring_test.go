package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_UsesRouteTemplate(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	r := mux.NewRouter()
	r.Use(m.Monitor)
	r.HandleFunc("/drinks/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodDelete)

	for _, path := range []string{"/drinks/1", "/drinks/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, path, nil))
	}

	assert.Equal(t, 2.0, promtest.ToFloat64(m.httpRequestsTotal.WithLabelValues("/drinks/{id:[0-9]+}", http.MethodDelete, "404")))
	assert.Equal(t, 1, promtest.CollectAndCount(m.httpRequestDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.AuthRejected(ReasonMissingHeader) })
}

func TestBasicAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	guarded := BasicAuth("ops", "secret")(ok)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	guarded.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))

	req.SetBasicAuth("ops", "wrong")
	rr = httptest.NewRecorder()
	guarded.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req.SetBasicAuth("ops", "secret")
	rr = httptest.NewRecorder()
	guarded.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	unconfigured := BasicAuth("", "")(ok)
	req.SetBasicAuth("", "")
	rr = httptest.NewRecorder()
	unconfigured.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequestLogger(t *testing.T) {
	logger, hook := newQuietLogger()

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, RequestIDFromContext(r.Context()))
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/drinks", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, http.StatusCreated, hook.LastEntry().Data["status"])

	req := httptest.NewRequest(http.MethodGet, "/drinks", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "abc-123", hook.LastEntry().Data["request_id"])
}

func TestRecoverer(t *testing.T) {
	logger, hook := newQuietLogger()

	h := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/drinks", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"success":false,"error":500,"message":"internal server error"}`, rr.Body.String())
	assert.Equal(t, "handler panicked", hook.LastEntry().Message)
	assert.NotContains(t, rr.Body.String(), "boom")
}
