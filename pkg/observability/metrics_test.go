package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordAuthz("view", true)
		m.RecordCache("l1", false)
		m.RecordMembershipChange("create", nil)
		m.RecordRegistration("approved")
		m.RecordImportRows("created", 3)
		m.RecordStatusSync("active", 2)
		m.ObserveStatusSync(time.Second)
		m.RecordTxRetry()
	})
}

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAuthz("delete_org", false)
	m.RecordAuthz("delete_org", false)
	m.RecordRegistration("waitlisted")
	m.RecordMembershipChange("change_permission_level", errors.New("x"))
	m.RecordTxRetry()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.AuthzChecksTotal.WithLabelValues("delete_org", "denied")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues("waitlisted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MembershipChangesTotal.WithLabelValues("change_permission_level", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TxRetriesTotal))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/orgs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orgs/12", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/orgs/{id}", "418")))
}
