package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestObserveInvocation(t *testing.T) {
	ObserveInvocation("ReportChecker", "AlreadyVoted", time.Now())
	ObserveInvocation("ReportChecker", "AlreadyVoted", time.Now())

	body := scrape(t)
	require.Contains(t, body, `uptime_invocations_total{code="AlreadyVoted",method="ReportChecker"} 2`)
	require.Contains(t, body, `uptime_invoke_duration_seconds_count{method="ReportChecker"} 2`)
}

func TestPopulation(t *testing.T) {
	SetPopulation(4, 7)
	Evictions.Inc()

	body := scrape(t)
	require.Contains(t, body, "uptime_checkers 4")
	require.Contains(t, body, "uptime_members 7")
	require.Contains(t, body, "uptime_evictions_total 1")
}
