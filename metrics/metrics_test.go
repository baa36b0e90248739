package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveTransition(t *testing.T) {
	reg := New()
	reg.ObserveTransition("escalate", "succeeded")
	reg.ObserveTransition("escalate", "succeeded")
	reg.ObserveTransition("escalate", "rejected")

	require.Equal(t, 2.0, testutil.ToFloat64(reg.transitions.WithLabelValues("escalate", "succeeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(reg.transitions.WithLabelValues("escalate", "rejected")))
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	reg := New()
	r := chi.NewRouter()
	r.Use(reg.Middleware)
	r.Get("/api/dispute/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"DIS-001", "DIS-002"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dispute/"+id, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	require.Equal(t, 2.0, testutil.ToFloat64(reg.requests.WithLabelValues("/api/dispute/{id}", http.MethodGet, "404")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	reg := New()
	reg.ObserveTransition("escalate", "forbidden")

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `autilance_dispute_transitions_total{action="escalate",outcome="forbidden"} 1`))
}
