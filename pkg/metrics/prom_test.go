package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/crudgen/crudgen/pkg/crud"
)

func TestInstrumentCountsByStatus(t *testing.T) {
	h := Instrument("users", crud.ActionView)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("users", "view", "403"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/1", nil))
	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("users", "view", "403"))

	assert.Equal(t, before+1, after)
}

func TestInstrumentDefaultsTo200(t *testing.T) {
	h := Instrument("users", crud.ActionList)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) // implicit 200
	}))

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("users", "list", "200"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/", nil))
	after := testutil.ToFloat64(RequestsTotal.WithLabelValues("users", "list", "200"))

	assert.Equal(t, before+1, after)
}
