package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.DraftEvent("set_amount")
	r.DraftEvent("set_amount")
	r.DraftEvent("select_payer")
	r.Reconciliation(ResultOK)
	r.Reconciliation("MISSING_PAYER")
	r.OpenDrafts(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.draftEvents.WithLabelValues("set_amount")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.draftEvents.WithLabelValues("select_payer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reconciliations.WithLabelValues("MISSING_PAYER")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.openDrafts))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.Reconciliation(ResultOK)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `splitwise_reconciliations_total{result="ok"} 1`)
	assert.Contains(t, string(body), "splitwise_open_drafts 0")
}
