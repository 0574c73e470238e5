package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/trustchain/internal/api/handler"
	"github.com/jmerrifield20/trustchain/internal/chain"
)

func TestMetricsHandler_exposesCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.PrometheusMiddleware())
	r.GET("/metrics", handler.MetricsHandler())

	handler.RecordAppend("SIGNUP", true)
	handler.RecordAudit(&chain.FleetResult{OverallValid: true, VendorsChecked: 2}, nil)
	handler.RecordAlertDelivery(false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{
		`trustchain_blocks_appended_total{action="SIGNUP",result="ok"}`,
		`trustchain_audit_runs_total{result="ok"}`,
		`trustchain_audit_vendors_checked 2`,
		`trustchain_alert_deliveries_total{status="failure"}`,
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
