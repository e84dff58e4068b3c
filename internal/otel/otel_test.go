package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics: status=%d", rec.Code)
	}
	return rec.Body.String()
}

func TestInitMeterProvider(t *testing.T) {
	ctx := context.Background()
	p, err := InitMeterProvider(ctx, Resource{ServiceName: "test-service", Version: "1.0.0", Environment: "test"})
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	defer func() { _ = p.Shutdown(ctx) }()
	if p.Handler == nil {
		t.Fatal("InitMeterProvider: expected non-nil handler")
	}
	body := scrape(t, p.Handler)
	if !strings.Contains(body, `service_name="test-service"`) {
		t.Errorf("target_info should carry the service name; got:\n%s", body)
	}
}

func TestInitMeterProvider_emptyResource(t *testing.T) {
	ctx := context.Background()
	p, err := InitMeterProvider(ctx, Resource{})
	if err != nil {
		t.Fatalf("InitMeterProvider: %v", err)
	}
	defer func() { _ = p.Shutdown(ctx) }()
	if !strings.Contains(scrape(t, p.Handler), `service_name="devcrew"`) {
		t.Error("empty resource should default the service name")
	}
}

func TestProvider_ShutdownNil(t *testing.T) {
	var p *Provider
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil Shutdown: %v", err)
	}
}

func TestResourceAttributes(t *testing.T) {
	if n := len(Resource{}.attributes()); n != 1 {
		t.Errorf("empty resource attrs = %d", n)
	}
	if n := len(Resource{ServiceName: "x", Version: "v", Environment: "e"}.attributes()); n != 3 {
		t.Errorf("full resource attrs = %d", n)
	}
}
