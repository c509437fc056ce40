package obs

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.PermissionCheck("User", "update", "allow")
	m.PermissionCheck("User", "update", "allow")
	m.TokenValidation("expired")
	m.RoleGrant("ok")
	m.TokenInvalidated()

	if got := testutil.ToFloat64(m.permissionChecks.WithLabelValues("User", "update", "allow")); got != 2 {
		t.Fatalf("permission checks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.tokenValidations.WithLabelValues("expired")); got != 1 {
		t.Fatalf("token validations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.invalidatedTotal); got != 1 {
		t.Fatalf("invalidated = %v, want 1", got)
	}

	if _, err := NewMetrics(reg); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.PermissionCheck("User", "read", "deny")
	m.TokenValidation("ok")
	m.RoleGrant("ok")
	m.TokenInvalidated()
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger("development", "debug"); err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if _, err := NewLogger("production", "loud"); err == nil {
		t.Fatal("expected invalid level to fail")
	}
	if OrNop(nil) == nil {
		t.Fatal("expected nop logger")
	}
}
