package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/CoinLedger/internal/config"
	"github.com/router-for-me/CoinLedger/internal/settings"
)

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "app.db")
	cfg.JWT.Secret = "app-test-secret"
	t.Cleanup(func() { settings.StoreDBConfig(time.Time{}, nil) })
	return cfg
}

func TestRouterServesHealthAndRejectsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rt, err := Open(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	defer rt.Close()
	router := NewRouter(rt)

	cases := map[string]int{
		"/healthz":          http.StatusOK,
		"/v0/front/wallet":  http.StatusUnauthorized,
		"/v0/admin/rewards": http.StatusUnauthorized,
		"/nope":             http.StatusNotFound,
	}
	for path, want := range cases {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		if recorder.Code != want {
			t.Fatalf("GET %s: expected %d, got %d", path, want, recorder.Code)
		}
	}
}

func TestMaintenanceCommandsOnFreshDatabase(t *testing.T) {
	cfg := testConfig(t)
	if err := Migrate(context.Background(), cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	report, err := VerifyAudit(context.Background(), cfg)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Valid || report.Entries != 0 {
		t.Fatalf("expected empty valid chain, got %+v", report)
	}
	removed, err := PurgeIdempotency(context.Background(), cfg)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected nothing to purge, got %d", removed)
	}
}

func TestRunServerRequiresSecret(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWT.Secret = ""
	if err := RunServer(context.Background(), cfg); err == nil {
		t.Fatalf("expected missing secret to fail")
	}
}
