package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/router-for-me/CoinLedger/internal/models"
	"gorm.io/gorm"
)

func TestParseDBConfigInt(t *testing.T) {
	cases := map[string]int64{
		`500`:            500,
		`750.0`:          750,
		`"1000"`:         1000,
		`{"value": 42}`:  42,
		`{"value": "7"}`: 7,
	}
	for raw, want := range cases {
		got, ok := parseDBConfigInt(json.RawMessage(raw))
		if !ok || got != want {
			t.Fatalf("raw %s: expected %d, got %d (ok=%v)", raw, want, got, ok)
		}
	}
	for _, raw := range []string{`1.5`, `"abc"`, ``} {
		if _, ok := parseDBConfigInt(json.RawMessage(raw)); ok {
			t.Fatalf("raw %q: expected parse failure", raw)
		}
	}
}

func TestInt64FallsBackWhenMissing(t *testing.T) {
	StoreDBConfig(time.Now(), map[string]json.RawMessage{DailyEarnLimitKey: json.RawMessage(`250`)})
	defer StoreDBConfig(time.Time{}, nil)

	if got := Int64(DailyEarnLimitKey, 500); got != 250 {
		t.Fatalf("expected 250, got %d", got)
	}
	if got := Int64(MonthlyRedeemLimitKey, 1000); got != 1000 {
		t.Fatalf("expected fallback 1000, got %d", got)
	}
	if got := Seconds(FraudRapidWindowSecondsKey, time.Minute); got != time.Minute {
		t.Fatalf("expected fallback 1m, got %s", got)
	}
}

func TestPutRefreshesSnapshot(t *testing.T) {
	dsn := fmt.Sprintf("file:settings_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := conn.AutoMigrate(&models.Setting{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	defer StoreDBConfig(time.Time{}, nil)

	ctx := context.Background()
	if errPut := Put(ctx, conn, FraudBlockScoreKey, 60); errPut != nil {
		t.Fatalf("put: %v", errPut)
	}
	if errPut := Put(ctx, conn, FraudBlockScoreKey, 70); errPut != nil {
		t.Fatalf("put again: %v", errPut)
	}
	if got := Int(FraudBlockScoreKey, 50); got != 70 {
		t.Fatalf("expected 70, got %d", got)
	}
	if DBConfigUpdatedAt().IsZero() {
		t.Fatalf("expected non-zero updated_at")
	}
}
