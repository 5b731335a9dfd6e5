package activity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/clock"
	dbutil "github.com/router-for-me/CoinLedger/internal/db"
)

func TestAppendAndList(t *testing.T) {
	conn, errOpen := dbutil.Open(filepath.Join(t.TempDir(), "activity.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	c := clock.NewFixed(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	feed := NewFeed(conn, c)
	ctx := context.Background()

	if _, err := feed.Append(ctx, "acct-1", ActionEarn, "txn-1", map[string]any{"amount": 10}); err != nil {
		t.Fatalf("append earn: %v", err)
	}
	c.Advance(time.Minute)
	if _, err := feed.Append(ctx, "acct-1", ActionRedeem, "red-1", nil); err != nil {
		t.Fatalf("append redeem: %v", err)
	}
	if _, err := feed.Append(ctx, "acct-2", ActionEarn, "txn-2", nil); err != nil {
		t.Fatalf("append other account: %v", err)
	}
	if _, err := feed.Append(ctx, "", ActionEarn, "txn-3", nil); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	rows, total, err := feed.List(ctx, "acct-1", 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(rows) != 2 || rows[0].Action != ActionRedeem {
		t.Fatalf("unexpected feed total=%d first=%+v", total, rows)
	}
	if string(rows[1].Detail) != `{"amount":10}` {
		t.Fatalf("unexpected detail %s", rows[1].Detail)
	}
}
