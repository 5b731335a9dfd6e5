package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/router-for-me/CoinLedger/internal/clock"
	dbutil "github.com/router-for-me/CoinLedger/internal/db"
	"github.com/router-for-me/CoinLedger/internal/models"
	"gorm.io/gorm"
)

func newTestLog(t *testing.T) (*Log, *gorm.DB, *clock.Fixed) {
	t.Helper()
	conn, errOpen := dbutil.Open(filepath.Join(t.TempDir(), "audit.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	c := clock.NewFixed(time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC))
	return NewLog(conn, c), conn, c
}

func appendN(t *testing.T, l *Log, c *clock.Fixed, n int) []*models.AuditEntry {
	t.Helper()
	out := make([]*models.AuditEntry, 0, n)
	for i := 0; i < n; i++ {
		c.Advance(time.Second)
		entry, err := l.Append(context.Background(), Input{
			ActorID:    "acct-1",
			ActionType: ActionEarn,
			EntityID:   fmt.Sprintf("txn-%d", i),
			Before:     map[string]any{"coin_balance": i * 10},
			After:      map[string]any{"coin_balance": (i + 1) * 10, "note": "<game>"},
			Source:     "game",
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestAppendLinksEntries(t *testing.T) {
	l, _, c := newTestLog(t)
	entries := appendN(t, l, c, 3)

	if entries[0].PreviousHash != "" || entries[0].Sequence != 1 {
		t.Fatalf("unexpected genesis entry %+v", entries[0])
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PreviousHash != entries[i-1].Hash {
			t.Fatalf("entry %d not linked to its predecessor", i)
		}
		if entries[i].Sequence != uint64(i+1) {
			t.Fatalf("entry %d has sequence %d", i, entries[i].Sequence)
		}
	}
}

func TestVerifyUntouchedChain(t *testing.T) {
	l, _, c := newTestLog(t)

	empty, err := l.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify empty: %v", err)
	}
	if !empty.Valid || empty.Entries != 0 {
		t.Fatalf("expected empty chain to be valid, got %+v", empty)
	}

	appendN(t, l, c, 5)
	report, err := l.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Valid || report.Entries != 5 || len(report.Errors) != 0 {
		t.Fatalf("expected valid chain, got %+v", report)
	}
}

func TestVerifyDetectsTamperedField(t *testing.T) {
	l, conn, c := newTestLog(t)
	entries := appendN(t, l, c, 4)
	target := entries[2]

	if errUpdate := conn.Model(&models.AuditEntry{}).
		Where("id = ?", target.ID).
		Update("after_snapshot", `{"coin_balance":999999}`).Error; errUpdate != nil {
		t.Fatalf("tamper: %v", errUpdate)
	}

	report, err := l.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Valid {
		t.Fatalf("expected tampered chain to be invalid")
	}
	found := false
	for _, p := range report.Errors {
		if p.EntryID == target.ID && p.Kind == ProblemHashMismatch {
			found = true
		}
		if p.EntryID != target.ID {
			t.Fatalf("unexpected problem on untouched entry: %+v", p)
		}
	}
	if !found {
		t.Fatalf("expected hash mismatch on %s, got %+v", target.ID, report.Errors)
	}
}

func TestVerifyDetectsTamperedStringFields(t *testing.T) {
	for _, column := range []string{"actor_id", "action_type", "entity_id", "source"} {
		l, conn, c := newTestLog(t)
		entries := appendN(t, l, c, 2)
		if errUpdate := conn.Model(&models.AuditEntry{}).
			Where("id = ?", entries[0].ID).
			Update(column, "forged").Error; errUpdate != nil {
			t.Fatalf("tamper %s: %v", column, errUpdate)
		}
		report, err := l.Verify(context.Background())
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if report.Valid || len(report.Errors) == 0 || report.Errors[0].EntryID != entries[0].ID {
			t.Fatalf("%s: expected entry %s flagged, got %+v", column, entries[0].ID, report.Errors)
		}
	}
}

func TestVerifyDetectsDeletedEntry(t *testing.T) {
	l, conn, c := newTestLog(t)
	entries := appendN(t, l, c, 3)

	if errDelete := conn.Where("id = ?", entries[1].ID).Delete(&models.AuditEntry{}).Error; errDelete != nil {
		t.Fatalf("delete: %v", errDelete)
	}
	report, err := l.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Valid {
		t.Fatalf("expected invalid chain after deletion")
	}
	kinds := map[string]bool{}
	for _, p := range report.Errors {
		if p.EntryID == entries[2].ID {
			kinds[p.Kind] = true
		}
	}
	if !kinds[ProblemSequenceGap] || !kinds[ProblemBrokenLink] {
		t.Fatalf("expected gap and broken link on %s, got %+v", entries[2].ID, report.Errors)
	}
}

func TestVerifyDetectsTailMismatch(t *testing.T) {
	l, conn, c := newTestLog(t)
	appendN(t, l, c, 2)

	if errUpdate := conn.Model(&models.AuditChainTail{}).
		Where("id = ?", models.AuditChainTailID).
		Update("sequence", 7).Error; errUpdate != nil {
		t.Fatalf("tamper tail: %v", errUpdate)
	}
	report, err := l.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if report.Valid || report.Errors[0].Kind != ProblemTailMismatch {
		t.Fatalf("expected tail mismatch, got %+v", report)
	}
}

func TestConcurrentAppendsKeepSingleChain(t *testing.T) {
	l, conn, _ := newTestLog(t)
	const workers = 20

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Append(context.Background(), Input{
				ActorID:    fmt.Sprintf("acct-%d", i),
				ActionType: ActionRedeem,
				EntityID:   fmt.Sprintf("red-%d", i),
				After:      map[string]any{"i": i},
			})
			if err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append: %v", err)
	}

	var count int64
	conn.Model(&models.AuditEntry{}).Count(&count)
	if count != workers {
		t.Fatalf("expected %d entries, got %d", workers, count)
	}
	report, err := l.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Valid {
		t.Fatalf("expected valid chain after concurrent appends, got %+v", report.Errors)
	}
}

func TestTrailFiltersAndPages(t *testing.T) {
	l, _, c := newTestLog(t)
	appendN(t, l, c, 5)
	c.Advance(time.Second)
	if _, err := l.Append(context.Background(), Input{ActorID: "admin-1", ActionType: ActionReverse, EntityID: "txn-1", Source: "admin"}); err != nil {
		t.Fatalf("append reverse: %v", err)
	}

	rows, total, err := l.Trail(context.Background(), Filter{ActorID: "acct-1"}, 2, 2)
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if total != 5 || len(rows) != 2 || rows[0].Sequence != 3 {
		t.Fatalf("unexpected page: total=%d rows=%d", total, len(rows))
	}

	rows, total, err = l.Trail(context.Background(), Filter{EntityID: "txn-1"}, 1, 0)
	if err != nil {
		t.Fatalf("trail by entity: %v", err)
	}
	if total != 2 || rows[1].ActionType != ActionReverse {
		t.Fatalf("unexpected entity trail total=%d", total)
	}

	from := c.Now()
	rows, _, err = l.Trail(context.Background(), Filter{From: &from}, 1, 500)
	if err != nil {
		t.Fatalf("trail by time: %v", err)
	}
	if len(rows) != 1 || rows[0].ActorID != "admin-1" {
		t.Fatalf("expected only the latest entry, got %d", len(rows))
	}
}

func TestComputeHashIgnoresKeyOrder(t *testing.T) {
	a := &models.AuditEntry{Sequence: 1, ActionType: ActionEarn, AfterSnapshot: []byte(`{"b":1,"a":2}`)}
	b := &models.AuditEntry{Sequence: 1, ActionType: ActionEarn, AfterSnapshot: []byte(`{ "a": 2, "b": 1 }`)}
	ha, errA := ComputeHash(a)
	hb, errB := ComputeHash(b)
	if errA != nil || errB != nil {
		t.Fatalf("hash: %v %v", errA, errB)
	}
	if ha != hb {
		t.Fatalf("expected equal hashes for equivalent snapshots")
	}

	b.Sequence = 2
	hc, _ := ComputeHash(b)
	if hc == ha {
		t.Fatalf("expected sequence to change the hash")
	}
}
