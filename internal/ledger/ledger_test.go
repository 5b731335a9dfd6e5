package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/audit"
	"github.com/router-for-me/CoinLedger/internal/clock"
	"github.com/router-for-me/CoinLedger/internal/config"
	dbutil "github.com/router-for-me/CoinLedger/internal/db"
	"github.com/router-for-me/CoinLedger/internal/models"
	"github.com/router-for-me/CoinLedger/internal/settings"
	"github.com/router-for-me/CoinLedger/internal/stock"
	"github.com/router-for-me/CoinLedger/internal/wallet"
	"gorm.io/gorm"
)

var admin = Caller{AccountID: "admin-1", IsAdmin: true, Source: "test"}

func user(accountID string) Caller {
	return Caller{AccountID: accountID, Source: "test"}
}

type fixture struct {
	conn  *gorm.DB
	clock *clock.Fixed
	o     *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, errOpen := dbutil.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	settings.StoreDBConfig(time.Time{}, nil)
	t.Cleanup(func() { settings.StoreDBConfig(time.Time{}, nil) })

	c := clock.NewFixed(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	return &fixture{conn: conn, clock: c, o: New(conn, c, OptionsFromConfig(config.Default()))}
}

// fund credits coins directly, bypassing the daily earn cap.
func (f *fixture) fund(t *testing.T, accountID string, amount int64) {
	t.Helper()
	if _, err := f.o.wallets.Credit(context.Background(), wallet.Entry{AccountID: accountID, Amount: amount, Source: "seed"}); err != nil {
		t.Fatalf("fund %s: %v", accountID, err)
	}
}

func (f *fixture) reward(t *testing.T, cost, units int64, vouchers int) *models.Reward {
	t.Helper()
	ctx := context.Background()
	r, err := f.o.CreateReward(ctx, admin, stock.RewardInput{Name: fmt.Sprintf("Reward %d", cost), CoinCost: cost, Stock: units})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if vouchers > 0 {
		batch, errAdd := f.o.AddVouchers(ctx, admin, r.ID, nil, vouchers)
		if errAdd != nil {
			t.Fatalf("add vouchers: %v", errAdd)
		}
		r = &batch.After
	}
	return r
}

func (f *fixture) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	w, err := f.o.GetWallet(context.Background(), admin, accountID)
	if err != nil {
		t.Fatalf("get wallet %s: %v", accountID, err)
	}
	return w.CoinBalance
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := f.conn.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func (f *fixture) assertConsistent(t *testing.T, accountID string) {
	t.Helper()
	rec, err := f.o.ReconcileWallet(context.Background(), admin, accountID)
	if err != nil {
		t.Fatalf("reconcile %s: %v", accountID, err)
	}
	if !rec.Consistent {
		t.Fatalf("wallet %s inconsistent: %+v", accountID, rec)
	}
}

func TestEarnCoinsCreditsAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.o.EarnCoins(ctx, user("acct-1"), EarnRequest{AccountID: "acct-1", SourceID: "game-7", Amount: 120})
	if err != nil {
		t.Fatalf("earn: %v", err)
	}
	if res.NewBalance != 120 || res.TransactionID == "" || res.Replayed {
		t.Fatalf("unexpected result %+v", res)
	}

	entries, total, errTrail := f.o.GetAuditTrail(ctx, admin, audit.Filter{ActionType: audit.ActionEarn}, 1, 10)
	if errTrail != nil {
		t.Fatalf("trail: %v", errTrail)
	}
	if total != 1 || entries[0].EntityID != res.TransactionID || entries[0].ActorID != "acct-1" {
		t.Fatalf("expected one earn audit entry for %s, got %d %+v", res.TransactionID, total, entries)
	}

	feed, feedTotal, errFeed := f.o.ListActivity(ctx, user("acct-1"), "acct-1", 1, 10)
	if errFeed != nil {
		t.Fatalf("activity: %v", errFeed)
	}
	if feedTotal != 1 || feed[0].EntityID != res.TransactionID {
		t.Fatalf("expected earn activity, got %d %+v", feedTotal, feed)
	}
	f.assertConsistent(t, "acct-1")
}

func TestEarnCoinsValidatesAndAuthorizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.o.EarnCoins(ctx, user("acct-1"), EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: 0}); !errors.Is(err, apperr.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if _, err := f.o.EarnCoins(ctx, user("acct-1"), EarnRequest{AccountID: "acct-1", Amount: 10}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for missing source, got %v", err)
	}
	if _, err := f.o.EarnCoins(ctx, Caller{}, EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: 10}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if _, err := f.o.EarnCoins(ctx, user("acct-2"), EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: 10}); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if n := f.count(t, &models.Transaction{}, "account_id = ?", "acct-1"); n != 0 {
		t.Fatalf("expected no transactions, got %d", n)
	}
}

func TestEarnCapRejectsSecondEarn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := user("acct-1")

	if _, err := f.o.EarnCoins(ctx, caller, EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: 300}); err != nil {
		t.Fatalf("first earn: %v", err)
	}
	f.clock.Advance(time.Hour)
	_, err := f.o.EarnCoins(ctx, caller, EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: 300})
	if !errors.Is(err, apperr.ErrCapExceeded) {
		t.Fatalf("expected cap exceeded, got %v", err)
	}
	if got := f.balance(t, "acct-1"); got != 300 {
		t.Fatalf("expected balance 300, got %d", got)
	}
	if n := f.count(t, &models.Transaction{}, "account_id = ?", "acct-1"); n != 1 {
		t.Fatalf("expected one transaction, got %d", n)
	}

	_, rejected, errTrail := f.o.GetAuditTrail(ctx, admin, audit.Filter{ActionType: audit.ActionEarnRejected}, 1, 10)
	if errTrail != nil {
		t.Fatalf("trail: %v", errTrail)
	}
	if rejected != 1 {
		t.Fatalf("expected the rejected earn to be audited, got %d", rejected)
	}

	f.clock.Advance(24 * time.Hour)
	if _, errNext := f.o.EarnCoins(ctx, caller, EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: 300}); errNext != nil {
		t.Fatalf("earn after window rolled: %v", errNext)
	}
	f.assertConsistent(t, "acct-1")
}

func TestEarnCapHoldsForHugeAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := user("acct-1")

	if _, err := f.o.EarnCoins(ctx, caller, EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: 100}); err != nil {
		t.Fatalf("earn: %v", err)
	}
	if _, err := f.o.wallets.Debit(ctx, wallet.Entry{AccountID: "acct-1", Amount: 100, ActorID: "acct-1", Source: "shop"}); err != nil {
		t.Fatalf("debit: %v", err)
	}
	_, err := f.o.EarnCoins(ctx, caller, EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: math.MaxInt64 - 50})
	if !errors.Is(err, apperr.ErrCapExceeded) {
		t.Fatalf("expected cap exceeded, got %v", err)
	}
	if got := f.balance(t, "acct-1"); got != 0 {
		t.Fatalf("expected balance 0, got %d", got)
	}
	f.assertConsistent(t, "acct-1")
}

func TestEarnIdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := user("acct-1")
	req := EarnRequest{AccountID: "acct-1", SourceID: "referral", Amount: 50, IdempotencyKey: "key-1"}

	first, err := f.o.EarnCoins(ctx, caller, req)
	if err != nil {
		t.Fatalf("first earn: %v", err)
	}
	second, err := f.o.EarnCoins(ctx, caller, req)
	if err != nil {
		t.Fatalf("replayed earn: %v", err)
	}
	if !second.Replayed || second.TransactionID != first.TransactionID || second.NewBalance != 50 {
		t.Fatalf("expected replay of %+v, got %+v", first, second)
	}
	if n := f.count(t, &models.Transaction{}, "account_id = ?", "acct-1"); n != 1 {
		t.Fatalf("expected exactly one transaction, got %d", n)
	}
	if got := f.balance(t, "acct-1"); got != 50 {
		t.Fatalf("expected balance 50, got %d", got)
	}

	req.Amount = 60
	if _, errReuse := f.o.EarnCoins(ctx, caller, req); !errors.Is(errReuse, apperr.ErrIdempotencyReused) {
		t.Fatalf("expected idempotency conflict, got %v", errReuse)
	}
}

func TestConcurrentEarnWithSameKeyAppliesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := user("acct-1")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.o.EarnCoins(ctx, caller, EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: 25, IdempotencyKey: "same"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("earn: %v", err)
		}
	}
	if got := f.balance(t, "acct-1"); got != 25 {
		t.Fatalf("expected balance 25, got %d", got)
	}
}

func TestPurgeExpiredIdempotencyKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := user("acct-1")

	for _, key := range []string{"a", "b"} {
		if _, err := f.o.EarnCoins(ctx, caller, EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: 10, IdempotencyKey: key}); err != nil {
			t.Fatalf("earn %s: %v", key, err)
		}
	}
	f.clock.Advance(time.Hour)
	if _, err := f.o.EarnCoins(ctx, caller, EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: 10, IdempotencyKey: "c"}); err != nil {
		t.Fatalf("earn c: %v", err)
	}

	deleted, err := f.o.PurgeExpiredIdempotencyKeys(ctx, f.clock.Now().Add(23*time.Hour+30*time.Minute))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 expired keys purged, got %d", deleted)
	}
	if n := f.count(t, &models.IdempotencyKey{}, "1 = 1"); n != 1 {
		t.Fatalf("expected one live key left, got %d", n)
	}
	if _, total, _ := f.o.GetAuditTrail(ctx, admin, audit.Filter{ActionType: audit.ActionIdempotencyPurge}, 1, 10); total != 1 {
		t.Fatalf("expected purge to be audited, got %d", total)
	}
}

func TestRedeemCoinsBindsVoucher(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "acct-1", 200)
	r := f.reward(t, 80, 0, 2)

	res, err := f.o.RedeemCoins(ctx, user("acct-1"), RedeemRequest{AccountID: "acct-1", RewardID: r.ID})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if res.VoucherCode == "" || res.RedemptionID == "" || res.CoinsSpent != 80 || res.NewBalance != 120 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Risk == nil {
		t.Fatalf("expected a risk assessment")
	}

	rewards, errList := f.o.ListRewards(ctx, user("acct-1"))
	if errList != nil || len(rewards) != 1 || rewards[0].Stock != 1 {
		t.Fatalf("expected stock 1 after redeem, got %+v err=%v", rewards, errList)
	}
	redemptions, total, errRed := f.o.ListRedemptions(ctx, user("acct-1"), "acct-1", 1, 10)
	if errRed != nil || total != 1 || redemptions[0].Status != models.RedemptionStatusSuccess {
		t.Fatalf("expected one successful redemption, got %d %+v err=%v", total, redemptions, errRed)
	}
	f.assertConsistent(t, "acct-1")
}

func TestConcurrentRedeemsRespectStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const accounts, units = 10, 4
	r := f.reward(t, 30, 0, units)
	for i := 0; i < accounts; i++ {
		f.fund(t, fmt.Sprintf("acct-%d", i), 100)
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		wins       int
		outOfStock int
	)
	for i := 0; i < accounts; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.o.RedeemCoins(ctx, user(id), RedeemRequest{AccountID: id, RewardID: r.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperr.ErrOutOfStock):
				outOfStock++
			default:
				t.Errorf("redeem %s: %v", id, err)
			}
		}(fmt.Sprintf("acct-%d", i))
	}
	wg.Wait()

	if wins != units || outOfStock != accounts-units {
		t.Fatalf("expected %d wins and %d out of stock, got %d and %d", units, accounts-units, wins, outOfStock)
	}
	reward, err := f.o.stock.GetReward(ctx, r.ID)
	if err != nil {
		t.Fatalf("get reward: %v", err)
	}
	if reward.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", reward.Stock)
	}
	if n := f.count(t, &models.Transaction{}, "type = ?", models.TransactionTypeDebit); n != units {
		t.Fatalf("expected %d debits, got %d", units, n)
	}
	for i := 0; i < accounts; i++ {
		f.assertConsistent(t, fmt.Sprintf("acct-%d", i))
	}
}

func TestLastUnitGoesToOneAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "acct-a", 100)
	f.fund(t, "acct-b", 100)
	r := f.reward(t, 60, 0, 1)

	results := make(map[string]*RedeemResult)
	errs := make(map[string]error)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, id := range []string{"acct-a", "acct-b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			res, err := f.o.RedeemCoins(ctx, user(id), RedeemRequest{AccountID: id, RewardID: r.ID})
			mu.Lock()
			results[id], errs[id] = res, err
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	winner, loser := "acct-a", "acct-b"
	if errs[winner] != nil {
		winner, loser = loser, winner
	}
	if errs[winner] != nil || results[winner].VoucherCode == "" {
		t.Fatalf("expected a winner with a voucher, got %v", errs)
	}
	if !errors.Is(errs[loser], apperr.ErrOutOfStock) {
		t.Fatalf("expected loser to fail out of stock, got %v", errs[loser])
	}
	if got := f.balance(t, winner); got != 40 {
		t.Fatalf("expected winner balance 40, got %d", got)
	}
	if got := f.balance(t, loser); got != 100 {
		t.Fatalf("expected loser balance untouched, got %d", got)
	}
	if n := f.count(t, &models.Redemption{}, "account_id = ? AND status = ?", loser, models.RedemptionStatusFailed); n != 1 {
		t.Fatalf("expected the losing attempt recorded as failed, got %d", n)
	}
}

func TestDuplicateRedemptionWithinHour(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "acct-1", 200)
	r := f.reward(t, 50, 5, 0)
	caller := user("acct-1")

	if _, err := f.o.RedeemCoins(ctx, caller, RedeemRequest{AccountID: "acct-1", RewardID: r.ID}); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	f.clock.Advance(30 * time.Minute)
	_, err := f.o.RedeemCoins(ctx, caller, RedeemRequest{AccountID: "acct-1", RewardID: r.ID})
	if !errors.Is(err, apperr.ErrDuplicateRedemption) {
		t.Fatalf("expected duplicate redemption, got %v", err)
	}
	if got := f.balance(t, "acct-1"); got != 150 {
		t.Fatalf("expected a single debit, balance 150, got %d", got)
	}
	if _, total, _ := f.o.GetAuditTrail(ctx, admin, audit.Filter{ActionType: audit.ActionRedeemRejected}, 1, 10); total != 1 {
		t.Fatalf("expected the duplicate to be audited, got %d", total)
	}

	f.clock.Advance(31 * time.Minute)
	if _, errLater := f.o.RedeemCoins(ctx, caller, RedeemRequest{AccountID: "acct-1", RewardID: r.ID}); errLater != nil {
		t.Fatalf("redeem after an hour: %v", errLater)
	}
}

func TestFraudulentRedemptionIsBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "acct-1", 1000)
	caller := user("acct-1")
	first := f.reward(t, 400, 5, 0)
	second := f.reward(t, 401, 5, 0)
	third := f.reward(t, 100, 5, 0)

	for _, r := range []*models.Reward{first, second} {
		if _, err := f.o.RedeemCoins(ctx, caller, RedeemRequest{AccountID: "acct-1", RewardID: r.ID}); err != nil {
			t.Fatalf("redeem %s: %v", r.ID, err)
		}
	}
	_, err := f.o.RedeemCoins(ctx, caller, RedeemRequest{AccountID: "acct-1", RewardID: third.ID})
	if !errors.Is(err, apperr.ErrFraudBlocked) {
		t.Fatalf("expected fraud block, got %v", err)
	}
	if apperr.KindOf(err) != apperr.KindPermissionDenied {
		t.Fatalf("expected permission denied kind, got %s", apperr.KindOf(err))
	}
	if got := f.balance(t, "acct-1"); got != 199 {
		t.Fatalf("expected balance 199, got %d", got)
	}
	if _, total, _ := f.o.GetAuditTrail(ctx, admin, audit.Filter{ActionType: audit.ActionRedeemRejected}, 1, 10); total != 1 {
		t.Fatalf("expected the blocked attempt to be audited, got %d", total)
	}
}

func TestRedeemFailuresHaveNoEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "acct-1", 20)
	r := f.reward(t, 50, 3, 0)

	_, err := f.o.RedeemCoins(ctx, user("acct-1"), RedeemRequest{AccountID: "acct-1", RewardID: r.ID})
	if !errors.Is(err, apperr.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if _, errMissing := f.o.RedeemCoins(ctx, user("acct-1"), RedeemRequest{AccountID: "acct-1", RewardID: "missing"}); !errors.Is(errMissing, apperr.ErrRewardNotFound) {
		t.Fatalf("expected reward not found, got %v", errMissing)
	}
	if got := f.balance(t, "acct-1"); got != 20 {
		t.Fatalf("expected balance untouched, got %d", got)
	}
	reward, _ := f.o.stock.GetReward(ctx, r.ID)
	if reward.Stock != 3 {
		t.Fatalf("expected stock untouched, got %d", reward.Stock)
	}
	if n := f.count(t, &models.Redemption{}, "status = ?", models.RedemptionStatusFailed); n != 1 {
		t.Fatalf("expected one failed redemption record, got %d", n)
	}
}

func TestReverseRestoresBalanceOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "acct-1", 100)
	r := f.reward(t, 40, 2, 0)

	redeemed, err := f.o.RedeemCoins(ctx, user("acct-1"), RedeemRequest{AccountID: "acct-1", RewardID: r.ID})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if got := f.balance(t, "acct-1"); got != 60 {
		t.Fatalf("expected balance 60 after redeem, got %d", got)
	}

	res, err := f.o.ReverseTransaction(ctx, admin, ReverseRequest{TransactionID: redeemed.TransactionID, Reason: "support refund"})
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if res.NewBalance != 100 || res.OriginalTransactionID != redeemed.TransactionID || res.ReversalTransactionID == "" {
		t.Fatalf("unexpected reverse result %+v", res)
	}

	if _, errAgain := f.o.ReverseTransaction(ctx, admin, ReverseRequest{TransactionID: redeemed.TransactionID}); !errors.Is(errAgain, apperr.ErrAlreadyReversed) {
		t.Fatalf("expected already reversed, got %v", errAgain)
	}
	if _, errMissing := f.o.ReverseTransaction(ctx, admin, ReverseRequest{TransactionID: "missing"}); !errors.Is(errMissing, apperr.ErrTransactionNotFound) {
		t.Fatalf("expected transaction not found, got %v", errMissing)
	}
	if got := f.balance(t, "acct-1"); got != 100 {
		t.Fatalf("expected balance restored exactly once, got %d", got)
	}
	f.assertConsistent(t, "acct-1")
}

func TestReversedRedemptionIsReleased(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "acct-1", 100)
	r := f.reward(t, 40, 0, 2)

	first, err := f.o.RedeemCoins(ctx, user("acct-1"), RedeemRequest{AccountID: "acct-1", RewardID: r.ID})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	reversed, err := f.o.ReverseTransaction(ctx, admin, ReverseRequest{TransactionID: first.TransactionID, Reason: "refund"})
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if reversed.RedemptionID != first.RedemptionID || reversed.NewBalance != 100 {
		t.Fatalf("unexpected reversal %+v", reversed)
	}
	if n := f.count(t, &models.Redemption{}, "id = ? AND status = ?", first.RedemptionID, models.RedemptionStatusReversed); n != 1 {
		t.Fatalf("expected the redemption to be marked reversed, got %d", n)
	}
	if n := f.count(t, &models.Voucher{}, "code = ? AND redeemed = ?", first.VoucherCode, true); n != 1 {
		t.Fatalf("expected the handed out voucher to stay redeemed, got %d", n)
	}

	f.clock.Advance(10 * time.Minute)
	second, err := f.o.RedeemCoins(ctx, user("acct-1"), RedeemRequest{AccountID: "acct-1", RewardID: r.ID})
	if err != nil {
		t.Fatalf("redeem after reversal: %v", err)
	}
	if second.VoucherCode == first.VoucherCode || second.NewBalance != 60 {
		t.Fatalf("unexpected second redemption %+v", second)
	}
	f.assertConsistent(t, "acct-1")
}

func TestReverseRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	earned, err := f.o.EarnCoins(ctx, user("acct-1"), EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: 10})
	if err != nil {
		t.Fatalf("earn: %v", err)
	}

	_, errReverse := f.o.ReverseTransaction(ctx, user("acct-1"), ReverseRequest{TransactionID: earned.TransactionID})
	if !errors.Is(errReverse, apperr.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", errReverse)
	}
	if got := f.balance(t, "acct-1"); got != 10 {
		t.Fatalf("expected balance untouched, got %d", got)
	}
	if _, total, _ := f.o.GetAuditTrail(ctx, admin, audit.Filter{ActionType: audit.ActionReverseRejected}, 1, 10); total != 1 {
		t.Fatalf("expected the unauthorized reversal to be audited, got %d", total)
	}
}

func TestAuditChainVerifiesAfterOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "acct-1", 100)
	r := f.reward(t, 30, 0, 1)

	if _, err := f.o.EarnCoins(ctx, user("acct-1"), EarnRequest{AccountID: "acct-1", SourceID: "game", Amount: 10}); err != nil {
		t.Fatalf("earn: %v", err)
	}
	redeemed, err := f.o.RedeemCoins(ctx, user("acct-1"), RedeemRequest{AccountID: "acct-1", RewardID: r.ID})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, err := f.o.ReverseTransaction(ctx, admin, ReverseRequest{TransactionID: redeemed.TransactionID}); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	report, err := f.o.VerifyAuditIntegrity(ctx)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !report.Valid || report.Entries < 5 {
		t.Fatalf("expected a valid chain of at least 5 entries, got %+v", report)
	}

	var redeemEntry models.AuditEntry
	if errFind := f.conn.Where("action_type = ?", audit.ActionRedeem).First(&redeemEntry).Error; errFind != nil {
		t.Fatalf("find redeem entry: %v", errFind)
	}
	if len(redeemEntry.AfterSnapshot) == 0 {
		t.Fatalf("expected an after snapshot")
	}
	if errTamper := f.conn.Model(&models.AuditEntry{}).Where("id = ?", redeemEntry.ID).
		Update("actor_id", "someone-else").Error; errTamper != nil {
		t.Fatalf("tamper: %v", errTamper)
	}

	report, err = f.o.VerifyAuditIntegrity(ctx)
	if err != nil {
		t.Fatalf("verify tampered: %v", err)
	}
	if report.Valid {
		t.Fatalf("expected tampered chain to be invalid")
	}
	flagged := false
	for _, p := range report.Errors {
		if p.EntryID == redeemEntry.ID && p.Kind == audit.ProblemHashMismatch {
			flagged = true
		}
	}
	if !flagged {
		t.Fatalf("expected entry %s flagged, got %+v", redeemEntry.ID, report.Errors)
	}
}

func TestRedeemAuditMasksVoucherCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "acct-1", 100)
	r := f.reward(t, 30, 0, 1)

	res, err := f.o.RedeemCoins(ctx, user("acct-1"), RedeemRequest{AccountID: "acct-1", RewardID: r.ID})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	var entry models.AuditEntry
	if errFind := f.conn.Where("action_type = ?", audit.ActionRedeem).First(&entry).Error; errFind != nil {
		t.Fatalf("find redeem entry: %v", errFind)
	}
	if res.VoucherCode == "" || strings.Contains(string(entry.AfterSnapshot), res.VoucherCode) {
		t.Fatalf("voucher code leaked into audit snapshot")
	}
}

func TestAuditTrailScopedToCaller(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"acct-1", "acct-2"} {
		if _, err := f.o.EarnCoins(ctx, user(id), EarnRequest{AccountID: id, SourceID: "game", Amount: 5}); err != nil {
			t.Fatalf("earn %s: %v", id, err)
		}
	}

	entries, total, err := f.o.GetAuditTrail(ctx, user("acct-1"), audit.Filter{}, 1, 50)
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if total != 1 || entries[0].ActorID != "acct-1" {
		t.Fatalf("expected only acct-1 entries, got %d %+v", total, entries)
	}
	if _, _, errAnon := f.o.GetAuditTrail(ctx, Caller{}, audit.Filter{}, 1, 50); !errors.Is(errAnon, apperr.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", errAnon)
	}
}

func TestAdminOperationsRequireAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	caller := user("acct-1")

	if _, err := f.o.CreateReward(ctx, caller, stock.RewardInput{Name: "x", CoinCost: 1}); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("create reward: expected permission denied, got %v", err)
	}
	r := f.reward(t, 10, 1, 0)
	if _, err := f.o.AddVouchers(ctx, caller, r.ID, nil, 1); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("add vouchers: expected permission denied, got %v", err)
	}
	if _, err := f.o.SetRewardActive(ctx, caller, r.ID, false); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("set active: expected permission denied, got %v", err)
	}
	if err := f.o.UpdateSetting(ctx, caller, settings.DailyEarnLimitKey, 10); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("update setting: expected permission denied, got %v", err)
	}
	if _, err := f.o.GetWallet(ctx, user("acct-2"), "acct-1"); !errors.Is(err, apperr.ErrPermissionDenied) {
		t.Fatalf("get wallet: expected permission denied, got %v", err)
	}
}

func TestSetRewardActiveHidesReward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "acct-1", 100)
	r := f.reward(t, 10, 1, 0)

	if _, err := f.o.SetRewardActive(ctx, admin, r.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	rewards, err := f.o.ListRewards(ctx, user("acct-1"))
	if err != nil || len(rewards) != 0 {
		t.Fatalf("expected no active rewards, got %+v err=%v", rewards, err)
	}
	if all, _ := f.o.ListRewards(ctx, admin); len(all) != 1 {
		t.Fatalf("expected admin to see the inactive reward, got %d", len(all))
	}
	if _, errRedeem := f.o.RedeemCoins(ctx, user("acct-1"), RedeemRequest{AccountID: "acct-1", RewardID: r.ID}); !errors.Is(errRedeem, apperr.ErrRewardInactive) {
		t.Fatalf("expected reward inactive, got %v", errRedeem)
	}
}

func TestUpdateSettingChangesEarnCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.o.UpdateSetting(ctx, admin, "NOT_A_SETTING", 1); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown key, got %v", err)
	}
	if err := f.o.UpdateSetting(ctx, admin, settings.DailyEarnLimitKey, 1000); err != nil {
		t.Fatalf("update setting: %v", err)
	}
	if _, err := f.o.EarnCoins(ctx, user("acct-1"), EarnRequest{AccountID: "acct-1", SourceID: "promo", Amount: 800}); err != nil {
		t.Fatalf("earn under raised cap: %v", err)
	}
	if _, total, _ := f.o.GetAuditTrail(ctx, admin, audit.Filter{ActionType: audit.ActionSettingsUpdate}, 1, 10); total != 1 {
		t.Fatalf("expected the setting change to be audited, got %d", total)
	}
}
