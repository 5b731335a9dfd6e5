// Package ledger composes wallets, caps, fraud scoring, stock allocation and the
// audit chain into the public earn, redeem and reverse operations.
//
// Every mutation validates input, authorizes the caller, checks caps inside the
// wallet-locked transaction, and commits before the audit chain and activity feed
// are written. Rejected attempts are audited without any balance effect.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/router-for-me/CoinLedger/internal/activity"
	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/audit"
	"github.com/router-for-me/CoinLedger/internal/caps"
	"github.com/router-for-me/CoinLedger/internal/clock"
	"github.com/router-for-me/CoinLedger/internal/config"
	"github.com/router-for-me/CoinLedger/internal/fraud"
	"github.com/router-for-me/CoinLedger/internal/stock"
	"github.com/router-for-me/CoinLedger/internal/wallet"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SystemActor is the actor recorded for maintenance actions.
const SystemActor = "system"

// Caller is a verified identity.
type Caller struct {
	AccountID string
	IsAdmin   bool
	Source    string // Calling surface, recorded in the audit chain.
}

// Options configure an Orchestrator.
type Options struct {
	Limits         caps.Limits
	Fraud          fraud.Thresholds
	IdempotencyTTL time.Duration
}

// OptionsFromConfig builds Options from the application config.
func OptionsFromConfig(cfg config.AppConfig) Options {
	return Options{
		Limits:         caps.LimitsFromConfig(cfg.Limits),
		Fraud:          fraud.ThresholdsFromConfig(cfg.Fraud),
		IdempotencyTTL: cfg.Idempotency.TTL,
	}
}

// Orchestrator exposes the ledger operations.
type Orchestrator struct {
	db      *gorm.DB
	clock   clock.Clock
	wallets *wallet.Store
	caps    *caps.Aggregator
	fraud   *fraud.Scorer
	stock   *stock.Allocator
	audit   *audit.Log
	feed    *activity.Feed
	idemTTL time.Duration
}

// New wires an Orchestrator over db.
func New(db *gorm.DB, c clock.Clock, opts Options) *Orchestrator {
	if c == nil {
		c = clock.System{}
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	wallets := wallet.NewStore(db, c)
	return &Orchestrator{
		db:      db,
		clock:   c,
		wallets: wallets,
		caps:    caps.NewAggregator(c, opts.Limits),
		fraud:   fraud.NewScorer(c, opts.Fraud),
		stock:   stock.NewAllocator(db, c, wallets),
		audit:   audit.NewLog(db, c),
		feed:    activity.NewFeed(db, c),
		idemTTL: opts.IdempotencyTTL,
	}
}

// authenticated fails when caller carries no identity.
func authenticated(caller Caller) error {
	if strings.TrimSpace(caller.AccountID) == "" {
		return apperr.ErrUnauthenticated
	}
	return nil
}

// authorizeAccount allows the account owner and admins.
func authorizeAccount(caller Caller, accountID string) error {
	if errAuth := authenticated(caller); errAuth != nil {
		return errAuth
	}
	if caller.IsAdmin || caller.AccountID == accountID {
		return nil
	}
	return apperr.ErrPermissionDenied
}

// authorizeAdmin allows admins only.
func authorizeAdmin(caller Caller) error {
	if errAuth := authenticated(caller); errAuth != nil {
		return errAuth
	}
	if !caller.IsAdmin {
		return apperr.ErrPermissionDenied.WithMessage("admin privileges required")
	}
	return nil
}

// record appends to the audit chain after a commit. Failures are logged, never returned.
func (o *Orchestrator) record(ctx context.Context, in audit.Input) {
	entry, err := o.audit.Append(context.WithoutCancel(ctx), in)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"action":    in.ActionType,
			"actor_id":  in.ActorID,
			"entity_id": in.EntityID,
		}).Error("ledger: audit append failed")
		return
	}
	log.WithFields(log.Fields{
		"action":   entry.ActionType,
		"sequence": entry.Sequence,
	}).Debug("ledger: audit appended")
}

// rejection is the after snapshot of a rejected attempt.
type rejection struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Request any    `json:"request"`
	Detail  any    `json:"detail,omitempty"`
}

// recordRejection audits a rejected attempt and logs it.
func (o *Orchestrator) recordRejection(ctx context.Context, caller Caller, action, entityID string, request, detail any, cause error) {
	e := apperr.From(cause)
	o.record(ctx, audit.Input{
		ActorID:    caller.AccountID,
		ActionType: action,
		EntityID:   entityID,
		After:      rejection{Code: e.Code, Message: e.Message, Request: request, Detail: detail},
		Source:     caller.Source,
	})
	log.WithFields(log.Fields{
		"action":    action,
		"actor_id":  caller.AccountID,
		"entity_id": entityID,
		"code":      e.Code,
	}).Info("ledger: attempt rejected")
}

// feedAppend writes the activity feed after a commit. Failures are logged, never returned.
func (o *Orchestrator) feedAppend(ctx context.Context, accountID, action, entityID string, detail any) {
	if _, err := o.feed.Append(context.WithoutCancel(ctx), accountID, action, entityID, detail); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"account_id": accountID,
			"action":     action,
		}).Warn("ledger: activity append failed")
	}
}

// isInternal reports whether err is an unclassified or internal failure.
func isInternal(err error) bool {
	return apperr.KindOf(err) == apperr.KindInternal
}
