// Package fraud scores redemption attempts with rule-based heuristics over recent ledger activity.
package fraud

import (
	"time"

	"github.com/router-for-me/CoinLedger/internal/apperr"
	"github.com/router-for-me/CoinLedger/internal/caps"
	"github.com/router-for-me/CoinLedger/internal/clock"
	"github.com/router-for-me/CoinLedger/internal/config"
	"github.com/router-for-me/CoinLedger/internal/settings"
	"gorm.io/gorm"
)

// Action is the policy outcome for a scored attempt.
type Action string

// Policy actions.
const (
	ActionAllow  Action = "allow"
	ActionReview Action = "review"
	ActionBlock  Action = "block"
)

// Risk reasons.
const (
	ReasonDailyLimit   = "daily_redeem_limit"
	ReasonWeeklyLimit  = "weekly_redeem_limit"
	ReasonMonthlyLimit = "monthly_redeem_limit"
	ReasonRapidRepeat  = "rapid_redemption"
)

// Thresholds are the tunable scoring parameters.
type Thresholds struct {
	DuplicateWindow    time.Duration
	RapidWindow        time.Duration
	DailyRedeemLimit   int64
	WeeklyRedeemLimit  int64
	MonthlyRedeemLimit int64
	DailyWeight        int
	WeeklyWeight       int
	MonthlyWeight      int
	RapidWeight        int
	ReviewScore        int
	FraudulentScore    int
	BlockScore         int
}

// ThresholdsFromConfig converts the YAML defaults.
func ThresholdsFromConfig(cfg config.FraudConfig) Thresholds {
	return Thresholds{
		DuplicateWindow:    cfg.DuplicateWindow,
		RapidWindow:        cfg.RapidWindow,
		DailyRedeemLimit:   cfg.DailyRedeemLimit,
		WeeklyRedeemLimit:  cfg.WeeklyRedeemLimit,
		MonthlyRedeemLimit: cfg.MonthlyRedeemLimit,
		DailyWeight:        cfg.DailyWeight,
		WeeklyWeight:       cfg.WeeklyWeight,
		MonthlyWeight:      cfg.MonthlyWeight,
		RapidWeight:        cfg.RapidWeight,
		ReviewScore:        cfg.ReviewScore,
		FraudulentScore:    cfg.FraudulentScore,
		BlockScore:         cfg.BlockScore,
	}
}

// Resolve overlays DB settings on t.
func (t Thresholds) Resolve() Thresholds {
	return Thresholds{
		DuplicateWindow:    settings.Seconds(settings.FraudDuplicateWindowSecondsKey, t.DuplicateWindow),
		RapidWindow:        settings.Seconds(settings.FraudRapidWindowSecondsKey, t.RapidWindow),
		DailyRedeemLimit:   settings.Int64(settings.FraudDailyRedeemLimitKey, t.DailyRedeemLimit),
		WeeklyRedeemLimit:  settings.Int64(settings.FraudWeeklyRedeemLimitKey, t.WeeklyRedeemLimit),
		MonthlyRedeemLimit: settings.Int64(settings.FraudMonthlyRedeemLimitKey, t.MonthlyRedeemLimit),
		DailyWeight:        settings.Int(settings.FraudDailyWeightKey, t.DailyWeight),
		WeeklyWeight:       settings.Int(settings.FraudWeeklyWeightKey, t.WeeklyWeight),
		MonthlyWeight:      settings.Int(settings.FraudMonthlyWeightKey, t.MonthlyWeight),
		RapidWeight:        settings.Int(settings.FraudRapidWeightKey, t.RapidWeight),
		ReviewScore:        settings.Int(settings.FraudReviewScoreKey, t.ReviewScore),
		FraudulentScore:    settings.Int(settings.FraudFraudulentScoreKey, t.FraudulentScore),
		BlockScore:         settings.Int(settings.FraudBlockScoreKey, t.BlockScore),
	}
}

// Assessment is the scored result of one redemption attempt.
type Assessment struct {
	Score      int      `json:"score"`
	Reasons    []string `json:"reasons"`
	Action     Action   `json:"action"`
	Fraudulent bool     `json:"fraudulent"`
}

// Score applies th to an activity aggregate. It performs no I/O.
func Score(act *caps.Activity, th Thresholds) Assessment {
	out := Assessment{Reasons: []string{}}
	if act == nil {
		out.Action = ActionAllow
		return out
	}

	if th.DailyRedeemLimit > 0 && act.DailyRedeemed > th.DailyRedeemLimit {
		out.Score += th.DailyWeight
		out.Reasons = append(out.Reasons, ReasonDailyLimit)
	}
	if th.WeeklyRedeemLimit > 0 && act.WeeklyRedeemed > th.WeeklyRedeemLimit {
		out.Score += th.WeeklyWeight
		out.Reasons = append(out.Reasons, ReasonWeeklyLimit)
	}
	if th.MonthlyRedeemLimit > 0 && act.MonthlyRedeemed > th.MonthlyRedeemLimit {
		out.Score += th.MonthlyWeight
		out.Reasons = append(out.Reasons, ReasonMonthlyLimit)
	}
	if act.LastRedemptionAt != nil && act.AsOf.Sub(*act.LastRedemptionAt) < th.RapidWindow {
		out.Score += th.RapidWeight
		out.Reasons = append(out.Reasons, ReasonRapidRepeat)
	}

	switch {
	case out.Score >= th.BlockScore:
		out.Action = ActionBlock
	case out.Score >= th.ReviewScore:
		out.Action = ActionReview
	default:
		out.Action = ActionAllow
	}
	out.Fraudulent = out.Score >= th.FraudulentScore
	return out
}

// Scorer evaluates redemption attempts against the ledger.
type Scorer struct {
	clock    clock.Clock
	defaults Thresholds
}

// NewScorer builds a Scorer. defaults apply when no DB setting overrides them.
func NewScorer(c clock.Clock, defaults Thresholds) *Scorer {
	if c == nil {
		c = clock.System{}
	}
	return &Scorer{clock: c, defaults: defaults}
}

// Thresholds returns the currently effective thresholds.
func (s *Scorer) Thresholds() Thresholds {
	return s.defaults.Resolve()
}

// CheckDuplicate fails with ErrDuplicateRedemption when accountID redeemed rewardID within the duplicate window.
func (s *Scorer) CheckDuplicate(db *gorm.DB, accountID, rewardID string) error {
	window := s.Thresholds().DuplicateWindow
	if window <= 0 {
		return nil
	}
	last, err := caps.LastRedemption(db, accountID, rewardID, s.clock.Now().Add(-window))
	if err != nil {
		return apperr.Internal(err)
	}
	if last != nil {
		return apperr.ErrDuplicateRedemption.WithMessage("reward %s already redeemed at %s", rewardID, last.Format(time.RFC3339))
	}
	return nil
}

// ScoreRedemption runs the duplicate guard and then scores the attempt.
func (s *Scorer) ScoreRedemption(db *gorm.DB, accountID, rewardID string) (*Assessment, error) {
	if errDup := s.CheckDuplicate(db, accountID, rewardID); errDup != nil {
		return nil, errDup
	}
	act, err := caps.Recent(db, accountID, s.clock.Now())
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := Score(act, s.Thresholds())
	return &out, nil
}
