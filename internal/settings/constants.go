package settings

// DB config keys for runtime-tunable ledger thresholds.
const (
	// DailyEarnLimitKey caps coins credited per account in a rolling day.
	DailyEarnLimitKey = "DAILY_EARN_LIMIT"
	// MonthlyRedeemLimitKey caps coins redeemed per account in a rolling month.
	MonthlyRedeemLimitKey = "MONTHLY_REDEEM_LIMIT"
	// FraudDailyRedeemLimitKey is the daily redeemed total that adds the daily risk weight.
	FraudDailyRedeemLimitKey = "FRAUD_DAILY_REDEEM_LIMIT"
	// FraudWeeklyRedeemLimitKey is the weekly redeemed total that adds the weekly risk weight.
	FraudWeeklyRedeemLimitKey = "FRAUD_WEEKLY_REDEEM_LIMIT"
	// FraudMonthlyRedeemLimitKey is the monthly redeemed total that adds the monthly risk weight.
	FraudMonthlyRedeemLimitKey = "FRAUD_MONTHLY_REDEEM_LIMIT"
	// FraudDailyWeightKey is the score added when the daily limit is reached.
	FraudDailyWeightKey = "FRAUD_DAILY_WEIGHT"
	// FraudWeeklyWeightKey is the score added when the weekly limit is reached.
	FraudWeeklyWeightKey = "FRAUD_WEEKLY_WEIGHT"
	// FraudMonthlyWeightKey is the score added when the monthly limit is reached.
	FraudMonthlyWeightKey = "FRAUD_MONTHLY_WEIGHT"
	// FraudRapidWeightKey is the score added for a redemption shortly after the previous one.
	FraudRapidWeightKey = "FRAUD_RAPID_WEIGHT"
	// FraudRapidWindowSecondsKey is the rapid repeat window in seconds.
	FraudRapidWindowSecondsKey = "FRAUD_RAPID_WINDOW_SECONDS"
	// FraudDuplicateWindowSecondsKey is the same-reward duplicate window in seconds.
	FraudDuplicateWindowSecondsKey = "FRAUD_DUPLICATE_WINDOW_SECONDS"
	// FraudReviewScoreKey is the score at which redemptions are flagged for review.
	FraudReviewScoreKey = "FRAUD_REVIEW_SCORE"
	// FraudFraudulentScoreKey is the score at which redemptions are rejected.
	FraudFraudulentScoreKey = "FRAUD_FRAUDULENT_SCORE"
	// FraudBlockScoreKey is the score at which the action becomes block.
	FraudBlockScoreKey = "FRAUD_BLOCK_SCORE"
)
