package riskengine

// Store set names. Stable identifiers; changing them is a data migration.
const (
	SetTransactions       = "transactions"
	SetClientProfiles     = "client_profiles"
	SetAnomalyRules       = "anomaly_rules"
	SetRiskResults        = "risk_results"
	SetClientHourlyCntrs  = "client_hourly_counters"
	SetBeneHourlyCntrs    = "bene_hourly_counters"
	SetClientDailyCntrs   = "client_daily_counters"
	SetDailyNewBeneCntrs  = "daily_new_bene_cntrs"
	SetIFModels           = "if_models"
	SetReviewQueue        = "review_queue"
	SetRuleWeightHistory  = "rule_weight_history"
)

// Counter field names within an addAndGet record.
const (
	FieldCount       = "count"
	FieldTotalAmount = "totalAmount"
)
