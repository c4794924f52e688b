// ==============================================================================
// RULE SEED - cmd/seed/main.go
// ==============================================================================
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/rules"
	"sentinel/internal/riskengine/store"
	"sentinel/pkg/config"
)

// main bootstraps the baseline anomaly_rules collection: one AnomalyRule
// per detector kind, enabled, at the spec-default weight and variance.
// Safe to re-run; Save upserts by rule_id.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to reach redis: %v", err)
	}

	repo := rules.NewRepository(store.New(client))

	for _, rule := range defaultRules() {
		if err := repo.Save(ctx, rule); err != nil {
			log.Printf("failed to seed rule %s: %v", rule.RuleID, err)
			continue
		}
		log.Printf("seeded rule %s (%s)", rule.RuleID, rule.RuleType)
	}

	log.Println("rule seeding complete")
}

func rule(id, name string, ruleType riskengine.RuleType, variancePct, weight float64, params map[string]string) riskengine.AnomalyRule {
	return riskengine.AnomalyRule{
		RuleID:      id,
		Name:        name,
		RuleType:    ruleType,
		VariancePct: variancePct,
		RiskWeight:  weight,
		Enabled:     true,
		Params:      params,
	}
}

// defaultRules returns one rule per detector kind, tuned to the defaults
// each detector falls back to when a param is absent. Without seeded
// rules the registry is empty and no detector runs.
func defaultRules() []riskengine.AnomalyRule {
	return []riskengine.AnomalyRule{
		rule("rule-txn-type-anomaly", "Unusual transaction type", riskengine.RuleTxnTypeAnomaly, 5, 1.0,
			map[string]string{"minTypeFrequencyPct": "5"}),
		rule("rule-tps-spike", "Transactions-per-second spike", riskengine.RuleTPSSpike, 50, 1.5, nil),
		rule("rule-amount-anomaly", "Amount deviates from baseline", riskengine.RuleAmountAnomaly, 50, 1.5, nil),
		rule("rule-hourly-amount-anomaly", "Hourly amount deviates from baseline", riskengine.RuleHourlyAmountAnomaly, 50, 1.2, nil),
		rule("rule-amount-per-type", "Amount deviates per transaction type", riskengine.RuleAmountPerType, 50, 1.2,
			map[string]string{"minTypeSamples": "5"}),
		rule("rule-bene-rapid-repeat", "Rapid repeat transfers to one beneficiary", riskengine.RuleBeneRapidRepeat, 30, 1.5,
			map[string]string{"minRepeatCount": "5"}),
		rule("rule-bene-concentration", "Beneficiary concentration", riskengine.RuleBeneConcentration, 20, 1.3,
			map[string]string{"minDistinct": "3", "absMinConcentrationPct": "20"}),
		rule("rule-bene-amount-repetition", "Beneficiary amount repetition", riskengine.RuleBeneAmountRepetition, 10, 1.2,
			map[string]string{"maxCvPct": "10"}),
		rule("rule-daily-cumulative-amount", "Daily cumulative amount anomaly", riskengine.RuleDailyCumulativeAmount, 50, 1.4,
			map[string]string{"minDays": "2"}),
		rule("rule-new-beneficiary-velocity", "New beneficiary velocity", riskengine.RuleNewBeneficiaryVelocity, 5, 1.6,
			map[string]string{"maxNewBenePerDay": "5", "minProfileDays": "3"}),
		rule("rule-dormancy-reactivation", "Dormancy reactivation", riskengine.RuleDormancyReactivation, 30, 1.4,
			map[string]string{"dormancyDays": "30"}),
		rule("rule-cross-channel-bene-amount", "Cross-channel beneficiary amount anomaly", riskengine.RuleCrossChannelBeneAmount, 50, 1.3,
			map[string]string{"minDays": "2"}),
		rule("rule-seasonal-deviation", "Seasonal baseline deviation", riskengine.RuleSeasonalDeviation, 40, 1.3,
			map[string]string{"minSeasonalSamples": "4"}),
		rule("rule-mule-network", "Mule network composite signal", riskengine.RuleMuleNetwork, 40, 2.0,
			map[string]string{
				"minFanIn":               "3",
				"sharedBenePctThreshold": "40",
				"densityThreshold":       "30",
				"fanInWeight":            "0.4",
				"sharedWeight":           "0.35",
				"densityWeight":          "0.25",
			}),
		rule("rule-isolation-forest", "Isolation forest outlier score", riskengine.RuleIsolationForest, 60, 1.8,
			map[string]string{"threshold": "60"}),
	}
}
