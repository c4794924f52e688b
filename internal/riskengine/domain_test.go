package riskengine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsUpdateConvergesToConstant(t *testing.T) {
	var s Stats
	for i := 0; i < 500; i++ {
		s.Update(42.0, 0.3)
	}
	assert.InDelta(t, 42.0, s.EWMA, 1e-9)
}

func TestStatsVarianceMatchesWelfordOnUniformAlpha(t *testing.T) {
	// With alpha = 1/n (the textbook running-mean case) the EWMA recurrence
	// collapses to the arithmetic mean, so standard Welford variance applies.
	samples := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	var s Stats
	for i, x := range samples {
		alpha := 1.0 / float64(i+1)
		s.Update(x, alpha)
	}

	var sum float64
	for _, x := range samples {
		sum += x
	}
	mean := sum / float64(len(samples))
	assert.InDelta(t, mean, s.EWMA, 1e-9)

	var sqDiff float64
	for _, x := range samples {
		sqDiff += (x - mean) * (x - mean)
	}
	wantVariance := sqDiff / float64(len(samples)-1)
	assert.InDelta(t, wantVariance, s.Variance(), 1e-9)
	assert.InDelta(t, math.Sqrt(wantVariance), s.StdDev(), 1e-9)
}

func TestStatsStdDevZeroBelowTwoSamples(t *testing.T) {
	var s Stats
	assert.Equal(t, 0.0, s.StdDev())
	s.Update(10, 1)
	assert.Equal(t, 0.0, s.StdDev())
}

func TestHourBucketAndDayBucketFormatting(t *testing.T) {
	ts := time.Date(2026, 7, 30, 14, 5, 0, 0, time.FixedZone("IST", 5*3600+1800))
	assert.Equal(t, "2026073008", HourBucket(ts)) // 14:05 IST == 08:35 UTC
	assert.Equal(t, "20260730", DayBucket(ts))
}

func TestBeneficiaryKeyCanonicalization(t *testing.T) {
	cases := []struct {
		name string
		txn  Transaction
		want string
	}{
		{"ifsc and account", Transaction{BeneficiaryIFSC: "HDFC0001", BeneficiaryAccount: "1234"}, "HDFC0001:1234"},
		{"missing ifsc", Transaction{BeneficiaryAccount: "1234"}, "UNKNOWN:1234"},
		{"missing account", Transaction{BeneficiaryIFSC: "HDFC0001"}, ""},
		{"missing both", Transaction{}, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.txn.BeneficiaryKey())
		})
	}
}

func TestAmountRupeesConversion(t *testing.T) {
	txn := Transaction{AmountPaise: 150099}
	assert.InDelta(t, 1500.99, txn.AmountRupees(), 1e-9)
}

func TestTypeFrequency(t *testing.T) {
	p := NewClientProfile("c1")
	assert.Equal(t, 0.0, p.TypeFrequency("UPI"))

	p.TotalTxnCount = 10
	p.TxnTypeCounts["UPI"] = 3
	assert.InDelta(t, 0.3, p.TypeFrequency("UPI"), 1e-9)
	assert.Equal(t, 0.0, p.TypeFrequency("NEFT"))
}

func TestAnomalyRuleParamHelpers(t *testing.T) {
	r := AnomalyRule{Params: map[string]string{"threshold": "12.5", "count": "7", "bad": "nope"}}
	assert.InDelta(t, 12.5, r.ParamFloat("threshold", 0), 1e-9)
	assert.Equal(t, 7, r.ParamInt("count", 0))
	assert.InDelta(t, 99.0, r.ParamFloat("missing", 99.0), 1e-9)
	assert.Equal(t, 99, r.ParamInt("missing", 99))
	assert.InDelta(t, 1.0, r.ParamFloat("bad", 1.0), 1e-9)
	assert.Equal(t, 1, r.ParamInt("bad", 1))
}
