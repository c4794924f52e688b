package detectors

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/evalcontext"
)

type fakeGraph struct {
	ready        bool
	otherSenders int
	totalBene    int
	sharedBene   int
	density      float64
}

func (g fakeGraph) IsGraphReady() bool                                 { return g.ready }
func (g fakeGraph) OtherSendersCount(beneKey, exceptClient string) int { return g.otherSenders }
func (g fakeGraph) TotalBeneficiaryCount(clientID string) int          { return g.totalBene }
func (g fakeGraph) SharedBeneficiaryCount(clientID string) int         { return g.sharedBene }
func (g fakeGraph) NetworkDensity(clientID string) float64            { return g.density }

func muleTxn() riskengine.Transaction {
	return riskengine.Transaction{ClientID: "c1", BeneficiaryIFSC: "HDFC0001", BeneficiaryAccount: "999"}
}

func TestMuleNetworkNoBeneficiaryNeverTriggers(t *testing.T) {
	result := MuleNetwork(riskengine.Transaction{}, riskengine.NewClientProfile("c1"), riskengine.AnomalyRule{RiskWeight: 1}, evalcontext.Context{Graph: fakeGraph{ready: true, otherSenders: 10, totalBene: 10, sharedBene: 10, density: 1}})
	assert.False(t, result.Triggered)
}

func TestMuleNetworkGraphNotReadyNeverTriggers(t *testing.T) {
	result := MuleNetwork(muleTxn(), riskengine.NewClientProfile("c1"), riskengine.AnomalyRule{RiskWeight: 1}, evalcontext.Context{Graph: fakeGraph{ready: false}})
	assert.False(t, result.Triggered)
}

func TestMuleNetworkRequiresTwoOfThreeSignals(t *testing.T) {
	rule := riskengine.AnomalyRule{RuleID: "mule", RiskWeight: 1, VariancePct: 10}

	// Only fan-in active (otherSenders >= minFanIn=3), shared and density both below threshold.
	onlyOne := MuleNetwork(muleTxn(), riskengine.NewClientProfile("c1"), rule, evalcontext.Context{
		Graph: fakeGraph{ready: true, otherSenders: 5, totalBene: 10, sharedBene: 1, density: 0.01},
	})
	assert.False(t, onlyOne.Triggered, "only one of three signals active must not trigger")

	// Fan-in and shared both active (2 of 3).
	twoActive := MuleNetwork(muleTxn(), riskengine.NewClientProfile("c1"), rule, evalcontext.Context{
		Graph: fakeGraph{ready: true, otherSenders: 5, totalBene: 10, sharedBene: 6, density: 0.01},
	})
	assert.True(t, twoActive.Triggered, "two of three signals active should trigger")
}

func TestMuleNetworkAllThreeSignalsScoresHighest(t *testing.T) {
	rule := riskengine.AnomalyRule{RuleID: "mule", RiskWeight: 1, VariancePct: 10}

	two := MuleNetwork(muleTxn(), riskengine.NewClientProfile("c1"), rule, evalcontext.Context{
		Graph: fakeGraph{ready: true, otherSenders: 5, totalBene: 10, sharedBene: 6, density: 0.01},
	})
	three := MuleNetwork(muleTxn(), riskengine.NewClientProfile("c1"), rule, evalcontext.Context{
		Graph: fakeGraph{ready: true, otherSenders: 20, totalBene: 10, sharedBene: 9, density: 0.9},
	})
	assert.True(t, two.Triggered)
	assert.True(t, three.Triggered)
	assert.Greater(t, three.PartialScore, two.PartialScore)
}
