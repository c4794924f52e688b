// Package evalcontext builds the per-transaction evaluation context
// (component E): the live counter reads and graph/forest handles that
// detectors need beyond the pre-update ClientProfile snapshot.
package evalcontext

import (
	"context"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/iforest"
	"sentinel/internal/riskengine/profile"
)

// Context is the read-only bundle passed to every detector alongside the
// transaction, the pre-update profile, and the rule being evaluated.
type Context struct {
	CurrentHourCount     int64
	CurrentHourAmount    int64 // paise
	CurrentDayCount      int64
	CurrentDayAmount     int64 // paise
	CurrentDayNewBene    int64
	BeneHourCount        int64
	BeneHourAmount       int64 // paise
	BeneDailyAmount      int64 // paise, cross-channel

	Graph  GraphView
	Forest ForestView
}

// GraphView is the subset of the beneficiary graph (component H) detectors
// consume; satisfied by *graph.Graph without an import cycle.
type GraphView interface {
	IsGraphReady() bool
	OtherSendersCount(beneKey, exceptClient string) int
	TotalBeneficiaryCount(clientID string) int
	SharedBeneficiaryCount(clientID string) int
	NetworkDensity(clientID string) float64
}

// ForestView is a pre-loaded, pure-CPU scorer for one client's isolation
// forest; satisfied by *iforest.LoadedModel. Loading (I/O) happens once in
// Builder.Build, never inside a detector.
type ForestView interface {
	Score(features [8]float64) float64
}

// Builder assembles a Context for one transaction.
type Builder struct {
	counters *profile.Counters
	graph    GraphView
	forest   *iforest.Service
}

func NewBuilder(counters *profile.Counters, graph GraphView, forest *iforest.Service) *Builder {
	return &Builder{counters: counters, graph: graph, forest: forest}
}

// Build reads every live counter relevant to txn. Beneficiary counters are
// skipped (zero-valued) when txn carries no beneficiary key.
func (b *Builder) Build(ctx context.Context, txn riskengine.Transaction) (Context, error) {
	var c Context
	c.Graph = b.graph
	if b.forest != nil {
		if model, ok := b.forest.Load(ctx, txn.ClientID); ok {
			c.Forest = model
		}
	}

	hc, ha, err := b.counters.CurrentHourly(ctx, txn.ClientID, txn.Timestamp)
	if err != nil {
		return c, err
	}
	c.CurrentHourCount, c.CurrentHourAmount = hc, ha

	dc, da, err := b.counters.CurrentDaily(ctx, txn.ClientID, txn.Timestamp)
	if err != nil {
		return c, err
	}
	c.CurrentDayCount, c.CurrentDayAmount = dc, da

	nb, err := b.counters.CurrentDailyNewBeneCount(ctx, txn.ClientID, txn.Timestamp)
	if err != nil {
		return c, err
	}
	c.CurrentDayNewBene = nb

	beneKey := txn.BeneficiaryKey()
	if beneKey == "" {
		return c, nil
	}

	bhc, bha, err := b.counters.CurrentBeneficiary(ctx, txn.ClientID, beneKey, txn.Timestamp)
	if err != nil {
		return c, err
	}
	c.BeneHourCount, c.BeneHourAmount = bhc, bha

	bda, err := b.counters.CurrentDailyBeneficiaryAmount(ctx, txn.ClientID, beneKey, txn.Timestamp)
	if err != nil {
		return c, err
	}
	c.BeneDailyAmount = bda

	return c, nil
}
