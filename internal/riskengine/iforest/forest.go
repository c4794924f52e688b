// Package iforest implements the per-client Isolation Forest (component G):
// offline training from a history of feature vectors, per-transaction
// scoring, and a compact array-of-structs serialization stored alongside
// the other engine records.
package iforest

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/store"
)

// modelVersion tags the serialization format; bump when the encoding of
// modelData or node changes so stale records can be rejected cleanly.
const modelVersion = 1

type modelData struct {
	Version    int    `json:"version"`
	Trees      []tree `json:"trees"`
	SampleSize int    `json:"sampleSize"`
}

// Config bounds forest training.
type Config struct {
	TreeCount  int
	SampleSize int
}

// Service trains, scores, and persists per-client isolation forests.
type Service struct {
	s   store.Store
	cfg Config
}

func New(s store.Store, cfg Config) *Service {
	return &Service{s: s, cfg: cfg}
}

// Train builds a fresh forest for clientID from features (each a full
// 8-dimension feature vector observed historically for that client) and
// persists it. Requires at least 50 samples; fewer is a caller error, not
// a silent skip, because the model is the thing answering for the
// detector's correctness.
func (svc *Service) Train(ctx context.Context, clientID string, features [][FeatureCount]float64) error {
	if len(features) < 50 {
		return riskengine.ModelError("insufficient samples to train isolation forest")
	}

	sampleSize := svc.cfg.SampleSize
	if sampleSize <= 0 {
		sampleSize = 256
	}
	if sampleSize > len(features) {
		sampleSize = len(features)
	}
	limit := heightLimit(sampleSize)

	treeCount := svc.cfg.TreeCount
	if treeCount <= 0 {
		treeCount = 100
	}

	trees := make([]tree, treeCount)
	for i := 0; i < treeCount; i++ {
		rng := rand.New(rand.NewSource(seedFromClientID(clientID, i)))
		sample := subsample(len(features), sampleSize, rng)
		trees[i] = buildTree(features, sample, 0, limit, rng)
	}

	data := modelData{Version: modelVersion, Trees: trees, SampleSize: sampleSize}
	encoded, err := json.Marshal(data)
	if err != nil {
		return riskengine.ModelError("serialize isolation forest: " + err.Error())
	}

	model := riskengine.IsolationForestModel{
		ClientID:     clientID,
		TreeCount:    treeCount,
		SampleSize:   sampleSize,
		FeatureCount: FeatureCount,
		Trees:        encoded,
		TrainedAt:    time.Now().UTC(),
		SampleCount:  len(features),
	}
	return svc.s.Put(ctx, riskengine.SetIFModels, clientID, model)
}

func subsample(n, size int, rng *rand.Rand) []int {
	perm := rng.Perm(n)
	return perm[:size]
}

// LoadedModel is a deserialized, ready-to-score forest. Scoring against it
// is pure CPU so detectors never suspend on I/O mid-evaluation; the
// orchestrator loads it once per evaluation via Load and hands it through
// the evaluation context.
type LoadedModel struct {
	trees      []tree
	sampleSize int
}

// Score returns the anomaly score s(x) in (0,1) for feature vector x.
func (m *LoadedModel) Score(features [FeatureCount]float64) float64 {
	var sumPath float64
	for _, t := range m.trees {
		sumPath += t.pathLength(features)
	}
	avgPath := sumPath / float64(len(m.trees))
	c := cFactor(m.sampleSize)
	if c <= 0 {
		return 0
	}
	return math.Pow(2, -avgPath/c)
}

// Load fetches and deserializes clientID's model. Missing, malformed, or
// wrong-feature-count records are reported as "not found" (ok=false)
// rather than an error: the caller (the isolation-forest detector) treats
// an absent model as not-triggered, per the ModelError semantics in the
// engine's error taxonomy.
func (svc *Service) Load(ctx context.Context, clientID string) (*LoadedModel, bool) {
	var model riskengine.IsolationForestModel
	found, err := svc.s.Get(ctx, riskengine.SetIFModels, clientID, &model)
	if err != nil || !found {
		return nil, false
	}
	if model.FeatureCount != FeatureCount {
		return nil, false
	}
	var data modelData
	if err := json.Unmarshal(model.Trees, &data); err != nil || data.Version != modelVersion || len(data.Trees) == 0 {
		return nil, false
	}
	return &LoadedModel{trees: data.Trees, sampleSize: data.SampleSize}, true
}

// HasModel reports whether a trained model exists for clientID.
func (svc *Service) HasModel(ctx context.Context, clientID string) bool {
	var model riskengine.IsolationForestModel
	found, err := svc.s.Get(ctx, riskengine.SetIFModels, clientID, &model)
	return err == nil && found
}
