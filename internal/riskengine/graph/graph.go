// Package graph maintains the bipartite client/beneficiary graph (component
// H) the mule-network detector queries: an immutable snapshot rebuilt on a
// fixed cadence from a full transaction scan, published via atomic pointer
// swap so readers never lock against the rebuilder.
package graph

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/store"
	"sentinel/pkg/logger"
)

// Graph is the mule-network detector's view of client/beneficiary sharing.
type Graph struct {
	s   store.Store
	log logger.Logger

	lookback time.Duration
	snap     atomic.Pointer[snapshot]

	stop chan struct{}
	done chan struct{}
}

type snapshot struct {
	ready bool
	// clientToBene: client -> set of beneficiary keys it has sent to.
	clientToBene map[string]map[string]struct{}
	// beneToClients: beneficiary key -> set of clients that send to it.
	beneToClients map[string]map[string]struct{}
}

func emptySnapshot() *snapshot {
	return &snapshot{
		clientToBene:  make(map[string]map[string]struct{}),
		beneToClients: make(map[string]map[string]struct{}),
	}
}

// New builds a Graph that rebuilds from transactions within lookback of
// "now" at each rebuild.
func New(s store.Store, log logger.Logger, lookback time.Duration) *Graph {
	g := &Graph{s: s, log: log, lookback: lookback}
	g.snap.Store(emptySnapshot())
	return g
}

// txnRecord mirrors the subset of a stored transaction the graph needs;
// decoded directly from the raw bytes scanAll hands back so the graph
// doesn't need to import the orchestrator's persistence type.
type txnRecord struct {
	ClientID           string `json:"ClientID"`
	Timestamp          string `json:"Timestamp"`
	BeneficiaryIFSC    string `json:"BeneficiaryIFSC"`
	BeneficiaryAccount string `json:"BeneficiaryAccount"`
}

func (t txnRecord) beneKey() string {
	if t.BeneficiaryAccount == "" {
		return ""
	}
	ifsc := t.BeneficiaryIFSC
	if ifsc == "" {
		ifsc = "UNKNOWN"
	}
	return ifsc + ":" + t.BeneficiaryAccount
}

// Rebuild performs a full scan of the transactions set and publishes a new
// snapshot. Transactions older than lookback are ignored.
func (g *Graph) Rebuild(ctx context.Context) error {
	next := emptySnapshot()
	cutoff := time.Now().UTC().Add(-g.lookback)

	err := g.s.ScanAll(ctx, riskengine.SetTransactions, func(key string, raw []byte) error {
		var t txnRecord
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil // corrupt record: skip, not fatal to rebuild
		}
		bk := t.beneKey()
		if bk == "" || t.ClientID == "" {
			return nil
		}
		ts, err := time.Parse(time.RFC3339, t.Timestamp)
		if err == nil && ts.Before(cutoff) {
			return nil
		}
		if next.clientToBene[t.ClientID] == nil {
			next.clientToBene[t.ClientID] = make(map[string]struct{})
		}
		next.clientToBene[t.ClientID][bk] = struct{}{}
		if next.beneToClients[bk] == nil {
			next.beneToClients[bk] = make(map[string]struct{})
		}
		next.beneToClients[bk][t.ClientID] = struct{}{}
		return nil
	})
	if err != nil {
		return err
	}
	next.ready = true
	g.snap.Store(next)
	return nil
}

// IsGraphReady reports whether the first successful build has completed.
func (g *Graph) IsGraphReady() bool {
	return g.snap.Load().ready
}

// FanInCount returns the number of distinct clients sending to beneKey.
func (g *Graph) FanInCount(beneKey string) int {
	return len(g.snap.Load().beneToClients[beneKey])
}

// OtherSendersCount returns the number of distinct clients, other than
// exceptClient, sending to beneKey.
func (g *Graph) OtherSendersCount(beneKey, exceptClient string) int {
	senders := g.snap.Load().beneToClients[beneKey]
	n := 0
	for c := range senders {
		if c != exceptClient {
			n++
		}
	}
	return n
}

// TotalBeneficiaryCount returns the number of distinct beneficiaries
// clientID has sent to, per the current snapshot.
func (g *Graph) TotalBeneficiaryCount(clientID string) int {
	return len(g.snap.Load().clientToBene[clientID])
}

// SharedBeneficiaryCount returns how many of clientID's beneficiaries also
// receive from at least one other client (fan-in > 1).
func (g *Graph) SharedBeneficiaryCount(clientID string) int {
	s := g.snap.Load()
	n := 0
	for bk := range s.clientToBene[clientID] {
		if len(s.beneToClients[bk]) > 1 {
			n++
		}
	}
	return n
}

// NetworkDensity computes edge density over the induced subgraph of
// clientID and its neighbours (other clients sharing >=1 beneficiary),
// where an edge exists between two clients sharing at least one
// beneficiary. 0 when fewer than 2 neighbours exist.
func (g *Graph) NetworkDensity(clientID string) float64 {
	s := g.snap.Load()
	myBene := s.clientToBene[clientID]
	if len(myBene) == 0 {
		return 0
	}

	neighbourSet := make(map[string]struct{})
	for bk := range myBene {
		for c := range s.beneToClients[bk] {
			if c != clientID {
				neighbourSet[c] = struct{}{}
			}
		}
	}
	if len(neighbourSet) < 2 {
		return 0
	}

	nodes := make([]string, 0, len(neighbourSet)+1)
	nodes = append(nodes, clientID)
	for c := range neighbourSet {
		nodes = append(nodes, c)
	}

	actualEdges := 0
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			if sharesBeneficiary(s, nodes[i], nodes[j]) {
				actualEdges++
			}
		}
	}
	n := len(nodes)
	maxPossible := n * (n - 1) / 2
	if maxPossible == 0 {
		return 0
	}
	density := float64(actualEdges) / float64(maxPossible)
	if density > 1 {
		density = 1
	}
	if density < 0 {
		density = 0
	}
	return density
}

func sharesBeneficiary(s *snapshot, a, b string) bool {
	benA := s.clientToBene[a]
	benB := s.clientToBene[b]
	if len(benA) > len(benB) {
		benA, benB = benB, benA
	}
	for bk := range benA {
		if _, ok := benB[bk]; ok {
			return true
		}
	}
	return false
}

// StartRebuilder runs Rebuild every interval until Stop is called.
func (g *Graph) StartRebuilder(interval time.Duration) {
	g.stop = make(chan struct{})
	g.done = make(chan struct{})
	go func() {
		defer close(g.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-g.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := g.Rebuild(ctx); err != nil && g.log != nil {
					g.log.Warn("beneficiary graph rebuild failed", map[string]interface{}{"error": err})
				}
				cancel()
			}
		}
	}()
}

// Stop cancels the rebuilder and waits for its current cycle to finish.
func (g *Graph) Stop() {
	if g.stop == nil {
		return
	}
	close(g.stop)
	<-g.done
}
