package silence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/riskengine"
	"sentinel/internal/riskengine/riskenginetest"
	"sentinel/internal/riskengine/store/storetest"
	"sentinel/pkg/logger"
)

type rawProfile struct {
	ClientID            string
	CompletedHoursCount int64
	EWMAHourlyTps       float64
	LastUpdated         time.Time
}

func TestRunOnceSkipsClientsBelowHistoryGuard(t *testing.T) {
	s := storetest.New()
	sink := riskenginetest.NewSink()
	d := New(s, sink, sink, DefaultConfig(), logger.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, riskengine.SetClientProfiles, "c1", rawProfile{
		ClientID: "c1", CompletedHoursCount: 1, EWMAHourlyTps: 1,
		LastUpdated: time.Now().UTC().Add(-10 * time.Hour),
	}))

	require.NoError(t, d.RunOnce(ctx))
	assert.Empty(t, sink.SilentClients, "fewer than MinCompletedHours of history must never alert")
}

func TestRunOnceFlagsClientPastExpectedGap(t *testing.T) {
	s := storetest.New()
	sink := riskenginetest.NewSink()
	cfg := DefaultConfig()
	d := New(s, sink, sink, cfg, logger.NewNop())
	ctx := context.Background()

	// EWMAHourlyTps=2 -> expectedGap=30min; silenceMultiplier=3 -> threshold 90min.
	require.NoError(t, s.Put(ctx, riskengine.SetClientProfiles, "c1", rawProfile{
		ClientID: "c1", CompletedHoursCount: 100, EWMAHourlyTps: 2,
		LastUpdated: time.Now().UTC().Add(-120 * time.Minute),
	}))

	require.NoError(t, d.RunOnce(ctx))
	assert.Equal(t, 1, sink.SilentCount("c1"))
	assert.Equal(t, false, sink.SilenceEvents["c1"], "entering silence reports resolved=false")
}

func TestRunOnceDoesNotReAlertWhileStillSilent(t *testing.T) {
	s := storetest.New()
	sink := riskenginetest.NewSink()
	d := New(s, sink, sink, DefaultConfig(), logger.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, riskengine.SetClientProfiles, "c1", rawProfile{
		ClientID: "c1", CompletedHoursCount: 100, EWMAHourlyTps: 2,
		LastUpdated: time.Now().UTC().Add(-120 * time.Minute),
	}))

	require.NoError(t, d.RunOnce(ctx))
	require.NoError(t, d.RunOnce(ctx))
	assert.Equal(t, 1, sink.SilentCount("c1"), "a still-silent client must not re-fire the notification")
}

func TestRunOnceResolvesWhenClientBecomesActiveAgain(t *testing.T) {
	s := storetest.New()
	sink := riskenginetest.NewSink()
	d := New(s, sink, sink, DefaultConfig(), logger.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, riskengine.SetClientProfiles, "c1", rawProfile{
		ClientID: "c1", CompletedHoursCount: 100, EWMAHourlyTps: 2,
		LastUpdated: time.Now().UTC().Add(-120 * time.Minute),
	}))
	require.NoError(t, d.RunOnce(ctx))
	assert.Equal(t, 1, sink.SilentCount("c1"))

	// Client transacts again: LastUpdated moves to "now", no longer silent.
	require.NoError(t, s.Put(ctx, riskengine.SetClientProfiles, "c1", rawProfile{
		ClientID: "c1", CompletedHoursCount: 100, EWMAHourlyTps: 2,
		LastUpdated: time.Now().UTC(),
	}))
	require.NoError(t, d.RunOnce(ctx))
	assert.Equal(t, true, sink.SilenceEvents["c1"], "resolving silence reports resolved=true")
}
