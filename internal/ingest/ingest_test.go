package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldermed/psurd/internal/golden"
)

func validFacts() Facts {
	return Facts{
		DeviceName:           "AcmeFlow Infusion Pump",
		UDIDI:                "08717648200274",
		IntendedUse:          "continuous infusion of fluids",
		UnitsByYear:          map[int]int{2024: 7000, 2025: 5847},
		UnitsByRegion:        map[string]int{"EU": 9000, "UK": 3847},
		TotalComplaints:      42,
		ComplaintsClosed:     40,
		ClosureDefinition:    "investigation complete and CAPA verified",
		SeriousIncidents:     1,
		VigilanceEvents:      3,
		HasExternalVigilance: true,
		HasRMFHazardList:     true,
		HasIntendedUse:       true,
	}
}

func TestCheck_CleanPayloadHasNoBlockingIssues(t *testing.T) {
	issues := Check(context.Background(), validFacts())
	assert.False(t, HasBlocking(issues))
}

func TestCheck_NoSalesDataIsBlocking(t *testing.T) {
	f := validFacts()
	f.UnitsByYear = nil

	issues := Check(context.Background(), f)
	require.True(t, HasBlocking(issues))

	var codes []string
	for _, is := range issues {
		codes = append(codes, is.Code)
	}
	assert.Contains(t, codes, "no_sales_data")
}

func TestCheck_NoVigilanceIsAdvisory(t *testing.T) {
	f := validFacts()
	f.HasExternalVigilance = false

	issues := Check(context.Background(), f)
	assert.False(t, HasBlocking(issues))

	found := false
	for _, is := range issues {
		if is.Code == "no_external_vigilance" {
			found = true
			assert.Equal(t, SeverityAdvisory, is.Severity)
		}
	}
	assert.True(t, found)
}

func TestCheck_ClosureExceedingTotalIsBlocking(t *testing.T) {
	f := validFacts()
	f.ComplaintsClosed = 50

	issues := Check(context.Background(), f)
	assert.True(t, HasBlocking(issues))
}

func TestCheck_ResultOrderIsStable(t *testing.T) {
	f := Facts{} // everything missing
	first := Check(context.Background(), f)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Check(context.Background(), f))
	}
}

func TestApply_ComputesAndFreezesDenominator(t *testing.T) {
	store := golden.NewStore()
	Apply(store, validFacts())

	snap := store.Snapshot()
	assert.Equal(t, 12847, snap.Int(golden.KeyExposureDenominator))
	assert.True(t, snap[golden.KeyExposureDenominator].Frozen)
	assert.True(t, snap[golden.KeyTotalComplaints].Frozen)
	assert.True(t, snap[golden.KeyClosureDefinition].Frozen)

	// A later calculated merge must not move the frozen denominator.
	assert.False(t, store.MergeCalculated(golden.KeyExposureDenominator, 1))
	assert.Equal(t, 12847, store.Snapshot().Int(golden.KeyExposureDenominator))
}

func TestApply_DerivedRates(t *testing.T) {
	store := golden.NewStore()
	Apply(store, validFacts())

	snap := store.Snapshot()
	assert.InDelta(t, 0.33, snap[golden.KeyComplaintRatePercent].Value, 0.001)
	assert.InDelta(t, 95.24, snap[golden.KeyClosureRatePercent].Value, 0.001)
}

func TestApply_OverridesWinAndFreeze(t *testing.T) {
	f := validFacts()
	f.Overrides = map[string]any{golden.KeyExposureDenominator: 13000}

	store := golden.NewStore()
	Apply(store, f)

	snap := store.Snapshot()
	assert.Equal(t, 13000, snap.Int(golden.KeyExposureDenominator))
	assert.Equal(t, golden.ProvenanceOverride, snap[golden.KeyExposureDenominator].Provenance)
	assert.Equal(t, "intake_override", snap[golden.KeyExposureDenominator].UpdatedBy)
}

func TestApply_DefaultInferencePolicy(t *testing.T) {
	store := golden.NewStore()
	Apply(store, validFacts())

	assert.Equal(t, "no_inference_from_absence",
		store.Snapshot().String(golden.KeyInferencePolicy))
}
