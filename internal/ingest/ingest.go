// Package ingest accepts uploaded-data-derived facts for a session, runs
// data-sufficiency checks, and seeds the master context with the canonical
// golden values every downstream section must cite.
package ingest

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/caldermed/psurd/internal/golden"
)

// Facts is the intake payload for one reporting period. It arrives once,
// before validation; later corrections go through master-context overrides.
type Facts struct {
	DeviceName  string `json:"device_name"`
	UDIDI       string `json:"udi_di"`
	IntendedUse string `json:"intended_use"`

	// Sales/distribution volume. UnitsByYear is the authoritative source
	// of the exposure denominator.
	UnitsByYear   map[int]int    `json:"units_by_year"`
	UnitsByRegion map[string]int `json:"units_by_region,omitempty"`

	TotalComplaints   int    `json:"total_complaints"`
	ComplaintsClosed  int    `json:"complaints_closed"`
	ClosureDefinition string `json:"closure_definition"`

	SeriousIncidents int `json:"serious_incidents"`
	VigilanceEvents  int `json:"vigilance_events"`

	HasExternalVigilance      bool `json:"has_external_vigilance"`
	ComplaintClosuresComplete bool `json:"complaint_closures_complete"`
	HasRMFHazardList          bool `json:"has_rmf_hazard_list"`
	HasIntendedUse            bool `json:"has_intended_use"`

	// InferencePolicy states what agents may and may not infer when a
	// data source is absent, e.g. "no_inference_from_absence".
	InferencePolicy string `json:"inference_policy"`

	// Overrides are operator-supplied values that take precedence over
	// anything computed from the payload, keyed by master-context key.
	Overrides map[string]any `json:"overrides,omitempty"`
}

// Severity classifies a sufficiency issue. Blocking issues keep the
// session in validating until fixed or explicitly overridden.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityAdvisory Severity = "advisory"
)

// Issue is one data-sufficiency finding.
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail"`
}

// HasBlocking reports whether any issue in the list is blocking.
func HasBlocking(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityBlocking {
			return true
		}
	}
	return false
}

// Check runs all sufficiency checks over the payload. Checks are pure
// reads, so they fan out concurrently; the result order is stable
// regardless of completion order.
func Check(ctx context.Context, f Facts) []Issue {
	checks := []func(Facts) *Issue{
		checkSalesData,
		checkDeviceIdentity,
		checkComplaintClosure,
		checkVigilance,
		checkHazardList,
		checkIntendedUse,
	}

	var mu sync.Mutex
	results := make([]*Issue, len(checks))

	g, _ := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			issue := check(f)
			mu.Lock()
			results[i] = issue
			mu.Unlock()
			return nil
		})
	}
	// Checks never return errors; the group is for the fan-out only.
	_ = g.Wait()

	var issues []Issue
	for _, r := range results {
		if r != nil {
			issues = append(issues, *r)
		}
	}
	return issues
}

func checkSalesData(f Facts) *Issue {
	total := 0
	for _, n := range f.UnitsByYear {
		total += n
	}
	if len(f.UnitsByYear) == 0 || total <= 0 {
		return &Issue{
			Code:     "no_sales_data",
			Severity: SeverityBlocking,
			Detail:   "no units-distributed data supplied; exposure denominator cannot be established",
		}
	}
	return nil
}

func checkDeviceIdentity(f Facts) *Issue {
	if f.DeviceName == "" || f.UDIDI == "" {
		return &Issue{
			Code:     "missing_device_identity",
			Severity: SeverityBlocking,
			Detail:   "device name and UDI-DI are both required",
		}
	}
	return nil
}

func checkComplaintClosure(f Facts) *Issue {
	if f.ComplaintsClosed > f.TotalComplaints {
		return &Issue{
			Code:     "closure_exceeds_total",
			Severity: SeverityBlocking,
			Detail: fmt.Sprintf("complaints_closed (%d) exceeds total_complaints (%d)",
				f.ComplaintsClosed, f.TotalComplaints),
		}
	}
	if f.TotalComplaints > 0 && f.ClosureDefinition == "" {
		return &Issue{
			Code:     "missing_closure_definition",
			Severity: SeverityAdvisory,
			Detail:   "complaints present but no closure definition given; sections will state the definition is unspecified",
		}
	}
	return nil
}

func checkVigilance(f Facts) *Issue {
	if !f.HasExternalVigilance {
		return &Issue{
			Code:     "no_external_vigilance",
			Severity: SeverityAdvisory,
			Detail:   "no external vigilance database extract supplied; vigilance section limited to internal reports",
		}
	}
	return nil
}

func checkHazardList(f Facts) *Issue {
	if !f.HasRMFHazardList {
		return &Issue{
			Code:     "no_rmf_hazard_list",
			Severity: SeverityAdvisory,
			Detail:   "risk-management-file hazard list absent; benefit-risk section cannot map complaints to hazards",
		}
	}
	return nil
}

func checkIntendedUse(f Facts) *Issue {
	if !f.HasIntendedUse && f.IntendedUse == "" {
		return &Issue{
			Code:     "no_intended_use",
			Severity: SeverityAdvisory,
			Detail:   "intended-use statement absent; agents instructed not to infer one",
		}
	}
	return nil
}

// Apply seeds the master context from the payload. The exposure
// denominator, closure counts, and availability flags become golden
// (frozen) so no section can recalculate its own version. Operator
// overrides are applied last and win over everything computed here.
func Apply(store *golden.Store, f Facts) {
	denominator := 0
	for _, n := range f.UnitsByYear {
		denominator += n
	}

	store.MergeCalculated(golden.KeyDeviceName, f.DeviceName)
	store.MergeCalculated(golden.KeyUDIDI, f.UDIDI)
	store.MergeCalculated(golden.KeyIntendedUse, f.IntendedUse)

	store.MergeCalculated(golden.KeyExposureDenominator, denominator)
	store.MergeCalculated(golden.KeyDenominatorScope, "units distributed in reporting period, all regions")
	store.MergeCalculated(golden.KeyAnnualUnits, f.UnitsByYear)
	if len(f.UnitsByRegion) > 0 {
		store.MergeCalculated(golden.KeyUnitsByRegion, f.UnitsByRegion)
	}

	store.MergeCalculated(golden.KeyTotalComplaints, f.TotalComplaints)
	store.MergeCalculated(golden.KeyComplaintsClosed, f.ComplaintsClosed)
	store.MergeCalculated(golden.KeyClosureDefinition, f.ClosureDefinition)
	store.MergeCalculated(golden.KeySeriousIncidents, f.SeriousIncidents)
	store.MergeCalculated(golden.KeyVigilanceEvents, f.VigilanceEvents)

	if denominator > 0 {
		store.MergeCalculated(golden.KeyComplaintRatePercent, ratePercent(f.TotalComplaints, denominator))
	}
	if f.TotalComplaints > 0 {
		store.MergeCalculated(golden.KeyClosureRatePercent, ratePercent(f.ComplaintsClosed, f.TotalComplaints))
	}

	store.MergeCalculated(golden.KeyAvailExternalVigilance, f.HasExternalVigilance)
	store.MergeCalculated(golden.KeyAvailComplaintClosures, f.ComplaintClosuresComplete)
	store.MergeCalculated(golden.KeyAvailRMFHazardList, f.HasRMFHazardList)
	store.MergeCalculated(golden.KeyAvailIntendedUse, f.HasIntendedUse || f.IntendedUse != "")

	policy := f.InferencePolicy
	if policy == "" {
		policy = "no_inference_from_absence"
	}
	store.MergeCalculated(golden.KeyInferencePolicy, policy)

	for key, value := range f.Overrides {
		store.SetOverride(key, value, "intake_override")
	}

	// The denominators and counts are now canonical for the session.
	for _, key := range []string{
		golden.KeyExposureDenominator,
		golden.KeyAnnualUnits,
		golden.KeyTotalComplaints,
		golden.KeyComplaintsClosed,
		golden.KeyClosureDefinition,
		golden.KeyInferencePolicy,
	} {
		store.Freeze(key)
	}
}

// ratePercent rounds to two decimals, matching how the figures appear in
// the report body.
func ratePercent(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(int(float64(numerator)/float64(denominator)*10000+0.5)) / 100
}
