// Package golden holds the per-session master context: the single set of
// cross-section facts (exposure denominator, closure definition,
// availability flags) every agent reads instead of recomputing its own.
// A key marked golden is frozen; calculated merges cannot touch it and
// only an explicit operator override may change it.
package golden

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Provenance records how a fact got its current value.
type Provenance string

const (
	ProvenanceCalculated Provenance = "calculated"
	ProvenanceManual     Provenance = "manual"
	ProvenanceOverride   Provenance = "override"
)

// Well-known fact keys.
const (
	KeyExposureDenominator       = "exposure_denominator"
	KeyDenominatorScope          = "exposure_denominator_scope"
	KeyAnnualUnits               = "annual_units"
	KeyUnitsByRegion             = "units_by_region"
	KeyTotalComplaints           = "total_complaints"
	KeyComplaintsClosed          = "complaints_closed"
	KeyComplaintRatePercent      = "complaint_rate_percent"
	KeyClosureRatePercent        = "closure_rate_percent"
	KeyClosureDefinition         = "closure_definition"
	KeySeriousIncidents          = "serious_incidents"
	KeyVigilanceEvents           = "vigilance_events"
	KeyInferencePolicy           = "inference_policy"
	KeyAvailExternalVigilance    = "data_availability_external_vigilance"
	KeyAvailComplaintClosures    = "data_availability_complaint_closures_complete"
	KeyAvailRMFHazardList        = "data_availability_rmf_hazard_list"
	KeyAvailIntendedUse          = "data_availability_intended_use"
	KeyDeviceName                = "device_name"
	KeyUDIDI                     = "udi_di"
	KeyIntendedUse               = "intended_use"
)

// Fact is one master-context entry: a value, where it came from, and
// whether it is frozen (golden).
type Fact struct {
	Value      any        `json:"value"`
	Provenance Provenance `json:"provenance"`
	Frozen     bool       `json:"frozen"`
	UpdatedBy  string     `json:"updated_by,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Snapshot is an immutable copy of the store at one instant. Mutating a
// snapshot never affects the store or other snapshots.
type Snapshot map[string]Fact

// Int reads an integer fact from the snapshot; zero if absent or not
// numeric.
func (s Snapshot) Int(key string) int {
	switch v := s[key].Value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// String reads a string fact; empty if absent.
func (s Snapshot) String(key string) string {
	if v, ok := s[key].Value.(string); ok {
		return v
	}
	return ""
}

// Bool reads a boolean fact; false if absent.
func (s Snapshot) Bool(key string) bool {
	v, _ := s[key].Value.(bool)
	return v
}

// Store is the per-session master context. All mutation is serialized
// behind one mutex; readers always see a fully committed snapshot.
type Store struct {
	mu    sync.Mutex
	facts map[string]Fact
	now   func() time.Time
}

// NewStore creates an empty master context.
func NewStore() *Store {
	return &Store{facts: make(map[string]Fact), now: time.Now}
}

// Snapshot returns a deep copy of the current facts.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := make(Snapshot, len(s.facts))
	for k, f := range s.facts {
		f.Value = copyValue(f.Value)
		snap[k] = f
	}
	return snap
}

// MergeCalculated records a calculated value for key. It is a no-op when
// the key is frozen: calculated pipelines must never silently overwrite a
// golden value. Returns true if the value was applied.
func (s *Store) MergeCalculated(key string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.facts[key]; ok && f.Frozen {
		return false
	}
	s.facts[key] = Fact{
		Value:      copyValue(value),
		Provenance: ProvenanceCalculated,
		UpdatedAt:  s.now(),
	}
	return true
}

// SetManual records a manually entered value. Like MergeCalculated it
// respects frozen keys; manual intake data does not outrank an override.
func (s *Store) SetManual(key string, value any, actor string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.facts[key]; ok && f.Frozen {
		return false
	}
	s.facts[key] = Fact{
		Value:      copyValue(value),
		Provenance: ProvenanceManual,
		UpdatedBy:  actor,
		UpdatedAt:  s.now(),
	}
	return true
}

// SetOverride always wins: it replaces the value, marks the key frozen,
// and records who did it.
func (s *Store) SetOverride(key string, value any, actor string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.facts[key] = Fact{
		Value:      copyValue(value),
		Provenance: ProvenanceOverride,
		Frozen:     true,
		UpdatedBy:  actor,
		UpdatedAt:  s.now(),
	}
}

// Freeze marks an existing key golden without changing its value. Used by
// ingestion once the canonical denominators are settled.
func (s *Store) Freeze(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.facts[key]; ok {
		f.Frozen = true
		s.facts[key] = f
	}
}

// copyValue deep-copies the value shapes facts actually carry: scalar,
// map keyed by int or string, or string slice.
func copyValue(v any) any {
	switch val := v.(type) {
	case map[int]int:
		out := make(map[int]int, len(val))
		for k, n := range val {
			out[k] = n
		}
		return out
	case map[string]int:
		out := make(map[string]int, len(val))
		for k, n := range val {
			out[k] = n
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}

// FormatUnits renders an integer with comma grouping ("12,847"), the form
// agents are told to use for the exposure denominator and QC checks for.
func FormatUnits(n int) string {
	s := strconv.Itoa(n)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var out []byte
	lead := len(s) % 3
	if lead > 0 {
		out = append(out, s[:lead]...)
	}
	for i := lead; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// Describe renders a short human-readable summary of the golden facts for
// prompt injection.
func (s Snapshot) Describe() string {
	denom := s.Int(KeyExposureDenominator)
	return fmt.Sprintf("Device: %s (UDI-DI %s). Exposure denominator: %s units. Complaints: %d (closed %d).",
		s.String(KeyDeviceName), s.String(KeyUDIDI), FormatUnits(denom),
		s.Int(KeyTotalComplaints), s.Int(KeyComplaintsClosed))
}
