package provider

import (
	"errors"
	"fmt"
)

// FallbackOrder is the global provider priority used when an agent's
// preferred vendor has no credential. Vendors are tried in this order
// until one has a usable key.
var FallbackOrder = []string{VendorOpenAI, VendorXAI, VendorGoogle, VendorAnthropic}

// ErrNoProviderAvailable is returned when no configured vendor has a valid
// credential. The workflow treats it as fatal at session start.
var ErrNoProviderAvailable = errors.New("provider: no vendor has a valid credential")

// Resolution source values.
const (
	SourcePreferred = "preferred"
	SourceFallback  = "fallback"
)

// Credential is one vendor's API key plus its default model.
type Credential struct {
	APIKey       string
	DefaultModel string
}

// CredentialTable maps vendor name to credential. It is built once at
// process start and never mutated afterwards, so the Resolver needs no
// locking and resolution is deterministic for a given table.
type CredentialTable map[string]Credential

// Resolution records which vendor and model an agent call actually used,
// and whether that was the agent's preference or a fallback. Recorded per
// task so "what ran" stays reconstructable across configuration changes.
type Resolution struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Source   string `json:"source"`
}

// Resolver picks the vendor an agent uses. Resolution is a pure function
// of the immutable credential table and the agent's preference.
type Resolver struct {
	table     CredentialTable
	providers map[string]Provider
}

// NewResolver builds a Resolver and constructs one Provider per
// credentialed vendor.
func NewResolver(table CredentialTable) *Resolver {
	providers := make(map[string]Provider, len(table))
	for vendor, cred := range table {
		if cred.APIKey == "" {
			continue
		}
		switch vendor {
		case VendorAnthropic:
			providers[vendor] = NewAnthropic(cred.APIKey)
		case VendorOpenAI:
			providers[vendor] = NewOpenAI(cred.APIKey)
		case VendorGoogle:
			providers[vendor] = NewGoogle(cred.APIKey)
		case VendorXAI:
			providers[vendor] = NewXAI(cred.APIKey)
		}
	}
	return &Resolver{table: table, providers: providers}
}

// Resolve returns the vendor and model to use for an agent that prefers
// preferredVendor/preferredModel. If the preferred vendor is credentialed
// it wins; otherwise the first credentialed vendor in FallbackOrder is
// used with its default model. ErrNoProviderAvailable if nothing matches.
func (r *Resolver) Resolve(preferredVendor, preferredModel string) (Resolution, error) {
	if _, ok := r.providers[preferredVendor]; ok {
		model := preferredModel
		if model == "" {
			model = r.table[preferredVendor].DefaultModel
		}
		return Resolution{Provider: preferredVendor, Model: model, Source: SourcePreferred}, nil
	}

	for _, vendor := range FallbackOrder {
		if vendor == preferredVendor {
			continue
		}
		if _, ok := r.providers[vendor]; ok {
			return Resolution{
				Provider: vendor,
				Model:    r.table[vendor].DefaultModel,
				Source:   SourceFallback,
			}, nil
		}
	}

	return Resolution{}, fmt.Errorf("resolving %q: %w", preferredVendor, ErrNoProviderAvailable)
}

// Provider returns the constructed Provider for a vendor name.
func (r *Resolver) Provider(vendor string) (Provider, bool) {
	p, ok := r.providers[vendor]
	return p, ok
}
