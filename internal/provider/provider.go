// Package provider abstracts the AI vendors used by section agents behind a
// single Generate operation, and resolves which vendor an agent actually
// uses given the configured credentials.
package provider

import "context"

// Vendor names. The set is closed: adding a vendor means adding a variant
// here plus its Provider implementation, not changing call sites.
const (
	VendorAnthropic = "anthropic"
	VendorOpenAI    = "openai"
	VendorGoogle    = "google"
	VendorXAI       = "xai"
)

// Request is a single text-generation call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Provider is one concrete AI vendor capable of generating text.
type Provider interface {
	// Name returns the vendor name (one of the Vendor constants).
	Name() string

	// Generate produces a completion for the request. Failures are
	// classified: errors matching IsTransient are safe to retry.
	Generate(ctx context.Context, req Request) (string, error)
}
