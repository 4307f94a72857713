// Package domain contains core business types and interfaces.
//
// This file defines the metered operation kinds and the admission policy
// applied to each kind.
package domain

// OperationKind identifies a billable image operation.
type OperationKind string

const (
	OperationGenerate  OperationKind = "generate"
	OperationMagicEdit OperationKind = "magic_edit"
	OperationUpscale   OperationKind = "upscale"
	OperationRemoveBG  OperationKind = "remove_bg"
)

// OperationPolicy controls how an operation kind is admitted.
type OperationPolicy struct {
	// Capped operations count against the tier's monthly allowance and are
	// rejected once the allowance is spent. Uncapped operations are tracked
	// but always admitted.
	Capped bool

	// RequiresSubscription rejects the operation outright when the account
	// has no active or trialing subscription.
	RequiresSubscription bool
}

// OperationPolicies maps each operation kind to its admission policy.
// Only thumbnail generation is capped; edits, upscales and background
// removals are tracked but unbounded.
var OperationPolicies = map[OperationKind]OperationPolicy{
	OperationGenerate:  {Capped: true, RequiresSubscription: true},
	OperationMagicEdit: {RequiresSubscription: true},
	OperationUpscale:   {RequiresSubscription: true},
	OperationRemoveBG:  {RequiresSubscription: true},
}

// PolicyFor returns the admission policy for a kind. Unknown kinds get the
// strictest policy so a bad request can never slip past the cap.
func PolicyFor(kind OperationKind) OperationPolicy {
	if p, ok := OperationPolicies[kind]; ok {
		return p
	}
	return OperationPolicy{Capped: true, RequiresSubscription: true}
}

// ParseOperationKind validates a wire-format operation type.
func ParseOperationKind(s string) (OperationKind, bool) {
	kind := OperationKind(s)
	_, ok := OperationPolicies[kind]
	return kind, ok
}

// AspectRatio values accepted for generated thumbnails.
const (
	AspectSixteenNine = "16:9"
	AspectNineSixteen = "9:16"
	AspectOneOne      = "1:1"
)

// ValidAspectRatio reports whether s is a supported aspect ratio.
// Empty is allowed; the field is optional metadata.
func ValidAspectRatio(s string) bool {
	switch s {
	case "", AspectSixteenNine, AspectNineSixteen, AspectOneOne:
		return true
	}
	return false
}
