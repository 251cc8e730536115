package enums

import "fmt"

// PlanTier is the subscription level that determines a provider's
// entitlement limits.
type PlanTier string

const (
	PlanTierFree  PlanTier = "free"
	PlanTierBasic PlanTier = "basic"
	PlanTierPro   PlanTier = "pro"
)

var validPlanTiers = []PlanTier{
	PlanTierFree,
	PlanTierBasic,
	PlanTierPro,
}

// String implements fmt.Stringer.
func (p PlanTier) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PlanTier.
func (p PlanTier) IsValid() bool {
	for _, candidate := range validPlanTiers {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsPaid reports whether the tier carries an expiry date.
func (p PlanTier) IsPaid() bool {
	return p == PlanTierBasic || p == PlanTierPro
}

// ParsePlanTier converts raw input into a PlanTier.
func ParsePlanTier(value string) (PlanTier, error) {
	for _, candidate := range validPlanTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan tier %q", value)
}
