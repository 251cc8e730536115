package entitlements

import (
	"github.com/bookhive/bookhive-backend/pkg/config"
	"github.com/bookhive/bookhive-backend/pkg/enums"
)

// Unlimited is the sentinel meaning a limit is not enforced for a tier.
const Unlimited = -1

// Limits holds the per-tier caps the evaluator enforces.
type Limits struct {
	MaxActiveServices   int
	MaxCategories       int
	MaxBookingsPerMonth int
}

// Table maps every plan tier to its limits.
type Table map[enums.PlanTier]Limits

// DefaultTable mirrors the shipped plan definitions.
func DefaultTable() Table {
	return Table{
		enums.PlanTierFree: {
			MaxActiveServices:   1,
			MaxCategories:       1,
			MaxBookingsPerMonth: 5,
		},
		enums.PlanTierBasic: {
			MaxActiveServices:   5,
			MaxCategories:       3,
			MaxBookingsPerMonth: Unlimited,
		},
		enums.PlanTierPro: {
			MaxActiveServices:   Unlimited,
			MaxCategories:       Unlimited,
			MaxBookingsPerMonth: Unlimited,
		},
	}
}

// TableFromConfig builds the limit table from environment overrides.
func TableFromConfig(cfg config.PlansConfig) Table {
	return Table{
		enums.PlanTierFree: {
			MaxActiveServices:   cfg.FreeMaxServices,
			MaxCategories:       cfg.FreeMaxCategories,
			MaxBookingsPerMonth: cfg.FreeMaxBookingsMonth,
		},
		enums.PlanTierBasic: {
			MaxActiveServices:   cfg.BasicMaxServices,
			MaxCategories:       cfg.BasicMaxCategories,
			MaxBookingsPerMonth: cfg.BasicMaxBookingsMonth,
		},
		enums.PlanTierPro: {
			MaxActiveServices:   cfg.ProMaxServices,
			MaxCategories:       cfg.ProMaxCategories,
			MaxBookingsPerMonth: cfg.ProMaxBookingsMonth,
		},
	}
}

// ResetTiersFromConfig parses the tiers whose monthly counters the reset
// sweep touches, dropping unknown values.
func ResetTiersFromConfig(cfg config.PlansConfig) []enums.PlanTier {
	tiers := make([]enums.PlanTier, 0, len(cfg.ResetTiers))
	for _, raw := range cfg.ResetTiers {
		tier, err := enums.ParsePlanTier(raw)
		if err != nil {
			continue
		}
		tiers = append(tiers, tier)
	}
	if len(tiers) == 0 {
		tiers = append(tiers, enums.PlanTierFree)
	}
	return tiers
}

// For returns the limits for a tier, falling back to the free tier so an
// unknown plan never grants unlimited access.
func (t Table) For(tier enums.PlanTier) Limits {
	if limits, ok := t[tier]; ok {
		return limits
	}
	return t[enums.PlanTierFree]
}

// Reason is the machine-readable outcome of a limit check. Callers build
// any user-facing messaging themselves.
type Reason string

const (
	ReasonWithinLimit         Reason = "within_limit"
	ReasonUnlimited           Reason = "unlimited"
	ReasonCategoryAlreadyUsed Reason = "category_already_used"
	ReasonServiceLimitReached Reason = "service_limit_reached"
	ReasonCategoryLimitHit    Reason = "category_limit_reached"
	ReasonBookingLimitReached Reason = "booking_limit_reached"
)

// Decision is the structured result of a limit check.
type Decision struct {
	Allowed bool
	Reason  Reason
	Plan    enums.PlanTier
}
