package enums

import "fmt"

// SubscriptionEventKind is the outcome class reported by the payment
// provider's webhook consumer. Cancellation keeps the current tier until
// the already-committed period end; the daily sweep performs the actual
// downgrade.
type SubscriptionEventKind string

const (
	SubscriptionEventPurchase     SubscriptionEventKind = "purchase"
	SubscriptionEventRenewal      SubscriptionEventKind = "renewal"
	SubscriptionEventCancellation SubscriptionEventKind = "cancellation"
)

var validSubscriptionEventKinds = []SubscriptionEventKind{
	SubscriptionEventPurchase,
	SubscriptionEventRenewal,
	SubscriptionEventCancellation,
}

// String implements fmt.Stringer.
func (s SubscriptionEventKind) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SubscriptionEventKind.
func (s SubscriptionEventKind) IsValid() bool {
	for _, candidate := range validSubscriptionEventKinds {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubscriptionEventKind converts raw input into a SubscriptionEventKind.
func ParseSubscriptionEventKind(value string) (SubscriptionEventKind, error) {
	for _, candidate := range validSubscriptionEventKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription event kind %q", value)
}
