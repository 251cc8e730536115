package bookings

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// secretBytes keeps the completion secret above 128 bits of entropy.
const secretBytes = 20

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// CompletionProof is the payload a provider renders as a QR code for the
// owner to scan. Only the secret is required to complete; the rest is
// display metadata.
type CompletionProof struct {
	BookingID  uuid.UUID `json:"booking_id"`
	ProviderID uuid.UUID `json:"provider_id"`
	Secret     string    `json:"secret"`
	IssuedAt   time.Time `json:"issued_at"`
}

// newCompletionSecret draws a fresh random secret. Each call produces an
// unrelated value; regeneration invalidates any previously issued secret.
func newCompletionSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating completion secret: %w", err)
	}
	return secretEncoding.EncodeToString(buf), nil
}

// secretsMatch compares a presented secret against the stored one in
// constant time.
func secretsMatch(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}
