package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
)

const (
	licenseKeyHexChars = 16
	licenseKeyGroup    = 4
)

var licenseDurations = map[customer.LicenseType]time.Duration{
	customer.LicenseDemo:         30 * 24 * time.Hour,
	customer.LicenseProfessional: 30 * 24 * time.Hour,
	customer.LicenseEnterprise:   365 * 24 * time.Hour,
}

var licenseFeatures = map[customer.LicenseType][]string{
	customer.LicenseDemo: {
		"Basic inventory management",
		"Billing system",
		"Customer management",
		"Single business profile",
		"Community support",
	},
	customer.LicenseProfessional: {
		"Advanced inventory management",
		"Multiple business profiles",
		"Detailed analytics",
		"Priority support",
		"Free updates",
	},
	customer.LicenseEnterprise: {
		"All Professional features",
		"Custom integration support",
		"Dedicated support",
		"Training sessions",
		"Custom features on request",
	},
}

type LicenseKeyGenerator struct {
	secret []byte
}

func NewLicenseKeyGenerator(secret string) *LicenseKeyGenerator {
	return &LicenseKeyGenerator{secret: []byte(secret)}
}

// GenerateLicenseKey derives an opaque XXXX-XXXX-XXXX-XXXX key from the
// customer id and the issuance instant. The key carries no recoverable
// information and must be looked up by exact match.
func (g *LicenseKeyGenerator) GenerateLicenseKey(customerID string, issuedAt time.Time) string {
	input := customerID + "-" + strconv.FormatInt(issuedAt.UnixNano(), 10)

	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(input))
	digest := strings.ToUpper(hex.EncodeToString(mac.Sum(nil))[:licenseKeyHexChars])

	groups := make([]string, 0, licenseKeyHexChars/licenseKeyGroup)
	for i := 0; i < licenseKeyHexChars; i += licenseKeyGroup {
		groups = append(groups, digest[i:i+licenseKeyGroup])
	}
	return strings.Join(groups, "-")
}

func CalculateExpiryDate(tier customer.LicenseType, now time.Time) (time.Time, error) {
	d, ok := licenseDurations[tier]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ierr.ErrInvalidLicenseType, tier)
	}
	return now.Add(d), nil
}

// GetLicenseFeatures returns a copy of the tier's feature list, or nil for
// an unknown tier.
func GetLicenseFeatures(tier customer.LicenseType) []string {
	features, ok := licenseFeatures[tier]
	if !ok {
		return nil
	}
	out := make([]string, len(features))
	copy(out, features)
	return out
}
