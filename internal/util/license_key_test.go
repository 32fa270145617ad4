package util

import (
	"regexp"
	"testing"
	"time"

	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyFormat = regexp.MustCompile(`^[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`)

func TestGenerateLicenseKey_Format(t *testing.T) {
	g := NewLicenseKeyGenerator("secret")
	key := g.GenerateLicenseKey("cust-1", time.Unix(1700000000, 123))

	assert.Regexp(t, keyFormat, key)
}

func TestGenerateLicenseKey_MatchesDigestPrefix(t *testing.T) {
	g := NewLicenseKeyGenerator("secret")
	issued := time.Unix(0, 42)

	digest := SignHex("secret", []byte("cust-1-42"))
	want := digest[0:4] + "-" + digest[4:8] + "-" + digest[8:12] + "-" + digest[12:16]

	assert.Equal(t, toUpper(want), g.GenerateLicenseKey("cust-1", issued))
}

func TestGenerateLicenseKey_VariesWithInput(t *testing.T) {
	g := NewLicenseKeyGenerator("secret")
	now := time.Now()

	a := g.GenerateLicenseKey("cust-1", now)
	b := g.GenerateLicenseKey("cust-1", now.Add(time.Nanosecond))
	c := g.GenerateLicenseKey("cust-2", now)
	other := NewLicenseKeyGenerator("other").GenerateLicenseKey("cust-1", now)

	assert.Equal(t, a, g.GenerateLicenseKey("cust-1", now))
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, other)
}

func TestCalculateExpiryDate(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		tier customer.LicenseType
		want time.Time
	}{
		{customer.LicenseDemo, now.AddDate(0, 0, 30)},
		{customer.LicenseProfessional, now.AddDate(0, 0, 30)},
		{customer.LicenseEnterprise, now.AddDate(0, 0, 365)},
	}
	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			got, err := CalculateExpiryDate(tt.tier, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := CalculateExpiryDate("lifetime", now)
	assert.ErrorIs(t, err, ierr.ErrInvalidLicenseType)
}

func TestGetLicenseFeatures(t *testing.T) {
	demo := GetLicenseFeatures(customer.LicenseDemo)
	require.Len(t, demo, 5)
	assert.Equal(t, "Basic inventory management", demo[0])

	assert.Equal(t, "All Professional features", GetLicenseFeatures(customer.LicenseEnterprise)[0])
	assert.Nil(t, GetLicenseFeatures("unknown"))

	demo[0] = "mutated"
	assert.Equal(t, "Basic inventory management", GetLicenseFeatures(customer.LicenseDemo)[0])
}

func TestVerifyHex(t *testing.T) {
	payload := PaymentSignaturePayload("order_abc", "pay_123")
	sig := SignHex("key_secret", payload)

	assert.True(t, VerifyHex("key_secret", payload, sig))
	assert.False(t, VerifyHex("other", payload, sig))
	assert.False(t, VerifyHex("key_secret", PaymentSignaturePayload("order_abd", "pay_123"), sig))
	assert.False(t, VerifyHex("key_secret", payload, ""))
	assert.False(t, VerifyHex("", payload, sig))
}

func toUpper(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
