package customer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func activeCustomer(tier LicenseType, end *time.Time) *Customer {
	return &Customer{
		Platform: PlatformWindows,
		License:  License{Type: tier, Status: StatusActive, Key: "AAAA-BBBB-CCCC-DDDD", EndDate: end},
	}
}

func TestIsLicenseValid_PaidBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := now

	c := activeCustomer(LicenseProfessional, &end)
	assert.True(t, c.IsLicenseValid(now))
	assert.False(t, c.IsLicenseValid(now.Add(time.Microsecond)))
}

func TestIsLicenseValid_PaidWithoutEndDate(t *testing.T) {
	c := activeCustomer(LicenseEnterprise, nil)
	assert.False(t, c.IsLicenseValid(time.Now()))
}

func TestIsLicenseValid_Demo(t *testing.T) {
	now := time.Now()

	assert.True(t, activeCustomer(LicenseDemo, nil).IsLicenseValid(now.AddDate(5, 0, 0)))

	end := now.Add(time.Hour)
	c := activeCustomer(LicenseDemo, &end)
	assert.True(t, c.IsLicenseValid(now))
	assert.False(t, c.IsLicenseValid(end.Add(time.Second)))
}

func TestIsLicenseValid_InactiveStatuses(t *testing.T) {
	end := time.Now().Add(24 * time.Hour)
	for _, st := range []LicenseStatus{StatusPending, StatusExpired, StatusPaymentFailed, StatusCancelled, StatusSuspended} {
		c := activeCustomer(LicenseProfessional, &end)
		c.License.Status = st
		assert.False(t, c.IsLicenseValid(time.Now()), st)
	}
}

func TestCanDownload(t *testing.T) {
	now := time.Now()
	end := now.Add(time.Hour)
	c := activeCustomer(LicenseProfessional, &end)

	assert.True(t, c.CanDownload(PlatformWindows, now))
	assert.False(t, c.CanDownload(PlatformAndroid, now))

	c.License.Status = StatusExpired
	assert.False(t, c.CanDownload(PlatformWindows, now))
}

func TestActivate_SetsActivationDateOnce(t *testing.T) {
	c := &Customer{License: License{Type: LicenseProfessional, Status: StatusPending}}
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	c.Activate("K1", first.AddDate(0, 0, 30), first)
	c.Activate("K2", second.AddDate(0, 0, 30), second)

	assert.Equal(t, StatusActive, c.License.Status)
	assert.Equal(t, "K2", c.License.Key)
	assert.Equal(t, first, *c.License.ActivationDate)
	assert.Equal(t, first, *c.License.StartDate)
	assert.Equal(t, second.AddDate(0, 0, 30), *c.License.EndDate)
}

func TestHasCapturedPayment(t *testing.T) {
	end := time.Now().Add(time.Hour)
	c := activeCustomer(LicenseProfessional, &end)
	c.RecordPayment(PaymentRecord{PaymentID: "pay_0", Status: PaymentFailed})
	c.RecordPayment(PaymentRecord{PaymentID: "pay_1", Status: PaymentCaptured})

	assert.True(t, c.HasCapturedPayment("pay_1"))
	assert.False(t, c.HasCapturedPayment("pay_0"))
	assert.False(t, c.HasCapturedPayment("pay_2"))
	assert.False(t, c.HasCapturedPayment(""))
	assert.True(t, c.HasPaymentRecord("pay_0", PaymentFailed))

	c.License.Status = StatusExpired
	assert.True(t, c.HasCapturedPayment("pay_1"), "history outlives the license status")
}

func TestEnumsAndEmail(t *testing.T) {
	assert.True(t, IndustryWholesale.Valid())
	assert.False(t, Industry("farming").Valid())
	assert.True(t, PlatformAndroid.Valid())
	assert.False(t, Platform("ios").Valid())
	assert.True(t, LicenseEnterprise.Valid())
	assert.False(t, LicenseType("trial").Valid())
	assert.True(t, LicenseProfessional.Paid())
	assert.False(t, LicenseDemo.Paid())

	assert.Equal(t, "owner@shop.example", NormalizeEmail("  Owner@Shop.Example "))
	assert.True(t, ValidEmail("owner@shop.example"))
	assert.False(t, ValidEmail("not-an-email"))
	assert.False(t, ValidEmail("Owner <owner@shop.example>"))
}
