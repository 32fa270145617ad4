package customer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ListParams struct {
	Offset int
	Limit  int
}

type CountFilter struct {
	Status *LicenseStatus
	Type   *LicenseType
}

// Repository is the customer document store. Implementations enforce
// uniqueness of the normalized email and of issued license keys, and
// return ierr.ErrDuplicateEmail / ierr.ErrDuplicateLicenseKey on violation.
// Update is a compare-and-swap on Version and returns ierr.ErrConflict when
// the stored version moved on.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindByEmail(ctx context.Context, email string) (*Customer, error)
	FindByLicenseKey(ctx context.Context, key string) (*Customer, error)
	FindByOrderID(ctx context.Context, orderID string) (*Customer, error)
	Update(ctx context.Context, c *Customer) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params ListParams) ([]*Customer, int64, error)
	Count(ctx context.Context, filter CountFilter) (int64, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*Customer, error)
}
