package memstorage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
)

// CustomerRepository keeps customers in process memory. It enforces the
// same uniqueness and version rules as the Postgres store.
type CustomerRepository struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]*customer.Customer
	now       func() time.Time
}

var _ customer.Repository = (*CustomerRepository)(nil)

func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{
		customers: make(map[uuid.UUID]*customer.Customer),
		now:       time.Now,
	}
}

func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if err := r.checkUnique(c); err != nil {
		return err
	}

	now := r.now()
	c.Version = 1
	c.CreatedAt = now
	c.UpdatedAt = now
	r.customers[c.ID] = clone(c)
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.customers[id]
	if !ok {
		return nil, ierr.ErrNotFound
	}
	return clone(c), nil
}

func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	email = customer.NormalizeEmail(email)
	return r.findFirst(func(c *customer.Customer) bool { return c.Email == email })
}

func (r *CustomerRepository) FindByLicenseKey(ctx context.Context, key string) (*customer.Customer, error) {
	if key == "" {
		return nil, ierr.ErrNotFound
	}
	return r.findFirst(func(c *customer.Customer) bool { return c.License.Key == key })
}

func (r *CustomerRepository) FindByOrderID(ctx context.Context, orderID string) (*customer.Customer, error) {
	if orderID == "" {
		return nil, ierr.ErrNotFound
	}
	return r.findFirst(func(c *customer.Customer) bool { return c.GatewayOrderID == orderID })
}

func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.customers[c.ID]
	if !ok {
		return ierr.ErrNotFound
	}
	if stored.Version != c.Version {
		return ierr.ErrConflict
	}
	if err := r.checkUnique(c); err != nil {
		return err
	}

	c.Version++
	c.UpdatedAt = r.now()
	r.customers[c.ID] = clone(c)
	return nil
}

func (r *CustomerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.customers[id]; !ok {
		return ierr.ErrNotFound
	}
	delete(r.customers, id)
	return nil
}

func (r *CustomerRepository) List(ctx context.Context, params customer.ListParams) ([]*customer.Customer, int64, error) {
	r.mu.RLock()
	all := make([]*customer.Customer, 0, len(r.customers))
	for _, c := range r.customers {
		all = append(all, clone(c))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if params.Offset >= len(all) {
		return []*customer.Customer{}, total, nil
	}
	end := len(all)
	if params.Limit > 0 && params.Offset+params.Limit < end {
		end = params.Offset + params.Limit
	}
	return all[params.Offset:end], total, nil
}

func (r *CustomerRepository) Count(ctx context.Context, filter customer.CountFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, c := range r.customers {
		if filter.Status != nil && c.License.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && c.License.Type != *filter.Type {
			continue
		}
		n++
	}
	return n, nil
}

func (r *CustomerRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*customer.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*customer.Customer, 0)
	for _, c := range r.customers {
		if c.License.Status != customer.StatusActive || c.License.EndDate == nil || !c.License.EndDate.Before(now) {
			continue
		}
		out = append(out, clone(c))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *CustomerRepository) findFirst(match func(*customer.Customer) bool) (*customer.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.customers {
		if match(c) {
			return clone(c), nil
		}
	}
	return nil, ierr.ErrNotFound
}

// checkUnique must be called with the write lock held.
func (r *CustomerRepository) checkUnique(c *customer.Customer) error {
	email := customer.NormalizeEmail(c.Email)
	for id, other := range r.customers {
		if id == c.ID {
			continue
		}
		if other.Email == email {
			return ierr.ErrDuplicateEmail
		}
		if c.License.Key != "" && other.License.Key == c.License.Key {
			return ierr.ErrDuplicateLicenseKey
		}
	}
	c.Email = email
	return nil
}

func clone(c *customer.Customer) *customer.Customer {
	cp := *c
	cp.License.StartDate = cloneTime(c.License.StartDate)
	cp.License.EndDate = cloneTime(c.License.EndDate)
	cp.License.ActivationDate = cloneTime(c.License.ActivationDate)
	cp.License.LastVerified = cloneTime(c.License.LastVerified)
	cp.Downloads = append([]customer.Download(nil), c.Downloads...)
	cp.Payments = append([]customer.PaymentRecord(nil), c.Payments...)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
