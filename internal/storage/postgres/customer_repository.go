package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/ledgerpro-license-api/internal/domain/customer"
	"github.com/makkenzo/ledgerpro-license-api/internal/ierr"
	"go.uber.org/zap"
)

const (
	uniqueViolation = "23505"

	emailConstraint      = "customers_email_key"
	licenseKeyConstraint = "customers_license_key_key"
)

const customerColumns = `
            id, business_name, email, phone, industry, platform, business_needs,
            license_type, license_key, license_status, license_start_date, license_end_date,
            license_activation_date, license_last_verified,
            gateway_order_id, gateway_payment_id, gateway_signature,
            downloads, payments, version, created_at, updated_at`

type CustomerRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCustomerRepository(db *pgxpool.Pool, logger *zap.Logger) *CustomerRepository {
	return &CustomerRepository{
		db:     db,
		logger: logger.Named("CustomerRepository"),
	}
}

var _ customer.Repository = (*CustomerRepository)(nil)

func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Email = customer.NormalizeEmail(c.Email)

	downloads, payments, err := encodeHistory(c)
	if err != nil {
		return err
	}

	query := `
        INSERT INTO customers (
            id, business_name, email, phone, industry, platform, business_needs,
            license_type, license_key, license_status, license_start_date, license_end_date,
            license_activation_date, license_last_verified,
            gateway_order_id, gateway_payment_id, gateway_signature,
            downloads, payments, version
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 1
        ) RETURNING version, created_at, updated_at
    `

	err = r.db.QueryRow(ctx, query,
		c.ID,
		c.BusinessName,
		c.Email,
		c.Phone,
		c.Industry,
		c.Platform,
		c.BusinessNeeds,
		c.License.Type,
		nullString(c.License.Key),
		c.License.Status,
		c.License.StartDate,
		c.License.EndDate,
		c.License.ActivationDate,
		c.License.LastVerified,
		nullString(c.GatewayOrderID),
		nullString(c.GatewayPaymentID),
		nullString(c.GatewaySignature),
		downloads,
		payments,
	).Scan(&c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if mapped := r.mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		r.logger.Error("Failed to create customer in database", zap.Error(err))
		return fmt.Errorf("database error on create customer: %w", err)
	}

	r.logger.Debug("Customer created", zap.String("id", c.ID.String()))
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	return r.findOne(ctx, "lower(email) = $1", customer.NormalizeEmail(email))
}

func (r *CustomerRepository) FindByLicenseKey(ctx context.Context, key string) (*customer.Customer, error) {
	if key == "" {
		return nil, ierr.ErrNotFound
	}
	return r.findOne(ctx, "license_key = $1", key)
}

func (r *CustomerRepository) FindByOrderID(ctx context.Context, orderID string) (*customer.Customer, error) {
	if orderID == "" {
		return nil, ierr.ErrNotFound
	}
	return r.findOne(ctx, "gateway_order_id = $1", orderID)
}

// Update writes every mutable field when the stored version still matches
// c.Version. On success c.Version and c.UpdatedAt reflect the new row.
func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	downloads, payments, err := encodeHistory(c)
	if err != nil {
		return err
	}

	query := `
        UPDATE customers SET
            business_name = $1,
            email = $2,
            phone = $3,
            industry = $4,
            platform = $5,
            business_needs = $6,
            license_type = $7,
            license_key = $8,
            license_status = $9,
            license_start_date = $10,
            license_end_date = $11,
            license_activation_date = $12,
            license_last_verified = $13,
            gateway_order_id = $14,
            gateway_payment_id = $15,
            gateway_signature = $16,
            downloads = $17,
            payments = $18,
            version = version + 1,
            updated_at = now()
        WHERE id = $19 AND version = $20
        RETURNING version, updated_at
    `

	err = r.db.QueryRow(ctx, query,
		c.BusinessName,
		customer.NormalizeEmail(c.Email),
		c.Phone,
		c.Industry,
		c.Platform,
		c.BusinessNeeds,
		c.License.Type,
		nullString(c.License.Key),
		c.License.Status,
		c.License.StartDate,
		c.License.EndDate,
		c.License.ActivationDate,
		c.License.LastVerified,
		nullString(c.GatewayOrderID),
		nullString(c.GatewayPaymentID),
		nullString(c.GatewaySignature),
		downloads,
		payments,
		c.ID,
		c.Version,
	).Scan(&c.Version, &c.UpdatedAt)
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		exists, existsErr := r.exists(ctx, c.ID)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return ierr.ErrNotFound
		}
		r.logger.Warn("Customer version moved on, update rejected",
			zap.String("id", c.ID.String()),
			zap.Int64("version", c.Version),
		)
		return ierr.ErrConflict
	}
	if mapped := r.mapUniqueViolation(err); mapped != nil {
		return mapped
	}

	r.logger.Error("Failed to update customer in database", zap.String("id", c.ID.String()), zap.Error(err))
	return fmt.Errorf("database error on update customer: %w", err)
}

func (r *CustomerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete customer", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("database error on delete customer: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ierr.ErrNotFound
	}
	return nil
}

func (r *CustomerRepository) List(ctx context.Context, params customer.ListParams) ([]*customer.Customer, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM customers`).Scan(&total); err != nil {
		r.logger.Error("Failed to count customers", zap.Error(err))
		return nil, 0, fmt.Errorf("database error on count customers: %w", err)
	}

	query := `SELECT` + customerColumns + `
        FROM customers
        ORDER BY created_at DESC, id
        LIMIT $1 OFFSET $2
    `
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	customers, err := r.queryMany(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return customers, total, nil
}

func (r *CustomerRepository) Count(ctx context.Context, filter customer.CountFilter) (int64, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("license_status = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, *filter.Type)
		conds = append(conds, fmt.Sprintf("license_type = $%d", len(args)))
	}

	query := `SELECT count(*) FROM customers`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	var n int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		r.logger.Error("Failed to count customers", zap.Error(err))
		return 0, fmt.Errorf("database error on count customers: %w", err)
	}
	return n, nil
}

// ListExpired returns active licenses whose end date is strictly before now.
func (r *CustomerRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*customer.Customer, error) {
	query := `SELECT` + customerColumns + `
        FROM customers
        WHERE license_status = $1 AND license_end_date IS NOT NULL AND license_end_date < $2
        ORDER BY license_end_date
    `
	args := []any{customer.StatusActive, now}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}
	return r.queryMany(ctx, query, args...)
}

func (r *CustomerRepository) findOne(ctx context.Context, where string, arg any) (*customer.Customer, error) {
	query := `SELECT` + customerColumns + `
        FROM customers
        WHERE ` + where

	c, err := scanCustomer(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ierr.ErrNotFound
		}
		r.logger.Error("Failed to scan customer row", zap.Error(err))
		return nil, fmt.Errorf("database scan error: %w", err)
	}
	return c, nil
}

func (r *CustomerRepository) queryMany(ctx context.Context, query string, args ...any) ([]*customer.Customer, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query customers", zap.Error(err))
		return nil, fmt.Errorf("database error on list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]*customer.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			r.logger.Error("Failed to scan customer row during list", zap.Error(err))
			return nil, fmt.Errorf("database scan error during list: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating customer rows", zap.Error(err))
		return nil, fmt.Errorf("database iteration error on list customers: %w", err)
	}
	return customers, nil
}

func (r *CustomerRepository) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("database error on customer lookup: %w", err)
	}
	return ok, nil
}

func (r *CustomerRepository) mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	r.logger.Warn("Unique constraint violated", zap.String("constraint", pgErr.ConstraintName))
	return uniqueViolationError(pgErr.ConstraintName)
}

func uniqueViolationError(constraint string) error {
	switch constraint {
	case emailConstraint:
		return ierr.ErrDuplicateEmail
	case licenseKeyConstraint:
		return ierr.ErrDuplicateLicenseKey
	default:
		return fmt.Errorf("%w: unique constraint %s", ierr.ErrConflict, constraint)
	}
}

func scanCustomer(row pgx.Row) (*customer.Customer, error) {
	var (
		c                            customer.Customer
		key, orderID, paymentID, sig *string
		downloadsJSON, paymentsJSON  []byte
	)

	err := row.Scan(
		&c.ID,
		&c.BusinessName,
		&c.Email,
		&c.Phone,
		&c.Industry,
		&c.Platform,
		&c.BusinessNeeds,
		&c.License.Type,
		&key,
		&c.License.Status,
		&c.License.StartDate,
		&c.License.EndDate,
		&c.License.ActivationDate,
		&c.License.LastVerified,
		&orderID,
		&paymentID,
		&sig,
		&downloadsJSON,
		&paymentsJSON,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.License.Key = deref(key)
	c.GatewayOrderID = deref(orderID)
	c.GatewayPaymentID = deref(paymentID)
	c.GatewaySignature = deref(sig)

	if err := json.Unmarshal(downloadsJSON, &c.Downloads); err != nil {
		return nil, fmt.Errorf("decode downloads: %w", err)
	}
	if err := json.Unmarshal(paymentsJSON, &c.Payments); err != nil {
		return nil, fmt.Errorf("decode payments: %w", err)
	}
	return &c, nil
}

func encodeHistory(c *customer.Customer) (downloads, payments []byte, err error) {
	d := c.Downloads
	if d == nil {
		d = []customer.Download{}
	}
	p := c.Payments
	if p == nil {
		p = []customer.PaymentRecord{}
	}
	if downloads, err = json.Marshal(d); err != nil {
		return nil, nil, fmt.Errorf("encode downloads: %w", err)
	}
	if payments, err = json.Marshal(p); err != nil {
		return nil, nil, fmt.Errorf("encode payments: %w", err)
	}
	return downloads, payments, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
