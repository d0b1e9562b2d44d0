package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/avendale/tutorhive/internal/pagination"
)

// PostgresStore persists tenants in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tenant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) CreateInstitution(ctx context.Context, inst *Institution) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO institutions (id, name, contact_email, phone, address, subscription_status, payment_order_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		inst.ID, inst.Name, inst.ContactEmail, inst.Phone, inst.Address,
		string(inst.SubscriptionStatus), inst.PaymentOrderID, inst.CreatedAt, inst.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetInstitution(ctx context.Context, id string) (*Institution, error) {
	return scanInstitution(p.db.QueryRowContext(ctx, `
		SELECT id, name, contact_email, phone, address, subscription_status, payment_order_id, created_at, updated_at
		FROM institutions WHERE id = $1`, id))
}

func (p *PostgresStore) DeleteInstitution(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM institutions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRows(res, ErrInstitutionNotFound)
}

func (p *PostgresStore) ListInstitutions(ctx context.Context, limit int, after *pagination.Cursor) ([]*Institution, error) {
	query := `
		SELECT id, name, contact_email, phone, address, subscription_status, payment_order_id, created_at, updated_at
		FROM institutions`
	args := []any{limit}
	if after != nil {
		query += ` WHERE (created_at, id) < ($2, $3)`
		args = append(args, after.CreatedAt, after.ID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $1`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Institution
	for rows.Next() {
		inst, err := scanInstitution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpsertAdminProfile(ctx context.Context, prof *AdminProfile) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO admin_profiles (id, identity_id, institution_id, role, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (institution_id) DO UPDATE
		SET identity_id = EXCLUDED.identity_id, role = EXCLUDED.role, status = EXCLUDED.status`,
		prof.ID, prof.IdentityID, prof.InstitutionID, string(prof.Role), prof.Status, prof.CreatedAt,
	)
	return err
}

func (p *PostgresStore) GetAdminProfile(ctx context.Context, institutionID string) (*AdminProfile, error) {
	prof := &AdminProfile{}
	var role string
	err := p.db.QueryRowContext(ctx, `
		SELECT id, identity_id, institution_id, role, status, created_at
		FROM admin_profiles WHERE institution_id = $1`, institutionID).
		Scan(&prof.ID, &prof.IdentityID, &prof.InstitutionID, &role, &prof.Status, &prof.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, err
	}
	prof.Role = AdminRole(role)
	return prof, nil
}

func (p *PostgresStore) DeleteAdminProfile(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM admin_profiles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRows(res, ErrAdminNotFound)
}

func (p *PostgresStore) CreateSubscription(ctx context.Context, sub *SubscriptionRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, institution_id, plan_id, amount, currency, order_id, status, start_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sub.ID, sub.InstitutionID, string(sub.PlanID), sub.Amount, sub.Currency,
		sub.OrderID, string(sub.Status), sub.StartDate, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrSubscriptionExists
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetSubscription(ctx context.Context, institutionID string) (*SubscriptionRecord, error) {
	return scanSubscription(p.db.QueryRowContext(ctx, `
		SELECT id, institution_id, plan_id, amount, currency, order_id, status, start_date, created_at, updated_at
		FROM subscriptions WHERE institution_id = $1`, institutionID))
}

func (p *PostgresStore) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRows(res, ErrSubscriptionNotFound)
}

// LinkPaymentOrder writes the order→institution link and claims the
// institution's payment_order_id slot in one transaction. The guarded UPDATE
// enforces that an in-flight order is never displaced by a different one.
func (p *PostgresStore) LinkPaymentOrder(ctx context.Context, institutionID, orderID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE institutions
		SET payment_order_id = $2, updated_at = NOW()
		WHERE id = $1
		  AND (payment_order_id IS NULL
		       OR payment_order_id = $2
		       OR subscription_status IN ('active', 'cancelled', 'expired'))`,
		institutionID, orderID,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a missing institution from a blocked link.
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM institutions WHERE id = $1)`, institutionID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrInstitutionNotFound
		}
		return ErrOrderInFlight
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE subscriptions SET order_id = $2, updated_at = NOW() WHERE institution_id = $1`,
		institutionID, orderID,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payment_orders (order_id, institution_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (order_id) DO NOTHING`,
		orderID, institutionID,
	); err != nil {
		return err
	}

	// The ON CONFLICT no-op above would silently accept an order id that
	// belongs to a different institution; reject that explicitly.
	var owner string
	if err := tx.QueryRowContext(ctx,
		`SELECT institution_id FROM payment_orders WHERE order_id = $1`, orderID).Scan(&owner); err != nil {
		return err
	}
	if owner != institutionID {
		return ErrDuplicateOrder
	}

	return tx.Commit()
}

func (p *PostgresStore) SetOrderGatewayRef(ctx context.Context, orderID, gatewayRef string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE payment_orders SET gateway_ref = $2 WHERE order_id = $1`, orderID, gatewayRef)
	if err != nil {
		return err
	}
	return requireRows(res, ErrOrderNotFound)
}

func (p *PostgresStore) GetPaymentOrder(ctx context.Context, orderID string) (*PaymentOrder, error) {
	o := &PaymentOrder{}
	var ref sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT order_id, institution_id, gateway_ref, created_at
		FROM payment_orders WHERE order_id = $1`, orderID).
		Scan(&o.OrderID, &o.InstitutionID, &ref, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	if ref.Valid {
		o.GatewayRef = ref.String
	}
	return o, nil
}

// ActivateSubscription performs the guarded inactive→active transition on
// both rows inside one transaction. A zero-row guard means a concurrent
// writer got there first; the caller re-reads instead of erroring.
func (p *PostgresStore) ActivateSubscription(ctx context.Context, institutionID, orderID string, startDate time.Time) (bool, error) {
	return p.guardedTransition(ctx, institutionID, orderID, SubscriptionActive, &startDate)
}

// CancelSubscription performs the guarded inactive→cancelled transition.
func (p *PostgresStore) CancelSubscription(ctx context.Context, institutionID, orderID string) (bool, error) {
	return p.guardedTransition(ctx, institutionID, orderID, SubscriptionCancelled, nil)
}

func (p *PostgresStore) guardedTransition(ctx context.Context, institutionID, orderID string, to SubscriptionStatus, startDate *time.Time) (bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE institutions
		SET subscription_status = $3, updated_at = NOW()
		WHERE id = $1 AND subscription_status = 'inactive' AND payment_order_id = $2`,
		institutionID, orderID, string(to),
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM institutions WHERE id = $1)`, institutionID).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, ErrInstitutionNotFound
		}
		return false, nil
	}

	if startDate != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE subscriptions SET status = $2, start_date = $3, updated_at = NOW()
			WHERE institution_id = $1`,
			institutionID, string(to), *startDate,
		)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE subscriptions SET status = $2, updated_at = NOW()
			WHERE institution_id = $1`,
			institutionID, string(to),
		)
	}
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// CancelActiveSubscription performs the administrative active→cancelled
// transition on both rows.
func (p *PostgresStore) CancelActiveSubscription(ctx context.Context, institutionID string) (bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE institutions
		SET subscription_status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND subscription_status = 'active'`,
		institutionID,
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM institutions WHERE id = $1)`, institutionID).Scan(&exists); err != nil {
			return false, err
		}
		if !exists {
			return false, ErrInstitutionNotFound
		}
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE subscriptions SET status = 'cancelled', updated_at = NOW()
		WHERE institution_id = $1`, institutionID,
	); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstitution(row rowScanner) (*Institution, error) {
	inst := &Institution{}
	var status string
	var orderID sql.NullString
	err := row.Scan(&inst.ID, &inst.Name, &inst.ContactEmail, &inst.Phone, &inst.Address,
		&status, &orderID, &inst.CreatedAt, &inst.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInstitutionNotFound
	}
	if err != nil {
		return nil, err
	}
	inst.SubscriptionStatus = SubscriptionStatus(status)
	if orderID.Valid {
		inst.PaymentOrderID = orderID.String
	}
	return inst, nil
}

func scanSubscription(row rowScanner) (*SubscriptionRecord, error) {
	sub := &SubscriptionRecord{}
	var planID, status string
	var startDate sql.NullTime
	err := row.Scan(&sub.ID, &sub.InstitutionID, &planID, &sub.Amount, &sub.Currency,
		&sub.OrderID, &status, &startDate, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	sub.PlanID = Plan(planID)
	sub.Status = SubscriptionStatus(status)
	if startDate.Valid {
		t := startDate.Time
		sub.StartDate = &t
	}
	return sub, nil
}

func requireRows(res sql.Result, notFound error) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
