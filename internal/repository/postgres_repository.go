package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lassod/po-limiter/internal/models"
)

var (
	// ErrDuplicateLimit is returned when a second limit record is created for the same (user, company) pair
	ErrDuplicateLimit = errors.New("limit record already exists for this user and company")

	// ErrMonthlyCapExceeded is returned by the guarded usage increment when a concurrent
	// submission has consumed the remaining monthly headroom
	ErrMonthlyCapExceeded = errors.New("monthly usage would exceed the per-month limit")
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListEnabledUsers(ctx context.Context) ([]models.User, error)
	GrantRole(ctx context.Context, userID, role string) error
	UserHasRole(ctx context.Context, userID string, roles ...string) (bool, error)

	// Company operations
	CreateCompany(ctx context.Context, company *models.Company) error
	GetCompanyByName(ctx context.Context, name string) (*models.Company, error)
	ListEnabledCompanies(ctx context.Context) ([]models.Company, error)

	// Limit record operations
	CreatePOLimit(ctx context.Context, limit *models.POLimit) error
	GetPOLimit(ctx context.Context, userID, company string) (*models.POLimit, error)
	ListPOLimits(ctx context.Context) ([]models.POLimit, error)
	UpdatePOLimit(ctx context.Context, limit *models.POLimit) error
	UpdatePOLimitCaps(ctx context.Context, limitID string, perPO, perMonth float64) error
	ResetMonthlyUsage(ctx context.Context, limitID string, resetDate time.Time) error
	SetMonthlyUsage(ctx context.Context, limitID string, usage float64, resetDate time.Time) error

	// Purchase order operations
	CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error
	GetPurchaseOrder(ctx context.Context, id string) (*models.PurchaseOrder, error)
	ListUserPurchaseOrders(ctx context.Context, owner string) ([]models.PurchaseOrder, error)
	SetPurchaseOrderStatus(ctx context.Context, id, status string) error
	FinalizePurchaseOrder(ctx context.Context, poID, limitID string, amount float64) error
	CancelPurchaseOrder(ctx context.Context, poID, limitID string, amount float64) error
	SumSubmittedPOTotals(ctx context.Context, owner, company string, from, to time.Time) (float64, error)

	// Increase request operations
	CreateLimitRequest(ctx context.Context, req *models.LimitIncreaseRequest) error
	GetLimitRequest(ctx context.Context, id string) (*models.LimitIncreaseRequest, error)
	UpdateLimitRequest(ctx context.Context, req *models.LimitIncreaseRequest) error
	ListPendingRequests(ctx context.Context) ([]models.LimitIncreaseRequest, error)
	ListUserRequests(ctx context.Context, userID string) ([]models.LimitIncreaseRequest, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name, password, enabled, user_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	// Generate a new UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.UserType == "" {
		user.UserType = "System User"
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Password, user.Enabled, user.UserType,
		user.CreatedAt, user.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT * FROM users WHERE email = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) ListEnabledUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT * FROM users WHERE enabled = TRUE ORDER BY email`

	var users []models.User
	err := r.db.SelectContext(ctx, &users, query)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *PostgresRepository) GrantRole(ctx context.Context, userID, role string) error {
	query := `
		INSERT INTO user_roles (user_id, role) VALUES ($1, $2)
		ON CONFLICT (user_id, role) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, userID, role)
	return err
}

func (r *PostgresRepository) UserHasRole(ctx context.Context, userID string, roles ...string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM user_roles WHERE user_id = $1 AND role = ANY($2))`

	var has bool
	err := r.db.GetContext(ctx, &has, query, userID, pq.Array(roles))
	if err != nil {
		return false, err
	}

	return has, nil
}

// Company repository methods
func (r *PostgresRepository) CreateCompany(ctx context.Context, company *models.Company) error {
	query := `
		INSERT INTO companies (id, name, abbr, currency, enabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	company.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		company.ID, company.Name, company.Abbr, company.Currency, company.Enabled, company.CreatedAt)

	return err
}

func (r *PostgresRepository) GetCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	query := `SELECT * FROM companies WHERE name = $1`

	var company models.Company
	err := r.db.GetContext(ctx, &company, query, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Company not found
		}
		return nil, err
	}

	return &company, nil
}

func (r *PostgresRepository) ListEnabledCompanies(ctx context.Context) ([]models.Company, error) {
	query := `SELECT * FROM companies WHERE enabled = TRUE ORDER BY name`

	var companies []models.Company
	err := r.db.SelectContext(ctx, &companies, query)
	if err != nil {
		return nil, err
	}

	return companies, nil
}

// Limit record repository methods
func (r *PostgresRepository) CreatePOLimit(ctx context.Context, limit *models.POLimit) error {
	query := `
		INSERT INTO po_limits (id, user_id, company, status, per_po_limit, per_month_limit,
			monthly_usage, last_reset_date, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if limit.ID == "" {
		limit.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if limit.LastResetDate.IsZero() {
		limit.LastResetDate = now
	}
	limit.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		limit.ID, limit.UserID, limit.Company, limit.Status, limit.PerPOLimit, limit.PerMonthLimit,
		limit.MonthlyUsage, limit.LastResetDate, limit.UpdatedBy, limit.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrDuplicateLimit
	}

	return err
}

func (r *PostgresRepository) GetPOLimit(ctx context.Context, userID, company string) (*models.POLimit, error) {
	query := `SELECT * FROM po_limits WHERE user_id = $1 AND company = $2`

	var limit models.POLimit
	err := r.db.GetContext(ctx, &limit, query, userID, company)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No limit record
		}
		return nil, err
	}

	return &limit, nil
}

func (r *PostgresRepository) ListPOLimits(ctx context.Context) ([]models.POLimit, error) {
	query := `SELECT * FROM po_limits ORDER BY user_id, company`

	var limits []models.POLimit
	err := r.db.SelectContext(ctx, &limits, query)
	if err != nil {
		return nil, err
	}

	return limits, nil
}

func (r *PostgresRepository) UpdatePOLimit(ctx context.Context, limit *models.POLimit) error {
	query := `
		UPDATE po_limits
		SET status = $2, per_po_limit = $3, per_month_limit = $4, updated_by = $5, updated_at = $6
		WHERE id = $1
	`

	limit.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		limit.ID, limit.Status, limit.PerPOLimit, limit.PerMonthLimit, limit.UpdatedBy, limit.UpdatedAt)

	return err
}

// UpdatePOLimitCaps writes new caps only, leaving status and usage untouched.
// This is the approval path: a Revoked record stays revoked until an admin flips it.
func (r *PostgresRepository) UpdatePOLimitCaps(ctx context.Context, limitID string, perPO, perMonth float64) error {
	query := `
		UPDATE po_limits
		SET per_po_limit = $2, per_month_limit = $3, updated_at = $4
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, limitID, perPO, perMonth, time.Now().UTC())
	return err
}

func (r *PostgresRepository) ResetMonthlyUsage(ctx context.Context, limitID string, resetDate time.Time) error {
	query := `
		UPDATE po_limits
		SET monthly_usage = 0, last_reset_date = $2, updated_at = $3
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, limitID, resetDate, time.Now().UTC())
	return err
}

func (r *PostgresRepository) SetMonthlyUsage(ctx context.Context, limitID string, usage float64, resetDate time.Time) error {
	query := `
		UPDATE po_limits
		SET monthly_usage = $2, last_reset_date = $3, updated_at = $4
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, limitID, usage, resetDate, time.Now().UTC())
	return err
}

// Purchase order repository methods
func (r *PostgresRepository) CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (id, owner, company, supplier, base_grand_total, status,
			transaction_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if po.ID == "" {
		po.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if po.TransactionDate.IsZero() {
		po.TransactionDate = now
	}
	po.CreatedAt = now
	po.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		po.ID, po.Owner, po.Company, po.Supplier, po.BaseGrandTotal, po.Status,
		po.TransactionDate, po.CreatedAt, po.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetPurchaseOrder(ctx context.Context, id string) (*models.PurchaseOrder, error) {
	query := `SELECT * FROM purchase_orders WHERE id = $1`

	var po models.PurchaseOrder
	err := r.db.GetContext(ctx, &po, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Purchase order not found
		}
		return nil, err
	}

	return &po, nil
}

func (r *PostgresRepository) ListUserPurchaseOrders(ctx context.Context, owner string) ([]models.PurchaseOrder, error) {
	query := `SELECT * FROM purchase_orders WHERE owner = $1 ORDER BY created_at DESC`

	var orders []models.PurchaseOrder
	err := r.db.SelectContext(ctx, &orders, query, owner)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *PostgresRepository) SetPurchaseOrderStatus(ctx context.Context, id, status string) error {
	query := `UPDATE purchase_orders SET status = $2, updated_at = $3 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	return err
}

// FinalizePurchaseOrder flips the order to Submitted and adds its amount to the
// monthly usage counter in a single transaction. The increment is guarded: it only
// lands while the per-month cap still holds, so two concurrent submissions serialize
// on the limit row and the loser is rejected with ErrMonthlyCapExceeded.
func (r *PostgresRepository) FinalizePurchaseOrder(ctx context.Context, poID, limitID string, amount float64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	var newUsage float64
	err = tx.QueryRowContext(ctx,
		`UPDATE po_limits
		SET monthly_usage = monthly_usage + $2, updated_at = $3
		WHERE id = $1
		AND (per_month_limit <= 0 OR monthly_usage + $2 <= per_month_limit)
		RETURNING monthly_usage`,
		limitID, amount, time.Now().UTC()).Scan(&newUsage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrMonthlyCapExceeded
		}
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE purchase_orders SET status = $2, updated_at = $3 WHERE id = $1`,
		poID, models.POStatusSubmitted, time.Now().UTC())
	if err != nil {
		return err
	}

	return tx.Commit()
}

// CancelPurchaseOrder flips the order to Cancelled and decrements the monthly usage
// counter, floored at zero. An empty limitID skips the usage adjustment.
func (r *PostgresRepository) CancelPurchaseOrder(ctx context.Context, poID, limitID string, amount float64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	_, err = tx.ExecContext(ctx,
		`UPDATE purchase_orders SET status = $2, updated_at = $3 WHERE id = $1`,
		poID, models.POStatusCancelled, time.Now().UTC())
	if err != nil {
		return err
	}

	if limitID != "" && amount > 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE po_limits
			SET monthly_usage = GREATEST(0, monthly_usage - $2), updated_at = $3
			WHERE id = $1`,
			limitID, amount, time.Now().UTC())
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresRepository) SumSubmittedPOTotals(
	ctx context.Context,
	owner string,
	company string,
	from time.Time,
	to time.Time,
) (float64, error) {
	query := `
		SELECT COALESCE(SUM(base_grand_total), 0) FROM purchase_orders
		WHERE owner = $1 AND company = $2 AND status = $3
		AND transaction_date >= $4 AND transaction_date < $5
	`

	var total float64
	err := r.db.GetContext(ctx, &total, query, owner, company, models.POStatusSubmitted, from, to)
	if err != nil {
		return 0, err
	}

	return total, nil
}

// Increase request repository methods
func (r *PostgresRepository) CreateLimitRequest(ctx context.Context, req *models.LimitIncreaseRequest) error {
	query := `
		INSERT INTO limit_increase_requests (id, user_id, company, current_per_po, current_per_month,
			requested_per_po, requested_per_month, reason, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.UserID, req.Company, req.CurrentPerPO, req.CurrentPerMonth,
		req.RequestedPerPO, req.RequestedPerMonth, req.Reason, req.Status, req.CreatedAt, req.UpdatedAt)

	return err
}

func (r *PostgresRepository) GetLimitRequest(ctx context.Context, id string) (*models.LimitIncreaseRequest, error) {
	query := `SELECT * FROM limit_increase_requests WHERE id = $1`

	var req models.LimitIncreaseRequest
	err := r.db.GetContext(ctx, &req, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Request not found
		}
		return nil, err
	}

	return &req, nil
}

func (r *PostgresRepository) UpdateLimitRequest(ctx context.Context, req *models.LimitIncreaseRequest) error {
	query := `
		UPDATE limit_increase_requests
		SET current_per_po = $2, current_per_month = $3, requested_per_po = $4,
			requested_per_month = $5, reason = $6, status = $7, approved_by = $8,
			approval_date = $9, rejection_reason = $10, updated_at = $11
		WHERE id = $1
	`

	req.UpdatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.CurrentPerPO, req.CurrentPerMonth, req.RequestedPerPO,
		req.RequestedPerMonth, req.Reason, req.Status, req.ApprovedBy,
		req.ApprovalDate, req.RejectionReason, req.UpdatedAt)

	return err
}

func (r *PostgresRepository) ListPendingRequests(ctx context.Context) ([]models.LimitIncreaseRequest, error) {
	query := `SELECT * FROM limit_increase_requests WHERE status = $1 ORDER BY created_at`

	var requests []models.LimitIncreaseRequest
	err := r.db.SelectContext(ctx, &requests, query, models.RequestStatusPending)
	if err != nil {
		return nil, err
	}

	return requests, nil
}

func (r *PostgresRepository) ListUserRequests(ctx context.Context, userID string) ([]models.LimitIncreaseRequest, error) {
	query := `SELECT * FROM limit_increase_requests WHERE user_id = $1 ORDER BY created_at DESC`

	var requests []models.LimitIncreaseRequest
	err := r.db.SelectContext(ctx, &requests, query, userID)
	if err != nil {
		return nil, err
	}

	return requests, nil
}
