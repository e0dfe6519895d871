package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lassod/po-limiter/internal/models"
)

// MemoryRepository is an in-memory Repository implementation. It backs the test
// suite so the full HTTP and service stack can run without a database; the
// guarded usage increment mirrors the SQL semantics under a single mutex.
type MemoryRepository struct {
	mu        sync.Mutex
	users     map[string]*models.User
	roles     map[string]map[string]bool // userID -> role set
	companies map[string]*models.Company // by name
	limits    map[string]*models.POLimit // by ID
	orders    map[string]*models.PurchaseOrder
	requests  map[string]*models.LimitIncreaseRequest
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:     make(map[string]*models.User),
		roles:     make(map[string]map[string]bool),
		companies: make(map[string]*models.Company),
		limits:    make(map[string]*models.POLimit),
		orders:    make(map[string]*models.PurchaseOrder),
		requests:  make(map[string]*models.LimitIncreaseRequest),
	}
}

// User repository methods
func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.UserType == "" {
		user.UserType = "System User"
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) ListEnabledUsers(ctx context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var users []models.User
	for _, u := range r.users {
		if u.Enabled {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (r *MemoryRepository) GrantRole(ctx context.Context, userID, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.roles[userID] == nil {
		r.roles[userID] = make(map[string]bool)
	}
	r.roles[userID][role] = true
	return nil
}

func (r *MemoryRepository) UserHasRole(ctx context.Context, userID string, roles ...string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	held := r.roles[userID]
	for _, role := range roles {
		if held[role] {
			return true, nil
		}
	}
	return false, nil
}

// Company repository methods
func (r *MemoryRepository) CreateCompany(ctx context.Context, company *models.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if company.ID == "" {
		company.ID = uuid.New().String()
	}
	company.CreatedAt = time.Now().UTC()

	cp := *company
	r.companies[company.Name] = &cp
	return nil
}

func (r *MemoryRepository) GetCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.companies[name]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) ListEnabledCompanies(ctx context.Context) ([]models.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var companies []models.Company
	for _, c := range r.companies {
		if c.Enabled {
			companies = append(companies, *c)
		}
	}
	sort.Slice(companies, func(i, j int) bool { return companies[i].Name < companies[j].Name })
	return companies, nil
}

// Limit record repository methods
func (r *MemoryRepository) CreatePOLimit(ctx context.Context, limit *models.POLimit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.limits {
		if l.UserID == limit.UserID && l.Company == limit.Company {
			return ErrDuplicateLimit
		}
	}

	if limit.ID == "" {
		limit.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if limit.LastResetDate.IsZero() {
		limit.LastResetDate = now
	}
	limit.UpdatedAt = now

	cp := *limit
	r.limits[limit.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetPOLimit(ctx context.Context, userID, company string) (*models.POLimit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.limits {
		if l.UserID == userID && l.Company == company {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) ListPOLimits(ctx context.Context) ([]models.POLimit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var limits []models.POLimit
	for _, l := range r.limits {
		limits = append(limits, *l)
	}
	sort.Slice(limits, func(i, j int) bool {
		if limits[i].UserID != limits[j].UserID {
			return limits[i].UserID < limits[j].UserID
		}
		return limits[i].Company < limits[j].Company
	})
	return limits, nil
}

func (r *MemoryRepository) UpdatePOLimit(ctx context.Context, limit *models.POLimit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.limits[limit.ID]
	if !ok {
		return nil
	}

	stored.Status = limit.Status
	stored.PerPOLimit = limit.PerPOLimit
	stored.PerMonthLimit = limit.PerMonthLimit
	stored.UpdatedBy = limit.UpdatedBy
	stored.UpdatedAt = time.Now().UTC()
	limit.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *MemoryRepository) UpdatePOLimitCaps(ctx context.Context, limitID string, perPO, perMonth float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stored, ok := r.limits[limitID]; ok {
		stored.PerPOLimit = perPO
		stored.PerMonthLimit = perMonth
		stored.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepository) ResetMonthlyUsage(ctx context.Context, limitID string, resetDate time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stored, ok := r.limits[limitID]; ok {
		stored.MonthlyUsage = 0
		stored.LastResetDate = resetDate
		stored.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepository) SetMonthlyUsage(ctx context.Context, limitID string, usage float64, resetDate time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if stored, ok := r.limits[limitID]; ok {
		stored.MonthlyUsage = usage
		stored.LastResetDate = resetDate
		stored.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// Purchase order repository methods
func (r *MemoryRepository) CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if po.ID == "" {
		po.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if po.TransactionDate.IsZero() {
		po.TransactionDate = now
	}
	po.CreatedAt = now
	po.UpdatedAt = now

	cp := *po
	r.orders[po.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetPurchaseOrder(ctx context.Context, id string) (*models.PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	po, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *po
	return &cp, nil
}

func (r *MemoryRepository) ListUserPurchaseOrders(ctx context.Context, owner string) ([]models.PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var orders []models.PurchaseOrder
	for _, po := range r.orders {
		if po.Owner == owner {
			orders = append(orders, *po)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (r *MemoryRepository) SetPurchaseOrderStatus(ctx context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if po, ok := r.orders[id]; ok {
		po.Status = status
		po.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepository) FinalizePurchaseOrder(ctx context.Context, poID, limitID string, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	limit, ok := r.limits[limitID]
	if !ok {
		return ErrMonthlyCapExceeded
	}

	if limit.PerMonthLimit > 0 && limit.MonthlyUsage+amount > limit.PerMonthLimit {
		return ErrMonthlyCapExceeded
	}

	limit.MonthlyUsage += amount
	limit.UpdatedAt = time.Now().UTC()

	if po, ok := r.orders[poID]; ok {
		po.Status = models.POStatusSubmitted
		po.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryRepository) CancelPurchaseOrder(ctx context.Context, poID, limitID string, amount float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if po, ok := r.orders[poID]; ok {
		po.Status = models.POStatusCancelled
		po.UpdatedAt = time.Now().UTC()
	}

	if limitID != "" && amount > 0 {
		if limit, ok := r.limits[limitID]; ok {
			limit.MonthlyUsage -= amount
			if limit.MonthlyUsage < 0 {
				limit.MonthlyUsage = 0
			}
			limit.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (r *MemoryRepository) SumSubmittedPOTotals(
	ctx context.Context,
	owner string,
	company string,
	from time.Time,
	to time.Time,
) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var total float64
	for _, po := range r.orders {
		if po.Owner != owner || po.Company != company || po.Status != models.POStatusSubmitted {
			continue
		}
		if po.TransactionDate.Before(from) || !po.TransactionDate.Before(to) {
			continue
		}
		total += po.BaseGrandTotal
	}
	return total, nil
}

// Increase request repository methods
func (r *MemoryRepository) CreateLimitRequest(ctx context.Context, req *models.LimitIncreaseRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetLimitRequest(ctx context.Context, id string) (*models.LimitIncreaseRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (r *MemoryRepository) UpdateLimitRequest(ctx context.Context, req *models.LimitIncreaseRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req.UpdatedAt = time.Now().UTC()
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *MemoryRepository) ListPendingRequests(ctx context.Context) ([]models.LimitIncreaseRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var requests []models.LimitIncreaseRequest
	for _, req := range r.requests {
		if req.Status == models.RequestStatusPending {
			requests = append(requests, *req)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.Before(requests[j].CreatedAt) })
	return requests, nil
}

func (r *MemoryRepository) ListUserRequests(ctx context.Context, userID string) ([]models.LimitIncreaseRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var requests []models.LimitIncreaseRequest
	for _, req := range r.requests {
		if req.UserID == userID {
			requests = append(requests, *req)
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.After(requests[j].CreatedAt) })
	return requests, nil
}
