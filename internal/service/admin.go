package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lassod/po-limiter/internal/models"
	"github.com/lassod/po-limiter/internal/repository"
	"github.com/lassod/po-limiter/internal/utils"
)

// Administrative surface. Every method here is gated on an elevated role.

func (s *DefaultService) CreateCompany(ctx context.Context, actorID string, req models.CreateCompanyRequest) (*models.Company, error) {
	if err := s.requireElevatedRole(ctx, actorID); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetCompanyByName(ctx, req.Name)
	if err != nil {
		return nil, fmt.Errorf("error checking company existence: %w", err)
	}
	if existing != nil {
		return nil, errors.New("company with this name already exists")
	}

	company := &models.Company{
		Name:     req.Name,
		Abbr:     req.Abbr,
		Currency: req.Currency,
		Enabled:  true,
	}

	if err := s.repo.CreateCompany(ctx, company); err != nil {
		return nil, fmt.Errorf("error creating company: %w", err)
	}

	return company, nil
}

func (s *DefaultService) ListCompanies(ctx context.Context, actorID string) ([]models.Company, error) {
	if err := s.requireElevatedRole(ctx, actorID); err != nil {
		return nil, err
	}

	companies, err := s.repo.ListEnabledCompanies(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing companies: %w", err)
	}

	return companies, nil
}

func (s *DefaultService) GrantRole(ctx context.Context, actorID, userID, role string) error {
	if err := s.requireElevatedRole(ctx, actorID); err != nil {
		return err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	if err := s.repo.GrantRole(ctx, userID, role); err != nil {
		return fmt.Errorf("error granting role: %w", err)
	}

	return nil
}

// ListPurchaseUsers returns enabled system users holding a purchasing role
func (s *DefaultService) ListPurchaseUsers(ctx context.Context, actorID string) ([]models.User, error) {
	if err := s.requireElevatedRole(ctx, actorID); err != nil {
		return nil, err
	}

	users, err := s.repo.ListEnabledUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	purchaseUsers := make([]models.User, 0, len(users))
	for _, user := range users {
		if user.UserType != "System User" {
			continue
		}
		has, err := s.repo.UserHasRole(ctx, user.ID, models.PurchaseRoles...)
		if err != nil {
			return nil, fmt.Errorf("error checking roles for user %s: %w", user.ID, err)
		}
		if has {
			purchaseUsers = append(purchaseUsers, user)
		}
	}

	return purchaseUsers, nil
}

func (s *DefaultService) ListLimits(ctx context.Context, actorID string) ([]models.POLimit, error) {
	if err := s.requireElevatedRole(ctx, actorID); err != nil {
		return nil, err
	}

	limits, err := s.repo.ListPOLimits(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing limits: %w", err)
	}

	// Rollover check on read, so stale usage from a previous month is never shown
	for i := range limits {
		if err := s.ensureCurrentPeriod(ctx, &limits[i]); err != nil {
			return nil, fmt.Errorf("error resetting monthly usage: %w", err)
		}
	}

	return limits, nil
}

func (s *DefaultService) GetLimitDetails(ctx context.Context, actorID, userID, company string) (*models.POLimit, error) {
	if err := s.requireElevatedRole(ctx, actorID); err != nil {
		return nil, err
	}

	limit, err := s.repo.GetPOLimit(ctx, userID, company)
	if err != nil {
		return nil, fmt.Errorf("error getting limit record: %w", err)
	}
	if limit == nil {
		return nil, fmt.Errorf("%w: no limit record for user %s in company %q", ErrNotFound, userID, company)
	}

	if err := s.ensureCurrentPeriod(ctx, limit); err != nil {
		return nil, fmt.Errorf("error resetting monthly usage: %w", err)
	}

	return limit, nil
}

// UpsertLimit creates or updates a limit record's caps and status.
// A Revoked status forces both caps to zero.
func (s *DefaultService) UpsertLimit(ctx context.Context, actorID string, req models.UpsertLimitRequest) (*models.POLimit, error) {
	if err := s.requireElevatedRole(ctx, actorID); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, req.UserID)
	}

	company, err := s.repo.GetCompanyByName(ctx, req.Company)
	if err != nil {
		return nil, fmt.Errorf("error getting company: %w", err)
	}
	if company == nil {
		return nil, fmt.Errorf("%w: company %q", ErrNotFound, req.Company)
	}

	perPO, perMonth := req.PerPOLimit, req.PerMonthLimit
	if req.Status == models.LimitStatusRevoked {
		perPO, perMonth = 0, 0
	}

	limit, err := s.repo.GetPOLimit(ctx, req.UserID, req.Company)
	if err != nil {
		return nil, fmt.Errorf("error getting limit record: %w", err)
	}

	if limit != nil {
		limit.Status = req.Status
		limit.PerPOLimit = perPO
		limit.PerMonthLimit = perMonth
		limit.UpdatedBy = actorID
		if err := s.repo.UpdatePOLimit(ctx, limit); err != nil {
			return nil, fmt.Errorf("error updating limit record: %w", err)
		}
		return limit, nil
	}

	limit = &models.POLimit{
		UserID:        req.UserID,
		Company:       req.Company,
		Status:        req.Status,
		PerPOLimit:    perPO,
		PerMonthLimit: perMonth,
		UpdatedBy:     actorID,
		LastResetDate: time.Now().UTC(),
	}
	if err := s.repo.CreatePOLimit(ctx, limit); err != nil {
		return nil, fmt.Errorf("error creating limit record: %w", err)
	}

	return limit, nil
}

func (s *DefaultService) ListPendingRequests(ctx context.Context, actorID string) ([]models.LimitIncreaseRequest, error) {
	if err := s.requireElevatedRole(ctx, actorID); err != nil {
		return nil, err
	}

	requests, err := s.repo.ListPendingRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing pending requests: %w", err)
	}

	return requests, nil
}

// InitLimits creates a zero/Revoked limit record for every enabled user and
// enabled company pair that lacks one. Idempotent; per-pair failures are logged
// and the batch continues.
func (s *DefaultService) InitLimits(ctx context.Context, actorID string) (int, int, error) {
	if err := s.requireElevatedRole(ctx, actorID); err != nil {
		return 0, 0, err
	}

	users, err := s.repo.ListEnabledUsers(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("error listing users: %w", err)
	}

	companies, err := s.repo.ListEnabledCompanies(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("error listing companies: %w", err)
	}

	processed, failed := 0, 0
	for _, user := range users {
		for _, company := range companies {
			existing, err := s.repo.GetPOLimit(ctx, user.ID, company.Name)
			if err != nil {
				s.logger.Error("init limits: checking user %s, company %s: %v", user.ID, company.Name, err)
				failed++
				continue
			}
			if existing != nil {
				continue
			}

			limit := &models.POLimit{
				UserID:        user.ID,
				Company:       company.Name,
				Status:        models.LimitStatusRevoked,
				LastResetDate: time.Now().UTC(),
			}
			err = s.repo.CreatePOLimit(ctx, limit)
			if err != nil && !errors.Is(err, repository.ErrDuplicateLimit) {
				s.logger.Error("init limits: creating for user %s, company %s: %v", user.ID, company.Name, err)
				failed++
				continue
			}
			processed++
		}
	}

	s.logger.Info("init limits: created %d records, %d failures", processed, failed)
	return processed, failed, nil
}

// RecomputeUsage rebuilds every limit record's monthly usage from the sum of
// submitted purchase orders in the current calendar month. Idempotent;
// per-record failures are logged and the batch continues.
func (s *DefaultService) RecomputeUsage(ctx context.Context, actorID string) (int, int, error) {
	if err := s.requireElevatedRole(ctx, actorID); err != nil {
		return 0, 0, err
	}

	limits, err := s.repo.ListPOLimits(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("error listing limits: %w", err)
	}

	now := time.Now().UTC()
	from, to := utils.MonthBounds(now)

	processed, failed := 0, 0
	for _, limit := range limits {
		total, err := s.repo.SumSubmittedPOTotals(ctx, limit.UserID, limit.Company, from, to)
		if err != nil {
			s.logger.Error("recompute usage: summing for user %s, company %s: %v", limit.UserID, limit.Company, err)
			failed++
			continue
		}

		if err := s.repo.SetMonthlyUsage(ctx, limit.ID, total, now); err != nil {
			s.logger.Error("recompute usage: updating limit %s: %v", limit.ID, err)
			failed++
			continue
		}
		processed++
	}

	s.logger.Info("recompute usage: updated %d records, %d failures", processed, failed)
	return processed, failed, nil
}
