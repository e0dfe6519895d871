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

// CreatePurchaseOrder saves a new draft. Drafts are never limit-checked.
func (s *DefaultService) CreatePurchaseOrder(
	ctx context.Context,
	actorID string,
	req models.CreatePurchaseOrderRequest,
) (*models.PurchaseOrder, error) {
	company, err := s.repo.GetCompanyByName(ctx, req.Company)
	if err != nil {
		return nil, fmt.Errorf("error getting company: %w", err)
	}
	if company == nil || !company.Enabled {
		return nil, fmt.Errorf("%w: company %q", ErrNotFound, req.Company)
	}

	po := &models.PurchaseOrder{
		Owner:          actorID,
		Company:        req.Company,
		Supplier:       req.Supplier,
		BaseGrandTotal: req.BaseGrandTotal,
		Status:         models.POStatusDraft,
	}

	if err := s.repo.CreatePurchaseOrder(ctx, po); err != nil {
		return nil, fmt.Errorf("error creating purchase order: %w", err)
	}

	return po, nil
}

// SubmitPurchaseOrder finalizes a draft, gated by the acting user's limit record.
// The actor must be the document owner; validation always runs against the actor.
func (s *DefaultService) SubmitPurchaseOrder(ctx context.Context, actorID, poID string) (*models.PurchaseOrder, error) {
	po, err := s.repo.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return nil, fmt.Errorf("error getting purchase order: %w", err)
	}
	if po == nil {
		return nil, fmt.Errorf("%w: purchase order %s", ErrNotFound, poID)
	}
	if po.Owner != actorID {
		return nil, fmt.Errorf("%w: only the owner may submit this purchase order", ErrPermissionDenied)
	}
	if po.Status != models.POStatusDraft {
		return nil, fmt.Errorf("%w: only Draft purchase orders can be submitted", ErrWorkflowState)
	}

	amount := po.BaseGrandTotal

	// Zero or negative totals bypass all limit checks
	if amount <= 0 {
		if err := s.repo.SetPurchaseOrderStatus(ctx, po.ID, models.POStatusSubmitted); err != nil {
			return nil, fmt.Errorf("error submitting purchase order: %w", err)
		}
		po.Status = models.POStatusSubmitted
		return po, nil
	}

	limit, err := s.repo.GetPOLimit(ctx, actorID, po.Company)
	if err != nil {
		return nil, fmt.Errorf("error getting limit record: %w", err)
	}

	currency := s.companyCurrency(ctx, po.Company)

	if err := s.checkPerPOLimit(amount, limit, currency); err != nil {
		return nil, err
	}

	if err := s.ensureCurrentPeriod(ctx, limit); err != nil {
		return nil, fmt.Errorf("error resetting monthly usage: %w", err)
	}

	if limit.PerMonthLimit > 0 && limit.MonthlyUsage+amount > limit.PerMonthLimit {
		return nil, s.monthlyLimitError(amount, limit, currency)
	}

	// Atomically add the amount to the monthly usage and flip the order to
	// Submitted. The repository re-checks the monthly cap under the same
	// transaction, so a concurrent submission cannot push usage over the cap.
	err = s.repo.FinalizePurchaseOrder(ctx, po.ID, limit.ID, amount)
	if err != nil {
		if errors.Is(err, repository.ErrMonthlyCapExceeded) {
			return nil, s.monthlyLimitError(amount, limit, currency)
		}
		return nil, fmt.Errorf("error finalizing purchase order: %w", err)
	}

	po.Status = models.POStatusSubmitted
	return po, nil
}

// CancelPurchaseOrder cancels a submitted order and returns its amount to the
// monthly headroom, floored at zero.
func (s *DefaultService) CancelPurchaseOrder(ctx context.Context, actorID, poID string) (*models.PurchaseOrder, error) {
	po, err := s.repo.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return nil, fmt.Errorf("error getting purchase order: %w", err)
	}
	if po == nil {
		return nil, fmt.Errorf("%w: purchase order %s", ErrNotFound, poID)
	}
	if po.Owner != actorID {
		return nil, fmt.Errorf("%w: only the owner may cancel this purchase order", ErrPermissionDenied)
	}
	if po.Status != models.POStatusSubmitted {
		return nil, fmt.Errorf("%w: only Submitted purchase orders can be cancelled", ErrWorkflowState)
	}

	limit, err := s.repo.GetPOLimit(ctx, actorID, po.Company)
	if err != nil {
		return nil, fmt.Errorf("error getting limit record: %w", err)
	}

	limitID := ""
	if limit != nil {
		if err := s.ensureCurrentPeriod(ctx, limit); err != nil {
			return nil, fmt.Errorf("error resetting monthly usage: %w", err)
		}
		limitID = limit.ID
	}

	if err := s.repo.CancelPurchaseOrder(ctx, po.ID, limitID, po.BaseGrandTotal); err != nil {
		return nil, fmt.Errorf("error cancelling purchase order: %w", err)
	}

	po.Status = models.POStatusCancelled
	return po, nil
}

func (s *DefaultService) GetPurchaseOrder(ctx context.Context, actorID, poID string) (*models.PurchaseOrder, error) {
	po, err := s.repo.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return nil, fmt.Errorf("error getting purchase order: %w", err)
	}
	if po == nil {
		return nil, fmt.Errorf("%w: purchase order %s", ErrNotFound, poID)
	}
	if po.Owner != actorID {
		return nil, fmt.Errorf("%w: you don't have access to this purchase order", ErrPermissionDenied)
	}

	return po, nil
}

func (s *DefaultService) ListMyPurchaseOrders(ctx context.Context, actorID string) ([]models.PurchaseOrder, error) {
	orders, err := s.repo.ListUserPurchaseOrders(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("error listing purchase orders: %w", err)
	}

	return orders, nil
}

// GetLimitStatus reports the acting user's own caps and usage for a company.
// Absent records read as Revoked with zero caps.
func (s *DefaultService) GetLimitStatus(ctx context.Context, actorID, company string) (*models.LimitStatusResponse, error) {
	limit, err := s.repo.GetPOLimit(ctx, actorID, company)
	if err != nil {
		return nil, fmt.Errorf("error getting limit record: %w", err)
	}

	if limit == nil {
		return &models.LimitStatusResponse{
			Status:      "success",
			LimitStatus: models.LimitStatusRevoked,
		}, nil
	}

	if err := s.ensureCurrentPeriod(ctx, limit); err != nil {
		return nil, fmt.Errorf("error resetting monthly usage: %w", err)
	}

	return &models.LimitStatusResponse{
		Status:        "success",
		LimitStatus:   limit.Status,
		PerPOLimit:    limit.PerPOLimit,
		PerMonthLimit: limit.PerMonthLimit,
		MonthlyUsage:  limit.MonthlyUsage,
	}, nil
}

// checkPerPOLimit enforces the presence, status, and per-transaction checks.
// A missing record, a Revoked record, and a zero cap all read as "blocked".
func (s *DefaultService) checkPerPOLimit(amount float64, limit *models.POLimit, currency string) error {
	if limit == nil || limit.Status == models.LimitStatusRevoked || limit.PerPOLimit <= 0 {
		return fmt.Errorf("%w: PO submission requires MD approval. Please request a PO submission limit",
			ErrLimitRestriction)
	}

	if amount > limit.PerPOLimit {
		return fmt.Errorf("%w: PO Amount (%s) exceeds your Per PO Limit (%s). Excess: %s. "+
			"Please reduce the PO amount or request MD approval",
			ErrLimitRestriction,
			utils.FormatCurrency(currency, amount),
			utils.FormatCurrency(currency, limit.PerPOLimit),
			utils.FormatCurrency(currency, amount-limit.PerPOLimit))
	}

	return nil
}

func (s *DefaultService) monthlyLimitError(amount float64, limit *models.POLimit, currency string) error {
	return fmt.Errorf("%w: Monthly PO Amount (%s) exceeds your Per Month Limit (%s). "+
		"Your current monthly usage: %s. This PO: %s. Please request MD approval",
		ErrLimitRestriction,
		utils.FormatCurrency(currency, limit.MonthlyUsage+amount),
		utils.FormatCurrency(currency, limit.PerMonthLimit),
		utils.FormatCurrency(currency, limit.MonthlyUsage),
		utils.FormatCurrency(currency, amount))
}

// ensureCurrentPeriod lazily resets the usage counter when the stored reset date
// falls in an earlier calendar month. Runs at the top of every validation and read.
func (s *DefaultService) ensureCurrentPeriod(ctx context.Context, limit *models.POLimit) error {
	if limit == nil {
		return nil
	}

	now := time.Now().UTC()
	if utils.SamePeriod(limit.LastResetDate, now) {
		return nil
	}

	if err := s.repo.ResetMonthlyUsage(ctx, limit.ID, now); err != nil {
		return err
	}

	limit.MonthlyUsage = 0
	limit.LastResetDate = now
	return nil
}

func (s *DefaultService) companyCurrency(ctx context.Context, name string) string {
	company, err := s.repo.GetCompanyByName(ctx, name)
	if err != nil || company == nil {
		return ""
	}
	return company.Currency
}
