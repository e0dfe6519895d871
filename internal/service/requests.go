package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lassod/po-limiter/internal/models"
)

// CreateIncreaseRequest saves a new Draft increase request. The current caps are
// snapshotted from the limit record (zero when absent) and the requested caps
// must exceed them in at least one dimension.
func (s *DefaultService) CreateIncreaseRequest(
	ctx context.Context,
	actorID string,
	payload models.IncreaseRequestPayload,
) (*models.LimitIncreaseRequest, error) {
	company, err := s.repo.GetCompanyByName(ctx, payload.Company)
	if err != nil {
		return nil, fmt.Errorf("error getting company: %w", err)
	}
	if company == nil {
		return nil, fmt.Errorf("%w: company %q", ErrNotFound, payload.Company)
	}

	req := &models.LimitIncreaseRequest{
		UserID:            actorID,
		Company:           payload.Company,
		RequestedPerPO:    payload.RequestedPerPO,
		RequestedPerMonth: payload.RequestedPerMonth,
		Reason:            payload.Reason,
		Status:            models.RequestStatusDraft,
	}

	if err := s.snapshotCurrentLimits(ctx, req); err != nil {
		return nil, err
	}

	if err := validateRequestedLimits(req); err != nil {
		return nil, err
	}

	if err := s.repo.CreateLimitRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("error creating increase request: %w", err)
	}

	return req, nil
}

// UpdateIncreaseRequest edits a Draft. Current limits are re-fetched on every save.
func (s *DefaultService) UpdateIncreaseRequest(
	ctx context.Context,
	actorID string,
	requestID string,
	payload models.IncreaseRequestPayload,
) (*models.LimitIncreaseRequest, error) {
	req, err := s.getOwnRequest(ctx, actorID, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status != models.RequestStatusDraft {
		return nil, fmt.Errorf("%w: only Draft requests can be edited", ErrWorkflowState)
	}

	req.RequestedPerPO = payload.RequestedPerPO
	req.RequestedPerMonth = payload.RequestedPerMonth
	req.Reason = payload.Reason

	if err := s.snapshotCurrentLimits(ctx, req); err != nil {
		return nil, err
	}

	if err := validateRequestedLimits(req); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLimitRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("error updating increase request: %w", err)
	}

	return req, nil
}

// SubmitIncreaseRequest moves a Draft to Pending Approval
func (s *DefaultService) SubmitIncreaseRequest(ctx context.Context, actorID, requestID string) (*models.LimitIncreaseRequest, error) {
	req, err := s.getOwnRequest(ctx, actorID, requestID)
	if err != nil {
		return nil, err
	}

	if req.Status != models.RequestStatusDraft {
		return nil, fmt.Errorf("%w: only Draft requests can be submitted for approval", ErrWorkflowState)
	}

	req.Status = models.RequestStatusPending
	if err := s.repo.UpdateLimitRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("error submitting increase request: %w", err)
	}

	return req, nil
}

// CancelIncreaseRequest withdraws a request that has not been decided. Approved
// requests are immutable; a correction requires a new request.
func (s *DefaultService) CancelIncreaseRequest(ctx context.Context, actorID, requestID string) (*models.LimitIncreaseRequest, error) {
	req, err := s.getOwnRequest(ctx, actorID, requestID)
	if err != nil {
		return nil, err
	}

	switch req.Status {
	case models.RequestStatusApproved:
		return nil, fmt.Errorf("%w: cannot cancel an approved request. Please create a new request to revert",
			ErrWorkflowState)
	case models.RequestStatusRejected:
		return nil, fmt.Errorf("%w: request has already been rejected", ErrWorkflowState)
	}

	req.Status = models.RequestStatusRejected
	req.RejectionReason = "Cancelled by requester"
	if err := s.repo.UpdateLimitRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("error cancelling increase request: %w", err)
	}

	return req, nil
}

// ApproveIncreaseRequest approves a pending request and writes the requested caps
// into the target limit record, creating it with zero usage when absent. On an
// existing record only the caps change: status and usage are left untouched.
func (s *DefaultService) ApproveIncreaseRequest(ctx context.Context, actorID, requestID string) (*models.LimitIncreaseRequest, error) {
	if err := s.requireElevatedRole(ctx, actorID); err != nil {
		return nil, err
	}

	req, err := s.repo.GetLimitRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("error getting increase request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: increase request %s", ErrNotFound, requestID)
	}

	if req.Status != models.RequestStatusPending {
		return nil, fmt.Errorf("%w: only Pending Approval requests can be approved", ErrWorkflowState)
	}

	now := time.Now().UTC()
	req.Status = models.RequestStatusApproved
	req.ApprovedBy = &actorID
	req.ApprovalDate = &now

	if err := s.repo.UpdateLimitRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("error approving increase request: %w", err)
	}

	if err := s.applyApprovedLimits(ctx, actorID, req); err != nil {
		return nil, err
	}

	return req, nil
}

// RejectIncreaseRequest rejects a pending request with a reason. No side effect
// on the limit record. Gated by the same elevated role as approval.
func (s *DefaultService) RejectIncreaseRequest(ctx context.Context, actorID, requestID, reason string) (*models.LimitIncreaseRequest, error) {
	if err := s.requireElevatedRole(ctx, actorID); err != nil {
		return nil, err
	}

	req, err := s.repo.GetLimitRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("error getting increase request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: increase request %s", ErrNotFound, requestID)
	}

	if req.Status != models.RequestStatusPending {
		return nil, fmt.Errorf("%w: only Pending Approval requests can be rejected", ErrWorkflowState)
	}

	req.Status = models.RequestStatusRejected
	req.RejectionReason = reason

	if err := s.repo.UpdateLimitRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("error rejecting increase request: %w", err)
	}

	return req, nil
}

func (s *DefaultService) ListMyIncreaseRequests(ctx context.Context, actorID string) ([]models.LimitIncreaseRequest, error) {
	requests, err := s.repo.ListUserRequests(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("error listing increase requests: %w", err)
	}

	return requests, nil
}

// applyApprovedLimits writes the requested caps into the target limit record
func (s *DefaultService) applyApprovedLimits(ctx context.Context, actorID string, req *models.LimitIncreaseRequest) error {
	limit, err := s.repo.GetPOLimit(ctx, req.UserID, req.Company)
	if err != nil {
		return fmt.Errorf("error getting limit record: %w", err)
	}

	if limit != nil {
		if err := s.repo.UpdatePOLimitCaps(ctx, limit.ID, req.RequestedPerPO, req.RequestedPerMonth); err != nil {
			return fmt.Errorf("error updating limit record: %w", err)
		}
		return nil
	}

	newLimit := &models.POLimit{
		UserID:        req.UserID,
		Company:       req.Company,
		Status:        models.LimitStatusActive,
		PerPOLimit:    req.RequestedPerPO,
		PerMonthLimit: req.RequestedPerMonth,
		UpdatedBy:     actorID,
		LastResetDate: time.Now().UTC(),
	}
	if err := s.repo.CreatePOLimit(ctx, newLimit); err != nil {
		return fmt.Errorf("error creating limit record: %w", err)
	}
	return nil
}

func (s *DefaultService) getOwnRequest(ctx context.Context, actorID, requestID string) (*models.LimitIncreaseRequest, error) {
	req, err := s.repo.GetLimitRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("error getting increase request: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: increase request %s", ErrNotFound, requestID)
	}
	if req.UserID != actorID {
		return nil, fmt.Errorf("%w: you don't have access to this request", ErrPermissionDenied)
	}

	return req, nil
}

// snapshotCurrentLimits refreshes the current-cap fields from the limit record
func (s *DefaultService) snapshotCurrentLimits(ctx context.Context, req *models.LimitIncreaseRequest) error {
	limit, err := s.repo.GetPOLimit(ctx, req.UserID, req.Company)
	if err != nil {
		return fmt.Errorf("error getting limit record: %w", err)
	}

	if limit != nil {
		req.CurrentPerPO = limit.PerPOLimit
		req.CurrentPerMonth = limit.PerMonthLimit
	} else {
		req.CurrentPerPO = 0
		req.CurrentPerMonth = 0
	}
	return nil
}

// validateRequestedLimits rejects a no-op request: at least one requested cap
// must exceed the corresponding current cap.
func validateRequestedLimits(req *models.LimitIncreaseRequest) error {
	if req.RequestedPerPO <= req.CurrentPerPO && req.RequestedPerMonth <= req.CurrentPerMonth {
		return fmt.Errorf("%w: requested limits must be greater than current limits. Please request an increase",
			ErrWorkflowState)
	}
	return nil
}
