package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lassod/po-limiter/internal/models"
	"github.com/lassod/po-limiter/internal/repository"
	"github.com/lassod/po-limiter/internal/utils"
)

// Sentinel errors used by handlers to map failures onto HTTP status codes
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrLimitRestriction = errors.New("PO Limit Restriction")
	ErrWorkflowState    = errors.New("invalid workflow state")
)

// ElevatedRoles are the roles allowed to manage limits and decide increase requests
var ElevatedRoles = []string{models.RoleManagingDirector, models.RoleSystemManager}

// Service defines all the business logic operations
type Service interface {
	// Authentication
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)

	// Purchase order lifecycle
	CreatePurchaseOrder(ctx context.Context, actorID string, req models.CreatePurchaseOrderRequest) (*models.PurchaseOrder, error)
	SubmitPurchaseOrder(ctx context.Context, actorID, poID string) (*models.PurchaseOrder, error)
	CancelPurchaseOrder(ctx context.Context, actorID, poID string) (*models.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, actorID, poID string) (*models.PurchaseOrder, error)
	ListMyPurchaseOrders(ctx context.Context, actorID string) ([]models.PurchaseOrder, error)
	GetLimitStatus(ctx context.Context, actorID, company string) (*models.LimitStatusResponse, error)

	// Limit increase request workflow
	CreateIncreaseRequest(ctx context.Context, actorID string, req models.IncreaseRequestPayload) (*models.LimitIncreaseRequest, error)
	UpdateIncreaseRequest(ctx context.Context, actorID, requestID string, req models.IncreaseRequestPayload) (*models.LimitIncreaseRequest, error)
	SubmitIncreaseRequest(ctx context.Context, actorID, requestID string) (*models.LimitIncreaseRequest, error)
	CancelIncreaseRequest(ctx context.Context, actorID, requestID string) (*models.LimitIncreaseRequest, error)
	ApproveIncreaseRequest(ctx context.Context, actorID, requestID string) (*models.LimitIncreaseRequest, error)
	RejectIncreaseRequest(ctx context.Context, actorID, requestID, reason string) (*models.LimitIncreaseRequest, error)
	ListMyIncreaseRequests(ctx context.Context, actorID string) ([]models.LimitIncreaseRequest, error)

	// Administrative surface
	CreateCompany(ctx context.Context, actorID string, req models.CreateCompanyRequest) (*models.Company, error)
	ListCompanies(ctx context.Context, actorID string) ([]models.Company, error)
	GrantRole(ctx context.Context, actorID, userID, role string) error
	ListPurchaseUsers(ctx context.Context, actorID string) ([]models.User, error)
	ListLimits(ctx context.Context, actorID string) ([]models.POLimit, error)
	GetLimitDetails(ctx context.Context, actorID, userID, company string) (*models.POLimit, error)
	UpsertLimit(ctx context.Context, actorID string, req models.UpsertLimitRequest) (*models.POLimit, error)
	ListPendingRequests(ctx context.Context, actorID string) ([]models.LimitIncreaseRequest, error)

	// Maintenance batches
	InitLimits(ctx context.Context, actorID string) (processed, failed int, err error)
	RecomputeUsage(ctx context.Context, actorID string) (processed, failed int, err error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	logger        *utils.Logger
	jwtSecret     []byte
	tokenDuration time.Duration
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, jwtSecret string) Service {
	return &DefaultService{
		repo:          repo,
		logger:        utils.NewLogger(),
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
	}
}

// Authentication methods
func (s *DefaultService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	// Check if user already exists
	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}

	if existingUser != nil {
		return nil, errors.New("user with this email already exists")
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	// Create the user
	user := &models.User{
		ID:       uuid.New().String(),
		Email:    req.Email,
		Name:     req.Name,
		Password: string(hashedPassword),
		Enabled:  true,
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	// Provision a zero/revoked limit record for every enabled company, so the
	// new user is blocked from submitting until an admin grants caps
	s.provisionDefaultLimits(ctx, user.ID)

	return &models.AuthResponse{
		Status: "success",
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}, nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	// Get the user
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, errors.New("invalid email or password")
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errors.New("invalid email or password")
	}

	// Generate JWT token
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// provisionDefaultLimits creates a Revoked zero-cap limit record for the user in
// every enabled company. Best-effort: per-company failures are logged and skipped.
func (s *DefaultService) provisionDefaultLimits(ctx context.Context, userID string) {
	companies, err := s.repo.ListEnabledCompanies(ctx)
	if err != nil {
		s.logger.Error("listing companies for default limits: %v", err)
		return
	}

	for _, company := range companies {
		existing, err := s.repo.GetPOLimit(ctx, userID, company.Name)
		if err != nil {
			s.logger.Error("checking limit for user %s, company %s: %v", userID, company.Name, err)
			continue
		}
		if existing != nil {
			continue
		}

		limit := &models.POLimit{
			UserID:        userID,
			Company:       company.Name,
			Status:        models.LimitStatusRevoked,
			LastResetDate: time.Now().UTC(),
		}
		if err := s.repo.CreatePOLimit(ctx, limit); err != nil && !errors.Is(err, repository.ErrDuplicateLimit) {
			s.logger.Error("creating default limit for user %s, company %s: %v", userID, company.Name, err)
		}
	}
}

// hasElevatedRole reports whether the actor may manage limits and decide requests
func (s *DefaultService) hasElevatedRole(ctx context.Context, actorID string) (bool, error) {
	return s.repo.UserHasRole(ctx, actorID, ElevatedRoles...)
}

// requireElevatedRole returns ErrPermissionDenied unless the actor holds an elevated role
func (s *DefaultService) requireElevatedRole(ctx context.Context, actorID string) error {
	ok, err := s.hasElevatedRole(ctx, actorID)
	if err != nil {
		return fmt.Errorf("error checking role: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: this action requires the %s or %s role",
			ErrPermissionDenied, models.RoleManagingDirector, models.RoleSystemManager)
	}
	return nil
}

// Helper methods
func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := time.Now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub": user.ID, // subject
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(), // issued at
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
