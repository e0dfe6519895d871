package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/lassod/po-limiter/internal/api"
	"github.com/lassod/po-limiter/internal/models"
	"github.com/lassod/po-limiter/internal/repository"
	"github.com/lassod/po-limiter/internal/service"
)

// TestCompany is the enabled company all tests run against
const TestCompany = "Lassod Ltd"

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests
type TestContext struct {
	Router       *gin.Engine
	Repository   repository.Repository
	Service      service.Service
	JWTSecret    []byte
	TestUserID   string // purchase user, no elevated role
	TestUserJWT  string
	AdminUserID  string // Managing Director
	AdminUserJWT string
}

// SetupTestContext creates a new test context with initialized dependencies.
// The stack runs against the in-memory repository, so no database is required.
func SetupTestContext(t *testing.T) *TestContext {
	repo := repository.NewMemoryRepository()

	// Create service
	svc := service.NewDefaultService(repo, testJWTSecret)

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Seed the company all tests use
	err := repo.CreateCompany(context.Background(), &models.Company{
		Name:     TestCompany,
		Abbr:     "LL",
		Currency: "USD",
		Enabled:  true,
	})
	assert.NoError(t, err, "Failed to create test company")

	testCtx := &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		JWTSecret:  []byte(testJWTSecret),
	}

	testCtx.TestUserID, testCtx.TestUserJWT = testCtx.CreateUser(t, "testuser@example.com", models.RolePOCreator)
	testCtx.AdminUserID, testCtx.AdminUserJWT = testCtx.CreateUser(t, "md@example.com", models.RoleManagingDirector)

	return testCtx
}

// CreateUser provisions a user with the given roles and returns its ID and a signed token
func (tc *TestContext) CreateUser(t *testing.T, email string, roles ...string) (string, string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)

	user := &models.User{
		ID:       uuid.New().String(),
		Email:    email,
		Name:     "Test User",
		Password: string(hashedPassword),
		Enabled:  true,
		UserType: "System User",
	}

	err := tc.Repository.CreateUser(context.Background(), user)
	assert.NoError(t, err, "Failed to create test user")

	for _, role := range roles {
		err = tc.Repository.GrantRole(context.Background(), user.ID, role)
		assert.NoError(t, err, "Failed to grant role")
	}

	// Generate JWT token with the test secret key
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(testJWTSecret))
	assert.NoError(t, err, "Failed to generate JWT token")

	return user.ID, tokenString
}

// SetLimit writes a limit record directly through the repository
func (tc *TestContext) SetLimit(t *testing.T, userID string, perPO, perMonth float64, status string) *models.POLimit {
	ctx := context.Background()

	existing, err := tc.Repository.GetPOLimit(ctx, userID, TestCompany)
	assert.NoError(t, err)

	if existing != nil {
		existing.Status = status
		existing.PerPOLimit = perPO
		existing.PerMonthLimit = perMonth
		err = tc.Repository.UpdatePOLimit(ctx, existing)
		assert.NoError(t, err, "Failed to update test limit")
		return existing
	}

	limit := &models.POLimit{
		UserID:        userID,
		Company:       TestCompany,
		Status:        status,
		PerPOLimit:    perPO,
		PerMonthLimit: perMonth,
		LastResetDate: time.Now().UTC(),
	}
	err = tc.Repository.CreatePOLimit(ctx, limit)
	assert.NoError(t, err, "Failed to create test limit")
	return limit
}

// GetLimit reads the current limit record for a user in the test company
func (tc *TestContext) GetLimit(t *testing.T, userID string) *models.POLimit {
	limit, err := tc.Repository.GetPOLimit(context.Background(), userID, TestCompany)
	assert.NoError(t, err)
	return limit
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
