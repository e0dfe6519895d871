package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lassod/po-limiter/internal/api/testutils"
	"github.com/lassod/po-limiter/internal/models"
)

func TestAdminEndpointsAreRoleGated(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	paths := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/api/admin/companies", nil},
		{http.MethodGet, "/api/admin/purchase-users", nil},
		{http.MethodGet, "/api/admin/limits", nil},
		{http.MethodGet, "/api/admin/requests/pending", nil},
		{http.MethodPost, "/api/admin/maintenance/init-limits", nil},
		{http.MethodPost, "/api/admin/maintenance/recompute-usage", nil},
	}

	for _, p := range paths {
		w := testutils.PerformRequest(testCtx.Router, p.method, p.path, p.body,
			testutils.AuthHeaders(testCtx.TestUserJWT))
		assert.Equal(t, http.StatusForbidden, w.Code, "expected 403 for %s %s", p.method, p.path)
	}
}

func TestUpsertLimitRevokedZeroesCaps(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// Saving a Revoked record forces both caps to zero regardless of input
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPut,
		"/api/admin/limits",
		models.UpsertLimitRequest{
			UserID:        testCtx.TestUserID,
			Company:       testutils.TestCompany,
			PerPOLimit:    5000,
			PerMonthLimit: 10000,
			Status:        models.LimitStatusRevoked,
		},
		testutils.AuthHeaders(testCtx.AdminUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	limit := testCtx.GetLimit(t, testCtx.TestUserID)
	assert.Equal(t, models.LimitStatusRevoked, limit.Status)
	assert.Equal(t, 0.0, limit.PerPOLimit)
	assert.Equal(t, 0.0, limit.PerMonthLimit)
	assert.Equal(t, testCtx.AdminUserID, limit.UpdatedBy)
}

func TestDuplicateLimitRecordFails(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	testCtx.SetLimit(t, testCtx.TestUserID, 100, 200, models.LimitStatusActive)

	// Creating a second record for the same (user, company) violates uniqueness
	err := testCtx.Repository.CreatePOLimit(context.Background(), &models.POLimit{
		UserID:  testCtx.TestUserID,
		Company: testutils.TestCompany,
		Status:  models.LimitStatusActive,
	})
	assert.Error(t, err)
}

func TestGetLimitDetails(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	testCtx.SetLimit(t, testCtx.TestUserID, 500, 1000, models.LimitStatusActive)

	path := "/api/admin/limits/details?user=" + testCtx.TestUserID +
		"&company=" + url.QueryEscape(testutils.TestCompany)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, path, nil,
		testutils.AuthHeaders(testCtx.AdminUserJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	// Missing record is a 404
	path = "/api/admin/limits/details?user=no-such-user&company=" + url.QueryEscape(testutils.TestCompany)
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, path, nil,
		testutils.AuthHeaders(testCtx.AdminUserJWT))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPurchaseUsers(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// A user without any purchasing role is not listed
	noRoleID, _ := testCtx.CreateUser(t, "norole@example.com")

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/admin/purchase-users", nil,
		testutils.AuthHeaders(testCtx.AdminUserJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string        `json:"status"`
		Users  []models.User `json:"users"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	ids := make(map[string]bool)
	for _, u := range resp.Users {
		ids[u.ID] = true
	}
	assert.True(t, ids[testCtx.TestUserID], "PO Creator should be listed")
	assert.True(t, ids[testCtx.AdminUserID], "Managing Director should be listed")
	assert.False(t, ids[noRoleID], "user without purchasing roles should not be listed")
}

func TestInitLimitsIsIdempotent(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/admin/maintenance/init-limits", nil,
		testutils.AuthHeaders(testCtx.AdminUserJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.MaintenanceResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// Two seeded users, one company, no pre-existing records
	assert.Equal(t, 2, resp.Processed)
	assert.Equal(t, 0, resp.Failed)

	// Records start zeroed and revoked
	limit := testCtx.GetLimit(t, testCtx.TestUserID)
	assert.NotNil(t, limit)
	assert.Equal(t, models.LimitStatusRevoked, limit.Status)

	// Re-running creates nothing new
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/admin/maintenance/init-limits", nil,
		testutils.AuthHeaders(testCtx.AdminUserJWT))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Processed)
}

func TestRecomputeUsageRebuildsFromSubmittedOrders(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	limit := testCtx.SetLimit(t, testCtx.TestUserID, 1000, 0, models.LimitStatusActive)

	// Submit two orders, then corrupt the stored counter
	for _, amount := range []float64{250, 150} {
		poID := createDraftPO(t, testCtx, testCtx.TestUserJWT, amount)
		w := testutils.PerformRequest(testCtx.Router, http.MethodPost,
			"/api/purchase-orders/"+poID+"/submit", nil, testutils.AuthHeaders(testCtx.TestUserJWT))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	assert.NoError(t, testCtx.Repository.SetMonthlyUsage(context.Background(), limit.ID, 99999, limit.LastResetDate))

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/admin/maintenance/recompute-usage", nil,
		testutils.AuthHeaders(testCtx.AdminUserJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 400.0, testCtx.GetLimit(t, testCtx.TestUserID).MonthlyUsage)
}

func TestListLimitsOrderedAndPendingRequests(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	testCtx.SetLimit(t, testCtx.TestUserID, 100, 0, models.LimitStatusActive)
	testCtx.SetLimit(t, testCtx.AdminUserID, 300, 0, models.LimitStatusActive)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/admin/limits", nil,
		testutils.AuthHeaders(testCtx.AdminUserJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var limitsResp struct {
		Status string           `json:"status"`
		Limits []models.POLimit `json:"limits"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &limitsResp))
	assert.Len(t, limitsResp.Limits, 2)

	// A pending increase request shows up for the admin
	reqID, _ := createIncreaseRequest(t, testCtx, testCtx.TestUserJWT, 500, 1000)
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost,
		"/api/limit-requests/"+reqID+"/submit", nil, testutils.AuthHeaders(testCtx.TestUserJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/admin/requests/pending", nil,
		testutils.AuthHeaders(testCtx.AdminUserJWT))
	assert.Equal(t, http.StatusOK, w.Code)

	var reqResp struct {
		Status   string                        `json:"status"`
		Requests []models.LimitIncreaseRequest `json:"requests"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &reqResp))
	assert.Len(t, reqResp.Requests, 1)
	assert.Equal(t, reqID, reqResp.Requests[0].ID)
}
