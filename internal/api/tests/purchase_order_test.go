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

func createDraftPO(t *testing.T, testCtx *testutils.TestContext, token string, amount float64) string {
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchase-orders",
		models.CreatePurchaseOrderRequest{
			Company:        testutils.TestCompany,
			Supplier:       "Initech Supplies",
			BaseGrandTotal: amount,
		},
		testutils.AuthHeaders(token),
	)
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp models.PurchaseOrderResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.NotNil(t, resp.PurchaseOrder)
	assert.Equal(t, models.POStatusDraft, resp.PurchaseOrder.Status)
	return resp.PurchaseOrder.ID
}

func TestCreateDraftNeverLimitChecked(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// No limit record exists, yet drafts of any size are permitted
	poID := createDraftPO(t, testCtx, testCtx.TestUserJWT, 1000000)
	assert.NotEmpty(t, poID)

	// Unauthorized request (no token)
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchase-orders",
		models.CreatePurchaseOrderRequest{Company: testutils.TestCompany, Supplier: "X", BaseGrandTotal: 10},
		nil,
	)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Unknown company
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchase-orders",
		models.CreatePurchaseOrderRequest{Company: "No Such Co", Supplier: "X", BaseGrandTotal: 10},
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitWithoutLimitRecordRejected(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	poID := createDraftPO(t, testCtx, testCtx.TestUserJWT, 100)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchase-orders/"+poID+"/submit",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var errResp models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "LIMIT_RESTRICTION", errResp.Code)
	assert.Contains(t, errResp.Message, "requires MD approval")
}

func TestSubmitWithRevokedLimitRejected(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// Revoked status blocks regardless of the cap values on the record
	testCtx.SetLimit(t, testCtx.TestUserID, 5000, 10000, models.LimitStatusRevoked)

	poID := createDraftPO(t, testCtx, testCtx.TestUserJWT, 100)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchase-orders/"+poID+"/submit",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSubmitOverPerPOLimitRejected(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	testCtx.SetLimit(t, testCtx.TestUserID, 500, 0, models.LimitStatusActive)

	poID := createDraftPO(t, testCtx, testCtx.TestUserJWT, 800)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchase-orders/"+poID+"/submit",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var errResp models.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Contains(t, errResp.Message, "Per PO Limit")
	assert.Contains(t, errResp.Message, "300.00") // excess = 800 - 500

	// Usage untouched after a rejected submit
	limit := testCtx.GetLimit(t, testCtx.TestUserID)
	assert.Equal(t, 0.0, limit.MonthlyUsage)
}

func TestZeroMonthlyLimitSkipsMonthlyCheck(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	testCtx.SetLimit(t, testCtx.TestUserID, 500, 0, models.LimitStatusActive)

	// Many submissions, each under the per-PO cap, with no monthly ceiling
	for i := 0; i < 5; i++ {
		poID := createDraftPO(t, testCtx, testCtx.TestUserJWT, 500)
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			"/api/purchase-orders/"+poID+"/submit",
			nil,
			testutils.AuthHeaders(testCtx.TestUserJWT),
		)
		assert.Equal(t, http.StatusOK, w.Code)
	}

	// Usage is still tracked even without a monthly cap
	limit := testCtx.GetLimit(t, testCtx.TestUserID)
	assert.Equal(t, 2500.0, limit.MonthlyUsage)
}

func TestZeroAmountBypassesAllChecks(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// No limit record at all, but a zero-total order submits fine
	poID := createDraftPO(t, testCtx, testCtx.TestUserJWT, 0)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchase-orders/"+poID+"/submit",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.PurchaseOrderResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.POStatusSubmitted, resp.PurchaseOrder.Status)
}

// TestLimitScenario runs the full scenario: no record, admin grants caps, a mix of
// accepted and rejected submissions, then a cancellation returning headroom.
func TestLimitScenario(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	token := testCtx.TestUserJWT

	submit := func(poID string) *models.ErrorResponse {
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			"/api/purchase-orders/"+poID+"/submit",
			nil,
			testutils.AuthHeaders(token),
		)
		if w.Code == http.StatusOK {
			return nil
		}
		var errResp models.ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
		return &errResp
	}

	// No limit record: amount 100 rejected with "requires approval"
	po1 := createDraftPO(t, testCtx, token, 100)
	errResp := submit(po1)
	assert.NotNil(t, errResp)
	assert.Contains(t, errResp.Message, "requires MD approval")

	// Admin grants per_po=500, per_month=1000
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPut,
		"/api/admin/limits",
		models.UpsertLimitRequest{
			UserID:        testCtx.TestUserID,
			Company:       testutils.TestCompany,
			PerPOLimit:    500,
			PerMonthLimit: 1000,
			Status:        models.LimitStatusActive,
		},
		testutils.AuthHeaders(testCtx.AdminUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	// 300 accepted, usage 300
	po300 := createDraftPO(t, testCtx, token, 300)
	assert.Nil(t, submit(po300))
	assert.Equal(t, 300.0, testCtx.GetLimit(t, testCtx.TestUserID).MonthlyUsage)

	// 800 rejected (exceeds per-PO 500), usage unchanged
	po800 := createDraftPO(t, testCtx, token, 800)
	errResp = submit(po800)
	assert.NotNil(t, errResp)
	assert.Contains(t, errResp.Message, "Per PO Limit")
	assert.Equal(t, 300.0, testCtx.GetLimit(t, testCtx.TestUserID).MonthlyUsage)

	// 400 accepted (300+400=700 <= 1000), usage 700
	po400 := createDraftPO(t, testCtx, token, 400)
	assert.Nil(t, submit(po400))
	assert.Equal(t, 700.0, testCtx.GetLimit(t, testCtx.TestUserID).MonthlyUsage)

	// another 400 rejected (700+400=1100 > 1000), usage stays 700
	po400b := createDraftPO(t, testCtx, token, 400)
	errResp = submit(po400b)
	assert.NotNil(t, errResp)
	assert.Contains(t, errResp.Message, "Per Month Limit")
	assert.Equal(t, 700.0, testCtx.GetLimit(t, testCtx.TestUserID).MonthlyUsage)

	// cancel the first 300 order: usage 700-300=400
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchase-orders/"+po300+"/cancel",
		nil,
		testutils.AuthHeaders(token),
	)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 400.0, testCtx.GetLimit(t, testCtx.TestUserID).MonthlyUsage)
}

func TestCancelFloorsUsageAtZero(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	limit := testCtx.SetLimit(t, testCtx.TestUserID, 1000, 0, models.LimitStatusActive)

	poID := createDraftPO(t, testCtx, testCtx.TestUserJWT, 600)
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchase-orders/"+poID+"/submit",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	// Force the stored usage below the cancelled amount, then cancel
	assert.NoError(t, testCtx.Repository.SetMonthlyUsage(
		context.Background(), limit.ID, 200, limit.LastResetDate))

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchase-orders/"+poID+"/cancel",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	// 200 - 600 floors at 0, never negative
	assert.Equal(t, 0.0, testCtx.GetLimit(t, testCtx.TestUserID).MonthlyUsage)
}

func TestCancelRequiresSubmittedStatus(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	testCtx.SetLimit(t, testCtx.TestUserID, 1000, 0, models.LimitStatusActive)
	poID := createDraftPO(t, testCtx, testCtx.TestUserJWT, 100)

	// Draft cannot be cancelled
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchase-orders/"+poID+"/cancel",
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitByNonOwnerForbidden(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	testCtx.SetLimit(t, testCtx.TestUserID, 1000, 0, models.LimitStatusActive)
	poID := createDraftPO(t, testCtx, testCtx.TestUserJWT, 100)

	_, otherJWT := testCtx.CreateUser(t, "other@example.com", models.RolePOCreator)

	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchase-orders/"+poID+"/submit",
		nil,
		testutils.AuthHeaders(otherJWT),
	)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetLimitStatus(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	// Absent record reads as Revoked with zero caps
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/limit-status?company="+url.QueryEscape(testutils.TestCompany),
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)

	var status models.LimitStatusResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.LimitStatusRevoked, status.LimitStatus)
	assert.Equal(t, 0.0, status.PerPOLimit)

	testCtx.SetLimit(t, testCtx.TestUserID, 500, 1000, models.LimitStatusActive)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		"/api/limit-status?company="+url.QueryEscape(testutils.TestCompany),
		nil,
		testutils.AuthHeaders(testCtx.TestUserJWT),
	)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.LimitStatusActive, status.LimitStatus)
	assert.Equal(t, 500.0, status.PerPOLimit)
	assert.Equal(t, 1000.0, status.PerMonthLimit)
}
