package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lassod/po-limiter/internal/models"
	"github.com/lassod/po-limiter/internal/service"
)

// Handler holds the service and exposes the HTTP endpoints
type Handler struct {
	svc service.Service
}

// NewHandler creates a new API handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{svc: svc}
}

// SetupRoutes registers all routes on the router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	auth := router.Group("/api/auth")
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/login", h.Login)
	}

	api := router.Group("/api")
	api.Use(AuthMiddleware())
	{
		api.POST("/purchase-orders", h.CreatePurchaseOrder)
		api.GET("/purchase-orders", h.ListPurchaseOrders)
		api.GET("/purchase-orders/:id", h.GetPurchaseOrder)
		api.POST("/purchase-orders/:id/submit", h.SubmitPurchaseOrder)
		api.POST("/purchase-orders/:id/cancel", h.CancelPurchaseOrder)

		api.GET("/limit-status", h.GetLimitStatus)

		api.POST("/limit-requests", h.CreateIncreaseRequest)
		api.GET("/limit-requests", h.ListMyIncreaseRequests)
		api.PUT("/limit-requests/:id", h.UpdateIncreaseRequest)
		api.POST("/limit-requests/:id/submit", h.SubmitIncreaseRequest)
		api.POST("/limit-requests/:id/cancel", h.CancelIncreaseRequest)
		api.POST("/limit-requests/:id/approve", h.ApproveIncreaseRequest)
		api.POST("/limit-requests/:id/reject", h.RejectIncreaseRequest)

		admin := api.Group("/admin")
		{
			admin.GET("/companies", h.ListCompanies)
			admin.POST("/companies", h.CreateCompany)
			admin.GET("/purchase-users", h.ListPurchaseUsers)
			admin.GET("/limits", h.ListLimits)
			admin.GET("/limits/details", h.GetLimitDetails)
			admin.PUT("/limits", h.UpsertLimit)
			admin.GET("/requests/pending", h.ListPendingRequests)
			admin.PUT("/users/:id/roles", h.GrantRole)
			admin.POST("/maintenance/init-limits", h.InitLimits)
			admin.POST("/maintenance/recompute-usage", h.RecomputeUsage)
		}
	}
}

// Authentication handlers
func (h *Handler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.svc.SignUp(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "SIGNUP_FAILED",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status:  "error",
			Code:    "UNAUTHORIZED",
			Message: "Invalid email or password",
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Purchase order handlers
func (h *Handler) CreatePurchaseOrder(c *gin.Context) {
	var req models.CreatePurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	po, err := h.svc.CreatePurchaseOrder(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.PurchaseOrderResponse{Status: "success", PurchaseOrder: po})
}

func (h *Handler) ListPurchaseOrders(c *gin.Context) {
	orders, err := h.svc.ListMyPurchaseOrders(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "purchaseOrders": orders})
}

func (h *Handler) GetPurchaseOrder(c *gin.Context) {
	po, err := h.svc.GetPurchaseOrder(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.PurchaseOrderResponse{Status: "success", PurchaseOrder: po})
}

func (h *Handler) SubmitPurchaseOrder(c *gin.Context) {
	po, err := h.svc.SubmitPurchaseOrder(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.PurchaseOrderResponse{Status: "success", PurchaseOrder: po})
}

func (h *Handler) CancelPurchaseOrder(c *gin.Context) {
	po, err := h.svc.CancelPurchaseOrder(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.PurchaseOrderResponse{Status: "success", PurchaseOrder: po})
}

func (h *Handler) GetLimitStatus(c *gin.Context) {
	company := c.Query("company")
	if company == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "BAD_REQUEST",
			Message: "company query parameter is required",
		})
		return
	}

	resp, err := h.svc.GetLimitStatus(c.Request.Context(), actorID(c), company)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Increase request handlers
func (h *Handler) CreateIncreaseRequest(c *gin.Context) {
	var req models.IncreaseRequestPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	request, err := h.svc.CreateIncreaseRequest(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.IncreaseRequestResponse{Status: "success", Request: request})
}

func (h *Handler) ListMyIncreaseRequests(c *gin.Context) {
	requests, err := h.svc.ListMyIncreaseRequests(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "requests": requests})
}

func (h *Handler) UpdateIncreaseRequest(c *gin.Context) {
	var req models.IncreaseRequestPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	request, err := h.svc.UpdateIncreaseRequest(c.Request.Context(), actorID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.IncreaseRequestResponse{Status: "success", Request: request})
}

func (h *Handler) SubmitIncreaseRequest(c *gin.Context) {
	request, err := h.svc.SubmitIncreaseRequest(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.IncreaseRequestResponse{Status: "success", Request: request})
}

func (h *Handler) CancelIncreaseRequest(c *gin.Context) {
	request, err := h.svc.CancelIncreaseRequest(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.IncreaseRequestResponse{Status: "success", Request: request})
}

func (h *Handler) ApproveIncreaseRequest(c *gin.Context) {
	request, err := h.svc.ApproveIncreaseRequest(c.Request.Context(), actorID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.IncreaseRequestResponse{Status: "success", Request: request})
}

func (h *Handler) RejectIncreaseRequest(c *gin.Context) {
	// Rejection reason is optional; an empty body is fine
	var req models.RejectRequestPayload
	_ = c.ShouldBindJSON(&req)

	request, err := h.svc.RejectIncreaseRequest(c.Request.Context(), actorID(c), c.Param("id"), req.RejectionReason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.IncreaseRequestResponse{Status: "success", Request: request})
}

// Admin handlers
func (h *Handler) ListCompanies(c *gin.Context) {
	companies, err := h.svc.ListCompanies(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "companies": companies})
}

func (h *Handler) CreateCompany(c *gin.Context) {
	var req models.CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	company, err := h.svc.CreateCompany(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "company": company})
}

func (h *Handler) ListPurchaseUsers(c *gin.Context) {
	users, err := h.svc.ListPurchaseUsers(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "users": users})
}

func (h *Handler) ListLimits(c *gin.Context) {
	limits, err := h.svc.ListLimits(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "limits": limits})
}

func (h *Handler) GetLimitDetails(c *gin.Context) {
	userID := c.Query("user")
	company := c.Query("company")
	if userID == "" || company == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "BAD_REQUEST",
			Message: "user and company query parameters are required",
		})
		return
	}

	limit, err := h.svc.GetLimitDetails(c.Request.Context(), actorID(c), userID, company)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "limit": limit})
}

func (h *Handler) UpsertLimit(c *gin.Context) {
	var req models.UpsertLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	limit, err := h.svc.UpsertLimit(c.Request.Context(), actorID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "limit": limit})
}

func (h *Handler) ListPendingRequests(c *gin.Context) {
	requests, err := h.svc.ListPendingRequests(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "requests": requests})
}

func (h *Handler) GrantRole(c *gin.Context) {
	var req models.GrantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	if err := h.svc.GrantRole(c.Request.Context(), actorID(c), c.Param("id"), req.Role); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) InitLimits(c *gin.Context) {
	processed, failed, err := h.svc.InitLimits(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MaintenanceResponse{Status: "success", Processed: processed, Failed: failed})
}

func (h *Handler) RecomputeUsage(c *gin.Context) {
	processed, failed, err := h.svc.RecomputeUsage(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MaintenanceResponse{Status: "success", Processed: processed, Failed: failed})
}

// Helpers
func actorID(c *gin.Context) string {
	return c.GetString("userId")
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "BAD_REQUEST",
		Message: err.Error(),
	})
}

// respondError maps service errors onto HTTP status codes
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, models.ErrorResponse{
			Status:  "error",
			Code:    "FORBIDDEN",
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status:  "error",
			Code:    "NOT_FOUND",
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrLimitRestriction):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Status:  "error",
			Code:    "LIMIT_RESTRICTION",
			Message: err.Error(),
		})
	case errors.Is(err, service.ErrWorkflowState):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status:  "error",
			Code:    "WORKFLOW_STATE",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status:  "error",
			Code:    "INTERNAL_ERROR",
			Message: err.Error(),
		})
	}
}
