package models

// Request models
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type CreateCompanyRequest struct {
	Name     string `json:"name" binding:"required"`
	Abbr     string `json:"abbr" binding:"required"`
	Currency string `json:"currency" binding:"required"`
}

type GrantRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type CreatePurchaseOrderRequest struct {
	Company        string  `json:"company" binding:"required"`
	Supplier       string  `json:"supplier" binding:"required"`
	BaseGrandTotal float64 `json:"baseGrandTotal"`
}

type UpsertLimitRequest struct {
	UserID        string  `json:"userId" binding:"required"`
	Company       string  `json:"company" binding:"required"`
	PerPOLimit    float64 `json:"perPoLimit"`
	PerMonthLimit float64 `json:"perMonthLimit"`
	Status        string  `json:"status" binding:"required,oneof=Active Revoked"`
}

type IncreaseRequestPayload struct {
	Company           string  `json:"company" binding:"required"`
	RequestedPerPO    float64 `json:"requestedPerPoLimit"`
	RequestedPerMonth float64 `json:"requestedPerMonthLimit"`
	Reason            string  `json:"reason"`
}

type RejectRequestPayload struct {
	RejectionReason string `json:"rejectionReason"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type PurchaseOrderResponse struct {
	Status        string         `json:"status"`
	PurchaseOrder *PurchaseOrder `json:"purchaseOrder,omitempty"`
}

// LimitStatusResponse reports a user's own caps for client-side display
type LimitStatusResponse struct {
	Status        string  `json:"status"`
	LimitStatus   string  `json:"limitStatus"`
	PerPOLimit    float64 `json:"perPoLimit"`
	PerMonthLimit float64 `json:"perMonthLimit"`
	MonthlyUsage  float64 `json:"monthlyUsage"`
}

type IncreaseRequestResponse struct {
	Status  string                `json:"status"`
	Request *LimitIncreaseRequest `json:"request,omitempty"`
}

type MaintenanceResponse struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
