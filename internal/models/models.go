package models

import (
	"time"
)

// Limit record status values
const (
	LimitStatusActive  = "Active"
	LimitStatusRevoked = "Revoked"
)

// Purchase order status values
const (
	POStatusDraft     = "Draft"
	POStatusSubmitted = "Submitted"
	POStatusCancelled = "Cancelled"
)

// Increase request status values
const (
	RequestStatusDraft    = "Draft"
	RequestStatusPending  = "Pending Approval"
	RequestStatusApproved = "Approved"
	RequestStatusRejected = "Rejected"
)

// Roles known to the system
const (
	RoleManagingDirector = "Managing Director"
	RoleSystemManager    = "System Manager"
	RolePOCreator        = "Purchase Order Creator"
	RolePOManager        = "Purchase Order Manager"
)

// PurchaseRoles are the roles that make a user eligible to create purchase orders
var PurchaseRoles = []string{RolePOCreator, RolePOManager, RoleSystemManager, RoleManagingDirector}

// User represents a user in the system
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	Enabled   bool      `db:"enabled" json:"enabled"`
	UserType  string    `db:"user_type" json:"userType"` // "System User" or "Website User"
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Company represents a purchasing company
type Company struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Abbr      string    `db:"abbr" json:"abbr"`
	Currency  string    `db:"currency" json:"currency"`
	Enabled   bool      `db:"enabled" json:"enabled"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// POLimit holds the spending caps and running monthly usage for one user in one company.
// At most one record exists per (user, company) pair.
type POLimit struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"userId"`
	Company       string    `db:"company" json:"company"`
	Status        string    `db:"status" json:"status"` // Active or Revoked
	PerPOLimit    float64   `db:"per_po_limit" json:"perPoLimit"`
	PerMonthLimit float64   `db:"per_month_limit" json:"perMonthLimit"`
	MonthlyUsage  float64   `db:"monthly_usage" json:"monthlyUsage"`
	LastResetDate time.Time `db:"last_reset_date" json:"lastResetDate"`
	UpdatedBy     string    `db:"updated_by" json:"updatedBy"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// PurchaseOrder is the purchasing document gated by the limit validator
type PurchaseOrder struct {
	ID              string    `db:"id" json:"id"`
	Owner           string    `db:"owner" json:"owner"`
	Company         string    `db:"company" json:"company"`
	Supplier        string    `db:"supplier" json:"supplier"`
	BaseGrandTotal  float64   `db:"base_grand_total" json:"baseGrandTotal"`
	Status          string    `db:"status" json:"status"`
	TransactionDate time.Time `db:"transaction_date" json:"transactionDate"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// LimitIncreaseRequest proposes new caps for a (user, company) pair, subject to approval
type LimitIncreaseRequest struct {
	ID                string     `db:"id" json:"id"`
	UserID            string     `db:"user_id" json:"userId"`
	Company           string     `db:"company" json:"company"`
	CurrentPerPO      float64    `db:"current_per_po" json:"currentPerPoLimit"`
	CurrentPerMonth   float64    `db:"current_per_month" json:"currentPerMonthLimit"`
	RequestedPerPO    float64    `db:"requested_per_po" json:"requestedPerPoLimit"`
	RequestedPerMonth float64    `db:"requested_per_month" json:"requestedPerMonthLimit"`
	Reason            string     `db:"reason" json:"reason"`
	Status            string     `db:"status" json:"status"`
	ApprovedBy        *string    `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovalDate      *time.Time `db:"approval_date" json:"approvalDate,omitempty"`
	RejectionReason   string     `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}
