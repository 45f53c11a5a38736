package models

import (
	"github.com/uptrace/bun"
)

type WorkflowStatus string

const (
	StatusVendorPending  WorkflowStatus = "vendor_pending"
	StatusVendorAccepted WorkflowStatus = "vendor_accepted"
	StatusVendorExpired  WorkflowStatus = "vendor_expired"
	StatusAdminOverdue   WorkflowStatus = "admin_overdue"
	StatusPickupAssigned WorkflowStatus = "pickup_assigned"
	StatusDispatched     WorkflowStatus = "dispatched"
)

type InvoiceStatus string

const (
	InvoiceNone       InvoiceStatus = "none"
	InvoiceGenerating InvoiceStatus = "generating"
	InvoiceReady      InvoiceStatus = "ready"
)

// Order is one vendor's slice of a marketplace order. Timestamps are epoch
// milliseconds.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID         string         `bun:"order_id,pk" json:"orderId"`
	ShopifyOrderID  string         `bun:"shopify_order_id" json:"shopifyOrderId,omitempty"`
	OrderNumber     string         `bun:"order_number" json:"orderNumber,omitempty"`
	MerchantID      string         `bun:"merchant_id,notnull" json:"merchantId"`
	WorkflowStatus  WorkflowStatus `bun:"workflow_status" json:"workflowStatus"`
	CreatedAt       int64          `bun:"created_at,notnull" json:"createdAt"`
	Currency        string         `bun:"currency" json:"currency,omitempty"`
	FinancialStatus string         `bun:"financial_status" json:"financialStatus,omitempty"`
	CustomerEmail   string         `bun:"customer_email" json:"customerEmail,omitempty"`
	LineItems       []LineItem     `bun:"line_items" json:"lineItems,omitempty"`
	Subtotal        float64        `bun:"subtotal" json:"subtotal"`

	VendorAcceptBy   *int64           `bun:"vendor_accept_by" json:"vendorAcceptBy,omitempty"`
	VendorAcceptedAt *int64           `bun:"vendor_accepted_at" json:"vendorAcceptedAt,omitempty"`
	AdminPlanBy      *int64           `bun:"admin_plan_by" json:"adminPlanBy,omitempty"`
	AdminPlannedAt   *int64           `bun:"admin_planned_at" json:"adminPlannedAt,omitempty"`
	PickupPlan       *PickupPlan      `bun:"pickup_plan" json:"pickupPlan,omitempty"`
	DeliveryPartner  *DeliveryPartner `bun:"delivery_partner" json:"deliveryPartner,omitempty"`
	PickupAssignedBy string           `bun:"pickup_assigned_by" json:"pickupAssignedBy,omitempty"`
	DispatchedAt     *int64           `bun:"dispatched_at" json:"dispatchedAt,omitempty"`
	Invoice          Invoice          `bun:"invoice" json:"invoice"`
	WorkflowTimeline []TimelineEntry  `bun:"workflow_timeline" json:"workflowTimeline"`

	UpdatedAt int64 `bun:"updated_at" json:"updatedAt"`
	Version   int64 `bun:"version,notnull" json:"-"`
}

type LineItem struct {
	Title    string  `json:"title"`
	SKU      string  `json:"sku,omitempty"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Total    float64 `json:"total"`
}

type PickupPlan struct {
	PickupWindow  string `json:"pickupWindow,omitempty"`
	PickupAddress string `json:"pickupAddress,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type DeliveryPartner struct {
	Name        string `json:"name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	EtaText     string `json:"etaText,omitempty"`
	TrackingURL string `json:"trackingUrl,omitempty"`
}

type Invoice struct {
	Status      InvoiceStatus `json:"status"`
	URL         string        `json:"url,omitempty"`
	GeneratedAt *int64        `json:"generatedAt,omitempty"`
}

type TimelineEntry struct {
	At   int64  `json:"at"`
	Type string `json:"type"`
	Note string `json:"note,omitempty"`
}

// ----- request / response DTOs -----

type OrderIDRequest struct {
	OrderID string `json:"orderId"`
}

// AssignPickupRequest carries the pickup plan fields at the top level.
type AssignPickupRequest struct {
	OrderID         string                `json:"orderId"`
	PickupWindow    string                `json:"pickupWindow"`
	PickupAddress   string                `json:"pickupAddress"`
	Notes           string                `json:"notes"`
	DeliveryPartner *DeliveryPartnerInput `json:"deliveryPartner"`
}

// Plan groups the top-level pickup fields.
func (r AssignPickupRequest) Plan() *PickupPlanInput {
	return &PickupPlanInput{PickupWindow: r.PickupWindow, PickupAddress: r.PickupAddress, Notes: r.Notes}
}

type PickupPlanInput struct {
	PickupWindow  string `json:"pickupWindow"`
	PickupAddress string `json:"pickupAddress"`
	Notes         string `json:"notes"`
}

type DeliveryPartnerInput struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	EtaText     string `json:"etaText"`
	TrackingURL string `json:"trackingUrl"`
}

type AcceptResponse struct {
	OK               bool           `json:"ok"`
	WorkflowStatus   WorkflowStatus `json:"workflowStatus"`
	VendorAcceptedAt *int64         `json:"vendorAcceptedAt,omitempty"`
	AdminPlanBy      *int64         `json:"adminPlanBy,omitempty"`
	Invoice          Invoice        `json:"invoice"`
	AlreadyAccepted  bool           `json:"alreadyAccepted,omitempty"`
}

type AssignPickupResponse struct {
	OK              bool             `json:"ok"`
	WorkflowStatus  WorkflowStatus   `json:"workflowStatus"`
	Overdue         bool             `json:"overdue"`
	AdminPlanBy     *int64           `json:"adminPlanBy,omitempty"`
	PickupPlan      *PickupPlan      `json:"pickupPlan"`
	DeliveryPartner *DeliveryPartner `json:"deliveryPartner"`
	AlreadyAssigned bool             `json:"alreadyAssigned,omitempty"`
}

type DispatchResponse struct {
	OK                bool           `json:"ok"`
	WorkflowStatus    WorkflowStatus `json:"workflowStatus"`
	DispatchedAt      *int64         `json:"dispatchedAt,omitempty"`
	AlreadyDispatched bool           `json:"alreadyDispatched,omitempty"`
}

type InvoiceResponse struct {
	OK      bool    `json:"ok"`
	Invoice Invoice `json:"invoice"`
}

// OrderSummary is an order as shown on a dashboard, with derived status.
type OrderSummary struct {
	OrderID       string         `json:"orderId"`
	OrderNumber   string         `json:"orderNumber,omitempty"`
	MerchantID    string         `json:"merchantId"`
	CreatedAt     int64          `json:"createdAt"`
	Subtotal      float64        `json:"subtotal"`
	Currency      string         `json:"currency,omitempty"`
	Stored        WorkflowStatus `json:"workflowStatus"`
	Display       WorkflowStatus `json:"displayStatus"`
	Deadline      *int64         `json:"deadline,omitempty"`
	RemainingMs   *int64         `json:"remainingMs,omitempty"`
	InvoiceStatus InvoiceStatus  `json:"invoiceStatus"`
}

type ErrorResponse struct {
	OK             bool           `json:"ok"`
	Error          string         `json:"error"`
	CurrentStatus  WorkflowStatus `json:"currentStatus,omitempty"`
	RequiredStatus WorkflowStatus `json:"requiredStatus,omitempty"`
	Field          string         `json:"field,omitempty"`
}
