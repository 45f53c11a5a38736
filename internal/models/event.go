package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventVendorAccepted = "vendor_accepted"
	EventVendorExpired  = "vendor_expired"
	EventAdminOverdue   = "admin_overdue"
	EventPickupAssigned = "pickup_assigned"
	EventDispatched     = "dispatched"
	EventInvoiceReady   = "invoice_ready"

	// EventPlanDeadlineMissed is an alert, not a transition: an accepted
	// order is still waiting for pickup planning after its deadline.
	EventPlanDeadlineMissed = "plan_deadline_missed"
)

// Envelope wraps every message on the workflow topic.
type Envelope struct {
	EventID       uuid.UUID       `json:"eventId"`
	EventType     string          `json:"eventType"`
	EventVersion  int             `json:"eventVersion"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// WorkflowEventPayload is the order state right after a committed transition.
type WorkflowEventPayload struct {
	OrderID        string         `json:"orderId"`
	MerchantID     string         `json:"merchantId"`
	WorkflowStatus WorkflowStatus `json:"workflowStatus"`
	Actor          string         `json:"actor"`
	At             int64          `json:"at"`
	Overdue        bool           `json:"overdue,omitempty"`
	AdminPlanBy    *int64         `json:"adminPlanBy,omitempty"`
	InvoiceURL     string         `json:"invoiceUrl,omitempty"`
}

// NewEnvelope builds an envelope with a fresh event id.
func NewEnvelope(eventType, producer, correlationID string, occurredAt time.Time, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.New(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    occurredAt.UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       raw,
	}, nil
}

// IngestedOrder is a marketplace order split down to a single vendor, as
// delivered on the ingestion topic.
type IngestedOrder struct {
	ShopifyOrderID  string     `json:"shopifyOrderId"`
	OrderNumber     string     `json:"orderNumber"`
	MerchantID      string     `json:"merchantId"`
	CreatedAt       int64      `json:"createdAt"`
	Currency        string     `json:"currency"`
	FinancialStatus string     `json:"financialStatus"`
	CustomerEmail   string     `json:"customerEmail"`
	LineItems       []LineItem `json:"lineItems"`
	Subtotal        float64    `json:"subtotal"`
}

// OrderID is the stable per-vendor record id.
func (o IngestedOrder) OrderID() string {
	return o.ShopifyOrderID + "_" + o.MerchantID
}
