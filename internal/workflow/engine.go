package workflow

import (
	"net/url"
	"time"

	"seller-portal/internal/models"
)

// Actor is the verified caller of a transition.
type Actor struct {
	UserID string
	Admin  bool
}

// Outcome describes what a transition did to the order it was given.
// Changed means the order must be written back, even when the transition
// also returned an error.
type Outcome struct {
	Changed    bool
	Idempotent bool
	Overdue    bool
	// NeedsDocument is set when an invoice must be synthesized before
	// CompleteInvoice is called.
	NeedsDocument bool
	Events        []string
}

// View is the derived state of an order at a point in time. Every read and
// write path uses it.
type View struct {
	Stored      models.WorkflowStatus `json:"workflowStatus"`
	Display     models.WorkflowStatus `json:"displayStatus"`
	AcceptBy    int64                 `json:"acceptBy"`
	PlanBy      *int64                `json:"planBy,omitempty"`
	Expired     bool                  `json:"expired"`
	Overdue     bool                  `json:"overdue"`
	Deadline    *int64                `json:"deadline,omitempty"`
	RemainingMs *int64                `json:"remainingMs,omitempty"`
}

// Engine holds the workflow rules. It never touches storage.
type Engine struct {
	AcceptWindow   time.Duration
	Policy         DeadlinePolicy
	InvoiceBaseURL string
}

func NewEngine(acceptWindow time.Duration, policy DeadlinePolicy, invoiceBaseURL string) *Engine {
	if policy == nil {
		policy = FlatPolicy{Window: 30 * time.Minute}
	}
	return &Engine{AcceptWindow: acceptWindow, Policy: policy, InvoiceBaseURL: invoiceBaseURL}
}

// AcceptBy returns the stored acceptance deadline or createdAt plus the
// accept window.
func (e *Engine) AcceptBy(o *models.Order) int64 {
	if o.VendorAcceptBy != nil {
		return *o.VendorAcceptBy
	}
	return o.CreatedAt + e.AcceptWindow.Milliseconds()
}

// PlanBy returns the stored admin deadline, or computes it from the
// acceptance time. Nil when the order was never accepted.
func (e *Engine) PlanBy(o *models.Order) *int64 {
	if o.AdminPlanBy != nil {
		return o.AdminPlanBy
	}
	if o.VendorAcceptedAt == nil {
		return nil
	}
	v := e.Policy.PlanBy(*o.VendorAcceptedAt)
	return &v
}

func (e *Engine) InvoiceURL(orderID string) string {
	return e.InvoiceBaseURL + "/" + url.PathEscape(orderID) + ".pdf"
}

func (e *Engine) Derive(o *models.Order, now int64) View {
	stored := Normalize(o.WorkflowStatus)
	v := View{Stored: stored, Display: stored, AcceptBy: e.AcceptBy(o)}

	switch stored {
	case models.StatusVendorPending:
		v.Deadline = ptr(v.AcceptBy)
		if now > v.AcceptBy {
			v.Expired = true
			v.Display = models.StatusVendorExpired
		}
	case models.StatusVendorAccepted:
		v.PlanBy = e.PlanBy(o)
		if v.PlanBy != nil {
			v.Deadline = ptr(*v.PlanBy)
			if now > *v.PlanBy {
				v.Overdue = true
				v.Display = models.StatusAdminOverdue
			}
		}
	case models.StatusVendorExpired:
		v.Expired = true
	default:
		v.PlanBy = e.PlanBy(o)
		if v.PlanBy != nil && o.AdminPlannedAt != nil {
			v.Overdue = *o.AdminPlannedAt > *v.PlanBy
		}
	}

	if v.Deadline != nil {
		remaining := *v.Deadline - now
		if remaining < 0 {
			remaining = 0
		}
		v.RemainingMs = &remaining
	}
	return v
}

// Accept records vendor acceptance. A late accept on a pending order moves
// it to vendor_expired and reports the expiry in the same step.
func (e *Engine) Accept(o *models.Order, actor Actor, now int64) (Outcome, error) {
	if o.MerchantID != actor.UserID {
		return Outcome{}, Forbidden("order belongs to another merchant")
	}

	v := e.Derive(o, now)
	switch {
	case Rank(v.Stored) >= Rank(models.StatusVendorAccepted):
		return Outcome{Idempotent: true}, nil
	case v.Stored == models.StatusVendorExpired:
		return Outcome{}, Expired(models.StatusVendorExpired)
	case v.Stored != models.StatusVendorPending:
		return Outcome{}, Conflict("order cannot be accepted", v.Stored, models.StatusVendorPending)
	}

	if v.Expired {
		o.WorkflowStatus = models.StatusVendorExpired
		appendTimeline(o, now, models.EventVendorExpired, "acceptance window elapsed")
		return Outcome{Changed: true, Events: []string{models.EventVendorExpired}}, Expired(models.StatusVendorExpired)
	}

	planBy := e.Policy.PlanBy(now)
	o.WorkflowStatus = models.StatusVendorAccepted
	o.VendorAcceptedAt = ptr(now)
	o.AdminPlanBy = &planBy
	o.Invoice = models.Invoice{Status: models.InvoiceReady, URL: e.InvoiceURL(o.OrderID), GeneratedAt: ptr(now)}
	appendTimeline(o, now, models.EventVendorAccepted, "")
	appendTimeline(o, now, models.EventInvoiceReady, "")

	return Outcome{Changed: true, Events: []string{models.EventVendorAccepted, models.EventInvoiceReady}}, nil
}

// AssignPickup records the admin's pickup plan. Missing the plan deadline
// is logged on the timeline but never blocks.
func (e *Engine) AssignPickup(o *models.Order, actor Actor, in PickupInput, now int64) (Outcome, error) {
	if !actor.Admin {
		return Outcome{}, Forbidden("admin access required")
	}

	stored := Normalize(o.WorkflowStatus)
	switch {
	case stored == models.StatusPickupAssigned || stored == models.StatusDispatched:
		v := e.Derive(o, now)
		return Outcome{Idempotent: true, Overdue: v.Overdue}, nil
	case stored != models.StatusVendorAccepted:
		return Outcome{}, Conflict("order is not awaiting pickup planning", stored, models.StatusVendorAccepted)
	case o.VendorAcceptedAt == nil:
		return Outcome{}, Conflict("vendor acceptance missing", stored, models.StatusVendorAccepted)
	}

	planBy := e.PlanBy(o)
	overdue := now > *planBy

	o.WorkflowStatus = models.StatusPickupAssigned
	o.AdminPlanBy = ptr(*planBy)
	o.AdminPlannedAt = ptr(now)
	o.PickupPlan = in.Plan
	o.DeliveryPartner = in.Partner
	o.PickupAssignedBy = actor.UserID

	out := Outcome{Changed: true, Overdue: overdue}
	if overdue {
		appendTimeline(o, now, models.EventAdminOverdue, "pickup planned after deadline")
		out.Events = append(out.Events, models.EventAdminOverdue)
	}
	appendTimeline(o, now, models.EventPickupAssigned, "")
	out.Events = append(out.Events, models.EventPickupAssigned)
	return out, nil
}

// MarkDispatched records that the vendor handed the parcel over.
func (e *Engine) MarkDispatched(o *models.Order, actor Actor, now int64) (Outcome, error) {
	if o.MerchantID != actor.UserID {
		return Outcome{}, Forbidden("order belongs to another merchant")
	}

	stored := Normalize(o.WorkflowStatus)
	switch stored {
	case models.StatusDispatched:
		return Outcome{Idempotent: true}, nil
	case models.StatusPickupAssigned:
	default:
		return Outcome{}, Conflict("pickup has not been assigned", stored, models.StatusPickupAssigned)
	}

	o.WorkflowStatus = models.StatusDispatched
	o.DispatchedAt = ptr(now)
	appendTimeline(o, now, models.EventDispatched, "")
	return Outcome{Changed: true, Events: []string{models.EventDispatched}}, nil
}

// PrepareInvoice checks access and eligibility. When no ready invoice exists
// it marks the invoice generating and asks for a document.
func (e *Engine) PrepareInvoice(o *models.Order, actor Actor, now int64) (Outcome, error) {
	if !actor.Admin && o.MerchantID != actor.UserID {
		return Outcome{}, Forbidden("order belongs to another merchant")
	}

	v := e.Derive(o, now)
	if !invoiceEligible[v.Display] {
		return Outcome{}, Conflict("invoice not available yet", v.Display, models.StatusVendorAccepted)
	}

	if o.Invoice.Status == models.InvoiceReady && o.Invoice.URL != "" {
		return Outcome{Idempotent: true}, nil
	}

	o.Invoice = models.Invoice{Status: models.InvoiceGenerating}
	o.UpdatedAt = now
	return Outcome{Changed: true, NeedsDocument: true}, nil
}

// CompleteInvoice marks a generating invoice ready.
func (e *Engine) CompleteInvoice(o *models.Order, now int64) Outcome {
	o.Invoice = models.Invoice{Status: models.InvoiceReady, URL: e.InvoiceURL(o.OrderID), GeneratedAt: ptr(now)}
	appendTimeline(o, now, models.EventInvoiceReady, "")
	return Outcome{Changed: true, Events: []string{models.EventInvoiceReady}}
}

func appendTimeline(o *models.Order, now int64, eventType, note string) {
	o.WorkflowTimeline = append(o.WorkflowTimeline, models.TimelineEntry{At: now, Type: eventType, Note: note})
	o.UpdatedAt = now
}

func ptr[T any](v T) *T {
	return &v
}
