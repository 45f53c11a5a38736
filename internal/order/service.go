package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"seller-portal/internal/invoice"
	"seller-portal/internal/logger"
	"seller-portal/internal/models"
	"seller-portal/internal/order/db"
	"seller-portal/internal/utils"
	"seller-portal/internal/workflow"
)

// DefaultListLimit caps dashboard listings.
const DefaultListLimit = 200

type Store interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) (bool, error)
	ListOrdersByMerchant(ctx context.Context, merchantID string, limit int) ([]models.Order, error)
	ListOrdersByStatus(ctx context.Context, statuses []models.WorkflowStatus, limit int) ([]models.Order, error)
	UpdateInTx(ctx context.Context, id string, fn db.MutateFunc) (*models.Order, error)
}

type EventPublisher interface {
	PublishWorkflowEvent(ctx context.Context, eventType string, payload models.WorkflowEventPayload) error
}

type DocumentRenderer interface {
	Render(slip invoice.Slip) ([]byte, error)
}

type OrderService struct {
	Store    Store
	Engine   *workflow.Engine
	Events   EventPublisher
	Renderer DocumentRenderer
	Logger   *logger.Logger
	Now      utils.Clock
}

func NewOrderService(store Store, engine *workflow.Engine, events EventPublisher, renderer DocumentRenderer, log *logger.Logger) *OrderService {
	return &OrderService{
		Store:    store,
		Engine:   engine,
		Events:   events,
		Renderer: renderer,
		Logger:   log,
		Now:      utils.SystemClock,
	}
}

// InvoiceDocument is a rendered billing slip and the order it belongs to.
type InvoiceDocument struct {
	Order    *models.Order
	PDF      []byte
	Filename string
}

type decision func(o *models.Order, now int64) (workflow.Outcome, error)

// transition runs decide inside one store transaction and publishes the
// resulting events once the write is committed.
func (s *OrderService) transition(ctx context.Context, orderID string, actor workflow.Actor, decide decision) (*models.Order, workflow.Outcome, error) {
	var outcome workflow.Outcome
	now := s.Now().UnixMilli()

	order, err := s.Store.UpdateInTx(ctx, orderID, func(o *models.Order) (bool, error) {
		out, err := decide(o, now)
		outcome = out
		return out.Changed, err
	})
	if errors.Is(err, db.ErrOrderNotFound) {
		return nil, workflow.Outcome{}, workflow.NotFound(orderID)
	}
	if order != nil && outcome.Changed {
		s.publish(ctx, order, actor, outcome)
	}
	return order, outcome, err
}

func (s *OrderService) publish(ctx context.Context, o *models.Order, actor workflow.Actor, out workflow.Outcome) {
	if s.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	payload := models.WorkflowEventPayload{
		OrderID:        o.OrderID,
		MerchantID:     o.MerchantID,
		WorkflowStatus: o.WorkflowStatus,
		Actor:          actor.UserID,
		At:             o.UpdatedAt,
		Overdue:        out.Overdue,
		AdminPlanBy:    o.AdminPlanBy,
		InvoiceURL:     o.Invoice.URL,
	}
	for _, eventType := range out.Events {
		if err := s.Events.PublishWorkflowEvent(ctx, eventType, payload); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Publish %s for order %s failed: %v", eventType, o.OrderID, err))
		}
	}
}

// Accept records that the owning vendor accepted the order.
func (s *OrderService) Accept(ctx context.Context, actor workflow.Actor, orderID string) (*models.AcceptResponse, error) {
	orderID, err := workflow.ValidateOrderID(orderID)
	if err != nil {
		return nil, err
	}

	o, out, err := s.transition(ctx, orderID, actor, func(o *models.Order, now int64) (workflow.Outcome, error) {
		return s.Engine.Accept(o, actor, now)
	})
	if err != nil {
		if out.Changed {
			s.Logger.LogWorkflow("ACCEPT", orderID, actor.UserID, "acceptance window elapsed, order expired")
		}
		return nil, err
	}

	if out.Idempotent {
		s.Logger.LogWorkflow("ACCEPT", orderID, actor.UserID, "already accepted")
	} else {
		s.Logger.LogWorkflow("ACCEPT", orderID, actor.UserID, "accepted")
	}
	return &models.AcceptResponse{
		OK:               true,
		WorkflowStatus:   workflow.Normalize(o.WorkflowStatus),
		VendorAcceptedAt: o.VendorAcceptedAt,
		AdminPlanBy:      o.AdminPlanBy,
		Invoice:          o.Invoice,
		AlreadyAccepted:  out.Idempotent,
	}, nil
}

// AssignPickup records the admin's pickup plan and delivery partner.
func (s *OrderService) AssignPickup(ctx context.Context, actor workflow.Actor, req models.AssignPickupRequest) (*models.AssignPickupResponse, error) {
	if !actor.Admin {
		return nil, workflow.Forbidden("admin access required")
	}
	orderID, err := workflow.ValidateOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	input, err := workflow.NormalizePickup(req.Plan(), req.DeliveryPartner)
	if err != nil {
		return nil, err
	}

	o, out, err := s.transition(ctx, orderID, actor, func(o *models.Order, now int64) (workflow.Outcome, error) {
		return s.Engine.AssignPickup(o, actor, input, now)
	})
	if err != nil {
		return nil, err
	}

	msg := "pickup assigned"
	switch {
	case out.Idempotent:
		msg = "pickup already assigned"
	case out.Overdue:
		msg = "pickup assigned after plan deadline"
	}
	s.Logger.LogWorkflow("ASSIGN_PICKUP", orderID, actor.UserID, msg)

	return &models.AssignPickupResponse{
		OK:              true,
		WorkflowStatus:  o.WorkflowStatus,
		Overdue:         out.Overdue,
		AdminPlanBy:     o.AdminPlanBy,
		PickupPlan:      o.PickupPlan,
		DeliveryPartner: o.DeliveryPartner,
		AlreadyAssigned: out.Idempotent,
	}, nil
}

// MarkDispatched records the hand-over to the delivery partner.
func (s *OrderService) MarkDispatched(ctx context.Context, actor workflow.Actor, orderID string) (*models.DispatchResponse, error) {
	orderID, err := workflow.ValidateOrderID(orderID)
	if err != nil {
		return nil, err
	}

	o, out, err := s.transition(ctx, orderID, actor, func(o *models.Order, now int64) (workflow.Outcome, error) {
		return s.Engine.MarkDispatched(o, actor, now)
	})
	if err != nil {
		return nil, err
	}

	if !out.Idempotent {
		s.Logger.LogWorkflow("DISPATCH", orderID, actor.UserID, "dispatched")
	}
	return &models.DispatchResponse{
		OK:                true,
		WorkflowStatus:    o.WorkflowStatus,
		DispatchedAt:      o.DispatchedAt,
		AlreadyDispatched: out.Idempotent,
	}, nil
}

// Invoice returns the billing slip, generating and recording it first when
// the order has none. Generation happens inside the same transaction as the
// eligibility check.
func (s *OrderService) Invoice(ctx context.Context, actor workflow.Actor, orderID string) (*InvoiceDocument, error) {
	orderID, err := workflow.ValidateOrderID(orderID)
	if err != nil {
		return nil, err
	}

	var pdf []byte
	o, out, err := s.transition(ctx, orderID, actor, func(o *models.Order, now int64) (workflow.Outcome, error) {
		pdf = nil
		out, err := s.Engine.PrepareInvoice(o, actor, now)
		if err != nil || !out.NeedsDocument {
			return out, err
		}
		doc, err := s.Renderer.Render(invoice.SlipFor(o))
		if err != nil {
			return workflow.Outcome{}, fmt.Errorf("render billing slip: %w", err)
		}
		pdf = doc
		return s.Engine.CompleteInvoice(o, now), nil
	})
	if err != nil {
		return nil, err
	}

	if pdf == nil {
		if pdf, err = s.Renderer.Render(invoice.SlipFor(o)); err != nil {
			return nil, fmt.Errorf("render billing slip: %w", err)
		}
	}
	if out.Changed {
		s.Logger.LogWorkflow("INVOICE", orderID, actor.UserID, "billing slip generated")
	}
	return &InvoiceDocument{Order: o, PDF: pdf, Filename: invoice.Filename(o)}, nil
}

// GetOrder returns an order with its derived state, for the owner or an admin.
func (s *OrderService) GetOrder(ctx context.Context, actor workflow.Actor, orderID string) (*models.Order, workflow.View, error) {
	orderID, err := workflow.ValidateOrderID(orderID)
	if err != nil {
		return nil, workflow.View{}, err
	}
	o, err := s.Store.GetOrderByID(ctx, orderID)
	if errors.Is(err, db.ErrOrderNotFound) {
		return nil, workflow.View{}, workflow.NotFound(orderID)
	}
	if err != nil {
		return nil, workflow.View{}, err
	}
	if !actor.Admin && o.MerchantID != actor.UserID {
		return nil, workflow.View{}, workflow.Forbidden("order belongs to another merchant")
	}
	return o, s.Engine.Derive(o, s.Now().UnixMilli()), nil
}

// ListMerchantOrders lists the caller's own orders, newest first.
func (s *OrderService) ListMerchantOrders(ctx context.Context, actor workflow.Actor, limit int) ([]models.OrderSummary, error) {
	orders, err := s.Store.ListOrdersByMerchant(ctx, actor.UserID, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return s.summarize(orders, ""), nil
}

// storedFor maps a display status to the stored statuses that can show it.
var storedFor = map[models.WorkflowStatus][]models.WorkflowStatus{
	models.StatusVendorPending:  {models.StatusVendorPending, ""},
	models.StatusVendorExpired:  {models.StatusVendorPending, "", models.StatusVendorExpired},
	models.StatusVendorAccepted: {models.StatusVendorAccepted, models.StatusAdminOverdue},
	models.StatusAdminOverdue:   {models.StatusVendorAccepted, models.StatusAdminOverdue},
	models.StatusPickupAssigned: {models.StatusPickupAssigned},
	models.StatusDispatched:     {models.StatusDispatched},
}

// ListOrdersForAdmin lists orders across merchants, optionally filtered by
// display status.
func (s *OrderService) ListOrdersForAdmin(ctx context.Context, actor workflow.Actor, display models.WorkflowStatus, limit int) ([]models.OrderSummary, error) {
	if !actor.Admin {
		return nil, workflow.Forbidden("admin access required")
	}
	var stored []models.WorkflowStatus
	if display != "" {
		var ok bool
		if stored, ok = storedFor[display]; !ok {
			return nil, workflow.Invalid("status", fmt.Sprintf("unknown status %q", display))
		}
	}

	orders, err := s.Store.ListOrdersByStatus(ctx, stored, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	return s.summarize(orders, display), nil
}

func (s *OrderService) summarize(orders []models.Order, display models.WorkflowStatus) []models.OrderSummary {
	now := s.Now().UnixMilli()
	out := make([]models.OrderSummary, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		v := s.Engine.Derive(o, now)
		if display != "" && v.Display != display {
			continue
		}
		out = append(out, models.OrderSummary{
			OrderID:       o.OrderID,
			OrderNumber:   o.OrderNumber,
			MerchantID:    o.MerchantID,
			CreatedAt:     o.CreatedAt,
			Subtotal:      o.Subtotal,
			Currency:      o.Currency,
			Stored:        v.Stored,
			Display:       v.Display,
			Deadline:      v.Deadline,
			RemainingMs:   v.RemainingMs,
			InvoiceStatus: o.Invoice.Status,
		})
	}
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

// IngestOrder creates a pending record for a newly split marketplace order.
// Replays of the same order are ignored.
func (s *OrderService) IngestOrder(ctx context.Context, in models.IngestedOrder) (bool, error) {
	now := s.Now().UnixMilli()
	createdAt := in.CreatedAt
	if createdAt == 0 {
		createdAt = now
	}
	acceptBy := createdAt + s.Engine.AcceptWindow.Milliseconds()

	o := &models.Order{
		OrderID:          in.OrderID(),
		ShopifyOrderID:   in.ShopifyOrderID,
		OrderNumber:      in.OrderNumber,
		MerchantID:       in.MerchantID,
		WorkflowStatus:   models.StatusVendorPending,
		CreatedAt:        createdAt,
		Currency:         in.Currency,
		FinancialStatus:  in.FinancialStatus,
		CustomerEmail:    in.CustomerEmail,
		LineItems:        in.LineItems,
		Subtotal:         in.Subtotal,
		VendorAcceptBy:   &acceptBy,
		Invoice:          models.Invoice{Status: models.InvoiceNone},
		WorkflowTimeline: []models.TimelineEntry{},
		UpdatedAt:        now,
	}

	inserted, err := s.Store.CreateOrder(ctx, o)
	if err != nil {
		return false, err
	}
	if inserted {
		s.Logger.LogOrder("INGEST", o.OrderID, fmt.Sprintf("created for merchant %s", o.MerchantID))
	} else {
		s.Logger.Debug("ORDER", fmt.Sprintf("Order %s already ingested", o.OrderID))
	}
	return inserted, nil
}
