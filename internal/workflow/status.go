package workflow

import "seller-portal/internal/models"

// rank orders the forward path. vendor_expired sits outside it.
var rank = map[models.WorkflowStatus]int{
	models.StatusVendorPending:  0,
	models.StatusVendorAccepted: 1,
	models.StatusPickupAssigned: 2,
	models.StatusDispatched:     3,
}

// Rank returns the position of s on the forward path, or -1 for
// vendor_expired and unknown values.
func Rank(s models.WorkflowStatus) int {
	if r, ok := rank[Normalize(s)]; ok {
		return r
	}
	return -1
}

// Normalize maps legacy stored values onto the state machine. A missing
// status is pending; a stored admin_overdue is an accepted order whose plan
// deadline has passed.
func Normalize(s models.WorkflowStatus) models.WorkflowStatus {
	switch s {
	case "":
		return models.StatusVendorPending
	case models.StatusAdminOverdue:
		return models.StatusVendorAccepted
	}
	return s
}

// invoiceEligible lists the display statuses for which a billing slip exists.
var invoiceEligible = map[models.WorkflowStatus]bool{
	models.StatusVendorAccepted: true,
	models.StatusAdminOverdue:   true,
	models.StatusPickupAssigned: true,
	models.StatusDispatched:     true,
}
