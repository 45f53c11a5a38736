package invoice

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"

	"seller-portal/internal/models"
	"seller-portal/internal/utils"
)

// SlipFor builds billing slip content from an order. The output depends only
// on stored order fields.
func SlipFor(o *models.Order) Slip {
	currency := o.Currency
	if currency == "" {
		currency = "INR"
	}

	lines := []string{
		"BILLING SLIP",
		"",
		"Order: " + DisplayNumber(o),
		"Order ID: " + o.OrderID,
		"Merchant: " + o.MerchantID,
		"Order date: " + utils.FromMillis(o.CreatedAt).Format("2006-01-02 15:04 MST"),
	}
	if o.CustomerEmail != "" {
		lines = append(lines, "Customer: "+o.CustomerEmail)
	}
	if o.FinancialStatus != "" {
		lines = append(lines, "Payment: "+o.FinancialStatus)
	}
	lines = append(lines,
		"Status: "+string(o.WorkflowStatus),
		"",
		fmt.Sprintf("%-5s %-40s %12s %12s", "Qty", "Item", "Price", "Total"),
		strings.Repeat("-", 72),
	)
	for _, item := range o.LineItems {
		title := item.Title
		if item.SKU != "" {
			title += " [" + item.SKU + "]"
		}
		lines = append(lines, fmt.Sprintf("%-5d %-40s %12.2f %12.2f", item.Quantity, title, item.Price, item.Total))
	}
	lines = append(lines,
		strings.Repeat("-", 72),
		fmt.Sprintf("Subtotal: %s %.2f", currency, o.Subtotal),
	)

	return Slip{Lines: lines, Reference: o.OrderID}
}

// DisplayNumber prefers the human order number, then the marketplace id.
func DisplayNumber(o *models.Order) string {
	switch {
	case o.OrderNumber != "":
		return o.OrderNumber
	case o.ShopifyOrderID != "":
		return o.ShopifyOrderID
	default:
		return o.OrderID
	}
}

// Filename is the download name for an order's billing slip.
func Filename(o *models.Order) string {
	name := slug.Make(DisplayNumber(o))
	if name == "" {
		name = "order"
	}
	return "billing-slip_" + name + ".pdf"
}
