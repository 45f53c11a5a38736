package workflow

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"seller-portal/internal/models"
)

// Caps for free-text pickup fields. Longer input is truncated, not rejected.
const (
	MaxPickupWindow  = 200
	MaxPickupAddress = 500
	MaxNotes         = 800
	MaxPartnerName   = 200
	MaxPhone         = 20
	MaxEtaText       = 200
	MaxTrackingURL   = 800
	MaxOrderID       = 200
)

var phonePattern = regexp.MustCompile(`^[0-9+\-\s()]{6,20}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// PickupInput is a normalized assign-pickup payload.
type PickupInput struct {
	Plan    *models.PickupPlan
	Partner *models.DeliveryPartner
}

// ValidateOrderID trims id and rejects empty or oversized values.
func ValidateOrderID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if err := validate.Var(id, "required"); err != nil {
		return "", Invalid("orderId", "orderId is required")
	}
	if err := validate.Var(id, "max=200"); err != nil {
		return "", Invalid("orderId", "orderId is too long")
	}
	return id, nil
}

// NormalizePickup trims and truncates every field and validates the partner
// phone. Groups with no non-empty field collapse to nil.
func NormalizePickup(plan *models.PickupPlanInput, partner *models.DeliveryPartnerInput) (PickupInput, error) {
	var in PickupInput

	if plan != nil {
		p := models.PickupPlan{
			PickupWindow:  clip(plan.PickupWindow, MaxPickupWindow),
			PickupAddress: clip(plan.PickupAddress, MaxPickupAddress),
			Notes:         clip(plan.Notes, MaxNotes),
		}
		if p != (models.PickupPlan{}) {
			in.Plan = &p
		}
	}

	if partner != nil {
		phone := strings.TrimSpace(partner.Phone)
		if err := validate.Var(phone, "omitempty,phone"); err != nil {
			return PickupInput{}, Invalid("deliveryPartner.phone", "invalid phone number")
		}
		d := models.DeliveryPartner{
			Name:        clip(partner.Name, MaxPartnerName),
			Phone:       clip(phone, MaxPhone),
			EtaText:     clip(partner.EtaText, MaxEtaText),
			TrackingURL: clip(partner.TrackingURL, MaxTrackingURL),
		}
		if d != (models.DeliveryPartner{}) {
			in.Partner = &d
		}
	}

	return in, nil
}

// clip trims s and cuts it to at most n runes.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
