package workflow_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seller-portal/internal/models"
	"seller-portal/internal/workflow"
)

func TestNormalizePickup_Phone(t *testing.T) {
	tests := []struct {
		phone   string
		wantErr bool
	}{
		{"+91 98765 43210", false},
		{"+91 98765-43210", false},
		{"(022) 555 0101", false},
		{"", false},
		{"   ", false},
		{"12345", true},
		{"abc", true},
		{"123456789012345678901", true},
		{"98765x43210", true},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			_, err := workflow.NormalizePickup(nil, &models.DeliveryPartnerInput{Name: "Courier", Phone: tt.phone})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			we, ok := workflow.AsError(err)
			require.True(t, ok)
			assert.Equal(t, workflow.KindValidation, we.Kind)
			assert.Equal(t, "deliveryPartner.phone", we.Field)
		})
	}
}

func TestNormalizePickup_TrimsAndTruncates(t *testing.T) {
	long := strings.Repeat("ä", workflow.MaxNotes+50)

	in, err := workflow.NormalizePickup(
		&models.PickupPlanInput{PickupWindow: "  10:00-12:00  ", Notes: long},
		&models.DeliveryPartnerInput{Name: "  Delhivery ", TrackingURL: " "},
	)
	require.NoError(t, err)

	require.NotNil(t, in.Plan)
	assert.Equal(t, "10:00-12:00", in.Plan.PickupWindow)
	assert.Equal(t, workflow.MaxNotes, len([]rune(in.Plan.Notes)))
	require.NotNil(t, in.Partner)
	assert.Equal(t, "Delhivery", in.Partner.Name)
	assert.Empty(t, in.Partner.TrackingURL)
}

func TestNormalizePickup_EmptyGroupsCollapse(t *testing.T) {
	in, err := workflow.NormalizePickup(&models.PickupPlanInput{Notes: "  "}, &models.DeliveryPartnerInput{})
	require.NoError(t, err)
	assert.Nil(t, in.Plan)
	assert.Nil(t, in.Partner)
}

func TestValidateOrderID(t *testing.T) {
	id, err := workflow.ValidateOrderID("  5001_m1 ")
	require.NoError(t, err)
	assert.Equal(t, "5001_m1", id)

	_, err = workflow.ValidateOrderID("   ")
	we, ok := workflow.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "orderId", we.Field)

	_, err = workflow.ValidateOrderID(strings.Repeat("x", workflow.MaxOrderID+1))
	assert.Error(t, err)
}

func TestBusinessHoursPolicy(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	days := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
	p := workflow.NewBusinessHoursPolicy(30*time.Minute, 10, 19, days, "Asia/Kolkata")

	at := func(y int, m time.Month, d, h, min int) int64 {
		return time.Date(y, m, d, h, min, 0, 0, loc).UnixMilli()
	}

	tests := []struct {
		name     string
		accepted int64
		want     int64
	}{
		// 2024-06-07 is a Friday.
		{"inside hours", at(2024, 6, 7, 11, 0), at(2024, 6, 7, 11, 30)},
		{"before opening", at(2024, 6, 7, 8, 0), at(2024, 6, 7, 10, 30)},
		{"spills into next working day", at(2024, 6, 7, 18, 45), at(2024, 6, 8, 10, 15)},
		{"skips sunday", at(2024, 6, 8, 18, 50), at(2024, 6, 10, 10, 20)},
		{"accepted on sunday", at(2024, 6, 9, 12, 0), at(2024, 6, 10, 10, 30)},
		{"after closing", at(2024, 6, 7, 20, 0), at(2024, 6, 8, 10, 30)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.PlanBy(tt.accepted))
		})
	}
}

func TestBusinessHoursPolicy_FallsBackToFlat(t *testing.T) {
	p := workflow.NewBusinessHoursPolicy(30*time.Minute, 19, 10, nil, "Nowhere/Invalid")
	assert.Equal(t, workflow.FlatPolicy{Window: 30 * time.Minute}, p)
}
