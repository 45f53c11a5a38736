package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seller-portal/internal/models"
)

func TestHub_RoutesByMerchant(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m1 := hub.SubscribeToMerchant(ctx, "m1")
	all := hub.SubscribeAll(ctx)
	assert.Equal(t, 2, hub.ClientCount())

	require.NoError(t, hub.PublishWorkflowEvent(ctx, models.EventVendorAccepted, models.WorkflowEventPayload{OrderID: "1_m1", MerchantID: "m1"}))
	require.NoError(t, hub.PublishWorkflowEvent(ctx, models.EventDispatched, models.WorkflowEventPayload{OrderID: "2_m2", MerchantID: "m2"}))

	ev := <-m1
	assert.Equal(t, models.EventVendorAccepted, ev.Type)
	assert.Equal(t, "1_m1", ev.OrderID)
	assert.Len(t, m1, 0)

	assert.Equal(t, "1_m1", (<-all).OrderID)
	assert.Equal(t, "2_m2", (<-all).OrderID)
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.SubscribeToMerchant(ctx, "m1")
	for i := 0; i < clientBuffer+5; i++ {
		require.NoError(t, hub.PublishWorkflowEvent(ctx, models.EventInvoiceReady, models.WorkflowEventPayload{MerchantID: "m1"}))
	}
	assert.Len(t, ch, clientBuffer)
}

func TestHub_UnsubscribeOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	ch := hub.SubscribeToMerchant(ctx, "m1")
	cancel()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-ch
	assert.False(t, open)
}
