package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seller-portal/internal/config"
	"seller-portal/internal/invoice"
	"seller-portal/internal/logger"
	"seller-portal/internal/models"
	"seller-portal/internal/order"
	"seller-portal/internal/order/db"
	"seller-portal/internal/workflow"
)

const baseTime = int64(1_717_740_000_000)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	orders []string
}

func (p *recordingPublisher) PublishWorkflowEvent(ctx context.Context, eventType string, payload models.WorkflowEventPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	p.orders = append(p.orders, payload.OrderID)
	return nil
}

func (p *recordingPublisher) alerts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for i, e := range p.events {
		if e == models.EventPlanDeadlineMissed {
			out = append(out, p.orders[i])
		}
	}
	return out
}

func TestOverdueAlertJob_RunOnce(t *testing.T) {
	ctx := context.Background()
	log := logger.Discard()
	store, err := db.Open(ctx, config.DatabaseConfig{Driver: db.DriverSQLite, DSN: ":memory:"}, log)
	require.NoError(t, err)
	require.NoError(t, store.CreateSchema(ctx))
	t.Cleanup(func() { store.Close() })

	pub := &recordingPublisher{}
	now := baseTime
	engine := workflow.NewEngine(3*time.Hour, workflow.FlatPolicy{Window: 30 * time.Minute}, "https://portal.example.com/invoices")
	svc := order.NewOrderService(store, engine, pub, invoice.NewRenderer(false), log)
	svc.Now = func() time.Time { return time.UnixMilli(now) }

	for _, id := range []string{"1", "2"} {
		_, err := svc.IngestOrder(ctx, models.IngestedOrder{ShopifyOrderID: id, MerchantID: "m1", CreatedAt: baseTime})
		require.NoError(t, err)
	}
	_, err = svc.Accept(ctx, workflow.Actor{UserID: "m1"}, "1_m1")
	require.NoError(t, err)
	now = baseTime + 20*60_000
	_, err = svc.Accept(ctx, workflow.Actor{UserID: "m1"}, "2_m1")
	require.NoError(t, err)

	job := NewOverdueAlertJob(svc, NewMemoryDeduper(), "@every 1m", log)

	// 40 minutes in: only the first order is past its plan deadline
	now = baseTime + 40*60_000
	sent, err := job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"1_m1"}, pub.alerts())

	// no repeat alert
	sent, err = job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	now = baseTime + 60*60_000
	sent, err = job.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"1_m1", "2_m1"}, pub.alerts())

	// alerts never touch the stored order
	o, err := store.GetOrderByID(ctx, "1_m1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusVendorAccepted, o.WorkflowStatus)
	assert.Len(t, o.WorkflowTimeline, 2)
}

func TestOverdueAlertJob_BadSchedule(t *testing.T) {
	job := NewOverdueAlertJob(nil, NewMemoryDeduper(), "every now and then", logger.Discard())
	assert.Error(t, job.Start())
}

func TestRedisDeduper(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	d := &RedisDeduper{Client: client, Prefix: "alerts:overdue:"}
	ctx := context.Background()

	first, err := d.FirstSeen(ctx, "1_m1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = d.FirstSeen(ctx, "1_m1", time.Hour)
	require.NoError(t, err)
	assert.False(t, first)

	mr.FastForward(2 * time.Hour)
	first, err = d.FirstSeen(ctx, "1_m1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestMemoryDeduper_Expires(t *testing.T) {
	now := time.Date(2024, 6, 7, 10, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper()
	d.now = func() time.Time { return now }

	first, _ := d.FirstSeen(context.Background(), "k", time.Minute)
	assert.True(t, first)
	first, _ = d.FirstSeen(context.Background(), "k", time.Minute)
	assert.False(t, first)

	now = now.Add(2 * time.Minute)
	first, _ = d.FirstSeen(context.Background(), "k", time.Minute)
	assert.True(t, first)
}
