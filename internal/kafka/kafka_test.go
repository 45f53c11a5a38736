package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seller-portal/internal/logger"
	"seller-portal/internal/models"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestPublishWorkflowEvent(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Topic: "sellerportal.order.workflow", Logger: logger.Discard()}

	planBy := int64(1_700_000_000_000)
	err := p.PublishWorkflowEvent(context.Background(), models.EventVendorAccepted, models.WorkflowEventPayload{
		OrderID:        "5001_m1",
		MerchantID:     "m1",
		WorkflowStatus: models.StatusVendorAccepted,
		Actor:          "m1",
		AdminPlanBy:    &planBy,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "5001_m1", string(w.msgs[0].Key))

	var env models.Envelope
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &env))
	assert.Equal(t, models.EventVendorAccepted, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, ProducerName, env.Producer)
	assert.Equal(t, "5001_m1", env.CorrelationID)
	assert.NotEqual(t, [16]byte{}, [16]byte(env.EventID))

	var payload models.WorkflowEventPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, models.StatusVendorAccepted, payload.WorkflowStatus)
	assert.Equal(t, planBy, *payload.AdminPlanBy)
}

func TestPublishWorkflowEvent_WriterError(t *testing.T) {
	p := &Producer{Writer: &fakeWriter{err: errors.New("broker down")}, Topic: "t", Logger: logger.Discard()}
	err := p.PublishWorkflowEvent(context.Background(), models.EventDispatched, models.WorkflowEventPayload{OrderID: "o"})
	assert.ErrorContains(t, err, "broker down")
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) == 0 {
		f.mu.Unlock()
		f.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := f.queue[0]
	f.queue = f.queue[1:]
	f.mu.Unlock()
	return m, nil
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func TestConsumer_CommitsAfterSuccessAndSkipsPoison(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reader := &fakeReader{
		queue: []kafka.Message{
			{Offset: 1, Value: []byte("ok")},
			{Offset: 2, Value: []byte("poison")},
			{Offset: 3, Value: []byte("flaky")},
		},
		cancel: cancel,
	}
	c := NewConsumerWithReader(reader, "sellerportal.order.ingested", logger.Discard())

	flakyCalls := 0
	var handled []string
	err := c.Start(ctx, func(ctx context.Context, m kafka.Message) error {
		switch string(m.Value) {
		case "poison":
			return ErrPoisonMessage
		case "flaky":
			flakyCalls++
			if flakyCalls < 3 {
				return errors.New("database unavailable")
			}
		}
		handled = append(handled, string(m.Value))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ok", "flaky"}, handled)
	assert.Equal(t, 3, flakyCalls)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestDecodeIngestedOrder(t *testing.T) {
	bare := `{"shopifyOrderId":"5001","merchantId":"m1","orderNumber":"#1001","createdAt":1700000000000,"subtotal":998}`

	order, err := DecodeIngestedOrder([]byte(bare))
	require.NoError(t, err)
	assert.Equal(t, "5001_m1", order.OrderID())
	assert.Equal(t, "#1001", order.OrderNumber)

	wrapped := `{"eventType":"order_ingested","eventVersion":1,"payload":` + bare + `}`
	order, err = DecodeIngestedOrder([]byte(wrapped))
	require.NoError(t, err)
	assert.Equal(t, "m1", order.MerchantID)

	_, err = DecodeIngestedOrder([]byte(`{"shopifyOrderId":"5001"}`))
	assert.ErrorIs(t, err, ErrPoisonMessage)

	_, err = DecodeIngestedOrder([]byte(`not json`))
	assert.ErrorIs(t, err, ErrPoisonMessage)
}

func TestIngestionHandler(t *testing.T) {
	var got []string
	h := IngestionHandler(func(ctx context.Context, o models.IngestedOrder) (bool, error) {
		got = append(got, o.OrderID())
		return true, nil
	})

	require.NoError(t, h(context.Background(), kafka.Message{Value: []byte(`{"shopifyOrderId":"7","merchantId":"m2"}`)}))
	assert.Equal(t, []string{"7_m2"}, got)

	err := h(context.Background(), kafka.Message{Value: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrPoisonMessage)
	assert.Len(t, got, 1)
}
