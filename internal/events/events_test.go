package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rasapos/backend/internal/domain"
)

type recordingWriter struct {
	messages []kafka.Message
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func sampleSale() domain.Sale {
	return domain.Sale{
		ID:            "sale-1",
		OrderType:     domain.OrderTypeDineIn,
		OrderID:       "tbl-1",
		PaymentMethod: domain.PaymentMethodCash,
		TotalCents:    19000,
		Items: []domain.CartItem{
			{Product: domain.Product{ID: "A"}, Quantity: 2},
			{Product: domain.Product{ID: "B"}, Quantity: 1},
		},
		CashierID: "cashier",
		CreatedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.FixedZone("WIB", 7*3600)),
	}
}

func TestNewSaleCompletedSummarizesSale(t *testing.T) {
	event := NewSaleCompleted(sampleSale())

	assert.Equal(t, SaleCompletedEvent, event.Event)
	assert.Equal(t, 3, event.ItemCount)
	assert.Equal(t, int64(19000), event.TotalCents)
	assert.Equal(t, time.UTC, event.OccurredAt.Location())
}

func TestKafkaPublisherWritesKeyedMessage(t *testing.T) {
	writer := &recordingWriter{}
	publisher := &KafkaPublisher{writer: writer}

	require.NoError(t, publisher.PublishSale(context.Background(), sampleSale()))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "sale-1", string(msg.Key), "the sale id is the key as is")

	var decoded SaleCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "sale-1", decoded.SaleID)
	assert.Equal(t, domain.OrderTypeDineIn, decoded.OrderType)

	require.NoError(t, publisher.Close())
	assert.True(t, writer.closed)
}

func TestOpenSelectsDriver(t *testing.T) {
	publisher, err := Open(Options{Driver: ""})
	require.NoError(t, err)
	assert.IsType(t, NoopPublisher{}, publisher)

	_, err = Open(Options{Driver: "carrier-pigeon"})
	assert.Error(t, err)

	_, err = Open(Options{Driver: DriverKafka})
	assert.Error(t, err)

	kafkaPublisher, err := Open(Options{Driver: DriverKafka, KafkaBrokers: []string{"localhost:9092"}})
	require.NoError(t, err)
	assert.NoError(t, kafkaPublisher.Close())
}
