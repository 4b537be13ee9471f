package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e map[string]any
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e["event_type"] != OrderCreated {
			return errors.New("unexpected event type")
		}
		payload, ok := e["payload"].(map[string]any)
		if !ok || payload["id"] != "o-1" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	p := NewKafkaPublisherWithProducer(producer, "orders.events", nil)
	err := p.Publish(context.Background(), "o-1", New(OrderCreated, map[string]string{"id": "o-1"}))
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestKafkaPublisher_PublishFails(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherWithProducer(producer, "orders.events", nil)
	err := p.Publish(context.Background(), "o-1", New(OrderStatusChanged, nil))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func TestNew(t *testing.T) {
	e := New(OrderCreated, nil)
	assert.NotEmpty(t, e.EventID)
	assert.False(t, e.Timestamp.IsZero())
	assert.NoError(t, Nop{}.Publish(context.Background(), "k", e))
}
