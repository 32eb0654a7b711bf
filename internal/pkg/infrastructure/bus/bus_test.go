package bus

import (
	"context"
	"testing"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/matryer/is"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/nicodav/fty-nut/pkg/types"
)

func TestPublishMetricDelegatesToMessenger(t *testing.T) {
	is := is.New(t)

	var published messaging.TopicMessage
	mock := &messaging.MsgContextMock{
		PublishOnTopicFunc: func(ctx context.Context, m messaging.TopicMessage) error {
			published = m
			return nil
		},
	}
	c := &client{messenger: mock, logger: zerolog.Nop()}

	metric := &types.Metric{Device: "ups1", Type: "voltage.input@V", Value: "230"}
	err := c.PublishMetric(context.Background(), metric)

	is.NoErr(err)
	is.Equal(published.TopicName(), "metric")
}

func TestOnAssetTopologyRegistersAndDispatches(t *testing.T) {
	is := is.New(t)

	var registeredTopic string
	var captured messaging.TopicMessageHandler
	mock := &messaging.MsgContextMock{
		RegisterTopicMessageHandlerFunc: func(topic string, handler messaging.TopicMessageHandler) error {
			registeredTopic = topic
			captured = handler
			return nil
		},
	}
	c := &client{messenger: mock, logger: zerolog.Nop()}

	var got types.AssetTopology
	err := c.OnAssetTopology(func(ctx context.Context, msg types.AssetTopology) {
		got = msg
	})
	is.NoErr(err)
	is.Equal(registeredTopic, assetTopologyTopic)

	captured(context.Background(), amqp.Delivery{Body: []byte(`{"device":"ups1","index":1,"location":"rack-3"}`)}, zerolog.Nop())

	is.Equal(got.Device, "ups1")
	is.Equal(got.Index, 1)
	is.Equal(got.Location, "rack-3")
}
