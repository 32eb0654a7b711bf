// Package bus is the agent's only contact with the north-bound
// message bus. It wraps github.com/diwise/messaging-golang the same
// way the teacher's cmd/iot-device-mgmt/main.go does, but groups the
// publish/subscribe surface the engine actually needs behind one small
// interface so the engine never imports messaging-golang directly.
package bus

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/rs/zerolog"

	"github.com/nicodav/fty-nut/pkg/types"
)

// AssetTopologyHandler is invoked for every asset-topology message the
// bus delivers, binding a sensor index on a device to a location.
type AssetTopologyHandler func(ctx context.Context, msg types.AssetTopology)

const assetTopologyTopic = "asset.topology"

// Client is the subset of bus behaviour the engine depends on.
type Client interface {
	PublishMetric(ctx context.Context, m *types.Metric) error
	PublishInventory(ctx context.Context, inv *types.Inventory) error
	PublishAlert(ctx context.Context, a *types.Alert) error
	PublishRule(ctx context.Context, r *types.Rule) error
	OnAssetTopology(handler AssetTopologyHandler) error
	Close()
}

type client struct {
	messenger messaging.MsgContext
	logger    zerolog.Logger
}

// Dial loads the messaging-golang configuration for serviceName from
// its usual environment variables and connects to the bus.
func Dial(serviceName string, logger zerolog.Logger) (Client, error) {
	cfg := messaging.LoadConfiguration(serviceName, logger)

	messenger, err := messaging.Initialize(cfg)
	if err != nil {
		return nil, err
	}

	return &client{messenger: messenger, logger: logger}, nil
}

func (c *client) PublishMetric(ctx context.Context, m *types.Metric) error {
	return c.messenger.PublishOnTopic(ctx, m)
}

func (c *client) PublishInventory(ctx context.Context, inv *types.Inventory) error {
	return c.messenger.PublishOnTopic(ctx, inv)
}

func (c *client) PublishAlert(ctx context.Context, a *types.Alert) error {
	return c.messenger.PublishOnTopic(ctx, a)
}

func (c *client) PublishRule(ctx context.Context, r *types.Rule) error {
	return c.messenger.PublishOnTopic(ctx, r)
}

func (c *client) OnAssetTopology(handler AssetTopologyHandler) error {
	return c.messenger.RegisterTopicMessageHandler(assetTopologyTopic, func(ctx context.Context, d amqp.Delivery, l zerolog.Logger) {
		var msg types.AssetTopology
		if err := json.Unmarshal(d.Body, &msg); err != nil {
			l.Error().Err(err).Msg("failed to unmarshal asset topology message")
			return
		}
		handler(ctx, msg)
	})
}

func (c *client) Close() {
	c.messenger.Close()
}
