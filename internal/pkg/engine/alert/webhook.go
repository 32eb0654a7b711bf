package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/nicodav/fty-nut/internal/pkg/infrastructure/config"
	"github.com/nicodav/fty-nut/pkg/types"
)

// WebhookNotifier fans an alert out to every configured subscriber as a
// CloudEvent, alongside (not instead of) the bus publish the Subsystem
// already does. A fingerprint change still drives at most one send per
// subscriber, regardless of how many subscribers fail.
type WebhookNotifier struct {
	subscribers []config.WebhookSubscriber
	log         zerolog.Logger
}

func NewWebhookNotifier(subscribers []config.WebhookSubscriber, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{subscribers: subscribers, log: log}
}

func (n *WebhookNotifier) Notify(ctx context.Context, a *types.Alert) error {
	if len(n.subscribers) == 0 {
		return nil
	}

	c, err := cloudevents.NewClientHTTP()
	if err != nil {
		return err
	}

	event := cloudevents.NewEvent()
	ts := time.Unix(a.Timestamp, 0)
	event.SetID(fmt.Sprintf("%s:%d", a.Device, ts.Unix()))
	event.SetTime(ts)
	event.SetSource("fty-nut/alert")
	event.SetType("fty-nut.alert")

	if err := event.SetData(cloudevents.ApplicationJSON, a); err != nil {
		return err
	}

	var sendErr error
	for _, s := range n.subscribers {
		target := cloudevents.ContextWithTarget(ctx, s.Endpoint)
		result := c.Send(target, event)
		if cloudevents.IsUndelivered(result) || errors.Is(result, unix.ECONNREFUSED) {
			n.log.Error().Err(result).Str("endpoint", s.Endpoint).Msg("failed to deliver alert webhook")
			sendErr = fmt.Errorf("%w", result)
		}
	}
	return sendErr
}
