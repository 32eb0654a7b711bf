// Package agent implements the Polling Loop / Agent: it owns the
// Registry, the Mapping Store and the bus client, connects/polls/
// disconnects on a fixed cadence, publishes metric, inventory and
// alert/rule events, and reacts to asset-topology messages from the
// bus. Scheduling is single-threaded cooperative: one select loop
// multiplexing a shutdown channel and two tickers, no locking, no
// worker goroutines beyond the bus client's own delivery goroutine.
package agent

import (
	"context"
	"strconv"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/nicodav/fty-nut/internal/pkg/engine/alert"
	"github.com/nicodav/fty-nut/internal/pkg/engine/device"
	"github.com/nicodav/fty-nut/internal/pkg/engine/mapping"
	"github.com/nicodav/fty-nut/internal/pkg/engine/registry"
	"github.com/nicodav/fty-nut/internal/pkg/engine/sensor"
	"github.com/nicodav/fty-nut/internal/pkg/engine/units"
	"github.com/nicodav/fty-nut/internal/pkg/infrastructure/bus"
	"github.com/nicodav/fty-nut/pkg/types"
)

var tracer = otel.Tracer("nut-agent/agent")

const (
	DefaultPollInterval      = 30 * time.Second
	DefaultInventoryInterval = 5 * time.Minute
	DefaultSensorInterval    = 30 * time.Second
)

// Config holds the Agent's tunables.
type Config struct {
	PollInterval      time.Duration
	InventoryInterval time.Duration
	SensorInterval    time.Duration
	ForceUpdate       bool
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.InventoryInterval <= 0 {
		c.InventoryInterval = DefaultInventoryInterval
	}
	if c.SensorInterval <= 0 {
		c.SensorInterval = DefaultSensorInterval
	}
	return c
}

// Agent is the top-level polling loop.
type Agent struct {
	cfg Config

	registry *registry.Registry
	mapping  *mapping.Store
	bus      bus.Client
	alerts   *alert.Subsystem
	sensors  *sensor.Registry

	log zerolog.Logger

	done chan struct{}
	stop chan struct{}

	lastInventoryPublish time.Time
	lastTick             time.Time
}

func New(cfg Config, reg *registry.Registry, mappingStore *mapping.Store, busClient bus.Client, sensors *sensor.Registry, log zerolog.Logger) *Agent {
	return &Agent{
		cfg:      cfg.withDefaults(),
		registry: reg,
		mapping:  mappingStore,
		bus:      busClient,
		alerts:   alert.New(busClient, log),
		sensors:  sensors,
		log:      log,
		done:     make(chan struct{}),
		stop:     make(chan struct{}),
	}
}

// WithWebhookNotifier attaches an optional CloudEvents alert fan-out,
// built from the operator's settings file, to the Agent's Alert
// Subsystem.
func (a *Agent) WithWebhookNotifier(n *alert.WebhookNotifier) *Agent {
	a.alerts.WithWebhookNotifier(n)
	return a
}

// Run drives the loop until Stop is called or ctx is cancelled. It
// registers the asset-topology handler once on entry and closes the
// bus client on exit. The registry needs no teardown: it releases the
// daemon connection at the end of every Update.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.bus.OnAssetTopology(a.handleAssetTopology); err != nil {
		return err
	}

	pollTicker := time.NewTicker(a.cfg.PollInterval)
	defer pollTicker.Stop()

	sensorTicker := time.NewTicker(a.cfg.SensorInterval)
	defer sensorTicker.Stop()

	defer close(a.done)
	defer a.bus.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.stop:
			return nil
		case now := <-pollTicker.C:
			a.tick(ctx, now)
		case now := <-sensorTicker.C:
			a.sensorTick(now)
		}
	}
}

// Stop signals the loop to shut down and blocks until it has. An
// in-flight poll always completes before the loop exits — partial
// publishes are acceptable, inconsistent Device Records are not.
func (a *Agent) Stop() {
	close(a.stop)
	<-a.done
}

func (a *Agent) tick(ctx context.Context, now time.Time) {
	var err error
	ctx, span := tracer.Start(ctx, "poll-tick")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	a.registry.Update(ctx, a.cfg.ForceUpdate)
	a.lastTick = now

	a.advertisePhysics(ctx)
	a.advertiseInventory(ctx, now)
	a.advertiseAlerts(ctx, now)
}

// advertisePhysics emits one metric per changed physics entry, in
// Registry iteration order, and clears the changed flag only when the
// publish succeeds.
func (a *Agent) advertisePhysics(ctx context.Context) {
	ttl := int(2 * a.cfg.PollInterval / time.Second)

	a.registry.Each(func(name string, rec *device.Record) {
		for _, canonicalName := range rec.ChangedPhysics() {
			value, ok := rec.FormattedPhysics(canonicalName)
			if !ok {
				continue
			}

			metric := &types.Metric{
				Device:    name,
				Type:      units.ShortForm(canonicalName),
				Value:     value,
				Unit:      units.Of(canonicalName),
				TTL:       ttl,
				Timestamp: rec.LastUpdate().Unix(),
			}

			if err := a.bus.PublishMetric(ctx, metric); err != nil {
				a.log.Error().Err(err).Str("device", name).Str("var", canonicalName).Msg("failed to publish metric")
				continue
			}
			rec.ClearChanged(canonicalName)
		}
	})
}

// advertiseInventory publishes at most once per InventoryInterval,
// tracked by the lastInventoryPublish watermark, and only for devices
// that actually have a changed inventory entry.
func (a *Agent) advertiseInventory(ctx context.Context, now time.Time) {
	if now.Sub(a.lastInventoryPublish) < a.cfg.InventoryInterval {
		return
	}
	a.lastInventoryPublish = now

	a.registry.Each(func(name string, rec *device.Record) {
		if !rec.ChangedInventory() {
			return
		}

		inv := &types.Inventory{
			Device:     name,
			Properties: rec.Inventory(),
			Timestamp:  now.Unix(),
		}

		if err := a.bus.PublishInventory(ctx, inv); err != nil {
			a.log.Error().Err(err).Str("device", name).Msg("failed to publish inventory")
			return
		}
		rec.ClearInventoryChanged()
	})
}

func (a *Agent) advertiseAlerts(ctx context.Context, now time.Time) {
	a.registry.Each(func(name string, rec *device.Record) {
		a.alerts.Process(ctx, name, rec, now)
	})
}

// sensorTick re-derives the Sensor Registry's current readings from
// already-polled device state; it performs no daemon I/O of its own
// and runs on its own cadence, independent from the main poll tick.
func (a *Agent) sensorTick(_ time.Time) {
	a.registry.Each(func(name string, rec *device.Record) {
		for i := 1; ; i++ {
			temp, okTemp := rec.FormattedPhysics(sensorName("temperature", i))
			hum, okHum := rec.FormattedPhysics(sensorName("humidity", i))
			if !okTemp && !okHum {
				if i == 1 {
					if t, ok := rec.FormattedPhysics("ambient.temperature"); ok {
						h, _ := rec.FormattedPhysics("ambient.humidity")
						a.sensors.SetReadings(name, 0, t, h)
					}
				}
				return
			}
			a.sensors.SetReadings(name, i, temp, hum)
		}
	})
}

func sensorName(quantity string, index int) string {
	return "ambient." + quantity + "." + strconv.Itoa(index)
}

func (a *Agent) handleAssetTopology(_ context.Context, msg types.AssetTopology) {
	a.sensors.Bind(msg.Device, msg.Index, msg.Location)
}

// IsMappingLoaded reports whether the Mapping Store has completed at
// least one successful load — used by the /readyz health handler.
func (a *Agent) IsMappingLoaded() bool {
	return a.mapping.IsLoaded()
}

// LastTick returns the timestamp of the most recently completed poll,
// used by the /healthz handler to detect a stalled loop.
func (a *Agent) LastTick() time.Time {
	return a.lastTick
}
