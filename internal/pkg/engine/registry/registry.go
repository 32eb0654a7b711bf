// Package registry implements the Device Registry: the collection of
// Device Records keyed by daemon-assigned name, reconciled against the
// daemon's current device set on every poll.
package registry

import (
	"context"
	"sort"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"

	"github.com/nicodav/fty-nut/internal/pkg/engine/device"
	"github.com/nicodav/fty-nut/internal/pkg/engine/mapping"
	"github.com/nicodav/fty-nut/internal/pkg/infrastructure/nutclient"
)

var tracer = otel.Tracer("nut-agent/registry")

// HalfRepeatInterval is half of the 300s repeat-after constant: the
// staleness age past which a record's measurements are cleared rather
// than left stale.
const HalfRepeatInterval = 150 * time.Second

// Registry owns the live daemon connection and every known device's
// record. Device Records never reference the Registry back; the
// daemon client handle is owned here, not by individual records.
type Registry struct {
	daemon     nutclient.Client
	mapping    *mapping.Store
	log        zerolog.Logger
	thresholds map[string]int

	records map[string]*device.Record
}

func New(daemon nutclient.Client, mappingStore *mapping.Store, log zerolog.Logger) *Registry {
	return &Registry{
		daemon:  daemon,
		mapping: mappingStore,
		log:     log,
		records: map[string]*device.Record{},
	}
}

// WithThresholds installs per-device percent-change threshold
// overrides, keyed by daemon-assigned device name, applied to each
// record at the moment it is first created during reconciliation.
func (r *Registry) WithThresholds(thresholds map[string]int) *Registry {
	r.thresholds = thresholds
	return r
}

// Update is the top-level per-tick entry point: connect, reconcile the
// device list, poll every device's status, then disconnect. The
// daemon connection is held only for the duration of one tick so the
// socket isn't kept open across idle intervals.
func (r *Registry) Update(ctx context.Context, force bool) {
	var err error
	ctx, span := tracer.Start(ctx, "daemon-round-trip")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if !r.connect(ctx) {
		return
	}
	defer r.disconnect()

	r.updateDeviceList(ctx)
	r.updateDeviceStatus(ctx, force)
}

func (r *Registry) connect(ctx context.Context) bool {
	if err := r.daemon.Connect(ctx); err != nil {
		r.log.Warn().Err(err).Msg("could not connect to daemon")
	}
	return r.daemon.IsConnected()
}

func (r *Registry) disconnect() {
	if err := r.daemon.Disconnect(); err != nil {
		r.log.Warn().Err(err).Msg("error while disconnecting from daemon")
	}
}

// updateDeviceList reconciles the Registry's key set against the
// daemon's. Any error from the daemon client is swallowed and the
// existing list is left untouched.
func (r *Registry) updateDeviceList(ctx context.Context) {
	names, err := r.daemon.DeviceNames(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("could not list devices, keeping previous device list")
		return
	}

	current := lo.Keys(r.records)
	added, removed := lo.Difference(names, current)

	for _, name := range added {
		rec := device.NewRecord(name, r.log)
		if pct, ok := r.thresholds[name]; ok {
			rec.SetDefaultThreshold(pct)
		}
		r.records[name] = rec
	}
	for _, name := range removed {
		delete(r.records, name)
	}
}

// updateDeviceStatus polls every known device and feeds its variables
// through the Update Pipeline. A device whose poll fails has its
// record cleared once it has been stale for more than
// HalfRepeatInterval; younger records keep their last known values.
func (r *Registry) updateDeviceStatus(ctx context.Context, force bool) {
	for _, name := range r.sortedNames() {
		rec := r.records[name]

		vars, err := r.daemon.Variables(ctx, name)
		if err != nil {
			r.log.Error().Err(err).Str("device", name).Msg("communication problem with device")
			if time.Since(rec.LastUpdate()) > HalfRepeatInterval {
				rec.Clear()
			}
			continue
		}

		rec.Update(vars, r.mapping, force)
	}
}

// Changed reports whether any record has a changed physics or
// inventory entry.
func (r *Registry) Changed() bool {
	for _, rec := range r.records {
		if rec.Changed() {
			return true
		}
	}
	return false
}

// Each visits every record in deterministic, sorted name order —
// ordering that is otherwise unspecified for a Go map but that the
// agent needs so that "publish physics, then inventory, then alerts,
// across devices in the Registry's iteration order" (§5) is
// reproducible from one tick to the next.
func (r *Registry) Each(fn func(name string, rec *device.Record)) {
	for _, name := range r.sortedNames() {
		fn(name, r.records[name])
	}
}

func (r *Registry) Get(name string) (*device.Record, bool) {
	rec, ok := r.records[name]
	return rec, ok
}

func (r *Registry) Len() int {
	return len(r.records)
}

func (r *Registry) sortedNames() []string {
	names := lo.Keys(r.records)
	sort.Strings(names)
	return names
}
