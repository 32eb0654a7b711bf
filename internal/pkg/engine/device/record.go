// Package device implements the Device Record, the Variable
// Transformer and the Update Pipeline: the per-device in-memory state
// store and the logic that turns a batch of raw daemon variables into
// committed, publish-ready values.
package device

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultThreshold is the percent change required between committed
// and candidate before a physics reading is considered significant.
const DefaultThreshold = 5

// PhysicalValue is a fixed-point (value x 100) numeric reading.
type PhysicalValue struct {
	Committed int32
	Candidate int32
	Changed   bool
}

// InventoryValue is a textual reading.
type InventoryValue struct {
	Value   string
	Changed bool
}

// Record is one device's committed and candidate state.
type Record struct {
	Name       string
	physics    map[string]*PhysicalValue
	inventory  map[string]*InventoryValue
	lastUpdate time.Time
	threshold  int

	log zerolog.Logger
}

// NewRecord creates an empty record named name, with the library
// default threshold, as happens on first sighting of a device in the
// daemon's device set.
func NewRecord(name string, log zerolog.Logger) *Record {
	return &Record{
		Name:      name,
		physics:   map[string]*PhysicalValue{},
		inventory: map[string]*InventoryValue{},
		threshold: DefaultThreshold,
		log:       log.With().Str("device", name).Logger(),
	}
}

func (r *Record) SetDefaultThreshold(pct int) {
	r.threshold = pct
}

// Threshold returns the record's current percent-change threshold.
func (r *Record) Threshold() int {
	return r.threshold
}

func (r *Record) LastUpdate() time.Time {
	return r.lastUpdate
}

// Changed reports whether any physics or inventory entry is
// publish-pending.
func (r *Record) Changed() bool {
	for _, v := range r.physics {
		if v.Changed {
			return true
		}
	}
	for _, v := range r.inventory {
		if v.Changed {
			return true
		}
	}
	return false
}

// ChangedPhysics returns the canonical names of every physics entry
// currently pending publication, in map iteration order.
func (r *Record) ChangedPhysics() []string {
	var names []string
	for name, v := range r.physics {
		if v.Changed {
			names = append(names, name)
		}
	}
	return names
}

// ChangedInventory reports whether any inventory entry is
// publish-pending.
func (r *Record) ChangedInventory() bool {
	for _, v := range r.inventory {
		if v.Changed {
			return true
		}
	}
	return false
}

// Physics returns the current committed value of a physics entry.
func (r *Record) Physics(name string) (*PhysicalValue, bool) {
	v, ok := r.physics[name]
	return v, ok
}

// ClearChanged resets the changed flag for one physics entry, called
// by the Agent after the corresponding metric has been published
// successfully. Per the bus-publish-failure error policy, the flag
// must NOT be cleared when publishing fails, so the event is retried
// next tick.
func (r *Record) ClearChanged(name string) {
	if v, ok := r.physics[name]; ok {
		v.Changed = false
	}
}

// ClearInventoryChanged resets every inventory entry's changed flag,
// called by the Agent after a successful inventory publish.
func (r *Record) ClearInventoryChanged() {
	for _, v := range r.inventory {
		v.Changed = false
	}
}

// InventoryValue returns the current string value of an inventory
// entry, such as the alert subsystem's "ups.alarm" lookup.
func (r *Record) InventoryValue(name string) (string, bool) {
	v, ok := r.inventory[name]
	if !ok {
		return "", false
	}
	return v.Value, true
}

// FormattedPhysics renders one physics entry's committed value
// through the fixed-point formatter, for publishing as a metric.
func (r *Record) FormattedPhysics(name string) (string, bool) {
	v, ok := r.physics[name]
	if !ok {
		return "", false
	}
	return formatFixed(v.Committed), true
}

// Properties renders every current physics and inventory value as
// strings, keyed by canonical name — diagnostics/tests only; it is not
// the inventory publish payload (see Inventory).
func (r *Record) Properties() map[string]string {
	props := make(map[string]string, len(r.physics)+len(r.inventory))
	for name, v := range r.physics {
		props[name] = formatFixed(v.Committed)
	}
	for name, v := range r.inventory {
		props[name] = v.Value
	}
	return props
}

// Inventory renders the inventory-only JSON-like blob §6 describes:
// keys are canonical inventory names, values have embedded double
// quotes replaced by a space, the way the original's toString() does
// for inventory fields. Physics entries never appear here.
func (r *Record) Inventory() map[string]string {
	inv := make(map[string]string, len(r.inventory))
	for name, v := range r.inventory {
		inv[name] = strings.ReplaceAll(v.Value, `"`, " ")
	}
	return inv
}

// String renders the record the way the original implementation's
// toString() did: a flat JSON-like object with double quotes in
// inventory values replaced by spaces.
func (r *Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	writeField := func(name, value string) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%q:%q", name, value)
	}
	for name, v := range r.physics {
		writeField(name, formatFixed(v.Committed))
	}
	for name, v := range r.inventory {
		writeField(name, strings.ReplaceAll(v.Value, `"`, " "))
	}
	b.WriteByte('}')
	return b.String()
}

// Clear erases all measurement and inventory data, used when the
// daemon has been unreachable past the staleness window. lastUpdate
// is left untouched — the record just goes quiet until it either
// recovers or is reaped by the Registry.
func (r *Record) Clear() {
	if len(r.physics) == 0 && len(r.inventory) == 0 {
		return
	}
	r.physics = map[string]*PhysicalValue{}
	r.inventory = map[string]*InventoryValue{}
	r.log.Error().Msg("dropping all measurement/inventory data")
}

// updatePhysics applies one raw value list to a canonical physics
// name under threshold. Multi-element value lists are silently
// ignored — physics only ever has one float per reading.
func (r *Record) updatePhysics(name string, values []string, threshold int) {
	if len(values) != 1 {
		return
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(values[0]), 64)
	if err != nil {
		return
	}
	r.updatePhysicsValue(name, value, threshold)
}

func (r *Record) updatePhysicsValue(name string, value float64, threshold int) {
	newFixed := math.Round(value * 100.0)
	if newFixed > math.MaxInt32 || newFixed < math.MinInt32 {
		r.log.Error().Str("var", name).Float64("value", value).Msg("value exceeded the range, dropping entry")
		delete(r.physics, name)
		return
	}
	newValue := int32(newFixed)

	existing, ok := r.physics[name]
	if !ok {
		r.physics[name] = &PhysicalValue{Committed: 0, Candidate: newValue, Changed: true}
		return
	}

	old := existing.Committed
	// The original keeps this reset even though commit() already
	// leaves candidate == committed between ticks; preserved here
	// deliberately (see DESIGN.md) rather than folded away, since it
	// only matters — and is otherwise harmless — when the same
	// canonical name is updated more than once within a single tick.
	existing.Candidate = old

	if old == newValue {
		return
	}

	if old == 0 || absPercent(old, newValue) >= threshold {
		existing.Candidate = newValue
	}
}

// absPercent computes |((old-newValue)*100)/old|, matching the
// original's integer-division delta. old is never 0 here: the caller
// short-circuits on old==0 before reaching this, so the "division
// fault -> reset" branch the original guarded against was dead code
// and has been folded away rather than reproduced.
func absPercent(old, newValue int32) int {
	delta := (int64(old) - int64(newValue)) * 100 / int64(old)
	if delta < 0 {
		delta = -delta
	}
	return int(delta)
}

// updateInventory applies one raw value list to a canonical inventory
// name, joining multi-value lists with ", ".
func (r *Record) updateInventory(name string, values []string) {
	value := strings.Join(values, ", ")
	if name == "type" && value == "pdu" {
		value = "epdu"
	}

	existing, ok := r.inventory[name]
	if !ok {
		r.inventory[name] = &InventoryValue{Value: value, Changed: true}
		return
	}
	if existing.Value != value {
		existing.Value = value
		existing.Changed = true
	}
}

// commit promotes every physics candidate that differs from its
// committed value, the only point at which committed ever advances.
func (r *Record) commit() {
	for _, v := range r.physics {
		if v.Candidate != v.Committed {
			v.Committed = v.Candidate
			v.Changed = true
		}
	}
}

// formatFixed renders a signed fixed-point x100 integer per the
// numeric formatter in §6: sign, integer part, and an optional ".dd"
// suffix that is dropped when the decimal part is zero.
func formatFixed(x int32) string {
	sign := ""
	a := int64(x)
	if a < 0 {
		sign = "-"
		a = -a
	}
	whole := a / 100
	dec := a % 100
	if dec == 0 {
		return fmt.Sprintf("%s%d", sign, whole)
	}
	return fmt.Sprintf("%s%d.%02d", sign, whole, dec)
}
