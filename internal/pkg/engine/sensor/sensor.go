// Package sensor implements the Sensor Record and Sensor Registry for
// environmental probes (temperature/humidity). Sensors are owned here,
// identify their parent device by string id, and are resolved at
// publish time rather than via a back-pointer into the device
// Registry — grounded on sensor_actor.cc's Sensors collection.
package sensor

import (
	"encoding/json"
	"strconv"
	"sync"
)

// Record is one environmental sensor reading, attributed to an index
// on a parent device.
type Record struct {
	ParentDevice string
	Index        int
	Location     string
	Temperature  string
	Humidity     string
}

func key(parentDevice string, index int) string {
	return parentDevice + "#" + strconv.Itoa(index)
}

// Registry is the Sensors collection: sensors keyed by
// (parent device, index), independent of the Device Registry.
type Registry struct {
	mu      sync.RWMutex
	sensors map[string]*Record
}

func NewRegistry() *Registry {
	return &Registry{sensors: map[string]*Record{}}
}

// Bind records (or updates) the location for a sensor index on a
// device, as learned from an asset-topology message delivered by the
// bus.
func (r *Registry) Bind(parentDevice string, index int, location string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(parentDevice, index)
	rec, ok := r.sensors[k]
	if !ok {
		rec = &Record{ParentDevice: parentDevice, Index: index}
		r.sensors[k] = rec
	}
	rec.Location = location
}

// SetReadings updates a sensor's last known temperature/humidity
// strings.
func (r *Registry) SetReadings(parentDevice string, index int, temperature, humidity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(parentDevice, index)
	rec, ok := r.sensors[k]
	if !ok {
		rec = &Record{ParentDevice: parentDevice, Index: index}
		r.sensors[k] = rec
	}
	rec.Temperature = temperature
	rec.Humidity = humidity
}

// Get returns the sensor record for a (device, index) pair, if known.
func (r *Registry) Get(parentDevice string, index int) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.sensors[key(parentDevice, index)]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Len returns the number of known sensors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sensors)
}

// Export serializes the sensor-topology cache (parent device, index
// and location bindings; the last readings are written too, but Import
// discards them, as those are re-learnt on the next poll) for the
// state file described in §6. The core
// treats the file as opaque bytes; this is the one place that picks a
// concrete encoding for it.
func (r *Registry) Export() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sensors) == 0 {
		return nil, nil
	}
	return json.Marshal(r.sensors)
}

// Import restores bindings previously produced by Export. A nil or
// empty payload (no prior state file) is a no-op, not an error.
func (r *Registry) Import(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	restored := map[string]*Record{}
	if err := json.Unmarshal(data, &restored); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for k, rec := range restored {
		rec.Temperature = ""
		rec.Humidity = ""
		r.sensors[k] = rec
	}
	return nil
}
