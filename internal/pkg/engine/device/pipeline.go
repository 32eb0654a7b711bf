package device

import (
	"strconv"
	"strings"
	"time"

	"github.com/nicodav/fty-nut/internal/pkg/engine/mapping"
)

// MappingSource is the subset of mapping.Store the Update Pipeline
// needs. Taking it as an interface — addressed by the tagged mapping.Kind
// variant rather than a name-keyed callback — lets the Record call
// directly into the store instead of routing through a function the
// Registry would otherwise have to thread through every layer.
type MappingSource interface {
	Get(kind mapping.Kind) (map[string]string, error)
}

// Update is the Update Pipeline: given a raw variable batch from the
// daemon, a mapping source and a force flag, it normalizes, maps and
// commits updates into the record.
func (r *Record) Update(vars map[string][]string, store MappingSource, force bool) {
	if len(vars) == 0 {
		return
	}

	r.lastUpdate = time.Now()

	Transform(vars)

	threshold := r.threshold
	if force {
		threshold = 0
	}

	if physics, err := store.Get(mapping.Physics); err == nil {
		for daemonName, canonicalName := range physics {
			r.applyPhysicsMapping(vars, daemonName, canonicalName, threshold)
		}
	}

	if inventory, err := store.Get(mapping.Inventory); err == nil {
		for daemonName, canonicalName := range inventory {
			r.applyInventoryMapping(vars, daemonName, canonicalName)
		}
	}

	r.commit()
}

func (r *Record) applyPhysicsMapping(vars map[string][]string, daemonName, canonicalName string, threshold int) {
	if values, ok := vars[daemonName]; ok {
		r.updatePhysics(canonicalName, values, threshold)
		return
	}

	prefix, suffix, okDaemon := wildcardSplit(daemonName)
	canonPrefix, canonSuffix, okCanon := tailWildcardSplit(canonicalName)
	if !okDaemon || !okCanon {
		return
	}

	for i := 1; ; i++ {
		idx := strconv.Itoa(i)
		expandedDaemon := prefix + idx + suffix
		values, ok := vars[expandedDaemon]
		if !ok {
			return
		}
		r.updatePhysics(canonPrefix+idx+canonSuffix, values, threshold)
	}
}

func (r *Record) applyInventoryMapping(vars map[string][]string, daemonName, canonicalName string) {
	if values, ok := vars[daemonName]; ok {
		r.updateInventory(canonicalName, values)
		return
	}

	prefix, suffix, okDaemon := wildcardSplit(daemonName)
	canonPrefix, canonSuffix, okCanon := tailWildcardSplit(canonicalName)
	if !okDaemon || !okCanon {
		return
	}

	for i := 1; ; i++ {
		idx := strconv.Itoa(i)
		expandedDaemon := prefix + idx + suffix
		values, ok := vars[expandedDaemon]
		if !ok {
			return
		}
		r.updateInventory(canonPrefix+idx+canonSuffix, values)
	}
}

// wildcardSplit locates the literal ".#." token in a daemon-side
// mapping key, e.g. "outlet.#.realpower" -> ("outlet.", "." + "realpower").
// A match at position 0 has no prefix and is ignored, per §4.3.
func wildcardSplit(s string) (prefix, suffix string, ok bool) {
	i := strings.Index(s, ".#.")
	if i <= 0 {
		return "", "", false
	}
	return s[:i+1], s[i+2:], true
}

// tailWildcardSplit locates the literal ".#" token in a canonical-side
// mapping value, e.g. "outlet.realpower.#" -> ("outlet.realpower.", "").
// A match at position 0 is ignored, per §4.3.
func tailWildcardSplit(s string) (prefix, suffix string, ok bool) {
	i := strings.Index(s, ".#")
	if i <= 0 {
		return "", "", false
	}
	return s[:i+1], s[i+2:], true
}
