// Package units holds the static canonical-name -> unit table and the
// short-form derivation used to build a metric's type tag, grounded on
// nut_agent.h's _units map and physicalQuantityShortName/
// physicalQuantityToUnits methods.
package units

import "strings"

// table is process-wide and read-only; it is not loaded from
// configuration, matching the design note that global read-only
// values should be represented as a constant rather than threaded
// through as state.
var table = map[string]string{
	"realpower":   "W",
	"voltage":     "V",
	"current":     "A",
	"temperature": "C",
	"humidity":    "%",
	"frequency":   "Hz",
	"load":        "%",
	"power":       "W",
	"charge":      "%",
	"runtime":     "s",
}

// Of returns the unit for a canonical name, matching on the leading
// dotted segment (e.g. "realpower.output.L1" -> "realpower" -> "W").
// The empty string is returned when no quantity is recognised.
func Of(canonicalName string) string {
	quantity := quantityOf(canonicalName)
	return table[quantity]
}

// ShortForm returns the tag suffix appended to a metric's type, e.g.
// "realpower.output.L1@W". An unrecognised quantity yields an empty
// unit and the canonical name is published unsuffixed.
func ShortForm(canonicalName string) string {
	u := Of(canonicalName)
	if u == "" {
		return canonicalName
	}
	return canonicalName + "@" + u
}

func quantityOf(canonicalName string) string {
	if i := strings.IndexByte(canonicalName, '.'); i >= 0 {
		return canonicalName[:i]
	}
	return canonicalName
}
