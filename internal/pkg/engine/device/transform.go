package device

// Transform applies the Variable Transformer's normalization rules to
// a raw daemon variable batch, in place. All rules are idempotent and
// none of them ever overwrites an existing value or removes an entry,
// except for rule 3's device.type rewrite.
//
// Grounded on NUTValuesTransformation in nut_device.cc.
func Transform(vars map[string][]string) {
	if vars == nil {
		return
	}

	setIfAbsent(vars, "input.phases", []string{"1"})
	setIfAbsent(vars, "output.phases", []string{"1"})

	if v, ok := vars["device.type"]; ok && len(v) > 0 && v[0] == "pdu" {
		v[0] = "epdu"
	}

	setIfNotPresent(vars, "ups.realpower", "input.realpower")
	setIfNotPresent(vars, "ups.realpower", "outlet.realpower")
	setIfNotPresent(vars, "input.L1.realpower", "input.realpower")
	setIfNotPresent(vars, "input.L1.realpower", "ups.realpower")
	setIfNotPresent(vars, "output.L1.realpower", "output.realpower")

	for _, suffix := range []string{"realpower", "L1.realpower", "L2.realpower", "L3.realpower"} {
		outVar := "output." + suffix
		inVar := "input." + suffix
		setIfNotPresent(vars, outVar, inVar)
		setIfNotPresent(vars, inVar, outVar)
	}
}

func setIfAbsent(vars map[string][]string, key string, value []string) {
	if _, ok := vars[key]; !ok {
		vars[key] = value
	}
}

// setIfNotPresent copies vars[src] into vars[dst] when dst is absent
// and src is present — the "set-if-not-present" rule from §4.2.
func setIfNotPresent(vars map[string][]string, dst, src string) {
	if _, ok := vars[dst]; ok {
		return
	}
	if v, ok := vars[src]; ok {
		vars[dst] = v
	}
}
