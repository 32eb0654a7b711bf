package device

import (
	"testing"

	"github.com/matryer/is"
)

func TestTransformSetsPhaseDefaults(t *testing.T) {
	is := is.New(t)
	vars := map[string][]string{}

	Transform(vars)

	is.Equal(vars["input.phases"], []string{"1"})
	is.Equal(vars["output.phases"], []string{"1"})
}

func TestTransformDoesNotOverwriteExistingPhases(t *testing.T) {
	is := is.New(t)
	vars := map[string][]string{"input.phases": {"3"}}

	Transform(vars)

	is.Equal(vars["input.phases"], []string{"3"})
}

func TestTransformPduToEpdu(t *testing.T) {
	is := is.New(t)
	vars := map[string][]string{"device.type": {"pdu"}}

	Transform(vars)

	is.Equal(vars["device.type"][0], "epdu")
}

func TestTransformRealpowerSetIfNotPresentChain(t *testing.T) {
	is := is.New(t)
	vars := map[string][]string{"ups.realpower": {"500.0"}}

	Transform(vars)

	// ups.realpower is only ever a copy destination, so input.realpower
	// and outlet.realpower stay absent; input.L1.realpower is filled
	// from ups.realpower.
	_, ok := vars["input.realpower"]
	is.True(!ok)
	_, ok = vars["outlet.realpower"]
	is.True(!ok)
	is.Equal(vars["input.L1.realpower"], []string{"500.0"})
}

func TestTransformDoesNotClobberExistingRealpower(t *testing.T) {
	is := is.New(t)
	vars := map[string][]string{
		"ups.realpower":   {"500.0"},
		"input.realpower": {"400.0"},
	}

	Transform(vars)

	is.Equal(vars["input.realpower"], []string{"400.0"})
}

func TestTransformOnNilBatchDoesNotPanic(t *testing.T) {
	Transform(nil)
}
