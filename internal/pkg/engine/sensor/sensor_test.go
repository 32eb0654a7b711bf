package sensor

import (
	"testing"

	"github.com/matryer/is"
)

func TestBindThenSetReadings(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	r.Bind("pdu1", 1, "rack-3")
	r.SetReadings("pdu1", 1, "21.50", "45")

	rec, ok := r.Get("pdu1", 1)
	is.True(ok)
	is.Equal(rec.Location, "rack-3")
	is.Equal(rec.Temperature, "21.50")
	is.Equal(rec.Humidity, "45")
	is.Equal(r.Len(), 1)
}

func TestSetReadingsBeforeBindCreatesRecord(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	r.SetReadings("pdu1", 2, "20.00", "40")
	rec, ok := r.Get("pdu1", 2)
	is.True(ok)
	is.Equal(rec.Location, "")
	is.Equal(rec.Temperature, "20.00")
}

func TestGetUnknownSensor(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	_, ok := r.Get("pdu1", 99)
	is.True(!ok)
}

func TestExportImportRoundtripsLocationNotReadings(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()
	r.Bind("pdu1", 1, "rack-3")
	r.SetReadings("pdu1", 1, "21.50", "45")

	data, err := r.Export()
	is.NoErr(err)

	restored := NewRegistry()
	is.NoErr(restored.Import(data))

	rec, ok := restored.Get("pdu1", 1)
	is.True(ok)
	is.Equal(rec.Location, "rack-3")
	is.Equal(rec.Temperature, "")
	is.Equal(rec.Humidity, "")
}

func TestExportEmptyRegistryReturnsNil(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	data, err := r.Export()
	is.NoErr(err)
	is.True(data == nil)
}

func TestImportEmptyPayloadIsNoOp(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()
	is.NoErr(r.Import(nil))
	is.Equal(r.Len(), 0)
}

func TestDistinctIndicesAreDistinctSensors(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()

	r.Bind("pdu1", 1, "rack-3")
	r.Bind("pdu1", 2, "rack-4")

	is.Equal(r.Len(), 2)
	one, _ := r.Get("pdu1", 1)
	two, _ := r.Get("pdu1", 2)
	is.Equal(one.Location, "rack-3")
	is.Equal(two.Location, "rack-4")
}
