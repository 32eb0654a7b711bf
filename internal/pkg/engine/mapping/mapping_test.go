package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
)

const document1 = `{
  "physicsMapping": {
    "ups.realpower": "realpower",
    "outlet.#.realpower": "outlet.realpower.#"
  },
  "inventoryMapping": {
    "device.type": "type",
    "unused.number": 42
  }
}`

func TestLoadPopulatesBothTables(t *testing.T) {
	is := is.New(t)
	s := New(zerolog.Nop())

	path := writeTemp(t, document1)
	err := s.Load(path)
	is.NoErr(err)
	is.True(s.IsLoaded())

	physics, err := s.Get(Physics)
	is.NoErr(err)
	is.Equal(physics["ups.realpower"], "realpower")
	is.Equal(physics["outlet.#.realpower"], "outlet.realpower.#")

	inventory, err := s.Get(Inventory)
	is.NoErr(err)
	is.Equal(inventory["device.type"], "type")

	// non-string entries are skipped, not fatal
	_, ok := inventory["unused.number"]
	is.True(!ok)
}

func TestGetInvalidKind(t *testing.T) {
	is := is.New(t)
	s := New(zerolog.Nop())

	_, err := s.Get(Kind(99))
	is.True(err != nil)
}

func TestLoadMissingFile(t *testing.T) {
	is := is.New(t)
	s := New(zerolog.Nop())

	err := s.Load(filepath.Join(t.TempDir(), "nope.json"))
	is.True(err != nil)
	is.True(!s.IsLoaded())
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
