// Package stateio loads and saves the sensor-topology state file. Its
// format is an external concern (§6): the core treats the file as
// opaque bytes, so this package exposes nothing but Load/Save.
package stateio

import (
	"os"
)

const DefaultPath = "/var/lib/fty-nut/state_file"

func Load(path string) ([]byte, error) {
	if path == "" {
		path = DefaultPath
	}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, err
}

func Save(path string, data []byte) error {
	if path == "" {
		path = DefaultPath
	}
	return os.WriteFile(path, data, 0o644)
}
