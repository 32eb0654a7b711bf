// Package config loads the agent's own tunables from a YAML file, the
// teacher's choice for this kind of small operational config (see
// devicemanagement.DeviceManagementConfig / events.Config). This is
// separate from the Mapping Store, which the spec pins to JSON.
package config

import (
	"io"
	"time"

	"gopkg.in/yaml.v2"
)

// WebhookSubscriber is one endpoint the Alert Subsystem should also
// notify via CloudEvents, in addition to the bus, when an alert
// fingerprint changes.
type WebhookSubscriber struct {
	Endpoint string `yaml:"endpoint"`
}

// Settings holds every operator-tunable knob outside of the mapping
// document and CLI flags.
type Settings struct {
	PollIntervalSeconds      int                 `yaml:"pollIntervalSeconds"`
	InventoryIntervalSeconds int                 `yaml:"inventoryIntervalSeconds"`
	SensorIntervalSeconds    int                 `yaml:"sensorIntervalSeconds"`
	ForceUpdate              bool                `yaml:"forceUpdate"`
	DeviceThresholds         map[string]int      `yaml:"deviceThresholds"`
	Webhooks                 []WebhookSubscriber `yaml:"webhooks"`
}

func Load(r io.Reader) (*Settings, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	s := &Settings{}
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) PollInterval() time.Duration {
	if s == nil || s.PollIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

func (s *Settings) InventoryInterval() time.Duration {
	if s == nil || s.InventoryIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(s.InventoryIntervalSeconds) * time.Second
}

func (s *Settings) SensorInterval() time.Duration {
	if s == nil || s.SensorIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(s.SensorIntervalSeconds) * time.Second
}
