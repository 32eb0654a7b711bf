// Package alert implements the Alert Subsystem: it watches each Device
// Record's alarm variable, derives alert-state transitions, and
// publishes alert and rule events — grounded on alert_device_list.h's
// Devices::publishAlerts/publishRules split.
package alert

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nicodav/fty-nut/internal/pkg/engine/device"
	"github.com/nicodav/fty-nut/pkg/types"
)

// VariableName is the canonical inventory name the daemon surfaces
// alert state under.
const VariableName = "ups.alarm"

// Severity levels the subsystem derives from the alarm text. The
// daemon's alarm strings are free-form; this is a best-effort
// classification, not an exhaustive parse.
const (
	SeverityNone     = ""
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Publisher is the bus surface the subsystem needs.
type Publisher interface {
	PublishAlert(ctx context.Context, a *types.Alert) error
	PublishRule(ctx context.Context, r *types.Rule) error
}

// Subsystem tracks, per device, the last published alert fingerprint
// and which rule identities have ever been announced.
type Subsystem struct {
	bus     Publisher
	webhook *WebhookNotifier
	log     zerolog.Logger

	fingerprints map[string]string
	knownRules   map[string]bool
}

func New(bus Publisher, log zerolog.Logger) *Subsystem {
	return &Subsystem{
		bus:          bus,
		log:          log,
		fingerprints: map[string]string{},
		knownRules:   map[string]bool{},
	}
}

// WithWebhookNotifier attaches an optional CloudEvents fan-out that
// runs alongside the bus publish whenever a fingerprint changes.
func (s *Subsystem) WithWebhookNotifier(n *WebhookNotifier) *Subsystem {
	s.webhook = n
	return s
}

// Process inspects one device's current alarm state and publishes an
// alert event (and, the first time this device reports this exact
// alarm text, a rule event) when the fingerprint has changed since the last call.
// Publish failures are logged but never poison the fingerprint state
// for unrelated devices.
func (s *Subsystem) Process(ctx context.Context, deviceName string, rec *device.Record, now time.Time) {
	alarmText, _ := rec.InventoryValue(VariableName)
	fingerprint := deviceName + "|" + alarmText

	if s.fingerprints[deviceName] == fingerprint {
		return
	}
	s.fingerprints[deviceName] = fingerprint

	severity := classify(alarmText)
	alert := &types.Alert{
		Device:      deviceName,
		Description: alarmText,
		Severity:    severity,
		Active:      alarmText != "",
		Timestamp:   now.Unix(),
	}
	if err := s.bus.PublishAlert(ctx, alert); err != nil {
		s.log.Error().Err(err).Str("device", deviceName).Msg("failed to publish alert")
	}
	if s.webhook != nil {
		if err := s.webhook.Notify(ctx, alert); err != nil {
			s.log.Error().Err(err).Str("device", deviceName).Msg("failed to notify alert webhook")
		}
	}

	if !s.knownRules[fingerprint] {
		s.knownRules[fingerprint] = true
		rule := &types.Rule{
			Device:      deviceName,
			RuleID:      fingerprint,
			Description: ruleDescription(alarmText),
			Timestamp:   now.Unix(),
		}
		if err := s.bus.PublishRule(ctx, rule); err != nil {
			s.log.Error().Err(err).Str("device", deviceName).Msg("failed to publish rule")
		}
	}
}

func classify(alarmText string) string {
	if alarmText == "" {
		return SeverityNone
	}
	upper := strings.ToUpper(alarmText)
	if strings.Contains(upper, "LOW BATTERY") || strings.Contains(upper, "REPLACE BATTERY") || strings.Contains(upper, "OVERLOAD") {
		return SeverityCritical
	}
	return SeverityWarning
}

func ruleDescription(alarmText string) string {
	if alarmText == "" {
		return "no active alarm"
	}
	return "alarm condition: " + alarmText
}
