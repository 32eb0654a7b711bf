package alert

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/nicodav/fty-nut/internal/pkg/engine/device"
	"github.com/nicodav/fty-nut/internal/pkg/engine/mapping"
	"github.com/nicodav/fty-nut/pkg/types"
)

type fakePublisher struct {
	alerts []*types.Alert
	rules  []*types.Rule
}

func (f *fakePublisher) PublishAlert(ctx context.Context, a *types.Alert) error {
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakePublisher) PublishRule(ctx context.Context, r *types.Rule) error {
	f.rules = append(f.rules, r)
	return nil
}

func recordWithAlarm(t *testing.T, alarmText string) *device.Record {
	t.Helper()
	r := device.NewRecord("ups1", zerolog.Nop())
	if alarmText != "" {
		store := staticStore{inventory: map[string]string{"ups.alarm": "ups.alarm"}}
		r.Update(map[string][]string{"ups.alarm": {alarmText}}, store, false)
	}
	return r
}

type staticStore struct{ inventory map[string]string }

func (s staticStore) Get(kind mapping.Kind) (map[string]string, error) {
	if kind == mapping.Inventory {
		return s.inventory, nil
	}
	return nil, nil
}

func TestProcessPublishesOnFirstSighting(t *testing.T) {
	is := is.New(t)
	pub := &fakePublisher{}
	s := New(pub, zerolog.Nop())

	rec := recordWithAlarm(t, "Low battery")
	s.Process(context.Background(), "ups1", rec, time.Now())

	is.Equal(len(pub.alerts), 1)
	is.Equal(pub.alerts[0].Severity, SeverityCritical)
	is.Equal(len(pub.rules), 1)
}

func TestProcessSuppressesUnchangedFingerprint(t *testing.T) {
	is := is.New(t)
	pub := &fakePublisher{}
	s := New(pub, zerolog.Nop())

	rec := recordWithAlarm(t, "Overload")
	now := time.Now()
	s.Process(context.Background(), "ups1", rec, now)
	s.Process(context.Background(), "ups1", rec, now)

	is.Equal(len(pub.alerts), 1)
	is.Equal(len(pub.rules), 1)
}

func TestProcessRepublishesAlertButNotRuleOnRepeatFingerprint(t *testing.T) {
	is := is.New(t)
	pub := &fakePublisher{}
	s := New(pub, zerolog.Nop())
	now := time.Now()

	recWarn := recordWithAlarm(t, "low voltage")
	s.Process(context.Background(), "ups1", recWarn, now)

	recClear := recordWithAlarm(t, "")
	s.Process(context.Background(), "ups1", recClear, now)

	recWarnAgain := recordWithAlarm(t, "low voltage")
	s.Process(context.Background(), "ups1", recWarnAgain, now)

	is.Equal(len(pub.alerts), 3)
	is.Equal(len(pub.rules), 2) // "low voltage" rule already known by the third call, not repeated
}

func TestClassifySeverity(t *testing.T) {
	is := is.New(t)

	is.Equal(classify(""), SeverityNone)
	is.Equal(classify("Replace battery"), SeverityCritical)
	is.Equal(classify("Communications lost"), SeverityWarning)
}
