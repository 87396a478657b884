package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"condensation-guard/condensation"
)

type fakeThermostats struct {
	payloads map[string]string
	errs     map[string]error
}

func (f *fakeThermostats) State(_ context.Context, deviceID string) (thermostatReport, error) {
	if err := f.errs[deviceID]; err != nil {
		return thermostatReport{}, err
	}
	payload, ok := f.payloads[deviceID]
	if !ok {
		return thermostatReport{}, errors.New("no state for " + deviceID)
	}
	return parseThermostatState(deviceID, []byte(payload))
}

type setCall struct {
	deviceID string
	pct      int
}

type fakeSetter struct {
	calls []setCall
	err   error
}

func (f *fakeSetter) SetHumidity(_ context.Context, deviceID string, pct int) error {
	f.calls = append(f.calls, setCall{deviceID, pct})
	return f.err
}

type fakeWeather struct {
	obs *outdoorObservation
	err error
}

func (f *fakeWeather) Current(context.Context) (*outdoorObservation, error) {
	return f.obs, f.err
}

type fakeHistory struct {
	results []condensation.Result
}

func (f *fakeHistory) Record(_ context.Context, _ string, _ condensation.Inputs, res condensation.Result, _ time.Time) error {
	f.results = append(f.results, res)
	return nil
}

var testNow = time.Date(2024, 1, 15, 7, 0, 0, 0, time.UTC)

func newTestCycle(t *testing.T, payloads map[string]string) (*cycle, *fakeSetter) {
	t.Helper()
	policy, err := condensation.New(condensation.DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	setter := &fakeSetter{}
	return &cycle{
		policy:            policy,
		thermostats:       &fakeThermostats{payloads: payloads},
		setter:            setter,
		deviceID:          "downstairs",
		maxObservationAge: time.Hour,
		now:               func() time.Time { return testNow },
		log:               zaptest.NewLogger(t),
	}, setter
}

const (
	downstairsState = `{"current_temperature": 70, "current_humidity": 30, "target_humidity": 35, "mode": "heat", "target_temperature": 70, "outside_temperature": 35}`
	upstairsState   = `{"current_temperature": 74, "current_humidity": 30, "target_humidity": 35, "mode": "heat", "target_temperature": 74}`
)

func TestCycle_AppliesNewTarget(t *testing.T) {
	c, setter := newTestCycle(t, map[string]string{"downstairs": downstairsState})
	history := &fakeHistory{}
	c.history = history

	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !out.Applied || out.Result.RecommendedPct != 15 {
		t.Errorf("outcome: got %+v", out)
	}
	if len(setter.calls) != 1 || setter.calls[0] != (setCall{"downstairs", 15}) {
		t.Errorf("set calls: got %+v", setter.calls)
	}
	if !strings.HasSuffix(out.Status, " - NEW_TARGET_HUMIDITY=15%") {
		t.Errorf("status: %s", out.Status)
	}
	if len(history.results) != 1 {
		t.Errorf("history: got %d records", len(history.results))
	}
}

func TestCycle_Unchanged(t *testing.T) {
	c, setter := newTestCycle(t, map[string]string{
		"downstairs": `{"current_temperature": 70, "current_humidity": 30, "target_humidity": 15, "mode": "off", "outside_temperature": 35}`,
	})
	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Applied || len(setter.calls) != 0 {
		t.Errorf("unexpected update: %+v, %+v", out, setter.calls)
	}
	if !strings.HasSuffix(out.Status, " - OK") {
		t.Errorf("status: %s", out.Status)
	}
}

func TestCycle_DryRun(t *testing.T) {
	c, setter := newTestCycle(t, map[string]string{"downstairs": downstairsState})
	c.dryRun = true
	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Applied || len(setter.calls) != 0 {
		t.Errorf("dry run updated the thermostat: %+v", setter.calls)
	}
	if !out.Result.Changed {
		t.Error("dry run should still report the change")
	}
}

func TestCycle_MissingDataLeavesDeviceAlone(t *testing.T) {
	payloads := map[string]string{
		"no temperature": `{"current_humidity": 30, "target_humidity": 35, "outside_temperature": 35}`,
		"no outside":     `{"current_temperature": 70, "current_humidity": 30, "target_humidity": 35}`,
		"no target":      `{"current_temperature": 70, "current_humidity": 30, "outside_temperature": 35}`,
		"no humidity":    `{"current_temperature": 70, "current_humidity": "--", "target_humidity": 35, "outside_temperature": 35}`,
		"zero humidity":  `{"current_temperature": 70, "current_humidity": 0, "target_humidity": 35, "outside_temperature": 35}`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			c, setter := newTestCycle(t, map[string]string{"downstairs": payload})
			history := &fakeHistory{}
			c.history = history

			out, err := c.Run(context.Background())
			if !errors.Is(err, condensation.ErrMissingData) {
				t.Fatalf("got %v, want ErrMissingData", err)
			}
			if !strings.HasSuffix(out.Status, " - DATA_ERROR") {
				t.Errorf("status: %s", out.Status)
			}
			if len(setter.calls) != 0 || len(history.results) != 0 {
				t.Errorf("side effects on missing data: %+v, %+v", setter.calls, history.results)
			}
		})
	}
}

func TestCycle_ThermostatUnreachable(t *testing.T) {
	c, setter := newTestCycle(t, nil)
	c.thermostats = &fakeThermostats{errs: map[string]error{"downstairs": errors.New("timeout")}}
	out, err := c.Run(context.Background())
	if err == nil || errors.Is(err, condensation.ErrMissingData) {
		t.Fatalf("got %v, want a fetch error", err)
	}
	if out.Status != "" || len(setter.calls) != 0 {
		t.Errorf("unexpected output: %+v, %+v", out, setter.calls)
	}
}

func TestCycle_SetterFailure(t *testing.T) {
	c, setter := newTestCycle(t, map[string]string{"downstairs": downstairsState})
	setter.err = errors.New("broker gone")
	history := &fakeHistory{}
	c.history = history

	out, err := c.Run(context.Background())
	if err == nil || out.Applied {
		t.Fatalf("got %+v, %v", out, err)
	}
	if len(history.results) != 1 || history.results[0].RecommendedPct != 15 {
		t.Errorf("history after failed update: got %+v", history.results)
	}
}

func TestCycle_Weather(t *testing.T) {
	cases := []struct {
		name    string
		weather *fakeWeather
		want    int
		outside string
	}{
		{"fresh observation wins", &fakeWeather{obs: &outdoorObservation{TemperatureF: 40, DewpointF: fp(30.5), Humidity: 67, ObservedAt: testNow.Add(-10 * time.Minute)}}, 20, "OUTSIDE(temp=40F, dewpoint=30.5F, humidity=67%)"},
		{"dry air reports no dewpoint", &fakeWeather{obs: newOutdoorObservation(40, 0, testNow.Add(-10*time.Minute))}, 20, "OUTSIDE(temp=40F, dewpoint=F, humidity=0%)"},
		{"stale observation ignored", &fakeWeather{obs: &outdoorObservation{TemperatureF: 40, ObservedAt: testNow.Add(-2 * time.Hour)}}, 15, "OUTSIDE(temp=35F, dewpoint=F, humidity=%)"},
		{"weather error ignored", &fakeWeather{err: errors.New("401")}, 15, "OUTSIDE(temp=35F, dewpoint=F, humidity=%)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestCycle(t, map[string]string{"downstairs": downstairsState})
			c.weather = tc.weather
			out, err := c.Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if out.Result.RecommendedPct != tc.want {
				t.Errorf("recommended: got %d, want %d", out.Result.RecommendedPct, tc.want)
			}
			if !strings.Contains(out.Status, tc.outside) {
				t.Errorf("status %q does not contain %q", out.Status, tc.outside)
			}
		})
	}
}

func TestCycle_SecondThermostat(t *testing.T) {
	c, setter := newTestCycle(t, map[string]string{
		"downstairs": `{"current_temperature": 65, "current_humidity": 30, "target_humidity": 25, "mode": "heat", "target_temperature": 65, "outside_temperature": 40}`,
		"upstairs":   upstairsState,
	})
	c.secondaryDeviceID = "upstairs"
	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Result.RecommendedPct != 15 || len(setter.calls) != 1 || setter.calls[0].deviceID != "downstairs" {
		t.Errorf("got %+v, calls %+v", out.Result, setter.calls)
	}
	if !strings.Contains(out.Status, "THERMOSTAT2(temp=74F, dewpoint=40.6F, humidity=30%)") {
		t.Errorf("status: %s", out.Status)
	}
}

func TestCycle_SecondThermostatUnreachable(t *testing.T) {
	c, setter := newTestCycle(t, nil)
	c.thermostats = &fakeThermostats{
		payloads: map[string]string{"downstairs": `{"current_temperature": 65, "current_humidity": 30, "target_humidity": 25, "mode": "heat", "target_temperature": 65, "outside_temperature": 40}`},
		errs:     map[string]error{"upstairs": errors.New("timeout")},
	}
	c.secondaryDeviceID = "upstairs"
	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Result.RecommendedPct != 25 || out.Result.Changed || len(setter.calls) != 0 {
		t.Errorf("got %+v, calls %+v", out.Result, setter.calls)
	}
	if !strings.Contains(out.Status, "THERMOSTAT2(temp=F, dewpoint=F, humidity=%)") {
		t.Errorf("status: %s", out.Status)
	}
}

func TestCycle_HeatingOverride(t *testing.T) {
	c, setter := newTestCycle(t, map[string]string{
		"downstairs": `{"current_temperature": 71.5, "current_humidity": 30, "target_humidity": 40, "mode": "range", "target_temperature": [70, 76], "outside_temperature": 60}`,
	})
	out, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Result.Reason != condensation.ReasonHeatingOverride || len(setter.calls) != 1 || setter.calls[0].pct != 10 {
		t.Errorf("got %+v, calls %+v", out.Result, setter.calls)
	}
}
