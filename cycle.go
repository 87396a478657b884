package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"condensation-guard/condensation"
)

type thermostatSource interface {
	State(ctx context.Context, deviceID string) (thermostatReport, error)
}

type humiditySetter interface {
	SetHumidity(ctx context.Context, deviceID string, pct int) error
}

type outdoorSource interface {
	Current(ctx context.Context) (*outdoorObservation, error)
}

type evaluationRecorder interface {
	Record(ctx context.Context, deviceID string, in condensation.Inputs, res condensation.Result, ts time.Time) error
}

// cycle is one evaluation: gather readings, decide, and apply the new target.
type cycle struct {
	policy      *condensation.Policy
	thermostats thermostatSource
	setter      humiditySetter
	weather     outdoorSource      // optional
	history     evaluationRecorder // optional

	deviceID          string
	secondaryDeviceID string
	maxObservationAge time.Duration
	dryRun            bool

	now func() time.Time
	log *zap.Logger
}

// cycleOutcome is what a run reports back to the caller.
type cycleOutcome struct {
	Status  string
	Result  *condensation.Result
	Applied bool
}

// Run executes the cycle. An error matching condensation.ErrMissingData comes
// with a DATA_ERROR status and leaves the device untouched.
func (c *cycle) Run(ctx context.Context) (cycleOutcome, error) {
	primary, err := c.thermostats.State(ctx, c.deviceID)
	if err != nil {
		return cycleOutcome{}, fmt.Errorf("failed to read thermostat '%s': %w", c.deviceID, err)
	}

	in := condensation.Inputs{
		Primary: primary.Zone,
		Outside: condensation.OutsideReference{TemperatureF: primary.OutsideTemperatureF},
	}
	in.Outside = c.outside(ctx, in.Outside)

	if c.secondaryDeviceID != "" {
		secondary, err := c.thermostats.State(ctx, c.secondaryDeviceID)
		if err != nil {
			c.log.Warn("second thermostat unavailable; continuing without it",
				zap.String("device_id", c.secondaryDeviceID), zap.Error(err))
			secondary = thermostatReport{Zone: condensation.Zone{Name: c.secondaryDeviceID}}
		}
		in.Secondary = &secondary.Zone
	}

	res, err := c.policy.Evaluate(in)
	if err != nil {
		return cycleOutcome{Status: statusLine(in, nil, err)}, err
	}
	out := cycleOutcome{Status: statusLine(in, &res, nil), Result: &res}

	c.log.Info("evaluated humidity target",
		zap.String("device_id", c.deviceID),
		zap.Int("previous", res.CurrentPct),
		zap.Int("recommended", res.RecommendedPct),
		zap.Bool("changed", res.Changed),
		zap.Stringer("reason", res.Reason),
	)

	// Recorded before the update so a failed publish still leaves a trace.
	if c.history != nil {
		if err := c.history.Record(ctx, c.deviceID, in, res, c.now()); err != nil {
			c.log.Error("failed to write evaluation to influx", zap.Error(err))
		}
	}

	if res.Changed {
		if c.dryRun {
			c.log.Info("dry run; not updating thermostat", zap.Int("target_humidity", res.RecommendedPct))
		} else {
			if err := c.setter.SetHumidity(ctx, c.deviceID, res.RecommendedPct); err != nil {
				return out, fmt.Errorf("failed to set humidity on thermostat '%s': %w", c.deviceID, err)
			}
			out.Applied = true
		}
	}

	return out, nil
}

// outside refines the device-reported outdoor temperature with a fresh weather
// observation, when one is configured and available.
func (c *cycle) outside(ctx context.Context, base condensation.OutsideReference) condensation.OutsideReference {
	if c.weather == nil {
		return base
	}
	obs, err := c.weather.Current(ctx)
	if err != nil {
		c.log.Warn("weather observation unavailable; using thermostat outside temperature", zap.Error(err))
		return base
	}
	merged, fresh := mergeOutside(base, obs, c.now(), c.maxObservationAge)
	if !fresh {
		c.log.Info("weather observation is stale; using thermostat outside temperature",
			zap.Time("observed_at", obs.ObservedAt),
			zap.Duration("max_age", c.maxObservationAge),
		)
	}
	return merged
}
