package condensation

import (
	"errors"
	"fmt"
	"math"
)

// Config holds the policy's tuning constants.
type Config struct {
	// MaxDewpointF is the highest indoor dew point allowed; it is also the dew point
	// the search starts from.
	MaxDewpointF float64 `json:"max_dewpoint_f"`
	// MaxDewpointDeltaF bounds (projected indoor dewpoint - outdoor temperature).
	// Lower is safer; the right value depends on window construction.
	MaxDewpointDeltaF float64 `json:"max_dewpoint_delta_f"`
	MinHumidityPct    int     `json:"min_humidity_pct"`
	MaxHumidityPct    int     `json:"max_humidity_pct"`
	// HumidityStepPct is the device's humidity setting increment.
	HumidityStepPct int `json:"humidity_step_pct"`
	// MaxHeatingDeltaF is how far the indoor temperature may rise above the heat
	// setpoint before humidification is turned down to the minimum.
	MaxHeatingDeltaF float64 `json:"max_heating_delta_f"`
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		MaxDewpointF:      46.0,
		MaxDewpointDeltaF: -10.0,
		MinHumidityPct:    10,
		MaxHumidityPct:    40,
		HumidityStepPct:   5,
		MaxHeatingDeltaF:  1.0,
	}
}

// Validate checks that the bounds lie on the step grid inside 0-100%.
func (c Config) Validate() error {
	if c.HumidityStepPct <= 0 {
		return fmt.Errorf("humidity_step_pct must be positive (got %d)", c.HumidityStepPct)
	}
	if c.MinHumidityPct < 0 || c.MaxHumidityPct > 100 || c.MinHumidityPct > c.MaxHumidityPct {
		return fmt.Errorf("humidity bounds must satisfy 0 <= min <= max <= 100 (got min=%d, max=%d)", c.MinHumidityPct, c.MaxHumidityPct)
	}
	if c.MinHumidityPct%c.HumidityStepPct != 0 || c.MaxHumidityPct%c.HumidityStepPct != 0 {
		return fmt.Errorf("humidity bounds must be multiples of humidity_step_pct %d (got min=%d, max=%d)", c.HumidityStepPct, c.MinHumidityPct, c.MaxHumidityPct)
	}
	if math.IsNaN(c.MaxDewpointF) || math.IsNaN(c.MaxDewpointDeltaF) || math.IsNaN(c.MaxHeatingDeltaF) {
		return errors.New("temperature limits must be numbers")
	}
	return nil
}

// Reason says which rule produced a recommendation.
type Reason int

const (
	// ReasonSearch: the descending search against the outdoor temperature.
	ReasonSearch Reason = iota
	// ReasonSaturated: an indoor dew point already at or above MaxDewpointF.
	ReasonSaturated
	// ReasonHeatingOverride: the indoor temperature overshot the heat setpoint.
	ReasonHeatingOverride
)

func (r Reason) String() string {
	switch r {
	case ReasonSaturated:
		return "saturated"
	case ReasonHeatingOverride:
		return "heating_override"
	default:
		return "search"
	}
}

// Inputs is everything one evaluation cycle looks at.
type Inputs struct {
	Primary Zone
	// Secondary is an optional second zone used as a sanity check.
	Secondary *Zone
	Outside   OutsideReference
}

// ZoneResult is the per-zone part of a Result.
type ZoneResult struct {
	Name      string
	DewpointF *float64
	TargetPct int
	Saturated bool
	// Available is false for a secondary zone that could not be evaluated.
	Available bool
}

// Result is the outcome of one evaluation cycle.
type Result struct {
	RecommendedPct int
	CurrentPct     int
	Changed        bool
	Reason         Reason
	Zones          []ZoneResult
}

// Policy decides humidity targets. It holds no mutable state and is safe for
// concurrent use.
type Policy struct {
	cfg Config
}

// New returns a Policy for the given configuration.
func New(cfg Config) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Policy{cfg: cfg}, nil
}

// Target returns the highest humidity setting, on the step grid and within the
// configured bounds, whose projected dew point at indoorTempF stays at least
// -MaxDewpointDeltaF below outdoorTempF. When indoorDewpointF is known and already
// at MaxDewpointF, the minimum is returned without searching and saturated is true.
func (p *Policy) Target(indoorTempF float64, indoorDewpointF *float64, outdoorTempF float64) (pct int, saturated bool) {
	c := p.cfg
	if indoorDewpointF != nil && *indoorDewpointF >= c.MaxDewpointF {
		return c.MinHumidityPct, true
	}

	indoorC := ToCelsius(indoorTempF)
	target := p.quantize(HumidityFromDewpointC(indoorC, ToCelsius(c.MaxDewpointF)))

	// target strictly decreases and stops at the minimum, so this runs at most
	// (max-min)/step times.
	for target > c.MinHumidityPct && p.projectedDewpointF(indoorC, target)-outdoorTempF > c.MaxDewpointDeltaF {
		target -= c.HumidityStepPct
	}

	return p.clamp(target), false
}

// quantize floors a humidity onto the step grid. Values above the maximum start
// the search at the maximum; the projected dew point rises with humidity, so the
// clamped outcome is the same as searching down from the raw value.
func (p *Policy) quantize(baseline float64) int {
	c := p.cfg
	switch {
	case math.IsNaN(baseline) || baseline >= float64(c.MaxHumidityPct):
		return c.MaxHumidityPct
	case baseline <= 0:
		return 0
	}
	step := c.HumidityStepPct
	return int(math.Floor(baseline/float64(step))) * step
}

func (p *Policy) projectedDewpointF(indoorC float64, humidityPct int) float64 {
	return ToFahrenheit(DewpointC(indoorC, float64(humidityPct)))
}

func (p *Policy) clamp(pct int) int {
	pct = min(pct, p.cfg.MaxHumidityPct)
	return max(pct, p.cfg.MinHumidityPct)
}

// Evaluate validates the inputs and computes the recommended setting across zones.
// A returned error matches ErrMissingData; no target should be applied then.
func (p *Policy) Evaluate(in Inputs) (Result, error) {
	primary := in.Primary
	if primary.TemperatureF == nil {
		return Result{}, &MissingDataError{Field: primary.field("temperature")}
	}
	if in.Outside.TemperatureF == nil {
		return Result{}, &MissingDataError{Field: "outside temperature"}
	}
	if primary.TargetHumidity == nil {
		return Result{}, &MissingDataError{Field: primary.field("target humidity")}
	}
	reading, err := primary.Reading()
	if err != nil {
		return Result{}, err
	}
	outdoorF := *in.Outside.TemperatureF

	dewpoint := reading.DewpointF()
	target, saturated := p.Target(reading.TemperatureF, &dewpoint, outdoorF)
	res := Result{Reason: ReasonSearch}
	if saturated {
		res.Reason = ReasonSaturated
	}
	res.Zones = append(res.Zones, ZoneResult{
		Name:      primary.Name,
		DewpointF: &dewpoint,
		TargetPct: target,
		Saturated: saturated,
		Available: true,
	})

	if in.Secondary != nil {
		zr := p.secondary(*in.Secondary, outdoorF)
		if zr.Available && zr.TargetPct < target {
			target = zr.TargetPct
			if zr.Saturated {
				res.Reason = ReasonSaturated
			} else {
				res.Reason = ReasonSearch
			}
		}
		res.Zones = append(res.Zones, zr)
	}

	if heat := primary.HeatSetpoint(); heat != nil && reading.TemperatureF-*heat >= p.cfg.MaxHeatingDeltaF {
		target = p.cfg.MinHumidityPct
		res.Reason = ReasonHeatingOverride
	}

	res.RecommendedPct = target
	res.CurrentPct = int(math.Round(*primary.TargetHumidity))
	res.Changed = float64(target) != *primary.TargetHumidity
	return res, nil
}

// secondary evaluates a sanity-check zone. Its dew point is only used when its
// humidity is valid; without a temperature the zone is skipped.
func (p *Policy) secondary(z Zone, outdoorF float64) ZoneResult {
	zr := ZoneResult{Name: z.Name}
	if z.TemperatureF == nil {
		return zr
	}
	zr.Available = true
	zr.DewpointF = z.DewpointF()
	zr.TargetPct, zr.Saturated = p.Target(*z.TemperatureF, zr.DewpointF, outdoorF)
	return zr
}
