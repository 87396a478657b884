package condensation

import "strings"

// Mode is the thermostat's HVAC mode.
type Mode int

const (
	ModeOff Mode = iota
	ModeHeat
	ModeCool
	ModeRange
)

// ParseMode normalizes a device-reported mode string. Unknown modes are ModeOff.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heat":
		return ModeHeat
	case "cool":
		return ModeCool
	case "range", "heat-cool", "heat_cool", "auto":
		return ModeRange
	default:
		return ModeOff
	}
}

func (m Mode) String() string {
	switch m {
	case ModeHeat:
		return "heat"
	case ModeCool:
		return "cool"
	case ModeRange:
		return "range"
	default:
		return "off"
	}
}

// SensorReading is a validated indoor reading for one zone.
type SensorReading struct {
	TemperatureF float64
	Humidity     float64
}

// DewpointF returns the reading's dew point in Fahrenheit.
func (r SensorReading) DewpointF() float64 {
	return DewpointF(r.TemperatureF, r.Humidity)
}

// Zone is one thermostat's state as reported by the device. Nil fields were not
// reported as numbers.
type Zone struct {
	Name           string
	TemperatureF   *float64
	Humidity       *float64
	TargetHumidity *float64
	Mode           Mode
	HeatSetpointF  *float64
	CoolSetpointF  *float64
}

// Reading validates the zone's temperature and humidity.
func (z Zone) Reading() (SensorReading, error) {
	if z.TemperatureF == nil {
		return SensorReading{}, &MissingDataError{Field: z.field("temperature")}
	}
	if z.Humidity == nil {
		return SensorReading{}, &MissingDataError{Field: z.field("humidity")}
	}
	if err := checkHumidity(z.field("humidity"), *z.Humidity); err != nil {
		return SensorReading{}, err
	}
	return SensorReading{TemperatureF: *z.TemperatureF, Humidity: *z.Humidity}, nil
}

// DewpointF returns the zone's current dew point, or nil when it cannot be computed.
func (z Zone) DewpointF() *float64 {
	r, err := z.Reading()
	if err != nil {
		return nil
	}
	dp := r.DewpointF()
	return &dp
}

// HeatSetpoint returns the heat setpoint in effect for the zone's mode.
func (z Zone) HeatSetpoint() *float64 {
	if z.Mode != ModeHeat && z.Mode != ModeRange {
		return nil
	}
	return z.HeatSetpointF
}

func (z Zone) field(name string) string {
	if z.Name == "" {
		return name
	}
	return z.Name + " " + name
}

func checkHumidity(field string, h float64) error {
	if !(h > 0 && h <= 100) {
		return &DegenerateInputError{Field: field, Value: h}
	}
	return nil
}

// OutsideReference is the outdoor condition used as the window glass temperature proxy.
// Dewpoint and humidity are informational refinements and may be nil.
type OutsideReference struct {
	TemperatureF *float64
	DewpointF    *float64
	Humidity     *float64
}
