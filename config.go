package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"condensation-guard/condensation"
)

const (
	defaultMQTTPort          = 1883
	defaultMQTTTimeout       = 10
	defaultMQTTTopicRoot     = "thermostat"
	defaultMQTTClientID      = "condensation-guard"
	defaultMaxObservationAge = 3600
	defaultMeasurementName   = "condensation_guard"
)

// ThermostatConfig names the devices to read. The humidity target is set on the
// primary device; the secondary one is only used as a sanity check.
type ThermostatConfig struct {
	DeviceID          string `json:"device_id"`
	SecondaryDeviceID string `json:"secondary_device_id,omitempty"`
}

// MQTTConfig describes the MQTT connection to the thermostat bridge.
type MQTTConfig struct {
	Server    string `json:"server"`
	Port      int    `json:"port"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	TopicRoot string `json:"topic_root"`
	Timeout   int    `json:"timeout"`
}

// OpenWeatherMapConfig describes the optional outdoor weather source.
type OpenWeatherMapConfig struct {
	APIKey                   string  `json:"api_key"`
	Latitude                 float64 `json:"lat"`
	Longitude                float64 `json:"lon"`
	MaxObservationAgeSeconds int     `json:"max_observation_age_seconds"`
}

// Enabled reports whether weather data should be fetched.
func (c OpenWeatherMapConfig) Enabled() bool {
	return c.APIKey != ""
}

// MaxObservationAge is the age beyond which an observation is ignored.
func (c OpenWeatherMapConfig) MaxObservationAge() time.Duration {
	return time.Duration(c.MaxObservationAgeSeconds) * time.Second
}

// InfluxConfig describes the optional InfluxDB evaluation history output.
type InfluxConfig struct {
	Server              string `json:"server"`
	Org                 string `json:"org,omitempty"`
	User                string `json:"user,omitempty"`
	Pass                string `json:"password,omitempty"`
	Token               string `json:"token,omitempty"`
	Bucket              string `json:"bucket"`
	MeasurementName     string `json:"measurement_name"`
	HealthCheckDisabled bool   `json:"health_check_disabled"`
}

// Enabled reports whether evaluations should be written to InfluxDB.
func (c InfluxConfig) Enabled() bool {
	return c.Server != "" && c.Bucket != ""
}

// Config describes the configuration for the condensation-guard program.
type Config struct {
	Thermostat     ThermostatConfig     `json:"thermostat"`
	MQTT           MQTTConfig           `json:"mqtt"`
	OpenWeatherMap OpenWeatherMapConfig `json:"openweathermap"`
	Influx         InfluxConfig         `json:"influx"`
	Policy         condensation.Config  `json:"policy"`
}

// LoadConfig reads the JSON configuration file at path, fills in defaults for
// omitted fields, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfgBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read config file '%s': %w", path, err)
	}
	config := Config{
		MQTT: MQTTConfig{
			Port:      defaultMQTTPort,
			Timeout:   defaultMQTTTimeout,
			TopicRoot: defaultMQTTTopicRoot,
			ClientID:  defaultMQTTClientID,
		},
		OpenWeatherMap: OpenWeatherMapConfig{MaxObservationAgeSeconds: defaultMaxObservationAge},
		Influx:         InfluxConfig{MeasurementName: defaultMeasurementName},
		Policy:         condensation.DefaultConfig(),
	}
	if err := json.Unmarshal(cfgBytes, &config); err != nil {
		return nil, fmt.Errorf("unable to parse config file '%s': %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file '%s': %w", path, err)
	}
	return &config, nil
}

// Validate checks that the required settings are present.
func (c *Config) Validate() error {
	if c.Thermostat.DeviceID == "" {
		return errors.New("thermostat.device_id must be set")
	}
	if c.Thermostat.SecondaryDeviceID == c.Thermostat.DeviceID {
		return errors.New("thermostat.secondary_device_id must differ from thermostat.device_id")
	}
	if c.MQTT.Server == "" {
		return errors.New("mqtt.server must be set")
	}
	if c.MQTT.TopicRoot == "" {
		return errors.New("mqtt.topic_root must not be empty")
	}
	if c.MQTT.Timeout <= 0 {
		return errors.New("mqtt.timeout must be positive")
	}
	if c.OpenWeatherMap.Enabled() && c.OpenWeatherMap.MaxObservationAgeSeconds <= 0 {
		return errors.New("openweathermap.max_observation_age_seconds must be positive")
	}
	if c.Influx.Enabled() && c.Influx.MeasurementName == "" {
		return errors.New("influx.measurement_name must be set when influx is configured")
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	return nil
}
