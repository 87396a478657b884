package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"condensation-guard/condensation"
)

// reportedFloat is a value the thermostat bridge may report as a JSON number, a
// numeric string, or something unusable. Unusable values are absent.
type reportedFloat struct {
	val *float64
}

func (r *reportedFloat) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.val = nil
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		v = f
	default:
		return nil
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	r.val = &v
	return nil
}

// thermostatState is the retained JSON document the bridge publishes per device.
type thermostatState struct {
	CurrentTemperature reportedFloat   `json:"current_temperature"`
	CurrentHumidity    reportedFloat   `json:"current_humidity"`
	TargetHumidity     reportedFloat   `json:"target_humidity"`
	Mode               string          `json:"mode"`
	TargetTemperature  json.RawMessage `json:"target_temperature"`
	OutsideTemperature reportedFloat   `json:"outside_temperature"`
}

// thermostatReport is a parsed device state.
type thermostatReport struct {
	Zone                condensation.Zone
	OutsideTemperatureF *float64
}

// parseThermostatState converts a state payload into a typed zone. The target
// temperature is a single number in heat or cool mode and a [heat, cool] pair in
// range mode.
func parseThermostatState(name string, payload []byte) (thermostatReport, error) {
	var st thermostatState
	if err := json.Unmarshal(payload, &st); err != nil {
		return thermostatReport{}, fmt.Errorf("unable to parse state of thermostat '%s': %w", name, err)
	}

	zone := condensation.Zone{
		Name:           name,
		TemperatureF:   st.CurrentTemperature.val,
		Humidity:       st.CurrentHumidity.val,
		TargetHumidity: st.TargetHumidity.val,
		Mode:           condensation.ParseMode(st.Mode),
	}

	single, pair := parseSetpoints(st.TargetTemperature)
	switch zone.Mode {
	case condensation.ModeHeat:
		zone.HeatSetpointF = single
		if single == nil {
			zone.HeatSetpointF = pair[0]
		}
	case condensation.ModeCool:
		zone.CoolSetpointF = single
		if single == nil {
			zone.CoolSetpointF = pair[1]
		}
	case condensation.ModeRange:
		zone.HeatSetpointF, zone.CoolSetpointF = pair[0], pair[1]
	}

	return thermostatReport{Zone: zone, OutsideTemperatureF: st.OutsideTemperature.val}, nil
}

func parseSetpoints(raw json.RawMessage) (single *float64, pair [2]*float64) {
	if len(raw) == 0 {
		return nil, pair
	}
	var one reportedFloat
	if err := json.Unmarshal(raw, &one); err == nil && one.val != nil {
		return one.val, pair
	}
	var two []reportedFloat
	if err := json.Unmarshal(raw, &two); err == nil && len(two) == 2 {
		pair[0], pair[1] = two[0].val, two[1].val
	}
	return nil, pair
}

// thermostatClient reads device state from and sends humidity targets to the
// thermostat bridge over MQTT.
type thermostatClient struct {
	client    mqtt.Client
	topicRoot string
	timeout   time.Duration
	log       *zap.Logger
}

type thermostatOption func(t *thermostatClient) error

func withThermostatLogger(l *zap.Logger) thermostatOption {
	return func(t *thermostatClient) error {
		t.log = l
		return nil
	}
}

// withMQTTClient uses an already connected client instead of dialing the broker.
func withMQTTClient(c mqtt.Client) thermostatOption {
	return func(t *thermostatClient) error {
		t.client = c
		return nil
	}
}

func connectThermostats(cfg MQTTConfig, opts ...thermostatOption) (*thermostatClient, error) {
	t := &thermostatClient{
		topicRoot: cfg.TopicRoot,
		timeout:   time.Duration(cfg.Timeout) * time.Second,
		log:       zap.L(),
	}

	// apply the options
	for _, o := range opts {
		if err := o(t); err != nil {
			return nil, err
		}
	}
	if t.client != nil {
		return t, nil
	}

	mqttOpts := mqtt.NewClientOptions()
	mqttOpts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Server, cfg.Port))
	if cfg.Username != "" {
		mqttOpts.SetUsername(cfg.Username)
		mqttOpts.SetPassword(cfg.Password)
	}
	mqttOpts.SetClientID(cfg.ClientID)
	mqttOpts.SetConnectTimeout(t.timeout)

	client := mqtt.NewClient(mqttOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	t.log.Debug("connected to MQTT broker", zap.String("server", cfg.Server), zap.Int("port", cfg.Port))
	t.client = client
	return t, nil
}

func (t *thermostatClient) stateTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/state", t.topicRoot, deviceID)
}

func (t *thermostatClient) setTopic(deviceID string) string {
	return fmt.Sprintf("%s/%s/set", t.topicRoot, deviceID)
}

// State waits for the device's retained state document and parses it.
func (t *thermostatClient) State(ctx context.Context, deviceID string) (thermostatReport, error) {
	topic := t.stateTopic(deviceID)
	payloads := make(chan []byte, 1)
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case payloads <- msg.Payload():
		default:
		}
	}

	token := t.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(t.timeout) {
		return thermostatReport{}, fmt.Errorf("timed out subscribing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return thermostatReport{}, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	defer func() {
		if tok := t.client.Unsubscribe(topic); !tok.WaitTimeout(t.timeout) || tok.Error() != nil {
			t.log.Warn("failed to unsubscribe", zap.String("topic", topic), zap.Error(tok.Error()))
		}
	}()

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()
	select {
	case payload := <-payloads:
		t.log.Debug("received thermostat state", zap.String("topic", topic), zap.ByteString("payload", payload))
		return parseThermostatState(deviceID, payload)
	case <-timer.C:
		return thermostatReport{}, fmt.Errorf("no state received on %s within %s", topic, t.timeout)
	case <-ctx.Done():
		return thermostatReport{}, ctx.Err()
	}
}

type setHumidityCommand struct {
	TargetHumidity int `json:"target_humidity"`
}

// SetHumidity publishes a new humidity target for the device.
func (t *thermostatClient) SetHumidity(ctx context.Context, deviceID string, pct int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(setHumidityCommand{TargetHumidity: pct})
	if err != nil {
		return fmt.Errorf("failed to marshal humidity command: %w", err)
	}
	topic := t.setTopic(deviceID)
	token := t.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(t.timeout) {
		return errors.New("timed out publishing humidity command to " + topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish humidity command to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (t *thermostatClient) Close() {
	t.client.Disconnect(250)
}
