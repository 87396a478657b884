package main

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"condensation-guard/condensation"
)

const (
	influxTimeout    = 3 * time.Second
	influxAttempts   = 3
	influxRetryDelay = 1 * time.Second

	deviceTag = "device_id"
	reasonTag = "reason"
)

// historyWriter records each evaluation as an InfluxDB point.
type historyWriter struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPIBlocking
	measurement string
	log         *zap.Logger
}

func newHistoryWriter(ctx context.Context, cfg InfluxConfig, log *zap.Logger) (*historyWriter, error) {
	authString := ""
	if cfg.User != "" || cfg.Pass != "" {
		authString = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
	} else if cfg.Token != "" {
		authString = cfg.Token
	}
	client := influxdb2.NewClient(cfg.Server, authString)
	if !cfg.HealthCheckDisabled {
		ctx, cancel := context.WithTimeout(ctx, influxTimeout)
		defer cancel()
		health, err := client.Health(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to check InfluxDB health: %w", err)
		}
		if health.Status != "pass" {
			client.Close()
			msg := ""
			if health.Message != nil {
				msg = *health.Message
			}
			return nil, fmt.Errorf("InfluxDB did not pass health check: status %s; message '%s'", health.Status, msg)
		}
	}
	return &historyWriter{
		client:      client,
		writeAPI:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		measurement: cfg.MeasurementName,
		log:         log,
	}, nil
}

// Record writes one evaluation.
func (h *historyWriter) Record(ctx context.Context, deviceID string, in condensation.Inputs, res condensation.Result, ts time.Time) error {
	point := influxdb2.NewPoint(
		h.measurement,
		map[string]string{
			deviceTag: deviceID,
			reasonTag: res.Reason.String(),
		},
		evaluationFields(in, res),
		ts,
	)
	return retry.Do(func() error {
		ctx, cancel := context.WithTimeout(ctx, influxTimeout)
		defer cancel()
		return h.writeAPI.WritePoint(ctx, point)
	}, retry.Attempts(influxAttempts), retry.Delay(influxRetryDelay), retry.Context(ctx))
}

func (h *historyWriter) Close() {
	h.client.Close()
}

// evaluationFields flattens an evaluation into point fields. Absent readings are
// left out.
func evaluationFields(in condensation.Inputs, res condensation.Result) map[string]interface{} {
	fields := map[string]interface{}{
		"recommended_humidity": res.RecommendedPct,
		"previous_humidity":    res.CurrentPct,
		"changed":              res.Changed,
	}
	putFloat := func(key string, v *float64) {
		if v != nil {
			fields[key] = *v
		}
	}

	putFloat("indoor_temp_f", in.Primary.TemperatureF)
	putFloat("indoor_humidity", in.Primary.Humidity)
	putFloat("heat_setpoint_f", in.Primary.HeatSetpoint())
	putFloat("outdoor_temp_f", in.Outside.TemperatureF)
	putFloat("outdoor_dew_point_f", in.Outside.DewpointF)
	putFloat("outdoor_humidity", in.Outside.Humidity)
	if in.Outside.TemperatureF != nil {
		fields["recommended_max_indoor_humidity"] = IndoorHumidityRecommendation(*in.Outside.TemperatureF)
	}

	for i, z := range res.Zones {
		prefix := "zone1_"
		if i > 0 {
			prefix = "zone2_"
		}
		putFloat(prefix+"dew_point_f", z.DewpointF)
		if z.Available {
			fields[prefix+"target_humidity"] = z.TargetPct
		}
	}
	if in.Secondary != nil {
		putFloat("zone2_temp_f", in.Secondary.TemperatureF)
		putFloat("zone2_humidity", in.Secondary.Humidity)
	}
	return fields
}
