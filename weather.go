package main

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	owm "github.com/briandowns/openweathermap"
	"go.uber.org/zap"

	"condensation-guard/condensation"
)

const (
	owmAttempts   = 3
	owmRetryDelay = 2 * time.Second
)

// outdoorObservation is one current-conditions report from a weather source.
// DewpointF is nil when the reported humidity leaves the dew point undefined.
type outdoorObservation struct {
	TemperatureF float64
	DewpointF    *float64
	Humidity     float64
	ObservedAt   time.Time
}

func newOutdoorObservation(tempF float64, relH int, observedAt time.Time) *outdoorObservation {
	obs := &outdoorObservation{
		TemperatureF: tempF,
		Humidity:     float64(relH),
		ObservedAt:   observedAt,
	}
	if relH > 0 && relH <= 100 {
		dp := OutdoorDewPointF(tempF, relH)
		obs.DewpointF = &dp
	}
	return obs
}

// weatherClient fetches current conditions from OpenWeatherMap.
type weatherClient struct {
	apiKey string
	coords owm.Coordinates
	log    *zap.Logger
}

type weatherOption func(w *weatherClient) error

func withWeatherLogger(l *zap.Logger) weatherOption {
	return func(w *weatherClient) error {
		w.log = l
		return nil
	}
}

func newWeatherClient(cfg OpenWeatherMapConfig, opts ...weatherOption) (*weatherClient, error) {
	w := &weatherClient{
		apiKey: cfg.APIKey,
		coords: owm.Coordinates{
			Longitude: cfg.Longitude,
			Latitude:  cfg.Latitude,
		},
		log: zap.L(),
	}

	for _, o := range opts {
		if err := o(w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Current returns the latest observation for the configured coordinates.
func (w *weatherClient) Current(ctx context.Context) (*outdoorObservation, error) {
	wx, err := owm.NewCurrent("F", "EN", w.apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenWeatherMap current weather client: %w", err)
	}

	if err := retry.Do(func() error {
		return wx.CurrentByCoordinates(&w.coords)
	}, retry.Attempts(owmAttempts), retry.Delay(owmRetryDelay), retry.Context(ctx), retry.LastErrorOnly(true)); err != nil {
		return nil, fmt.Errorf("failed to get weather from OpenWeatherMap: %w", err)
	}

	// see response docs at: https://openweathermap.org/current#parameter
	obs := newOutdoorObservation(wx.Main.Temp, wx.Main.Humidity, time.Unix(int64(wx.Dt), 0))
	w.log.Debug("fetched outdoor conditions",
		zap.Float64("temp_f", obs.TemperatureF),
		zap.Float64p("dew_point_f", obs.DewpointF),
		zap.Float64("rel_humidity", obs.Humidity),
		zap.Time("observed_at", obs.ObservedAt),
	)
	return obs, nil
}

// mergeOutside refines base with obs when obs is no older than maxAge at now.
// It reports whether obs was used.
func mergeOutside(base condensation.OutsideReference, obs *outdoorObservation, now time.Time, maxAge time.Duration) (condensation.OutsideReference, bool) {
	if obs == nil || now.Sub(obs.ObservedAt) > maxAge {
		return base, false
	}
	temp, humidity := obs.TemperatureF, obs.Humidity
	ref := condensation.OutsideReference{
		TemperatureF: &temp,
		Humidity:     &humidity,
	}
	if obs.DewpointF != nil {
		dewpoint := *obs.DewpointF
		ref.DewpointF = &dewpoint
	}
	return ref, true
}
