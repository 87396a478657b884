package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"condensation-guard/condensation"
)

var version = "<dev>"

const runTimeout = 2 * time.Minute

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	configFile := pflag.StringP("config", "c", "./config.json", "Configuration JSON file.")
	dryRun := pflag.Bool("dry-run", false, "Compute and print the new target without updating the thermostat.")
	debug := pflag.Bool("debug", false, "Enable debug logging.")
	printVersion := pflag.Bool("version", false, "Print version and exit.")
	pflag.Parse()

	if *printVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *configFile == "" {
		fmt.Println("--config is required.")
		os.Exit(1)
	}

	logger, err := newLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to create logger: %s\n", err)
		os.Exit(1)
	}

	code := run(logger, *configFile, *dryRun)
	_ = logger.Sync()
	os.Exit(code)
}

func run(logger *zap.Logger, configFile string, dryRun bool) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	config, err := LoadConfig(configFile)
	if err != nil {
		logger.Error("unable to load config", zap.Error(err))
		return 1
	}
	policy, err := condensation.New(config.Policy)
	if err != nil {
		logger.Error("invalid policy configuration", zap.Error(err))
		return 1
	}

	thermostats, err := connectThermostats(config.MQTT, withThermostatLogger(logger.Named("mqtt")))
	if err != nil {
		logger.Error("unable to reach thermostat bridge", zap.Error(err))
		return 1
	}
	defer thermostats.Close()

	c := &cycle{
		policy:            policy,
		thermostats:       thermostats,
		setter:            thermostats,
		deviceID:          config.Thermostat.DeviceID,
		secondaryDeviceID: config.Thermostat.SecondaryDeviceID,
		maxObservationAge: config.OpenWeatherMap.MaxObservationAge(),
		dryRun:            dryRun,
		now:               time.Now,
		log:               logger,
	}

	if config.OpenWeatherMap.Enabled() {
		weather, err := newWeatherClient(config.OpenWeatherMap, withWeatherLogger(logger.Named("openweathermap")))
		if err != nil {
			logger.Error("unable to set up OpenWeatherMap client", zap.Error(err))
			return 1
		}
		c.weather = weather
	}

	if config.Influx.Enabled() {
		history, err := newHistoryWriter(ctx, config.Influx, logger.Named("influx"))
		if err != nil {
			logger.Error("unable to set up InfluxDB output", zap.Error(err))
			return 1
		}
		defer history.Close()
		c.history = history
	}

	out, err := c.Run(ctx)
	if out.Status != "" {
		fmt.Println(out.Status)
	}
	if err != nil {
		if errors.Is(err, condensation.ErrMissingData) {
			logger.Error("required data missing; thermostat left unchanged", zap.Error(err))
		} else {
			logger.Error("evaluation failed", zap.Error(err))
		}
		return 1
	}
	return 0
}
