package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/rs/zerolog"

	"github.com/nicodav/fty-nut/internal/pkg/engine/agent"
	"github.com/nicodav/fty-nut/internal/pkg/engine/alert"
	"github.com/nicodav/fty-nut/internal/pkg/engine/mapping"
	"github.com/nicodav/fty-nut/internal/pkg/engine/registry"
	"github.com/nicodav/fty-nut/internal/pkg/engine/sensor"
	"github.com/nicodav/fty-nut/internal/pkg/infrastructure/bus"
	"github.com/nicodav/fty-nut/internal/pkg/infrastructure/config"
	"github.com/nicodav/fty-nut/internal/pkg/infrastructure/nutclient"
	"github.com/nicodav/fty-nut/internal/pkg/infrastructure/router"
	"github.com/nicodav/fty-nut/internal/pkg/infrastructure/stateio"
)

const serviceName string = "nut-agent"

var mappingFilePath string
var settingsFilePath string
var daemonAddr string
var statePath string

func main() {
	serviceVersion := buildinfo.SourceVersion()
	ctx, logger, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion)
	defer cleanup()

	flag.StringVar(&mappingFilePath, "mapping", "/opt/fty-nut/config/mapping.json", "Mapping Store document (physics/inventory name maps)")
	flag.StringVar(&settingsFilePath, "settings", "/opt/fty-nut/config/settings.yaml", "Agent tunables (poll/inventory/sensor intervals, webhooks)")
	flag.StringVar(&daemonAddr, "daemon", nutclient.DefaultAddr, "host:port of the power-device daemon")
	flag.StringVar(&statePath, "state", stateio.DefaultPath, "sensor-topology state file, loaded at startup and saved on shutdown")
	flag.Parse()

	apiPort := fmt.Sprintf(":%s", env.GetVariableOrDefault(logger, "SERVICE_PORT", "8080"))

	mappingStore := setupMappingOrDie(logger)
	settings := loadSettings(logger)

	daemon := nutclient.New(daemonAddr, 5*time.Second)
	reg := registry.New(daemon, mappingStore, logger).WithThresholds(settings.DeviceThresholds)
	sensors := sensor.NewRegistry()
	loadSensorStateOrWarn(logger, sensors)

	messenger := setupMessagingOrDie(logger)

	a := agent.New(agent.Config{
		PollInterval:      settings.PollInterval(),
		InventoryInterval: settings.InventoryInterval(),
		SensorInterval:    settings.SensorInterval(),
		ForceUpdate:       settings.ForceUpdate,
	}, reg, mappingStore, messenger, sensors, logger)
	a.WithWebhookNotifier(alert.NewWebhookNotifier(settings.Webhooks, logger))

	go func() {
		if err := a.Run(ctx); err != nil {
			logger.Fatal().Err(err).Msg("polling loop exited")
		}
	}()
	defer a.Stop()
	defer saveSensorStateOrWarn(logger, sensors)

	r := router.New(serviceName, a)

	err := http.ListenAndServe(apiPort, r)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start router")
	}
}

func setupMappingOrDie(logger zerolog.Logger) *mapping.Store {
	store := mapping.New(logger)

	if err := store.Load(mappingFilePath); err != nil {
		logger.Fatal().Err(err).Str("path", mappingFilePath).Msg("failed to load mapping file")
	}

	if err := store.WatchAndReload(); err != nil {
		logger.Warn().Err(err).Msg("mapping file will not be hot-reloaded")
	}

	return store
}

func loadSettings(logger zerolog.Logger) *config.Settings {
	f, err := os.Open(settingsFilePath)
	if err != nil {
		logger.Info().Str("path", settingsFilePath).Msg("no settings file found, using defaults")
		return &config.Settings{}
	}
	defer f.Close()

	settings, err := config.Load(f)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse settings file")
	}

	return settings
}

func loadSensorStateOrWarn(logger zerolog.Logger, sensors *sensor.Registry) {
	data, err := stateio.Load(statePath)
	if err != nil {
		logger.Warn().Err(err).Str("path", statePath).Msg("could not read sensor state file, starting with no known sensor bindings")
		return
	}
	if err := sensors.Import(data); err != nil {
		logger.Warn().Err(err).Str("path", statePath).Msg("could not parse sensor state file, starting with no known sensor bindings")
	}
}

func saveSensorStateOrWarn(logger zerolog.Logger, sensors *sensor.Registry) {
	data, err := sensors.Export()
	if err != nil {
		logger.Warn().Err(err).Msg("could not serialize sensor state")
		return
	}
	if err := stateio.Save(statePath, data); err != nil {
		logger.Warn().Err(err).Str("path", statePath).Msg("could not save sensor state file")
	}
}

func setupMessagingOrDie(logger zerolog.Logger) bus.Client {
	messenger, err := bus.Dial(serviceName, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init messenger")
	}

	return messenger
}
