// Command bridge subscribes to ADS1115 channel topics and forwards each reading to the API.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"sensorhub/internal/bridge"
	"sensorhub/internal/clients"
	"sensorhub/internal/config"
	"sensorhub/internal/logger"
	"sensorhub/internal/worker"
)

func main() {
	loaded, envErr := config.LoadEnvFiles(config.EnvFiles...)

	cfg := config.Load()
	log := logger.New(cfg.Log)

	if envErr != nil {
		log.WithError(envErr).Warn("Failed to parse env file")
	}
	if len(loaded) == 0 {
		log.Debug("No env file found, using environment variables")
	}
	log.Info("=== Sensor Hub Bridge Starting ===")

	forwarder := bridge.NewForwarder(
		bridge.Decoder{ChannelOffset: cfg.MQTT.ChannelOffset, ValueField: cfg.MQTT.ValueField},
		clients.NewReadingsClient(cfg.Bridge.APIURL),
		log,
	)

	scheduler := worker.NewScheduler(log)
	scheduler.AddWorker(worker.NewMQTTWorker(worker.MQTTConfig{
		Server:   cfg.MQTT.Server,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Topic:    cfg.MQTT.Topic,
	}, forwarder, log))
	if cfg.Bridge.StatsInterval > 0 {
		scheduler.AddWorker(worker.NewStatsWorker(forwarder, cfg.Bridge.StatsInterval, log))
	}

	log.Logger.Info().
		Str("topic", cfg.MQTT.Topic).
		Int("channel_offset", cfg.MQTT.ChannelOffset).
		Str("api", cfg.Bridge.APIURL).
		Msg("Bridge configured")

	scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bridge...")
	scheduler.Stop()
	log.Info("Bridge exited properly")
}
