// Command resetdb drops and recreates the sensor_data table.
package main

import (
	"flag"
	"fmt"
	"os"

	"sensorhub/internal/config"
	"sensorhub/internal/logger"
	"sensorhub/pkg/database"
)

func main() {
	yes := flag.Bool("yes", false, "confirm that every stored reading will be deleted")
	flag.Parse()

	if _, err := config.LoadEnvFiles(config.EnvFiles...); err != nil {
		fmt.Fprintln(os.Stderr, "env file:", err)
	}
	cfg := config.Load()
	log := logger.New(cfg.Log)

	if !*yes {
		fmt.Fprintln(os.Stderr, "resetdb deletes every reading in", cfg.DB.DBName+"; rerun with -yes to confirm")
		os.Exit(2)
	}

	db, err := database.Connect(cfg.DB, cfg.App.Debug)
	if err != nil {
		log.FatalWithError(err, "Failed to connect to database")
	}
	defer database.Close(db)

	if err := database.Reset(db); err != nil {
		log.FatalWithError(err, "Failed to reset database")
	}
	log.Logger.Info().Str("database", cfg.DB.DBName).Msg("sensor_data dropped and recreated")
}
