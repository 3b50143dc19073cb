package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"food-delivery/internal/config"
	"food-delivery/internal/storage/migrator"
)

func main() {
	var configPath, direction, dsn string
	flag.StringVar(&configPath, "config", "", "path to config file (or use CONFIG_PATH env)")
	flag.StringVar(&direction, "direction", migrator.DirectionUp, "migration direction: up or down")
	flag.StringVar(&dsn, "dsn", "", "database DSN, overrides the config")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if cfg.Storage.Driver == config.DriverMongoDB {
		// Collections and indexes are created by the storage on startup.
		fmt.Println("mongodb needs no migrations")
		return
	}

	if dsn == "" {
		dsn = cfg.Storage.DSN()
	}

	log.Printf("applying %s migrations (%s)", cfg.Storage.Driver, direction)

	if err := migrator.Run(cfg.Storage.Driver, dsn, direction); err != nil {
		if errors.Is(err, migrator.ErrUnknownDirection) {
			flag.Usage()
		}
		log.Fatalf("migration failed: %v", err)
	}

	fmt.Println("migrations applied successfully")
}
