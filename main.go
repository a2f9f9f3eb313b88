// @title Lingua Voice Backend API
// @version 1.0
// @description Real-time voice learning backend: session engine, turn scoring and progress ledger.

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package main

import (
	"log"

	"lingua_voice_backend/internal/app"
	"lingua_voice_backend/internal/config"
	"lingua_voice_backend/pkg/configwatcher"
	"lingua_voice_backend/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(newCfg interface{}) {
		if c, ok := newCfg.(*config.Config); ok {
			application.ApplyConfig(c)
		}
	})

	application.Run()
}
